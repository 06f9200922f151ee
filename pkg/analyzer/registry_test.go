package analyzer

import (
	"testing"

	"github.com/panbanda/augur/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"complexity", "cycles", "dead-code", "exact-clones", "near-clones", "structural-clones"}, r.IDs())
	assert.Equal(t, []string{"exact-clones", "near-clones", "structural-clones"}, r.DuplicateIDs())

	dets, err := r.Build(config.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, dets, 6)
	for i, info := range r.Describe() {
		assert.Equal(t, info.ID, dets[i].ID())
		assert.Equal(t, info.Expensive, dets[i].Expensive(), info.ID)
	}
}
