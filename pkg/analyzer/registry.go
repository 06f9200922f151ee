// Package analyzer wires the built-in detectors into a registry.
package analyzer

import (
	"github.com/panbanda/augur/pkg/analyzer/complexity"
	"github.com/panbanda/augur/pkg/analyzer/cycles"
	"github.com/panbanda/augur/pkg/analyzer/deadcode"
	"github.com/panbanda/augur/pkg/analyzer/duplicates"
	"github.com/panbanda/augur/pkg/detector"
)

// DefaultRegistry returns a registry holding every built-in detector.
func DefaultRegistry() *detector.Registry {
	r := detector.NewRegistry()
	r.MustRegister(detector.Info{
		ID:          duplicates.ExactID,
		Description: "symbols whose normalized bodies are identical",
		Duplicates:  true,
	}, duplicates.NewExactDetector)
	r.MustRegister(detector.Info{
		ID:          duplicates.NearID,
		Description: "symbols and statement blocks with overlapping token fingerprints",
		Expensive:   true,
		Duplicates:  true,
	}, duplicates.NewNearDetector)
	r.MustRegister(detector.Info{
		ID:          duplicates.StructuralID,
		Description: "cross-file symbols with the same control-flow shape and similar vocabulary",
		Expensive:   true,
		Duplicates:  true,
	}, duplicates.NewStructuralDetector)
	r.MustRegister(detector.Info{
		ID:          deadcode.ID,
		Description: "functions, methods and classes nothing refers to",
	}, deadcode.New)
	r.MustRegister(detector.Info{
		ID:          cycles.ID,
		Description: "modules that reference each other in a cycle",
	}, cycles.New)
	r.MustRegister(detector.Info{
		ID:          complexity.ID,
		Description: "functions above the cyclomatic complexity threshold",
	}, complexity.New)
	return r
}
