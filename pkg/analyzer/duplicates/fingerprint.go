package duplicates

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
)

// NGramHashes hashes every contiguous n-gram of tokens. A stream shorter than
// n yields no hashes.
func NGramHashes(tokens []string, n int) []uint32 {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	hashes := make([]uint32, 0, len(tokens)-n+1)
	d := xxhash.New()
	for i := 0; i+n <= len(tokens); i++ {
		d.Reset()
		for _, tok := range tokens[i : i+n] {
			_, _ = d.WriteString(tok)
			_, _ = d.Write([]byte{0})
		}
		h := d.Sum64()
		hashes = append(hashes, uint32(h^(h>>32)))
	}
	return hashes
}

// Winnow keeps the minimum hash of every window of w consecutive hashes,
// preferring the rightmost occurrence on ties. A sequence shorter than the
// window is treated as a single window.
func Winnow(hashes []uint32, w int) *roaring.Bitmap {
	fp := roaring.New()
	if len(hashes) == 0 {
		return fp
	}
	if w <= 0 || w > len(hashes) {
		w = len(hashes)
	}

	prev := -1
	for start := 0; start+w <= len(hashes); start++ {
		minPos := start
		for i := start + 1; i < start+w; i++ {
			if hashes[i] <= hashes[minPos] {
				minPos = i
			}
		}
		if minPos != prev {
			fp.Add(hashes[minPos])
			prev = minPos
		}
	}
	return fp
}

// Fingerprint computes the winnowed fingerprint of a token stream.
func Fingerprint(tokens []string, ngram, window int) *roaring.Bitmap {
	return Winnow(NGramHashes(tokens, ngram), window)
}

// TokenSet hashes each distinct token into a set, for bag-of-tokens similarity.
func TokenSet(tokens []string) *roaring.Bitmap {
	set := roaring.New()
	for _, tok := range tokens {
		h := xxhash.Sum64String(tok)
		set.Add(uint32(h ^ (h >> 32)))
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets are identical (1.0);
// an empty set shares nothing with a non-empty one (0.0).
func Jaccard(a, b *roaring.Bitmap) float64 {
	aEmpty := a == nil || a.IsEmpty()
	bEmpty := b == nil || b.IsEmpty()
	switch {
	case aEmpty && bEmpty:
		return 1.0
	case aEmpty || bEmpty:
		return 0.0
	}
	inter := a.AndCardinality(b)
	union := a.OrCardinality(b)
	return float64(inter) / float64(union)
}
