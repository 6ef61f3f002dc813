package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// HashEmbedding returns a local feature-hashing embedder. It needs no network and
// is deterministic, which makes it the choice for offline runs and tests.
func HashEmbedding(dims int) chromem.EmbeddingFunc {
	if dims <= 1 {
		dims = 256
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		// bias keeps empty input from producing a zero vector
		vec[0] = 0.01
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			idx := 1 + int(h.Sum32()%uint32(dims-1))
			vec[idx]++
		}
		normalize(vec)
		return vec, nil
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
