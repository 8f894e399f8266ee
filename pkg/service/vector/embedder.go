// Package vector maintains a similarity index over creation text embeddings
package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

// Embedder converts text into a fixed-size vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// DefaultHashDimensions is the vector size of HashEmbedder
const DefaultHashDimensions = 384

// HashEmbedder is an offline embedder: a feature-hashed bag of words,
// normalized to unit length. Texts sharing words get positive similarity.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, goerr.Wrap(model.ErrEmbedding, "no tokens in text", goerr.V("text", text))
	}

	vec := make([]float32, h.dimensions)
	for _, token := range tokens {
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(token))
		sum := hash.Sum64()

		idx := int(sum % uint64(h.dimensions))
		// the top bit picks the sign so that collisions partly cancel out
		if sum>>63 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	return normalize(vec), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize converts embedding to unit vector
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

type embeddingClient interface {
	Embedding(ctx context.Context, text string, dimension int) ([]float32, error)
}

// GeminiEmbedder embeds text with a Gemini embedding model
type GeminiEmbedder struct {
	client     embeddingClient
	dimensions int
}

// DefaultGeminiDimensions is the output dimensionality requested from Gemini
const DefaultGeminiDimensions = 768

func NewGeminiEmbedder(client embeddingClient, dimensions int) *GeminiEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultGeminiDimensions
	}
	return &GeminiEmbedder{client: client, dimensions: dimensions}
}

func (g *GeminiEmbedder) Dimensions() int {
	return g.dimensions
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrEmbedding, "text is empty")
	}
	vec, err := g.client.Embedding(ctx, text, g.dimensions)
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbedding, "failed to embed text", goerr.V("cause", err.Error()))
	}
	return vec, nil
}
