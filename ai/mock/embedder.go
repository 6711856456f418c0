package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Dim is the length of generated vectors. Defaults to 384.
	Dim int

	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via CallCount().
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 384}
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	// Default: generate deterministic vector from text hash
	return generateDeterministicVector(text, m.dim()), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	// Default: generate deterministic vectors for each text
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = generateDeterministicVector(text, m.dim())
	}
	return embeddings, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

func (m *MockEmbedder) dim() int {
	if m.Dim <= 0 {
		return 384
	}
	return m.Dim
}

// generateDeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func generateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return unit(vector)
}

// TokenEmbedder maps text onto a fixed vocabulary: component i counts the
// occurrences of vocabulary word i. Cosine between two vectors therefore
// reflects shared vocabulary, which makes ranking tests predictable.
// Words outside the vocabulary are ignored; text with none yields a zero vector.
type TokenEmbedder struct {
	vocab     map[string]int
	dim       int
	callCount atomic.Int64
}

// NewTokenEmbedder creates a TokenEmbedder over the given words.
func NewTokenEmbedder(vocabulary ...string) *TokenEmbedder {
	vocab := make(map[string]int, len(vocabulary))
	for _, w := range vocabulary {
		w = strings.ToLower(w)
		if _, ok := vocab[w]; !ok {
			vocab[w] = len(vocab)
		}
	}
	return &TokenEmbedder{vocab: vocab, dim: len(vocab)}
}

// Dim returns the vector length.
func (e *TokenEmbedder) Dim() int {
	return e.dim
}

// EmbedText returns the bag-of-words vector for text.
func (e *TokenEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.callCount.Add(1)
	return e.vector(text), nil
}

// EmbedTexts returns bag-of-words vectors for each text.
func (e *TokenEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.callCount.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

// CallCount returns the number of times any method was called.
func (e *TokenEmbedder) CallCount() int {
	return int(e.callCount.Load())
}

func (e *TokenEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if i, ok := e.vocab[w]; ok {
			vec[i]++
		}
	}
	return unit(vec)
}

func unit(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}
	norm := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
