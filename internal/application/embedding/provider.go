package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// ComposeText builds the canonical text a listing is embedded from. Keeping
// this in one place means cache keys stay stable across callers.
func ComposeText(title, description, category string, tags []string) string {
	parts := []string{strings.TrimSpace(title), strings.TrimSpace(description)}
	if category != "" {
		parts = append(parts, category)
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n")
}

// Provider maps text to a fixed-length vector, or signals failure. The rest
// of the engine treats it as a black box; a listing whose Embed call failed
// simply stays un-embedded until a later backfill.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// HashProvider derives a deterministic vector from sha256 digests of the
// input text. It exists for tests and local development only; it is a
// similarity proxy with no semantic meaning and must never be wired as a
// production default.
type HashProvider struct {
	Dim int
}

func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &HashProvider{Dim: dim}
}

func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: empty text")
	}
	vec := make([]float32, 0, p.Dim)
	for i := 0; len(vec) < p.Dim; i++ {
		digest := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", text, i)))
		for j := 0; j+4 <= len(digest) && len(vec) < p.Dim; j += 4 {
			v := binary.BigEndian.Uint32(digest[j : j+4])
			vec = append(vec, float32(v)/float32(1<<32)-0.5)
		}
	}
	return vec, nil
}

func (p *HashProvider) Dimension() int {
	return p.Dim
}

var _ Provider = (*HashProvider)(nil)
