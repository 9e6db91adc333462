package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"broker-backend/internal/domain"

	"gorm.io/gorm"
)

// Candidate is an opposite-direction listing with its raw vector similarity
// to the source (1 - cosine distance).
type Candidate struct {
	Listing    domain.Listing
	Similarity float64
}

// Retriever finds the nearest opposite-direction, active, non-expired,
// different-owner listings for a source listing.
//
// A source without an embedding yields domain.ErrNotEmbedded; a failing
// backing store yields domain.ErrRetrieval. Both come back with an empty
// candidate list, never a panic into the caller.
type Retriever interface {
	Retrieve(ctx context.Context, source *domain.Listing, k int, threshold float64) ([]Candidate, error)
}

// PgVectorRetriever ranks candidates with a pgvector cosine-distance query.
type PgVectorRetriever struct {
	DB *gorm.DB
}

type candidateRow struct {
	domain.Listing
	Similarity float64 `gorm:"column:similarity"`
}

func (r *PgVectorRetriever) Retrieve(ctx context.Context, source *domain.Listing, k int, threshold float64) ([]Candidate, error) {
	if !source.HasEmbedding() {
		return nil, domain.ErrNotEmbedded
	}
	if k <= 0 {
		k = 10
	}

	var rows []candidateRow
	err := r.DB.WithContext(ctx).Raw(`
		SELECT l.*, 1 - (l.embedding <=> ?) AS similarity
		FROM listings l
		WHERE l.direction = ?
		  AND l.status = ?
		  AND l.expires_at > ?
		  AND l.owner_id <> ?
		  AND l.embedding IS NOT NULL
		ORDER BY l.embedding <=> ?, l.created_at DESC
		LIMIT ?`,
		source.Embedding,
		source.Direction.Opposite(),
		domain.ListingActive,
		time.Now().UTC(),
		source.OwnerID,
		source.Embedding,
		k,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < threshold {
			continue
		}
		candidates = append(candidates, Candidate{Listing: row.Listing, Similarity: row.Similarity})
	}
	sortCandidates(candidates)
	return candidates, nil
}

// ScanRetriever loads candidates through the catalog query path and ranks
// them by cosine similarity computed in Go. Used with databases that have no
// vector index (sqlite in tests, pgvector-less Postgres).
type ScanRetriever struct {
	DB        *gorm.DB
	ScanLimit int // rows considered per retrieval; 0 means 500
}

func (r *ScanRetriever) Retrieve(ctx context.Context, source *domain.Listing, k int, threshold float64) ([]Candidate, error) {
	if !source.HasEmbedding() {
		return nil, domain.ErrNotEmbedded
	}
	if k <= 0 {
		k = 10
	}
	limit := r.ScanLimit
	if limit <= 0 {
		limit = 500
	}

	var listings []domain.Listing
	err := r.DB.WithContext(ctx).
		Where("direction = ? AND status = ? AND expires_at > ? AND owner_id <> ? AND embedding IS NOT NULL",
			source.Direction.Opposite(), domain.ListingActive, time.Now().UTC(), source.OwnerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}

	src := source.Embedding.Slice()
	candidates := make([]Candidate, 0, len(listings))
	for _, listing := range listings {
		if !listing.HasEmbedding() {
			continue
		}
		sim := CosineSimilarity(src, listing.Embedding.Slice())
		if sim < threshold {
			continue
		}
		candidates = append(candidates, Candidate{Listing: listing, Similarity: sim})
	}
	sortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// sortCandidates orders by similarity descending, ties broken by more recent
// created_at first.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Listing.CreatedAt.After(candidates[j].Listing.CreatedAt)
	})
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when dimensions differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

var (
	_ Retriever = (*PgVectorRetriever)(nil)
	_ Retriever = (*ScanRetriever)(nil)
)
