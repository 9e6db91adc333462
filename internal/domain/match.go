package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchStatus is the match proposal state. Pending is initial; accepted and
// rejected are terminal with no way back.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// ParseMatchDecision validates a caller-supplied target status. Only the two
// terminal states are valid decisions; pending cannot be requested.
func ParseMatchDecision(s string) (MatchStatus, error) {
	switch MatchStatus(strings.ToLower(strings.TrimSpace(s))) {
	case MatchAccepted:
		return MatchAccepted, nil
	case MatchRejected:
		return MatchRejected, nil
	}
	return "", ErrValidation
}

// MatchRecord pairs one supply and one demand listing with a composite score.
// The referenced listings are resolved by id lookup; the record holds no live
// handles. Score is computed once at creation and never rewritten.
type MatchRecord struct {
	ID               uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SupplyListingID  uuid.UUID   `gorm:"column:supply_listing_id;type:uuid;not null;index;uniqueIndex:idx_match_pair" json:"supply_listing_id"`
	DemandListingID  uuid.UUID   `gorm:"column:demand_listing_id;type:uuid;not null;index;uniqueIndex:idx_match_pair" json:"demand_listing_id"`
	Score            float64     `gorm:"column:score;not null" json:"score"`
	VectorSimilarity float64     `gorm:"column:vector_similarity;not null" json:"vector_similarity"`
	Status           MatchStatus `gorm:"column:status;type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt        time.Time   `gorm:"column:created_at;not null" json:"created_at"`
}

func (MatchRecord) TableName() string {
	return "match_records"
}

// BeforeCreate sets the id if not already set.
func (m *MatchRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
