package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Direction says whether a listing offers (supply) or seeks (demand) something.
type Direction string

const (
	DirectionSupply Direction = "supply"
	DirectionDemand Direction = "demand"
)

// ParseDirection validates a raw direction string. Anything outside the two
// enumerated values is a validation failure, never a silent default.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionSupply:
		return DirectionSupply, nil
	case DirectionDemand:
		return DirectionDemand, nil
	}
	return "", ErrValidation
}

// Opposite returns the counterpart direction: supply looks for demand and vice versa.
func (d Direction) Opposite() Direction {
	if d == DirectionSupply {
		return DirectionDemand
	}
	return DirectionSupply
}

// ListingStatus is the listing lifecycle state. Transitions are one-way:
// active -> matched, active -> closed. Matched and closed are terminal.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingMatched ListingStatus = "matched"
	ListingClosed  ListingStatus = "closed"
)

// ParseListingStatus validates a raw status string.
func ParseListingStatus(s string) (ListingStatus, error) {
	switch ListingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ListingActive:
		return ListingActive, nil
	case ListingMatched:
		return ListingMatched, nil
	case ListingClosed:
		return ListingClosed, nil
	}
	return "", ErrValidation
}

// TagList stores tags as a JSON array column but behaves as a []string in Go.
type TagList []string

// Scan implements sql.Scanner for reading from DB (json column).
func (t *TagList) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return errors.New("unsupported type for TagList")
	}
}

// Value implements driver.Valuer for writing to DB.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Normalized returns the lower-cased tag set used for overlap comparison.
func (t TagList) Normalized() map[string]struct{} {
	set := make(map[string]struct{}, len(t))
	for _, tag := range t {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	return set
}

// Listing is a supply or demand posting created by a user. Direction and
// OwnerID never change after creation; Embedding may be absent until an
// external backfill provides it, and such listings are excluded from retrieval.
type Listing struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID        `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Direction   Direction        `gorm:"column:direction;type:varchar(16);not null;index" json:"direction"`
	Category    string           `gorm:"column:category;type:varchar(128);index" json:"category"`
	Title       string           `gorm:"column:title;type:varchar(256);not null" json:"title"`
	Description string           `gorm:"column:description;type:text;not null" json:"description"`
	PriceRange  string           `gorm:"column:price_range;type:varchar(64)" json:"price_range"`
	ContactInfo datatypes.JSON   `gorm:"column:contact_info" json:"contact_info"`
	Embedding   *pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	Status      ListingStatus    `gorm:"column:status;type:varchar(16);not null;default:'active';index" json:"status"`
	Tags        TagList          `gorm:"column:tags;type:json" json:"tags"`
	CreatedAt   time.Time        `gorm:"column:created_at;not null;index" json:"created_at"`
	ExpiresAt   time.Time        `gorm:"column:expires_at;not null" json:"expires_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets the id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// HasEmbedding reports whether the listing carries a usable vector.
func (l *Listing) HasEmbedding() bool {
	return l.Embedding != nil && len(l.Embedding.Slice()) > 0
}

// Expired reports whether the listing is past its expiry at the given time.
func (l *Listing) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
