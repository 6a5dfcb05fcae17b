package matchstore

import (
	"time"

	"gorm.io/gorm"
)

func RunAllMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&MatchRecord{}, &SignalMetadata{})
}

// A single piece of content matching a single signal. Keyed by (content, signal id, signal source); re-recording the same match updates it in place.
type MatchRecord struct {
	ID           uint   `gorm:"primaryKey"`
	ContentID    string `gorm:"uniqueIndex:idx_match_key;not null"`
	SignalID     string `gorm:"uniqueIndex:idx_match_key;index:idx_match_signal;not null"`
	SignalSource string `gorm:"uniqueIndex:idx_match_key;index:idx_match_signal;not null"`
	SignalHash   string
	ContentHash  string
	SignalType   string
	// resolved action label values, and final processing state, when recorded by the evaluator
	Actions   []string `gorm:"serializer:json"`
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

// Per-dataset metadata about a signal, as fetched from the signal exchange.
type SignalMetadata struct {
	ID           uint     `gorm:"primaryKey"`
	SignalID     string   `gorm:"uniqueIndex:idx_signal_ds;not null"`
	SignalSource string   `gorm:"uniqueIndex:idx_signal_ds;not null"`
	DatasetID    string   `gorm:"uniqueIndex:idx_signal_ds;not null"`
	Tags         []string `gorm:"serializer:json"`
	UpdatedAt    time.Time
}
