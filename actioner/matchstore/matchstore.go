// Persistent store of match records and signal metadata, with the query operations used by the match API.
package matchstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("matchstore")

var ErrInvalidQuery = errors.New("invalid match query")

const DefaultQueryLimit = 100

// signal exchange descriptor tags which carry a reviewer opinion, rather than content classification
const (
	TagTruePositive  = "true_positive"
	TagFalsePositive = "false_positive"
	TagDisputed      = "disputed"
)

type Opinion string

const (
	OpinionTruePositive  Opinion = "True Positive"
	OpinionFalsePositive Opinion = "False Positive"
	OpinionDisputed      Opinion = "Unknown (Disputed)"
	OpinionUnknown       Opinion = "Unknown"
)

// Derives the reviewer opinion from a set of descriptor tags. A positive opinion takes precedence over a negative one, which takes precedence over disputed.
func OpinionFromTags(tags []string) Opinion {
	switch {
	case slices.Contains(tags, TagTruePositive):
		return OpinionTruePositive
	case slices.Contains(tags, TagFalsePositive):
		return OpinionFalsePositive
	case slices.Contains(tags, TagDisputed):
		return OpinionDisputed
	default:
		return OpinionUnknown
	}
}

func isOpinionTag(tag string) bool {
	return tag == TagTruePositive || tag == TagFalsePositive || tag == TagDisputed
}

// Selects match records. ContentID takes precedence over SignalID; with neither set, records are selected by update time (Since/Until, either may be zero).
type Query struct {
	ContentID    string
	SignalID     string
	SignalSource string
	Since        time.Time
	Until        time.Time
	Limit        int
}

type MatchSummary struct {
	ContentID    string    `json:"content_id"`
	SignalID     string    `json:"signal_id"`
	SignalSource string    `json:"signal_source"`
	Actions      []string  `json:"actions,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MatchDetailMetadata struct {
	Dataset string   `json:"dataset"`
	Tags    []string `json:"tags"`
	Opinion Opinion  `json:"opinion"`
}

type MatchDetail struct {
	ContentID    string                `json:"content_id"`
	ContentHash  string                `json:"content_hash"`
	SignalID     string                `json:"signal_id"`
	SignalHash   string                `json:"signal_hash"`
	SignalSource string                `json:"signal_source"`
	SignalType   string                `json:"signal_type"`
	Actions      []string              `json:"actions,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Metadata     []MatchDetailMetadata `json:"metadata"`
}

type Store struct {
	db *gorm.DB
}

// Wraps an open database, running migrations.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := RunAllMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to migrate match store: %w", err)
	}
	return &Store{db: db}, nil
}

// Inserts or updates a match record, keyed by (content, signal id, signal source).
func (s *Store) PutMatch(ctx context.Context, rec *MatchRecord) error {
	return s.upsertMatch(ctx, rec, []string{"signal_hash", "content_hash", "signal_type", "actions", "state", "updated_at"})
}

func (s *Store) upsertMatch(ctx context.Context, rec *MatchRecord, updateCols []string) error {
	if rec.ContentID == "" || rec.SignalID == "" || rec.SignalSource == "" {
		return fmt.Errorf("match record missing key fields")
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}, {Name: "signal_id"}, {Name: "signal_source"}},
		DoUpdates: clause.AssignmentColumns(updateCols),
	}).Create(rec)
	if res.Error != nil {
		return fmt.Errorf("failed to save match record: %w", res.Error)
	}
	return nil
}

func (s *Store) PutSignalMetadata(ctx context.Context, md *SignalMetadata) error {
	if md.SignalID == "" || md.SignalSource == "" || md.DatasetID == "" {
		return fmt.Errorf("signal metadata missing key fields")
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signal_id"}, {Name: "signal_source"}, {Name: "dataset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tags", "updated_at"}),
	}).Create(md)
	if res.Error != nil {
		return fmt.Errorf("failed to save signal metadata: %w", res.Error)
	}
	return nil
}

// Returns match summaries selected by the query, most recently updated first.
func (s *Store) MatchSummaries(ctx context.Context, q Query) ([]MatchSummary, error) {
	ctx, span := tracer.Start(ctx, "MatchSummaries")
	defer span.End()

	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return nil, fmt.Errorf("%w: until is before since", ErrInvalidQuery)
	}
	if q.SignalSource != "" && q.SignalID == "" && q.ContentID == "" {
		return nil, fmt.Errorf("%w: signal source requires a signal id", ErrInvalidQuery)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	tx := s.db.WithContext(ctx).Model(&MatchRecord{})
	switch {
	case q.ContentID != "":
		span.SetAttributes(attribute.String("content_id", q.ContentID))
		tx = tx.Where("content_id = ?", q.ContentID)
	case q.SignalID != "":
		span.SetAttributes(attribute.String("signal_id", q.SignalID))
		tx = tx.Where("signal_id = ?", q.SignalID)
		if q.SignalSource != "" {
			tx = tx.Where("signal_source = ?", q.SignalSource)
		}
	default:
		if !q.Since.IsZero() {
			tx = tx.Where("updated_at >= ?", q.Since)
		}
		if !q.Until.IsZero() {
			tx = tx.Where("updated_at < ?", q.Until)
		}
	}

	var rows []MatchRecord
	if err := tx.Order("updated_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying match records: %w", err)
	}
	out := make([]MatchSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, MatchSummary{
			ContentID:    r.ContentID,
			SignalID:     r.SignalID,
			SignalSource: r.SignalSource,
			Actions:      r.Actions,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return out, nil
}

// Returns every match for the content, with per-dataset signal metadata. Opinion tags are reported as an opinion, not as tags.
func (s *Store) MatchDetails(ctx context.Context, contentID string) ([]MatchDetail, error) {
	ctx, span := tracer.Start(ctx, "MatchDetails")
	defer span.End()

	if contentID == "" {
		return []MatchDetail{}, nil
	}
	span.SetAttributes(attribute.String("content_id", contentID))

	var rows []MatchRecord
	if err := s.db.WithContext(ctx).Where("content_id = ?", contentID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying match records: %w", err)
	}
	out := make([]MatchDetail, 0, len(rows))
	for _, r := range rows {
		md, err := s.signalDetails(ctx, r.SignalID, r.SignalSource)
		if err != nil {
			return nil, err
		}
		out = append(out, MatchDetail{
			ContentID:    r.ContentID,
			ContentHash:  r.ContentHash,
			SignalID:     r.SignalID,
			SignalHash:   r.SignalHash,
			SignalSource: r.SignalSource,
			SignalType:   r.SignalType,
			Actions:      r.Actions,
			UpdatedAt:    r.UpdatedAt,
			Metadata:     md,
		})
	}
	return out, nil
}

func (s *Store) signalDetails(ctx context.Context, signalID, signalSource string) ([]MatchDetailMetadata, error) {
	out := []MatchDetailMetadata{}
	if signalID == "" || signalSource == "" {
		return out, nil
	}
	var rows []SignalMetadata
	if err := s.db.WithContext(ctx).Where("signal_id = ? AND signal_source = ?", signalID, signalSource).Order("dataset_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying signal metadata: %w", err)
	}
	for _, r := range rows {
		tags := []string{}
		for _, t := range r.Tags {
			if !isOpinionTag(t) {
				tags = append(tags, t)
			}
		}
		out = append(out, MatchDetailMetadata{
			Dataset: r.DatasetID,
			Tags:    tags,
			Opinion: OpinionFromTags(r.Tags),
		})
	}
	return out, nil
}
