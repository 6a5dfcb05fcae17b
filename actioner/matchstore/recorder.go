package matchstore

import (
	"context"

	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/event"
)

// content-hash type of matches produced by the upstream matcher
const DefaultSignalType = "pdq"

var _ engine.MatchRecorder = (*Store)(nil)

// Records a processed match, along with the action labels resolved for it. Hash and type fields already written by the matcher are left as-is.
func (s *Store) RecordMatch(ctx context.Context, match *event.MatchMessage, out *engine.RecordOutcome) error {
	id, src := match.SignalRef()
	actions := make([]string, 0, len(out.ResolvedActions))
	for _, l := range out.ResolvedActions {
		actions = append(actions, l.Value)
	}
	return s.upsertMatch(ctx, &MatchRecord{
		ContentID:    match.ContentID,
		SignalID:     id,
		SignalSource: src,
		SignalHash:   match.SignalHash,
		SignalType:   DefaultSignalType,
		Actions:      actions,
		State:        string(out.State),
	}, []string{"actions", "state", "updated_at"})
}
