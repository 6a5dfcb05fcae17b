package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/event"
	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/matchstore"
	"github.com/hma-go/actioner/actioner/queue"
	"github.com/hma-go/actioner/actioner/rulestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Logger:            slog.Default(),
		ActionsQueueURL:   "mem://actions",
		ReactionsQueueURL: "mem://reactions",
		PolicyFile:        "testdata/policy.json",
		Parallelism:       2,
	}
}

func TestNewEngineConfigMissing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.ActionsQueueURL = ""
	_, err := NewEngine(ctx, cfg)
	assert.ErrorIs(err, engine.ErrConfigMissing)

	cfg = testConfig()
	cfg.ReactionsQueueURL = ""
	_, err = NewEngine(ctx, cfg)
	assert.ErrorIs(err, engine.ErrConfigMissing)

	cfg = testConfig()
	cfg.PolicyFile = ""
	_, err = NewEngine(ctx, cfg)
	assert.ErrorIs(err, engine.ErrConfigMissing)

	cfg = testConfig()
	cfg.ActionsQueueURL = "sqs://nope"
	_, err = NewEngine(ctx, cfg)
	assert.ErrorIs(err, queue.ErrInvalidLocator)

	cfg = testConfig()
	cfg.PolicyFile = "testdata/missing.json"
	_, err = NewEngine(ctx, cfg)
	assert.Error(err)
}

func TestEvaluateBatchFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	raw, err := os.ReadFile("testdata/batch.json")
	require.NoError(err)
	envs, err := parseBatch(raw)
	require.NoError(err)
	require.Len(envs, 3)
	assert.Equal("m1", envs[0].ID)

	eng, err := NewEngine(ctx, testConfig())
	require.NoError(err)
	summary := eng.ProcessBatch(ctx, envs)
	assert.Equal(engine.BatchPartial, summary.Status)
	assert.Equal(2, summary.Succeeded)
	assert.Equal(1, summary.Failed)

	assert.Equal([]labels.Label{labels.Action("EnqueueForReview")}, summary.Records[0].ResolvedActions)
	assert.Equal([]labels.Label{labels.Action("EnqueueForReview"), labels.Action("EnqueueMiniCastleForReview")}, summary.Records[1].MatchedActions)
	assert.Equal([]labels.Label{labels.Action("EnqueueMiniCastleForReview")}, summary.Records[1].ResolvedActions)
	assert.Equal(engine.FailureMalformedInput, summary.Records[2].Failure)

	actions := eng.Dispatcher.Actions.(*queue.MemPublisher)
	reactions := eng.Dispatcher.Reactions.(*queue.MemPublisher)
	assert.Equal(2, actions.Len())
	assert.Equal(2, reactions.Len())

	// malformed records are acknowledged along with successful ones
	assert.Equal([]string{"m1", "m2", "m3"}, ackableIDs(&summary))
}

func TestParseBatchArray(t *testing.T) {
	assert := assert.New(t)

	envs, err := parseBatch([]byte(`[{"content_id": "a", "signal_hash": "h"}, {"content_id": "b", "signal_hash": "h"}]`))
	assert.NoError(err)
	assert.Len(envs, 2)
	assert.Equal("record-1", envs[1].ID)

	_, err = parseBatch([]byte(`"nope"`))
	assert.Error(err)
}

func TestPolicyTree(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	snap, err := (&rulestore.FileStore{Path: "testdata/policy.json"}).Load(context.Background())
	require.NoError(err)
	out := policyTree("policy.json", snap).String()

	assert.True(strings.HasPrefix(out, "policy.json\n"))
	assert.Contains(out, "rules")
	assert.Contains(out, "EnqueueMiniCastleForReview")
	assert.Contains(out, "supersedes")
	// printed by priority, so the output is stable
	assert.Equal(out, policyTree("policy.json", snap).String())
}

func TestAckableIDs(t *testing.T) {
	assert := assert.New(t)

	summary := engine.BatchSummary{Records: []engine.RecordOutcome{
		{EnvelopeID: "ok", State: engine.StateDone},
		{EnvelopeID: "publish", State: engine.StateFailed, Failure: engine.FailurePublish, Err: engine.ErrPublishFailure},
		{EnvelopeID: "repo", State: engine.StateFailed, Failure: engine.FailureRepositoryUnavailable, Err: engine.ErrRepositoryUnavailable},
		{EnvelopeID: "malformed", State: engine.StateFailed, Failure: engine.FailureMalformedInput, Err: engine.ErrMalformedInput},
	}}
	assert.Equal([]string{"ok", "malformed"}, ackableIDs(&summary))
}

// In-memory stand-in for the redis stream consumer group: delivered records stay pending until acked.
type memConsumer struct {
	lk       sync.Mutex
	fresh    [][]event.Envelope
	pending  []event.Envelope
	acked    []string
	reclaims int
}

func (c *memConsumer) Read(ctx context.Context) ([]event.Envelope, error) {
	c.lk.Lock()
	if len(c.fresh) > 0 {
		envs := c.fresh[0]
		c.fresh = c.fresh[1:]
		c.pending = append(c.pending, envs...)
		c.lk.Unlock()
		return envs, nil
	}
	c.lk.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
		return []event.Envelope{}, nil
	}
}

func (c *memConsumer) ReadPending(ctx context.Context) ([]event.Envelope, error) {
	return []event.Envelope{}, nil
}

func (c *memConsumer) Reclaim(ctx context.Context, minIdle time.Duration) ([]event.Envelope, error) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.reclaims++
	return append([]event.Envelope{}, c.pending...), nil
}

func (c *memConsumer) Ack(ctx context.Context, ids ...string) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	for _, id := range ids {
		c.acked = append(c.acked, id)
		for i, env := range c.pending {
			if env.ID == id {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (c *memConsumer) Close() error { return nil }

func (c *memConsumer) state() (acked []string, pending, reclaims int) {
	c.lk.Lock()
	defer c.lk.Unlock()
	return append([]string{}, c.acked...), len(c.pending), c.reclaims
}

func TestRunConsumerRetriesFailedRecords(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	cfg := testConfig()
	cfg.PublishMaxTries = 1
	cfg.PublishTimeout = time.Second
	eng, err := NewEngine(context.Background(), cfg)
	require.NoError(err)

	// first publish attempt fails; the record must be retried without a restart
	actions := eng.Dispatcher.Actions.(*queue.MemPublisher)
	failures := 1
	actions.FailFunc = func(body []byte) error {
		if failures > 0 {
			failures--
			return queue.ErrClosed
		}
		return nil
	}

	mc := &memConsumer{fresh: [][]event.Envelope{{
		engine.MustEnvelope("1-0", event.MatchMessage{ContentID: "c1", SignalHash: "h1", Labels: []labels.Label{labels.Collaboration("12345")}}),
		{ID: "2-0", Body: []byte("not json")},
	}}}
	srv := &Server{
		logger:          slog.Default(),
		engine:          eng,
		consumer:        mc,
		reclaimInterval: 5 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.RunConsumer(ctx) }()

	require.Eventually(func() bool {
		acked, pending, _ := mc.state()
		return pending == 0 && len(acked) == 2
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(<-done)

	acked, _, reclaims := mc.state()
	// malformed record is acked on first delivery, the failed one after a retry
	assert.Equal([]string{"2-0", "1-0"}, acked)
	assert.GreaterOrEqual(reclaims, 1)
	assert.Equal(1, actions.Len())
}

func TestRunConsumerReclaimDisabled(t *testing.T) {
	require := require.New(t)

	eng, err := NewEngine(context.Background(), testConfig())
	require.NoError(err)
	mc := &memConsumer{}
	srv := &Server{logger: slog.Default(), engine: eng, consumer: mc}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(srv.RunConsumer(ctx))
	_, _, reclaims := mc.state()
	require.Equal(0, reclaims)
}

func testAPIServer(t *testing.T) (*Server, *matchstore.Store) {
	db, err := matchstore.SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "api.sqlite"), 1, nil)
	require.NoError(t, err)
	ms, err := matchstore.NewStore(db)
	require.NoError(t, err)
	srv := &Server{logger: slog.Default(), matches: ms}
	srv.setupAPI(":0")
	return srv, ms
}

func TestMatchAPI(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	srv, ms := testAPIServer(t)
	require.NoError(ms.PutMatch(ctx, &matchstore.MatchRecord{ContentID: "c1", SignalID: "s1", SignalSource: "te", SignalHash: "h1"}))
	require.NoError(ms.PutSignalMetadata(ctx, &matchstore.SignalMetadata{SignalID: "s1", SignalSource: "te", DatasetID: "ds1", Tags: []string{"csam", matchstore.TagFalsePositive}}))

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/_health")
	assert.Equal(200, rec.Code)

	rec = get("/matches?content_id=c1")
	require.Equal(200, rec.Code)
	var sums MatchSummariesResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &sums))
	require.Len(sums.MatchSummaries, 1)
	assert.Equal("s1", sums.MatchSummaries[0].SignalID)

	rec = get("/matches?signal_id=s1&signal_source=other")
	require.Equal(200, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &sums))
	assert.Empty(sums.MatchSummaries)

	rec = get("/matches/details?content_id=c1")
	require.Equal(200, rec.Code)
	var details MatchDetailsResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &details))
	require.Len(details.MatchDetails, 1)
	require.Len(details.MatchDetails[0].Metadata, 1)
	assert.Equal(matchstore.OpinionFalsePositive, details.MatchDetails[0].Metadata[0].Opinion)
	assert.Equal([]string{"csam"}, details.MatchDetails[0].Metadata[0].Tags)

	assert.Equal(400, get("/matches/details").Code)
	assert.Equal(400, get("/matches?since=yesterday").Code)
	assert.Equal(200, get("/matches?since=2024-03-01&until=2024-03-02T10:00:00Z").Code)
	assert.Equal(400, get("/matches?signal_source=te").Code)
	assert.Equal(400, get("/matches?limit=0").Code)
	assert.Equal(404, get("/nope").Code)
}
