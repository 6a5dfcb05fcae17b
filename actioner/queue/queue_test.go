package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	loc, err := ParseLocator("redis://localhost:6379/0?stream=actions&maxlen=1000")
	require.NoError(err)
	assert.Equal("redis", loc.Scheme)
	assert.Equal("actions", loc.Destination)
	assert.Equal(int64(1000), loc.MaxLen)
	assert.Equal("redis://localhost:6379/0", loc.ServerURL)

	loc, err = ParseLocator("redis://user:pw@redis.internal:6379/2?stream=reactions&dial_timeout=3s")
	require.NoError(err)
	assert.Equal("reactions", loc.Destination)
	assert.Equal("redis://user:pw@redis.internal:6379/2?dial_timeout=3s", loc.ServerURL)

	loc, err = ParseLocator("nats://localhost:4222/hma.actions?jetstream=true")
	require.NoError(err)
	assert.Equal("hma.actions", loc.Destination)
	assert.Equal("nats://localhost:4222", loc.ServerURL)
	assert.True(loc.JetStream)

	loc, err = ParseLocator("mem://actions")
	require.NoError(err)
	assert.Equal("actions", loc.Destination)

	bad := []string{
		"",
		"redis://localhost:6379/0",
		"redis://localhost:6379/0?stream=x&maxlen=-1",
		"nats://localhost:4222",
		"mem://",
		"https://sqs.us-east-1.amazonaws.com/123/actions",
	}
	for _, raw := range bad {
		_, err := ParseLocator(raw)
		assert.ErrorIs(err, ErrInvalidLocator, "locator: %s", raw)
	}
}

func TestOpenMem(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p, err := Open(ctx, "mem://actions", nil)
	require.NoError(t, err)
	mp, ok := p.(*MemPublisher)
	require.True(t, ok)
	assert.Equal("actions", mp.Name)

	_, err = Open(ctx, "ftp://nope/x", nil)
	assert.ErrorIs(err, ErrInvalidLocator)
}

func TestMemPublisher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mp := NewMemPublisher("test")
	assert.NoError(mp.Publish(ctx, []byte("one")))

	boom := errors.New("boom")
	mp.FailFunc = func(body []byte) error {
		if string(body) == "two" {
			return boom
		}
		return nil
	}
	assert.ErrorIs(mp.Publish(ctx, []byte("two")), boom)
	assert.NoError(mp.Publish(ctx, []byte("three")))
	assert.Equal([][]byte{[]byte("one"), []byte("three")}, mp.Messages())

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(mp.Publish(cctx, []byte("four")))

	assert.NoError(mp.Close())
	assert.ErrorIs(mp.Publish(ctx, []byte("five")), ErrClosed)
	assert.Equal(2, mp.Len())
}

func TestLimitedPublisher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mp := NewMemPublisher("test")
	lp := NewLimitedPublisher(mp, 1, 1)
	assert.NoError(lp.Publish(ctx, []byte("a")))

	// bucket is empty now; a short deadline can't be satisfied
	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(lp.Publish(tctx, []byte("b")))
	assert.Equal(1, mp.Len())
	assert.NoError(lp.Close())
}

func TestEnvelopeFromStream(t *testing.T) {
	assert := assert.New(t)

	env := EnvelopeFromStream(redis.XMessage{ID: "1-0", Values: map[string]any{"body": `{"content_id":"c"}`}})
	assert.Equal("1-0", env.ID)
	assert.Equal([]byte(`{"content_id":"c"}`), env.Body)

	env = EnvelopeFromStream(redis.XMessage{ID: "2-0", Values: map[string]any{"other": "x"}})
	assert.Empty(env.Body)
}

func TestRedisPublisherConsumer(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	opt, err := redis.ParseURL("redis://localhost:6379/0")
	require.NoError(t, err)
	rdb := redis.NewClient(opt)

	p := NewRedisPublisher(rdb, "actioner-test-stream", 100, nil)
	assert.NoError(p.Publish(ctx, []byte(`{"content_id":"c1","signal_hash":"h1"}`)))

	c, err := NewRedisConsumer(ctx, rdb, ConsumerConfig{Stream: "actioner-test-stream", Group: "test", Block: time.Second}, nil)
	require.NoError(t, err)
	envs, err := c.Read(ctx)
	assert.NoError(err)
	assert.NotEmpty(envs)
	for _, env := range envs {
		assert.NoError(c.Ack(ctx, env.ID))
	}
}
