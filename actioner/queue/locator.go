package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Parsed form of a queue locator string.
//
// Supported forms:
//
//	redis://[user:pass@]host:port/db?stream=NAME[&maxlen=N]
//	nats://host:port/SUBJECT[?jetstream=true]
//	mem://NAME
type Locator struct {
	Scheme string
	// redis connection URL (query options specific to this package removed), or NATS server URL
	ServerURL string
	// redis stream name, NATS subject, or memory queue name
	Destination string
	MaxLen      int64
	JetStream   bool
}

func ParseLocator(raw string) (*Locator, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidLocator)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}
	q := u.Query()
	loc := Locator{Scheme: u.Scheme}
	switch u.Scheme {
	case "redis", "rediss":
		loc.Destination = q.Get("stream")
		if loc.Destination == "" {
			return nil, fmt.Errorf("%w: redis locator requires a 'stream' parameter", ErrInvalidLocator)
		}
		if ml := q.Get("maxlen"); ml != "" {
			n, err := strconv.ParseInt(ml, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad maxlen: %s", ErrInvalidLocator, ml)
			}
			loc.MaxLen = n
		}
		q.Del("stream")
		q.Del("maxlen")
		u.RawQuery = q.Encode()
		loc.ServerURL = u.String()
	case "nats", "tls":
		loc.Destination = strings.TrimPrefix(u.Path, "/")
		if loc.Destination == "" {
			return nil, fmt.Errorf("%w: nats locator requires a subject path", ErrInvalidLocator)
		}
		loc.JetStream, _ = strconv.ParseBool(q.Get("jetstream"))
		loc.ServerURL = (&url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}).String()
	case "mem":
		loc.Destination = u.Host + u.Path
		if loc.Destination == "" {
			return nil, fmt.Errorf("%w: mem locator requires a name", ErrInvalidLocator)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, u.Scheme)
	}
	return &loc, nil
}

// Connects a publisher for the given locator string.
func Open(ctx context.Context, raw string, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := ParseLocator(raw)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "redis", "rediss":
		opt, err := redis.ParseURL(loc.ServerURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return NewRedisPublisher(rdb, loc.Destination, loc.MaxLen, logger), nil
	case "nats", "tls":
		nc, err := nats.Connect(loc.ServerURL, nats.Name("actioner"))
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		return NewNATSPublisher(nc, loc.Destination, loc.JetStream, logger)
	case "mem":
		return NewMemPublisher(loc.Destination), nil
	}
	return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, loc.Scheme)
}
