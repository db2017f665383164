package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stratacache/stratacache/pkg/types"
)

// InvalidationFeed delivers keys changed by other processes so the tracked
// tier can drop stale mirror entries. The backing store supplies it; the
// engine only consumes it.
type InvalidationFeed interface {
	// Receive blocks until the next invalidated key or an error.
	Receive(ctx context.Context) (string, error)
	Close() error
}

type redisFeed struct {
	pubsub *redis.PubSub
}

// NewRedisInvalidationFeed subscribes to the pub/sub channel carrying
// invalidated keys.
func NewRedisInvalidationFeed(client *redis.Client, channel string) InvalidationFeed {
	return &redisFeed{pubsub: client.Subscribe(context.Background(), channel)}
}

func (f *redisFeed) Receive(ctx context.Context) (string, error) {
	msg, err := f.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	return msg.Payload, nil
}

func (f *redisFeed) Close() error {
	return f.pubsub.Close()
}

// TrackedCache is the tier 1 adapter: a remote store with an in-process
// mirror for low-latency reads. Writes go through to the remote store
// synchronously and then update the mirror; reads check the mirror first.
// When the invalidation feed is unavailable the cache degrades to a plain
// read-through cache, accepts staleness, and warns exactly once.
type TrackedCache struct {
	remote types.RemoteCache
	mirror *LocalCache
	feed   InvalidationFeed
	logger *slog.Logger

	warnOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTrackedCache creates a TrackedCache and starts the invalidation
// listener. feed may be nil; the cache then runs degraded from the start.
func NewTrackedCache(remote types.RemoteCache, mirrorCapacity int, feed InvalidationFeed, logger *slog.Logger) *TrackedCache {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &TrackedCache{
		remote: remote,
		mirror: NewLocalCache(mirrorCapacity),
		feed:   feed,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if feed == nil {
		t.degrade(nil)
		close(t.done)
		return t
	}

	go t.listen(ctx)
	return t
}

// Get checks the mirror first; on mirror miss it reads the remote store and
// populates the mirror.
func (t *TrackedCache) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := t.mirror.Get(key); ok {
		return value, nil
	}

	value, err := t.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	t.mirror.Set(key, value)
	return value, nil
}

// Set writes through to the remote store synchronously, then updates the
// mirror. The mirror is not touched when the remote write fails.
func (t *TrackedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	t.mirror.Set(key, value)
	return nil
}

// Delete removes the key from the remote store and the mirror.
func (t *TrackedCache) Delete(ctx context.Context, key string) (bool, error) {
	mirrored := t.mirror.Delete(key)

	removed, err := t.remote.Delete(ctx, key)
	if err != nil {
		return mirrored, err
	}
	return removed || mirrored, nil
}

// Exists reports whether the key is present in the mirror or the remote
// store.
func (t *TrackedCache) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok := t.mirror.Get(key); ok {
		return true, nil
	}
	return t.remote.Exists(ctx, key)
}

// Close stops the invalidation listener.
func (t *TrackedCache) Close() error {
	t.cancel()
	<-t.done

	if t.feed != nil {
		return t.feed.Close()
	}
	return nil
}

func (t *TrackedCache) listen(ctx context.Context) {
	defer close(t.done)

	for {
		key, err := t.feed.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.degrade(err)
			return
		}
		t.mirror.Delete(key)
	}
}

func (t *TrackedCache) degrade(err error) {
	t.warnOnce.Do(func() {
		t.logger.Warn("invalidation feed unavailable, tracked cache degrades to plain cache",
			"error", err,
		)
	})
}

var _ types.RemoteCache = (*TrackedCache)(nil)
