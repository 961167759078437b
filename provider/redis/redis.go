package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/contentcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const defaultScanCount = 256

type Redis struct {
	rdb         goredis.UniversalClient
	scanCount   int64
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	ScanCount   int64 // SCAN COUNT hint for Keys; 0 => 256
	CloseClient bool  // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	sc := cfg.ScanCount
	if sc <= 0 {
		sc = defaultScanCount
	}
	return &Redis{rdb: cfg.Client, scanCount: sc, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

// Set issues SET key value EX ttl. Non-positive TTLs mean "no expiry".
func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Del deletes keys one command per key so it also works across cluster slots.
func (p *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, ok := p.rdb.(*goredis.ClusterClient); !ok {
		return p.rdb.Del(ctx, keys...).Err()
	}
	cmds, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, c := range cmds {
		if err := c.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Keys walks SCAN MATCH pattern instead of KEYS, so large keyspaces do not block
// the server. On a cluster every master is scanned.
func (p *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	cc, ok := p.rdb.(*goredis.ClusterClient)
	if !ok {
		return scan(ctx, p.rdb, pattern, p.scanCount)
	}
	var (
		mu  sync.Mutex
		out []string
	)
	err := cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		keys, err := scan(ctx, node, pattern, p.scanCount)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, keys...)
		mu.Unlock()
		return nil
	})
	return out, err
}

func scan(ctx context.Context, c goredis.Cmdable, pattern string, count int64) ([]string, error) {
	var out []string
	it := c.Scan(ctx, 0, pattern, count).Iterator()
	for it.Next(ctx) {
		out = append(out, it.Val())
	}
	return out, it.Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
