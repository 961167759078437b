package bigcache

import (
	"context"
	"encoding/binary"
	"errors"
	"path"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/contentcache/provider"
)

// Provider is an in-process byte cache for single-replica deployments (the desktop
// shell runs the reader without Redis).
//
// BigCache only knows one LifeWindow, so every stored value carries an 8-byte
// big-endian deadline (unix nanos, 0 = none) ahead of the payload. Get strips it
// and reports expired entries as absent; LifeWindow is only the eviction ceiling.
type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

const headerLen = 8

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration // eviction ceiling; must be >= the longest ttl passed to Set
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(b) < headerLen {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	if dl := int64(binary.BigEndian.Uint64(b[:headerLen])); dl != 0 && p.now().UnixNano() >= dl {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return b[headerLen:], true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	buf := make([]byte, headerLen+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf[:headerLen], uint64(p.now().Add(ttl).UnixNano()))
	}
	copy(buf[headerLen:], value)
	return true, p.c.Set(key, buf)
}

func (p *Provider) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := p.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Keys iterates every shard. Expired-but-not-yet-cleaned entries may be listed;
// deleting them is harmless.
func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	var out []string
	it := p.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			if errors.Is(err, bc.ErrInvalidIteratorState) || errors.Is(err, bc.ErrCannotRetrieveEntry) {
				continue
			}
			return nil, err
		}
		if ok, _ := path.Match(pattern, e.Key()); ok {
			out = append(out, e.Key())
		}
	}
	return out, nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
