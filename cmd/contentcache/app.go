package main

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/contentcache"
	"github.com/unkn0wn-root/contentcache/codec"
	"github.com/unkn0wn-root/contentcache/genstore"
	"github.com/unkn0wn-root/contentcache/internal/config"
	zaplog "github.com/unkn0wn-root/contentcache/log/zap"
	pr "github.com/unkn0wn-root/contentcache/provider"
	bcprov "github.com/unkn0wn-root/contentcache/provider/bigcache"
	rdprov "github.com/unkn0wn-root/contentcache/provider/redis"
	rtprov "github.com/unkn0wn-root/contentcache/provider/ristretto"
	"github.com/unkn0wn-root/contentcache/store/mongostore"
	"github.com/unkn0wn-root/contentcache/store/sqlstore"
)

type backingStore interface {
	contentcache.Store
	contentcache.WriteStore
}

// app is everything a command needs, built once from config.
type app struct {
	log    *zap.Logger
	reader contentcache.Reader
	writer *contentcache.Writer

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger, err := zaplog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	// a stays reachable here after an error return nils the result
	a := &app{log: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	store, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	format, err := codec.ParseFormat(cfg.Cache.Codec)
	if err != nil {
		return nil, err
	}
	opts := contentcache.Options{
		Store:           store,
		Namespace:       cfg.Cache.Namespace,
		Codec:           format,
		MaxPayloadBytes: cfg.Cache.MaxPayloadBytes,
		ListTTL:         cfg.Cache.TTL.ListTTL(),
		DocTTL:          cfg.Cache.TTL.DocTTL(),
		TodayTTL:        cfg.Cache.TTL.TodayTTL(),
		Logger:          zaplog.Logger{L: logger.Named("contentcache")},
		Disabled:        cfg.Cache.Provider == "none",
	}

	var rdb goredis.UniversalClient
	if cfg.Cache.Provider == "redis" {
		dial, read, write := cfg.Redis.Timeouts()
		rdb = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:        []string{cfg.Redis.Addr},
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  dial,
			ReadTimeout:  read,
			WriteTimeout: write,
		})
		a.closers = append(a.closers, func(context.Context) error {
			if err := rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
				return err
			}
			return nil
		})
	}

	if !opts.Disabled {
		if opts.Provider, err = newProvider(ctx, cfg.Cache, rdb); err != nil {
			return nil, err
		}
	}

	switch cfg.Cache.Fence {
	case "local":
		opts.Fence = genstore.NewLocalGenStore(0, 0)
	case "redis":
		opts.Fence = genstore.NewRedisGenStore(genstore.RedisConfig{
			Client:    rdb,
			Namespace: cfg.Cache.Namespace,
			TTL:       cfg.Cache.TTL.DocTTL() * 2,
		})
	}

	reader, err := contentcache.New(opts)
	if err != nil {
		if opts.Fence != nil {
			_ = opts.Fence.Close(ctx)
		}
		if opts.Provider != nil {
			_ = opts.Provider.Close(ctx)
		}
		return nil, err
	}
	// reader closes fence and provider; the redis client closer above runs after it
	a.closers = append([]func(context.Context) error{reader.Close}, a.closers...)
	a.reader = reader
	a.writer = contentcache.NewWriter(store, reader)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.StoreConfig) (backingStore, error) {
	switch cfg.Driver {
	case "mongo":
		s, err := mongostore.Connect(ctx, mongostore.Config{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		if err := s.EnsureIndexes(ctx); err != nil {
			a.log.Warn("could not ensure createdAt index", zap.Error(err))
		}
		return s, nil
	case "postgres", "sqlite":
		s, err := sqlstore.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		if err := s.CreateSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func newProvider(ctx context.Context, cfg config.CacheConfig, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.Provider {
	case "redis":
		return rdprov.New(rdprov.Config{Client: rdb})
	case "bigcache":
		// entries carry their own deadline; the life window only bounds eviction
		life := max(cfg.TTL.ListTTL(), cfg.TTL.DocTTL(), cfg.TTL.TodayTTL())
		return bcprov.New(ctx, bcprov.Config{LifeWindow: life, HardMaxCacheSizeMB: cfg.LocalSizeMB})
	case "ristretto":
		maxCost := int64(cfg.LocalSizeMB) << 20
		return rtprov.New(rtprov.Config{
			NumCounters: maxCost / 1024 * 10,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
	default:
		return nil, fmt.Errorf("unsupported cache provider %q", cfg.Provider)
	}
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}
