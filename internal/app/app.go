// Package app wires configuration, storage, the session cache and the
// moderation services into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"plaza.social/internal/admin"
	"plaza.social/internal/auth"
	"plaza.social/internal/config"
	"plaza.social/internal/httpapi"
	"plaza.social/internal/moderation"
	"plaza.social/internal/obs"
	"plaza.social/internal/realtime"
	"plaza.social/internal/realtime/redisfeed"
	"plaza.social/internal/session"
	"plaza.social/internal/session/redisstore"
	"plaza.social/internal/session/sqlitestore"
	"plaza.social/internal/store/memory"
	"plaza.social/internal/store/pg"
)

// Store is every persistence port the services need.
type Store interface {
	session.ProfileStore
	session.BanStore
	moderation.Store
	moderation.BanStore
	moderation.ContentStore
	admin.Store
}

type App struct {
	Config   *config.Config
	Store    Store
	Feed     realtime.Feed
	Verifier *auth.TokenVerifier
	Sessions *session.Manager
	Reports  *moderation.Workflow
	Bans     *moderation.BanService
	Admin    *admin.Service

	pingers []httpapi.Pinger
	sqlite  *sqlitestore.Store
	closers []func() error
}

// Option customizes New.
type Option func(*App)

// WithFeed replaces the change feed New would pick from the config.
func WithFeed(f realtime.Feed) Option {
	return func(a *App) {
		a.Feed = f
	}
}

// New opens every backend named by cfg. Without a Postgres DSN the in-memory
// store is used, which is only suitable for development.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	verifier, err := auth.NewTokenVerifier(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, err
	}
	a.Verifier = verifier

	if cfg.PostgresDSN != "" {
		db, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.pingers = append(a.pingers, db)
		a.Store = db
	} else {
		obs.Logger().Warn().Msg("no postgres dsn configured, using in-memory store")
		a.Store = memory.New()
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		a.pingers = append(a.pingers, redisPinger{rdb})
	}

	persister, err := a.openPersister(ctx, rdb)
	if err != nil {
		return nil, err
	}

	switch {
	case a.Feed != nil:
	case rdb != nil:
		a.Feed = redisfeed.New(rdb)
	default:
		a.Feed = realtime.NewHub()
	}

	a.Sessions = session.NewManager(a.Store, a.Store,
		session.WithTTL(cfg.CacheTTL),
		session.WithPersister(persister),
	)
	modOpts := []moderation.Option{moderation.WithPublisher(a.Feed)}
	if cfg.BanDuration > 0 {
		modOpts = append(modOpts, moderation.WithDefaultBanDuration(cfg.BanDuration))
	}
	a.Bans = moderation.NewBanService(a.Store, a.Store, modOpts...)
	a.Reports = moderation.NewWorkflow(a.Store, a.Store, a.Bans, modOpts...)
	a.Admin = admin.NewService(a.Store, a.Sessions, admin.WithPublisher(a.Feed))

	ok = true
	return a, nil
}

func (a *App) openPersister(ctx context.Context, rdb *redis.Client) (session.Persister, error) {
	switch a.Config.CacheBackend {
	case config.CacheRedis:
		if rdb == nil {
			return nil, errors.New("redis cache backend requires redis_addr")
		}
		return redisstore.New(rdb, a.Config.CacheTTL), nil
	case config.CacheMemory:
		return session.NewMemoryPersister(), nil
	default:
		st, err := sqlitestore.Open(ctx, a.Config.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open session cache: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.sqlite = st
		return st, nil
	}
}

// Run keeps cached sessions in step with profile and ban changes until ctx
// ends. A change for user U drops U's cache so the next request refetches.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	invalidate := func(ctx context.Context, c realtime.Change) error {
		if c.UserID == "" {
			return nil
		}
		return a.Sessions.InvalidateUser(ctx, c.UserID)
	}
	for _, table := range []string{realtime.TableProfiles, realtime.TableBans} {
		g.Go(func() error {
			return realtime.Watch(gctx, a.Feed, table, invalidate)
		})
	}
	g.Go(func() error {
		a.Sessions.RunSweeper(gctx, a.Sessions.TTL())
		return nil
	})
	if a.sqlite != nil {
		g.Go(func() error {
			a.pruneLoop(gctx)
			return nil
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (a *App) pruneLoop(ctx context.Context) {
	ttl := a.Sessions.TTL()
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := a.sqlite.Prune(ctx, now.Add(-ttl))
			if err != nil {
				obs.Logger().Warn().Err(err).Msg("prune session cache")
				continue
			}
			if n > 0 {
				obs.Logger().Debug().Int64("rows", n).Msg("pruned session cache")
			}
		}
	}
}

// API builds the HTTP surface.
func (a *App) API(version string) *httpapi.API {
	return httpapi.New(a.ReadyProbe(), version, httpapi.Services{
		Verifier: a.Verifier,
		Sessions: a.Sessions,
		Reports:  a.Reports,
		Bans:     a.Bans,
		Admin:    a.Admin,
	},
		httpapi.WithRateLimit(a.Config.RatePerSecond, a.Config.RateBurst),
		httpapi.WithMaxBodyBytes(a.Config.MaxBodyBytes),
		httpapi.WithCORSOrigins(a.Config.CORSOrigins...),
	)
}

// Handler is a shortcut for API(version).Handler().
func (a *App) Handler(version string) http.Handler {
	return a.API(version).Handler()
}

func (a *App) ReadyProbe() httpapi.ReadyProbe {
	return httpapi.ReadyProbe{Deps: a.pingers}
}

// AccessFor resolves the access of userID outside an HTTP request, for
// operator tooling. The session is always fetched fresh and, unlike a
// sign-in, an unknown user is not bootstrapped.
func (a *App) AccessFor(ctx context.Context, userID string) (context.Context, auth.Access, error) {
	profile, err := a.Store.GetProfile(ctx, userID)
	if err != nil {
		return ctx, auth.Anonymous(), fmt.Errorf("load actor %s: %w", userID, err)
	}
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: profile.UserID, Email: profile.Email})
	st, err := a.Sessions.For(userID).Refresh(ctx, true)
	if err != nil {
		return ctx, auth.Anonymous(), err
	}
	access := st.Access()
	return auth.ContextWithAccess(ctx, access), access, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error {
	return p.c.Ping(ctx).Err()
}
