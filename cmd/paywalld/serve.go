package main

import (
	"context"
	"net/http"
	"time"

	authgin "github.com/PaulFidika/paywallkit/adapters/gin"
	"github.com/PaulFidika/paywallkit/adapters/gin/handlers"
	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/billing"
	"github.com/PaulFidika/paywallkit/config"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/identity"
	"github.com/PaulFidika/paywallkit/jobs"
	"github.com/PaulFidika/paywallkit/payments/mercadopago"
	memorylimiter "github.com/PaulFidika/paywallkit/ratelimit/memory"
	redislimiter "github.com/PaulFidika/paywallkit/ratelimit/redis"
	"github.com/PaulFidika/paywallkit/redemption"
	"github.com/PaulFidika/paywallkit/session"
	memorystore "github.com/PaulFidika/paywallkit/storage/memory"
	redisstore "github.com/PaulFidika/paywallkit/storage/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type stores struct {
	gates   redemption.GateStore
	sources billing.SourceCache
	limiter ginutil.RateLimiter
	health  map[string]handlers.HealthCheck
	close   func()
}

func newStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*stores, error) {
	if cfg.RedisURL == "" {
		log.Warn("redis_url not set; using in-memory gate store, cache and rate limiter")
		gates := memorystore.NewGateStore(cfg.Paywall.GateTTL)
		sources := memorystore.NewSourceCache()
		limits := make(map[string]memorylimiter.Limit, len(cfg.RateLimits))
		for name, l := range cfg.RateLimits {
			limits[name] = memorylimiter.Limit{Limit: l.Limit, Window: l.Window}
		}
		rl := memorylimiter.New(limits)
		rl.StartJanitor(ctx, 2*time.Minute)
		return &stores{
			gates: gates, sources: sources, limiter: rl,
			health: map[string]handlers.HealthCheck{},
			close:  func() { _ = gates.Close(); _ = sources.Close() },
		}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	limits := make(map[string]redislimiter.Limit, len(cfg.RateLimits))
	for name, l := range cfg.RateLimits {
		limits[name] = redislimiter.Limit{Limit: l.Limit, Window: l.Window}
	}
	return &stores{
		gates:   redisstore.NewGateStore(rdb, "", cfg.Paywall.GateTTL),
		sources: redisstore.NewSourceCache(rdb, ""),
		limiter: redislimiter.New(rdb, limits),
		health: map[string]handlers.HealthCheck{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		close: func() { _ = rdb.Close() },
	}, nil
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := newStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()
	st.health["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }

	verifier, err := session.NewVerifier(ctx, session.Config{
		Issuer:    cfg.Session.Issuer,
		Audience:  cfg.Session.Audience,
		JWTSecret: cfg.Session.JWTSecret,
		JWKSURL:   cfg.Session.JWKSURL,
		Skew:      cfg.Session.Skew,
	})
	if err != nil {
		return err
	}

	schema := cfg.Database.Schema
	billingStore := billing.NewStore(pool, schema)
	paid := billing.NewCachedLookup(billingStore, st.sources, cfg.Paywall.SourceCacheTTL, log)
	profiles := identity.NewStore(pool, schema)
	redeemer := redemption.NewService(pool, schema, log)
	redeemer.GrantWindow = cfg.Paywall.GrantWindow

	deps := core.Deps{
		Profiles: profiles,
		Billing:  paid,
		Gates:    st.gates,
		Redeemer: redeemer,
		Pending:  billingStore,
		Log:      log,
	}

	var enqueuer handlers.PaymentEnqueuer
	if cfg.PaymentsEnabled() {
		mp := mercadopago.New(mercadopago.Config{
			AccessToken:     cfg.MercadoPago.AccessToken,
			BaseURL:         cfg.MercadoPago.BaseURL,
			NotificationURL: cfg.MercadoPago.NotificationURL,
			ReturnURLWeb:    cfg.MercadoPago.ReturnURLWeb,
			ReturnURLApp:    cfg.MercadoPago.ReturnURLApp,
		})
		deps.Preferences = mp

		if cfg.Jobs.Enabled {
			client, err := jobs.NewClient(pool,
				&jobs.PaymentApprovedWorker{Payments: mp, Ledger: billingStore, Cache: paid, Contacts: profiles, Log: log},
				&jobs.RenewalWorker{Ledger: billingStore, Preferences: mp, Log: log},
				jobs.Options{
					MaxWorkers:      cfg.Jobs.MaxWorkers,
					RenewalSchedule: cfg.Jobs.RenewalSchedule,
					RenewalLimit:    cfg.Jobs.RenewalLimit,
				})
			if err != nil {
				return err
			}
			if err := client.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = client.Stop(stopCtx)
			}()
			enqueuer = jobs.NewQueue(client)
		}
	} else {
		log.Warn("mp access token not set; checkout and payment webhooks disabled")
	}

	svc := core.NewService(deps)

	if lvl := log.GetLevel(); lvl < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), authgin.RequestLogger(log))
	authgin.Register(r, authgin.RouterDeps{
		Service:     svc,
		Verifier:    verifier,
		RateLimiter: st.limiter,
		Payments:    enqueuer,
		Health:      st.health,
		Language:    &authgin.LanguageConfig{Supported: cfg.Server.Languages},
		PlanPath:    cfg.Paywall.PlanPath,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listen(ctx, srv, log)
}
