package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/tapcoin-engine/internal/catalog"
	"github.com/Proton-105/tapcoin-engine/internal/database"
	"github.com/Proton-105/tapcoin-engine/internal/engine"
	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
	"github.com/Proton-105/tapcoin-engine/internal/health"
	"github.com/Proton-105/tapcoin-engine/internal/i18n"
	"github.com/Proton-105/tapcoin-engine/internal/idempotency"
	"github.com/Proton-105/tapcoin-engine/internal/jobs"
	"github.com/Proton-105/tapcoin-engine/internal/jobs/handlers"
	"github.com/Proton-105/tapcoin-engine/internal/lifecycle"
	"github.com/Proton-105/tapcoin-engine/internal/notify"
	"github.com/Proton-105/tapcoin-engine/internal/payments"
	"github.com/Proton-105/tapcoin-engine/internal/ratelimit"
	"github.com/Proton-105/tapcoin-engine/internal/repository"
	"github.com/Proton-105/tapcoin-engine/internal/sweep"
	"github.com/Proton-105/tapcoin-engine/pkg/config"
	"github.com/Proton-105/tapcoin-engine/pkg/graceful"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
	appredis "github.com/Proton-105/tapcoin-engine/pkg/redis"
)

type app struct {
	cfg      *config.Config
	log      *slog.Logger
	errs     *apperrors.Handler
	checker  *health.Checker
	probes   *lifecycle.Probes
	shutdown *lifecycle.Shutdown

	db    *sql.DB
	redis *appredis.MetricsClient

	engine    *engine.Engine
	sweeper   *sweep.Sweeper
	settler   *payments.Settler
	collector *metrics.AggregateCollector
	cleaner   *ratelimit.Cleaner
	server    *graceful.Server
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		errs:     apperrors.NewHandler(log, cfg.Sentry.Enabled),
		checker:  health.NewChecker(log, 2*time.Second),
		shutdown: lifecycle.NewShutdown(log),
	}
	a.probes = lifecycle.NewProbes(a.checker, log)

	if err := a.openPostgres(ctx); err != nil {
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		return nil, err
	}

	accounts, promos, aggregate := a.stores()

	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}

	a.engine, err = engine.New(engineConfig(cfg.Engine), engine.Deps{
		Accounts:  accounts,
		Promos:    promos,
		Aggregate: aggregate,
		Catalog:   cat,
		Notifier:  notifier,
		Guard:     a.rateGuard(),
		Errors:    a.errs,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	if err := a.setupSweep(ctx); err != nil {
		return nil, err
	}
	a.settler = payments.NewSettler(a.engine, a.idempotency(), cfg.Engine.BoosterDuration, cfg.Payments.ResultTTL, log)

	a.collector = metrics.NewAggregateCollector(metrics.TotalsFunc(func(ctx context.Context) (metrics.Totals, error) {
		agg, err := a.engine.GlobalStats(ctx)
		if err != nil {
			return metrics.Totals{}, err
		}
		return metrics.Totals{Coins: agg.TotalCoins, Taps: agg.TotalTaps, Users: agg.TotalUsers}, nil
	}), cfg.Engine.StatsInterval, log)

	a.server = graceful.NewServer(log, &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)
	a.server.OnShutdown(func() { a.probes.SetReady(false) })

	return a, nil
}

func (a *app) openPostgres(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	db, err := sql.Open("postgres", a.cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(a.cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if err := database.NewMigrator(db, a.log).Apply(ctx, database.Migrations()); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	a.db = db
	a.checker.AddCheck("database", health.NewDBChecker(db))
	a.shutdown.Register("database", lifecycle.CloserHook(db.Close))
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	if !a.cfg.Redis.Enabled {
		return nil
	}

	client, err := appredis.New(ctx, a.cfg.Redis.Config)
	if err != nil {
		return err
	}

	a.redis = appredis.NewMetricsClient(client)
	a.checker.AddCheck("redis", health.NewRedisChecker(a.redis))
	a.shutdown.Register("redis", lifecycle.CloserHook(a.redis.Close))
	return nil
}

// stores picks PostgreSQL for the ledger when configured and Redis for the
// aggregate when available, falling back to memory.
func (a *app) stores() (repository.AccountStore, repository.PromoStore, repository.AggregateCounter) {
	var (
		accounts  repository.AccountStore     = repository.NewMemoryAccountStore()
		promos    repository.PromoStore       = repository.NewMemoryPromoStore()
		aggregate repository.AggregateCounter = repository.NewMemoryAggregate()
	)
	if a.db != nil {
		accounts = repository.NewPostgresAccountStore(a.db, a.log)
		promos = repository.NewPostgresPromoStore(a.db, a.log)
		aggregate = repository.NewPostgresAggregate(a.db)
	}
	if a.redis != nil {
		aggregate = repository.NewRedisAggregate(a.redis)
	}
	if a.db == nil {
		a.log.Warn("database disabled, accounts are kept in memory and lost on restart")
	}
	return accounts, promos, aggregate
}

func (a *app) catalog() (*catalog.Catalog, error) {
	if a.cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(a.cfg.Catalog.Path)
}

func (a *app) notifier() (notify.Notifier, error) {
	if !a.cfg.Telegram.Enabled {
		return notify.Nop{}, nil
	}

	bot, err := notify.NewBot(a.cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	locales, err := i18n.Load(a.cfg.Telegram.Language)
	if err != nil {
		return nil, err
	}

	breaker := apperrors.NewCircuitBreaker("telegram", apperrors.WithStateChange(func(name string, from, to apperrors.State) {
		a.log.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}))

	a.checker.AddCheck("telegram", health.NewTelegramChecker(bot))
	return notify.NewTelegramNotifier(bot, a.cfg.Telegram.AdminChatID, locales.Translator(a.cfg.Telegram.Language), breaker, a.log), nil
}

func (a *app) rateGuard() engine.RateGuard {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}

	memory := ratelimit.NewMemoryLimiter(a.log)
	var (
		limiter ratelimit.Limiter = memory
		cmdable goredis.Cmdable
	)
	if a.redis != nil {
		cmdable = a.redis.Raw()
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(cmdable, a.log), memory, a.log)
	}
	a.cleaner = ratelimit.NewCleaner(cmdable, memory, a.log, rl.CleanupInterval, rl.MaxKeyAge)

	rules := make(map[string]ratelimit.Rule, len(rl.Rules))
	for op, r := range rl.Rules {
		rules[op] = ratelimit.Rule{Limit: r.Limit, Window: r.Window}
	}
	return ratelimit.NewGuard(limiter, rules, rl.Whitelist)
}

func (a *app) idempotency() *idempotency.Manager {
	if a.redis != nil {
		return idempotency.NewManager(idempotency.NewRedisStore(a.redis.Raw(), a.log), a.log)
	}
	a.log.Warn("redis disabled, payment settlement deduplication is process-local")
	return idempotency.NewManager(idempotency.NewMemoryStore(), a.log)
}

func (a *app) setupSweep(ctx context.Context) error {
	sc := a.cfg.Sweep
	if !sc.Enabled {
		return nil
	}

	var lease sweep.Lease = sweep.LocalLease{}
	if a.redis != nil {
		lease = sweep.NewRedisLease(a.redis, sweep.DefaultLeaseKey, sc.LeaseTTL, a.log)
	}
	a.sweeper = sweep.New(a.engine, lease, a.log, sweep.WithInterval(sc.Interval), sweep.WithWorkers(sc.Workers))

	if sc.Driver != "asynq" {
		return nil
	}
	if a.redis == nil {
		return fmt.Errorf("sweep driver asynq requires redis")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, sc.Workers, a.log)
	worker.RegisterHandler(jobs.TaskTypeAutoclickerSweep, handlers.NewAutoclickerSweepHandler(a.sweeper, a.log))
	go func() {
		if err := worker.Run(); err != nil {
			a.log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()
	a.shutdown.Register("jobs-worker", lifecycle.StopHook(worker.Shutdown))

	scheduler := jobs.NewScheduler(redisOpt, sc.Interval, a.log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register sweep schedule: %w", err)
	}
	scheduler.Run()
	a.shutdown.Register("jobs-scheduler", lifecycle.StopHook(scheduler.Shutdown))

	// Catch up on whatever accrued while no instance was running.
	manager := jobs.NewManager(redisOpt, a.log)
	a.shutdown.Register("jobs-client", lifecycle.CloserHook(manager.Close))
	task, err := jobs.NewAutoclickerSweepTask("startup", sc.Interval)
	if err != nil {
		return err
	}
	if _, err := manager.Enqueue(ctx, task); err != nil {
		a.log.Warn("failed to enqueue startup sweep", slog.Any("error", err))
	}
	return nil
}

// Run serves until ctx is cancelled and then runs the shutdown hooks.
func (a *app) Run(ctx context.Context) error {
	go a.collector.Run(ctx)
	if a.cleaner != nil {
		go a.cleaner.Run(ctx)
	}
	if a.sweeper != nil && a.cfg.Sweep.Driver == "ticker" {
		go a.sweeper.Run(ctx)
	}

	a.probes.SetReady(true)
	serveErr := a.server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.shutdown.Execute(shutdownCtx); err != nil {
		a.log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	a.log.Info("tapcoin engine stopped")
	return serveErr
}

func engineConfig(c config.EngineConfig) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.ForegroundCap = c.ForegroundCap
	cfg.SweepCap = c.SweepCap
	cfg.BoosterDuration = c.BoosterDuration
	cfg.ReferralPercent = c.ReferralPercent
	cfg.ActiveReferralWindow = c.ActiveReferralWindow
	cfg.ExpiryWarningWindow = c.ExpiryWarningWindow
	cfg.MinPromoLength = c.MinPromoLength
	cfg.DefaultBanReason = c.DefaultBanReason
	if len(c.AdRewards) > 0 {
		cfg.AdRewards = c.AdRewards
	}
	return cfg
}
