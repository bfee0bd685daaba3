package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"ridewatch/internal/alerts"
	"ridewatch/internal/api"
	"ridewatch/internal/config"
	"ridewatch/internal/eventbus"
	"ridewatch/internal/jobs"
	"ridewatch/internal/mailer"
	"ridewatch/internal/sched"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	sched  *sched.Service
	feeds  *jobs.Feeds
	api    *api.Server
	alerts *alerts.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	schedCfg, err := mapSchedConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	schedSvc := sched.New(schedCfg, log.With(logx.String("comp", "sched")), bus)

	sources, err := mapFeedSources(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sched:   schedSvc,
		feeds:   jobs.NewFeeds(store, log, sources),
	}

	if err := a.registerJobs(cfg); err != nil {
		_ = store.Close()
		return nil, err
	}

	if cfg.API.Enabled {
		apiCfg, err := mapAPIConfig(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.api = api.New(apiCfg, log.With(logx.String("comp", "api")), store)
	}

	acfg, err := mapAlertsConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if acfg.Enabled {
		sender, err := alerts.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.alerts = alerts.New(acfg, sender, log.With(logx.String("comp", "alerts")), bus)
	}

	return a, nil
}

// registerJobs (re-)registers every enabled job with its configured or default
// schedule. Register upserts by name, so calling this on hot reload is safe.
func (a *App) registerJobs(cfg *config.Config) error {
	defs := []struct {
		name string
		jc   config.JobConfig
		def  string
		run  sched.JobFunc
	}{
		{"feeds", cfg.Jobs.Feeds, defScheduleFeeds, a.feeds.Run},
		{"cache_rebuild", cfg.Jobs.CacheRebuild, defScheduleCacheRebuild,
			jobs.NewCacheRebuild(a.store, a.log).Run},
		{"snapshot", cfg.Jobs.Snapshot, defScheduleSnapshot,
			jobs.NewSnapshot(a.store, a.log).Run},
		{"notify", cfg.Jobs.Notify, defScheduleNotify,
			jobs.NewNotify(a.store, a.log).Run},
		{"newsletter", cfg.Jobs.Newsletter, defScheduleNewsletter,
			jobs.NewNewsletter(a.store, a.log, cfg.Export.NewsletterTop).Run},
		{"export", cfg.Jobs.Export, defScheduleExport,
			jobs.NewExport(a.store, a.log, cfg.Export.Dir, cfg.Export.PopularityDays).Run},
		{"rollup", cfg.Jobs.Rollup, defScheduleRollup,
			jobs.NewRollup(a.store, a.log, cfg.Export.HistoryKeepDays).Run},
	}

	// The outbox only runs with a working SMTP relay behind it.
	if cfg.Email.Enabled {
		sender := mailer.NewSMTP(mapMailerConfig(cfg))
		outbox := jobs.NewOutbox(a.store, sender, a.log, cfg.Email.RatePerSec, cfg.Email.BatchSize)
		defs = append(defs, struct {
			name string
			jc   config.JobConfig
			def  string
			run  sched.JobFunc
		}{"outbox", cfg.Jobs.Outbox, defScheduleOutbox, outbox.Run})
	} else {
		a.sched.Remove("outbox")
	}

	for _, d := range defs {
		if !jobEnabled(d.jc) {
			a.sched.Remove(d.name)
			continue
		}
		timeout, err := jobTimeout(d.name, d.jc)
		if err != nil {
			return err
		}
		if err := a.sched.Register(d.name, jobSchedule(d.jc, d.def), timeout, d.run); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if a.sched.Enabled() {
		a.sched.Start(runCtx)
	}
	if a.alerts != nil {
		a.alerts.Start(runCtx)
	}
	if a.api != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("api listener failed", logx.Err(err))
			}
		}()
	}

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.notifyReady(runCtx)
	a.log.Info("started", logx.Any("jobs", a.sched.Names()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.notifyStopping()
	if a.cancel != nil {
		a.cancel()
	}

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	if a.api != nil {
		step("api", 5*time.Second, func(c context.Context) { _ = a.api.Stop(c) })
	}
	step("scheduler", 10*time.Second, func(c context.Context) { a.sched.Stop(c) })
	if a.alerts != nil {
		step("alerts", 2*time.Second, func(c context.Context) { a.alerts.Stop(c) })
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background loops did not stop in time")
	}

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

// RunOnce executes one named job synchronously and returns its error. Used by
// the -once CLI mode for cron-less deployments and manual pokes.
func (a *App) RunOnce(ctx context.Context, name string) error {
	return a.sched.RunNow(ctx, name)
}

// Jobs returns the registered job names.
func (a *App) Jobs() []string { return a.sched.Names() }

// reloadLoop applies hot config updates: logging, scheduler pool settings, job
// schedules and feed sources change live; storage, api and telegram changes
// need a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts, keep only the newest.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyReload(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyReload(ctx context.Context, prev, cfg *config.Config) {
	if !sameJSON(prev.Logging, cfg.Logging) {
		a.logs.Apply(mapLoggingConfig(cfg))
	}

	for _, s := range []struct {
		name    string
		changed bool
	}{
		{"storage", !sameJSON(prev.Storage, cfg.Storage)},
		{"api", !sameJSON(prev.API, cfg.API)},
		{"telegram", !sameJSON(prev.Telegram, cfg.Telegram)},
	} {
		if s.changed {
			a.log.Warn("config section changed; restart required to take effect",
				logx.String("section", s.name))
		}
	}

	schedCfg, err := mapSchedConfig(cfg)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.sched.Enabled()
		a.sched.Apply(ctx, schedCfg)
		if !wasEnabled && schedCfg.Enabled {
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		} else if wasEnabled && !schedCfg.Enabled {
			a.log.Info("scheduler disabled via config")
		}
	}

	sources, err := mapFeedSources(cfg)
	if err != nil {
		a.log.Warn("invalid feed config; keeping previous", logx.Err(err))
	} else {
		a.feeds.SetSources(sources)
	}

	if err := a.registerJobs(cfg); err != nil {
		a.log.Warn("job re-registration failed; keeping previous schedules", logx.Err(err))
	}

	a.log.Info("config reloaded", logx.String("path", a.cfgPath))
}
