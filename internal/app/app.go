package app

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/commands"
	"stockbot/internal/config"
	"stockbot/internal/eventbus"
	"stockbot/internal/monitor"
	"stockbot/internal/notifier"
	"stockbot/internal/runtime/supervisor"
	"stockbot/internal/services/scheduler"
	"stockbot/internal/session"
	"stockbot/internal/storage"
	kit "stockbot/internal/transport"
	telegram "stockbot/internal/transport/telegram"
	logx "stockbot/pkg/logx"
)

const (
	jobMonitor = "alerts.monitor"
	jobRefresh = "prices.refresh"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	rec   *storage.Recorder

	adapter  kit.Adapter
	client   *api.Client
	sessions *session.Store

	sched *scheduler.Service
	notif *notifier.Service
	mon   *monitor.Service

	cmdm *commands.Manager

	updates chan kit.Update
	started time.Time
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Adapter config mapping
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Logging service mapping
	// logx.New() calls Apply() immediately. If the Telegram ops sink is enabled
	// but the target chat isn't set yet, Apply() would warn. Bootstrap with the
	// sink disabled, set the target, then Apply() the final config.
	baseLogCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    false,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	setOpsTarget(logSvc, cfg)

	finalLogCfg := baseLogCfg
	finalLogCfg.Telegram.Enabled = cfg.Logging.Telegram.Enabled
	logSvc.Apply(finalLogCfg)

	bus := eventbus.New()

	// Audit storage (optional)
	var store storage.Store
	var rec *storage.Recorder
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		rec = storage.NewRecorder(store, bus, log.With(logx.String("comp", "audit")))
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	apiCfg, err := mapAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := api.New(apiCfg, log.With(logx.String("comp", "api")))
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore()

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")))

	notifSvc := notifier.New(notifier.Config{
		RatePerSec: cfg.Notifier.RatePerSec,
	}, ad, log.With(logx.String("comp", "notifier")), bus)

	monCfg, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	monSvc := monitor.New(monCfg, sessions, client, notifSvc, log.With(logx.String("comp", "monitor")), bus)

	started := time.Now()

	cmdm := commands.NewManager(commands.Config{
		Prefix: cfg.Prefix(),
	}, ad, log.With(logx.String("comp", "commands")))
	cmdm.SetRegistry(commands.All(&commands.Deps{
		Backend:  client,
		Sessions: sessions,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "commands")),
		BaseURL:  client.BaseURL(),
		Started:  started,
	}))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		rec:      rec,
		adapter:  ad,
		client:   client,
		sessions: sessions,
		sched:    schedSvc,
		notif:    notifSvc,
		mon:      monSvc,
		cmdm:     cmdm,
		updates:  make(chan kit.Update, 256),
		started:  started,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapAPIConfig(cfg); err != nil {
			return err
		}
		if _, err := mapMonitorConfig(cfg); err != nil {
			return err
		}
		if spec := strings.TrimSpace(cfg.Monitor.RefreshSpec); spec != "" {
			if _, err := scheduler.ParseSchedule(spec); err != nil {
				return fmt.Errorf("monitor.refresh_spec: %w", err)
			}
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
			}
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sched.Start(a.sup.Context())
	a.registerJobs(a.cfgm.Get())

	if a.rec != nil {
		a.sup.Go("storage.audit", func(c context.Context) error {
			return a.rec.Run(c)
		})
	}

	// A dispatcher failure should self-heal rather than take the bot down.
	a.sup.GoRestart("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	// Debug visibility into bus traffic (the audit recorder subscribes on its own).
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections := changedSections(lastApplied, newCfg)
				lastApplied = newCfg
				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}
				a.applyReload(c, newCfg, sections)
				a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("backend", a.client.BaseURL()),
		logx.String("prefix", a.cmdm.Prefix()),
		logx.Duration("monitor_interval", a.mon.Interval()))
	return nil
}

// registerJobs upserts the scheduled jobs for the current config. Safe to call
// again after a reload; the scheduler replaces entries by name.
func (a *App) registerJobs(cfg *config.Config) {
	if cfg.Monitor.IsEnabled() {
		interval := a.mon.Interval()
		if _, err := a.sched.AddInterval(jobMonitor, interval, interval, func(c context.Context) error {
			return a.mon.RunPass(c)
		}); err != nil {
			a.log.Warn("failed to register monitor job", logx.Err(err))
		}
	} else {
		if a.sched.RemoveSchedule(jobMonitor) {
			a.log.Info("alert monitor disabled via config")
		}
	}

	if spec := strings.TrimSpace(cfg.Monitor.RefreshSpec); spec != "" {
		refreshTimeout, _ := config.ParseDurationOrDefault("api.refresh_timeout", cfg.API.RefreshTimeout, 30*time.Second)
		if _, err := a.sched.AddSchedule(jobRefresh, spec, refreshTimeout+5*time.Second, a.refreshPrices); err != nil {
			a.log.Warn("failed to register refresh job", logx.String("spec", spec), logx.Err(err))
		}
	} else {
		a.sched.RemoveSchedule(jobRefresh)
	}
}

// refreshPrices asks the backend to re-fetch quotes. The endpoint needs auth,
// so it borrows the first active session; with nobody logged in it is a no-op.
func (a *App) refreshPrices(ctx context.Context) error {
	entries := a.sessions.Snapshot()
	if len(entries) == 0 {
		a.log.Debug("price refresh skipped: no active sessions")
		return nil
	}
	res, err := a.client.RefreshPrices(ctx, entries[0].Session.AccessToken)
	if err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}
	a.log.Info("prices refreshed", logx.Int("updated", res.RefreshedCount))
	return nil
}

func (a *App) applyReload(ctx context.Context, newCfg *config.Config, sections []string) {
	has := func(name string) bool {
		for _, s := range sections {
			if s == name {
				return true
			}
		}
		return false
	}

	// Settings bound at construction need a restart; say so instead of
	// silently ignoring the change.
	for _, s := range []string{"telegram", "api", "storage"} {
		if has(s) {
			a.log.Warn("config changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	if has("logging") || has("telegram") {
		setOpsTarget(a.logs, newCfg)
		a.logs.Apply(logx.Config{
			Level:   newCfg.Logging.Level,
			Console: newCfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: newCfg.Logging.File.Enabled,
				Path:    newCfg.Logging.File.Path,
			},
			Telegram: logx.TelegramConfig{
				Enabled:    newCfg.Logging.Telegram.Enabled,
				ThreadID:   newCfg.Logging.Telegram.ThreadID,
				MinLevel:   newCfg.Logging.Telegram.MinLevel,
				RatePerSec: newCfg.Logging.Telegram.RatePerSec,
			},
		})
	}

	if has("commands") {
		a.cmdm.SetPrefix(newCfg.Prefix())
		a.log.Info("command prefix updated", logx.String("prefix", a.cmdm.Prefix()))
	}

	if has("notifier") {
		a.notif.Apply(notifier.Config{RatePerSec: newCfg.Notifier.RatePerSec})
	}

	if has("scheduler") {
		if sc, err := mapSchedulerConfig(newCfg); err != nil {
			a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		} else {
			a.sched.Apply(sc)
		}
	}

	if has("monitor") {
		if mc, err := mapMonitorConfig(newCfg); err != nil {
			a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
		} else {
			a.mon.Apply(mc)
			a.registerJobs(newCfg)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding immediately.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, dispatcher, recorder).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// setOpsTarget points the logx Telegram sink at the configured ops chat.
// An empty or malformed ops_chat clears the target.
func setOpsTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.OpsChat)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logs.SetTelegramTarget(0, 0)
		return
	}
	logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
}

// changedSections reports which top-level config sections differ.
func changedSections(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	add("telegram", oldCfg.Telegram, newCfg.Telegram)
	add("api", oldCfg.API, newCfg.API)
	add("commands", oldCfg.Commands, newCfg.Commands)
	add("monitor", oldCfg.Monitor, newCfg.Monitor)
	add("notifier", oldCfg.Notifier, newCfg.Notifier)
	add("logging", oldCfg.Logging, newCfg.Logging)
	add("storage", oldCfg.Storage, newCfg.Storage)
	add("scheduler", oldCfg.Scheduler, newCfg.Scheduler)
	return out
}
