package app

import (
	"fmt"
	"strings"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/config"
	"stockbot/internal/monitor"
	"stockbot/internal/services/scheduler"
	"stockbot/internal/storage"
)

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	reqTO, err := config.ParseDurationOrDefault("api.request_timeout", cfg.API.RequestTimeout, 15*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	sumTO, err := config.ParseDurationOrDefault("api.summary_timeout", cfg.API.SummaryTimeout, 10*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	refTO, err := config.ParseDurationOrDefault("api.refresh_timeout", cfg.API.RefreshTimeout, 30*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		BaseURL:        cfg.API.BaseURL,
		RequestTimeout: reqTO,
		SummaryTimeout: sumTO,
		RefreshTimeout: refTO,
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	interval, err := config.ParseDurationOrDefault("monitor.interval", cfg.Monitor.Interval, 2*time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("monitor.cooldown", cfg.Monitor.Cooldown, 5*time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{Interval: interval, Cooldown: cooldown}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	defTO, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	if cfg.Scheduler.Workers < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.workers must be >= 0")
	}
	return scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: defTO,
		Timezone:       cfg.Scheduler.Timezone,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}
