package app

import (
	"encoding/json"
	"fmt"
	"time"

	"ridewatch/internal/alerts"
	"ridewatch/internal/api"
	"ridewatch/internal/config"
	"ridewatch/internal/jobs"
	"ridewatch/internal/mailer"
	"ridewatch/internal/sched"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Built-in schedules, used when jobs.<name>.schedule is omitted.
const (
	defScheduleFeeds        = "every:30m"
	defScheduleCacheRebuild = "every:1h"
	defScheduleSnapshot     = "10 0 * * *" // daily, just after midnight
	defScheduleNotify       = "every:15m"
	defScheduleNewsletter   = "0 9 * * 1" // Monday mornings
	defScheduleOutbox       = "every:1m"
	defScheduleExport       = "every:1h"
	defScheduleRollup       = "30 4 * * *"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy}, nil
}

func mapSchedConfig(cfg *config.Config) (sched.Config, error) {
	timeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        cfg.Scheduler.Workers,
		QueueSize:      cfg.Scheduler.QueueSize,
		DefaultTimeout: timeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		RetryMax:       cfg.Scheduler.RetryMax,
		Timezone:       cfg.Scheduler.Timezone,
	}, nil
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	read, err := config.ParseDurationField("api.read_timeout", cfg.API.ReadTimeout)
	if err != nil {
		return api.Config{}, err
	}
	write, err := config.ParseDurationField("api.write_timeout", cfg.API.WriteTimeout)
	if err != nil {
		return api.Config{}, err
	}
	idle, err := config.ParseDurationField("api.idle_timeout", cfg.API.IdleTimeout)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Addr:           cfg.API.Addr,
		AllowedOrigins: cfg.API.AllowedOrigins,
		ReadTimeout:    read,
		WriteTimeout:   write,
		IdleTimeout:    idle,
	}, nil
}

func mapAlertsConfig(cfg *config.Config) (alerts.Config, error) {
	if cfg.Telegram == nil {
		return alerts.Config{}, nil
	}
	gap, err := config.ParseDurationField("telegram.min_gap", cfg.Telegram.MinGap)
	if err != nil {
		return alerts.Config{}, err
	}
	return alerts.Config{
		Enabled:    cfg.Telegram.Enabled,
		MinGap:     gap,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, nil
}

func mapMailerConfig(cfg *config.Config) mailer.Config {
	return mailer.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}
}

func mapFeedSources(cfg *config.Config) ([]jobs.FeedSource, error) {
	if len(cfg.Feeds) == 0 {
		return nil, nil
	}
	out := make([]jobs.FeedSource, 0, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		timeout, err := config.ParseDurationField(fmt.Sprintf("feeds[%d].timeout", i), f.Timeout)
		if err != nil {
			return nil, err
		}
		out = append(out, jobs.FeedSource{
			Retailer: f.Retailer,
			URL:      f.URL,
			Country:  f.Country,
			Currency: f.Currency,
			Token:    f.Token,
			Timeout:  timeout,
		})
	}
	return out, nil
}

// jobEnabled treats an omitted flag as on.
func jobEnabled(jc config.JobConfig) bool {
	return jc.Enabled == nil || *jc.Enabled
}

func jobSchedule(jc config.JobConfig, def string) string {
	if jc.Schedule != "" {
		return jc.Schedule
	}
	return def
}

func jobTimeout(name string, jc config.JobConfig) (time.Duration, error) {
	return config.ParseDurationField("jobs."+name+".timeout", jc.Timeout)
}

// sameJSON reports whether two config sections marshal identically. Good
// enough for "did this section change" on hot reload.
func sameJSON(a, b any) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(ab) == string(bb)
}
