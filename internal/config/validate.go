package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate performs static checks on a parsed config.
//
// Schedule specs are validated by the scheduler at registration time; this
// covers everything that can be rejected without constructing services.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: unknown timezone %q", tz)
		}
	}
	if _, err := ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout); err != nil {
		return err
	}

	jobs := []struct {
		name string
		jc   JobConfig
	}{
		{"feeds", cfg.Jobs.Feeds},
		{"cache_rebuild", cfg.Jobs.CacheRebuild},
		{"snapshot", cfg.Jobs.Snapshot},
		{"notify", cfg.Jobs.Notify},
		{"newsletter", cfg.Jobs.Newsletter},
		{"outbox", cfg.Jobs.Outbox},
		{"export", cfg.Jobs.Export},
		{"rollup", cfg.Jobs.Rollup},
	}
	for _, j := range jobs {
		if _, err := ParseDurationField("jobs."+j.name+".timeout", j.jc.Timeout); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	for i, f := range cfg.Feeds {
		at := fmt.Sprintf("feeds[%d]", i)
		if strings.TrimSpace(f.Retailer) == "" {
			return fmt.Errorf("%s: retailer is required", at)
		}
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("%s: url is required", at)
		}
		if len(strings.TrimSpace(f.Country)) != 2 {
			return fmt.Errorf("%s: country must be a 2-letter code", at)
		}
		key := strings.ToLower(f.Retailer) + "/" + strings.ToUpper(f.Country)
		if seen[key] {
			return fmt.Errorf("%s: duplicate feed %s", at, key)
		}
		seen[key] = true
		if _, err := ParseDurationField(at+".timeout", f.Timeout); err != nil {
			return err
		}
	}

	if cfg.Email.Enabled {
		if strings.TrimSpace(cfg.Email.Host) == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if cfg.Email.Port <= 0 || cfg.Email.Port > 65535 {
			return fmt.Errorf("email.port must be 1..65535")
		}
		if !strings.Contains(cfg.Email.From, "@") {
			return fmt.Errorf("email.from must be an address")
		}
	}

	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if _, err := ParseDurationField("telegram.min_gap", cfg.Telegram.MinGap); err != nil {
			return err
		}
	}

	if cfg.API.Enabled {
		for _, f := range []struct{ name, raw string }{
			{"api.read_timeout", cfg.API.ReadTimeout},
			{"api.write_timeout", cfg.API.WriteTimeout},
			{"api.idle_timeout", cfg.API.IdleTimeout},
		} {
			if _, err := ParseDurationField(f.name, f.raw); err != nil {
				return err
			}
		}
	}

	if strings.TrimSpace(cfg.Export.Dir) == "" {
		return fmt.Errorf("export.dir is required")
	}

	return nil
}
