package config

import (
	"fmt"
	"strings"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

// Config is the daemon's configuration file. YAML and JSON are both
// accepted; unknown fields are rejected so typos fail loudly at startup.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Storage     StorageConfig     `json:"storage"`
	Logging     logx.Config       `json:"logging"`
	Horizon     HorizonConfig     `json:"horizon,omitempty"`
	Preferences PreferencesConfig `json:"preferences,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
	// OptimizePerMinute caps optimization runs accepted per minute.
	OptimizePerMinute int `json:"optimize_per_minute,omitempty"`
}

type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (e.g. "5s"); sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// HorizonConfig controls the nightly job that re-expands recurring
// templates so the scheduled horizon keeps rolling forward.
type HorizonConfig struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron,omitempty"` // default "0 3 * * *"
	Days    int    `json:"days,omitempty"` // default 30
}

// PreferencesConfig seeds scheduling preferences for installs that have
// not saved any through the API yet. Clock fields are "HH:MM". The file
// watcher picks up edits to this section at runtime.
type PreferencesConfig struct {
	SleepStart     string `json:"sleep_start,omitempty"`
	SleepEnd       string `json:"sleep_end,omitempty"`
	WorkStart      string `json:"work_start,omitempty"`
	WorkEnd        string `json:"work_end,omitempty"`
	RoundToMinutes int    `json:"round_to_minutes,omitempty"`
}

// Model parses the section into scheduling preferences.
func (p PreferencesConfig) Model() (model.Preferences, error) {
	out := model.Preferences{RoundToMinutes: p.RoundToMinutes}
	var err error
	if out.SleepStart, err = timeutil.ParseClock(p.SleepStart); err != nil {
		return model.Preferences{}, fmt.Errorf("preferences.sleep_start: %w", err)
	}
	if out.SleepEnd, err = timeutil.ParseClock(p.SleepEnd); err != nil {
		return model.Preferences{}, fmt.Errorf("preferences.sleep_end: %w", err)
	}
	if out.WorkStart, err = timeutil.ParseClock(p.WorkStart); err != nil {
		return model.Preferences{}, fmt.Errorf("preferences.work_start: %w", err)
	}
	if out.WorkEnd, err = timeutil.ParseClock(p.WorkEnd); err != nil {
		return model.Preferences{}, fmt.Errorf("preferences.work_end: %w", err)
	}
	if err := out.Validate(); err != nil {
		return model.Preferences{}, fmt.Errorf("preferences: %w", err)
	}
	return out, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Horizon.Cron == "" {
		c.Horizon.Cron = "0 3 * * *"
	}
	if c.Horizon.Days <= 0 {
		c.Horizon.Days = 30
	}

	def := model.DefaultPreferences()
	if c.Preferences.SleepStart == "" {
		c.Preferences.SleepStart = def.SleepStart.String()
	}
	if c.Preferences.SleepEnd == "" {
		c.Preferences.SleepEnd = def.SleepEnd.String()
	}
	if c.Preferences.WorkStart == "" {
		c.Preferences.WorkStart = def.WorkStart.String()
	}
	if c.Preferences.WorkEnd == "" {
		c.Preferences.WorkEnd = def.WorkEnd.String()
	}
	if c.Preferences.RoundToMinutes == 0 {
		c.Preferences.RoundToMinutes = def.RoundToMinutes
	}
}

func (c *Config) Validate() error {
	if !strings.Contains(c.Server.Addr, ":") {
		return fmt.Errorf("server.addr %q: missing port", c.Server.Addr)
	}
	switch d := strings.ToLower(c.Storage.Driver); d {
	case "memory":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the %s driver", d)
		}
	default:
		return fmt.Errorf("storage.driver %q: unknown driver", c.Storage.Driver)
	}
	if _, err := c.BusyTimeout(); err != nil {
		return err
	}
	if _, err := c.Preferences.Model(); err != nil {
		return err
	}
	return nil
}

// PreferenceDefaults returns the configured preference seed. Validation
// already proved the section parses, so failures fall back to the
// built-in defaults rather than propagating.
func (c *Config) PreferenceDefaults() model.Preferences {
	p, err := c.Preferences.Model()
	if err != nil {
		return model.DefaultPreferences()
	}
	return p
}

// BusyTimeout parses the sqlite busy timeout; empty means zero.
func (c *Config) BusyTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Storage.BusyTimeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("storage.busy_timeout: invalid duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("storage.busy_timeout: duration must be >= 0")
	}
	return d, nil
}
