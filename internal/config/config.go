package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"dayview/internal/ics"
	"dayview/internal/interaction"
	"dayview/internal/model"
	"dayview/internal/snap"
)

// EnvPrefix prefixes every environment override, e.g. DAYVIEW_LISTEN.
const EnvPrefix = "DAYVIEW_"

const dateLayout = "2006-01-02"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is an http(s) endpoint or a local file path.
	URL string `yaml:"url" json:"url"`
	// ID tags imported events; re-imports replace events with the same ID.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`
	Path   string `yaml:"path" json:"path" env:"PATH"`
}

// TimelineConfig controls the time axis and snapping.
type TimelineConfig struct {
	StartHour  int     `yaml:"start_hour" json:"start_hour"`
	EndHour    int     `yaml:"end_hour" json:"end_hour"`
	HourHeight float64 `yaml:"hour_height" json:"hour_height"`

	Slot         time.Duration `yaml:"slot" json:"slot"`
	SnapToSlots  bool          `yaml:"snap_to_slots" json:"snap_to_slots"`
	SnapToEvents bool          `yaml:"snap_to_events" json:"snap_to_events"`
	SnapToNow    bool          `yaml:"snap_to_now" json:"snap_to_now"`
	SnapRange    time.Duration `yaml:"snap_range" json:"snap_range"`

	// DefaultTimedDuration is used when an all-day event is dropped on the timed band.
	DefaultTimedDuration time.Duration `yaml:"default_timed_duration" json:"default_timed_duration"`

	// MinDate and MaxDate (YYYY-MM-DD) bound where events may be dropped.
	MinDate string `yaml:"min_date,omitempty" json:"min_date,omitempty"`
	MaxDate string `yaml:"max_date,omitempty" json:"max_date,omitempty"`
}

// InteractionConfig tunes gesture handling.
type InteractionConfig struct {
	EdgeZone        float64       `yaml:"edge_zone" json:"edge_zone"`
	NavigationDelay time.Duration `yaml:"navigation_delay" json:"navigation_delay"`
	UpdateInterval  time.Duration `yaml:"update_interval" json:"update_interval"`
	ScrollThreshold float64       `yaml:"scroll_threshold" json:"scroll_threshold"`
	ScrollMaxSpeed  float64       `yaml:"scroll_max_speed" json:"scroll_max_speed"`
	ScrollInterval  time.Duration `yaml:"scroll_interval" json:"scroll_interval"`
	ResizeThreshold float64       `yaml:"resize_threshold" json:"resize_threshold"`
}

// RegionConfig is a time region in "YYYY-MM-DD HH:MM" local time.
type RegionConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
	Block bool   `yaml:"block" json:"block"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"LISTEN"`

	// Timezone is the IANA zone days are computed in (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone" env:"TIMEZONE"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-importing ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"REFRESH"`

	// CacheDir holds the HTTP cache of remote ICS sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" env:"CACHE_DIR"`

	Store       StoreConfig       `yaml:"store" json:"store" envPrefix:"STORE_"`
	Timeline    TimelineConfig    `yaml:"timeline" json:"timeline"`
	Interaction InteractionConfig `yaml:"interaction" json:"interaction"`
	Regions     []RegionConfig    `yaml:"regions" json:"regions"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		LogLevel:    "info",
		RefreshCron: "*/15 * * * *",
		CacheDir:    "./var/ics-cache",
		Store:       StoreConfig{Driver: "sqlite", Path: "./var/dayview.db"},
		Timeline: TimelineConfig{
			StartHour:            0,
			EndHour:              24,
			HourHeight:           60,
			Slot:                 15 * time.Minute,
			SnapToSlots:          true,
			SnapToEvents:         true,
			SnapRange:            5 * time.Minute,
			DefaultTimedDuration: time.Hour,
		},
		Interaction: InteractionConfig{
			EdgeZone:        0.25,
			NavigationDelay: 600 * time.Millisecond,
			UpdateInterval:  16 * time.Millisecond,
			ScrollThreshold: 48,
			ScrollMaxSpeed:  12,
			ScrollInterval:  16 * time.Millisecond,
			ResizeThreshold: 8,
		},
		Regions: []RegionConfig{},
		ICS:     []ICSConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so partially
// filled configs still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		c.Store.Driver = d.Store.Driver
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}

	t := &c.Timeline
	if t.EndHour <= 0 {
		t.EndHour = 24
	}
	if t.HourHeight <= 0 {
		t.HourHeight = d.Timeline.HourHeight
	}
	if t.Slot <= 0 {
		t.Slot = d.Timeline.Slot
	}
	if t.SnapRange < 0 {
		t.SnapRange = 0
	}
	if t.DefaultTimedDuration <= 0 {
		t.DefaultTimedDuration = d.Timeline.DefaultTimedDuration
	}

	in := &c.Interaction
	if in.EdgeZone <= 0 || in.EdgeZone >= 0.5 {
		in.EdgeZone = d.Interaction.EdgeZone
	}
	if in.NavigationDelay <= 0 {
		in.NavigationDelay = d.Interaction.NavigationDelay
	}
	if in.UpdateInterval <= 0 {
		in.UpdateInterval = d.Interaction.UpdateInterval
	}
	if in.ScrollThreshold <= 0 {
		in.ScrollThreshold = d.Interaction.ScrollThreshold
	}
	if in.ScrollMaxSpeed <= 0 {
		in.ScrollMaxSpeed = d.Interaction.ScrollMaxSpeed
	}
	if in.ScrollInterval <= 0 {
		in.ScrollInterval = d.Interaction.ScrollInterval
	}
	if in.ResizeThreshold < 0 {
		in.ResizeThreshold = d.Interaction.ResizeThreshold
	}

	if c.Regions == nil {
		c.Regions = []RegionConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	t := c.Timeline
	if t.StartHour < 0 || t.EndHour > 24 || t.StartHour >= t.EndHour {
		errs = append(errs, fmt.Errorf("timeline hours %d..%d out of range", t.StartHour, t.EndHour))
	}
	if t.Slot <= 0 || (24*time.Hour)%t.Slot != 0 {
		errs = append(errs, fmt.Errorf("slot %v does not divide a day", t.Slot))
	}
	seen := make(map[string]bool, len(c.ICS))
	for i, src := range c.ICS {
		if src.ID == "" || src.URL == "" {
			errs = append(errs, fmt.Errorf("ics[%d]: id and url are required", i))
			continue
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("ics[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
	}
	if _, err := c.Engine(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location returns the configured zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Engine converts the timeline and interaction sections into engine settings.
func (c *Config) Engine() (interaction.Settings, error) {
	loc := c.Location()
	t, in := c.Timeline, c.Interaction
	st := interaction.Settings{
		StartHour:  t.StartHour,
		EndHour:    t.EndHour,
		HourHeight: t.HourHeight,
		Snap: snap.Options{
			ToTimeSlots:   t.SnapToSlots,
			ToOtherEvents: t.SnapToEvents,
			ToCurrentTime: t.SnapToNow,
			Range:         t.SnapRange,
			SlotDuration:  t.Slot,
		},
		DefaultTimedDuration: t.DefaultTimedDuration,
		EdgeZoneFraction:     in.EdgeZone,
		NavigationDelay:      in.NavigationDelay,
		UpdateInterval:       in.UpdateInterval,
		ScrollThreshold:      in.ScrollThreshold,
		ScrollMaxSpeed:       in.ScrollMaxSpeed,
		ScrollInterval:       in.ScrollInterval,
		ResizeThreshold:      in.ResizeThreshold,
	}

	var err error
	if st.MinDate, err = parseDate(t.MinDate, loc); err != nil {
		return st, fmt.Errorf("min_date: %w", err)
	}
	if st.MaxDate, err = parseDate(t.MaxDate, loc); err != nil {
		return st, fmt.Errorf("max_date: %w", err)
	}
	if !st.MinDate.IsZero() && !st.MaxDate.IsZero() && st.MaxDate.Before(st.MinDate) {
		return st, errors.New("max_date before min_date")
	}

	for i, r := range c.Regions {
		start, err := time.ParseInLocation("2006-01-02 15:04", r.Start, loc)
		if err != nil {
			return st, fmt.Errorf("regions[%d].start: %w", i, err)
		}
		end, err := time.ParseInLocation("2006-01-02 15:04", r.End, loc)
		if err != nil {
			return st, fmt.Errorf("regions[%d].end: %w", i, err)
		}
		if !end.After(start) {
			return st, fmt.Errorf("regions[%d]: end not after start", i)
		}
		st.Regions = append(st.Regions, model.TimeRegion{Start: start, End: end, BlockInteraction: r.Block})
	}
	return st, nil
}

// Sources returns the ICS sources with the configured zone attached.
func (c *Config) Sources() []ics.Source {
	loc := c.Location()
	out := make([]ics.Source, 0, len(c.ICS))
	for _, s := range c.ICS {
		out = append(out, ics.Source{ID: s.ID, URL: s.URL, Location: loc})
	}
	return out
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

// ApplyEnv overlays DAYVIEW_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read over the defaults.
//
// Environment overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dayview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
