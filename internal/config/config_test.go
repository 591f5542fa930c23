package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != DefaultConfig().Listen {
		t.Errorf("listen = %q", cfg.Listen)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "timezone: Europe/Berlin\n" +
		"timeline:\n  start_hour: 7\n  end_hour: 20\n  slot: 30m\n  snap_to_events: false\n" +
		"regions:\n  - start: \"2025-05-20 12:00\"\n    end: \"2025-05-20 13:00\"\n    block: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	st, err := cfg.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if st.StartHour != 7 || st.EndHour != 20 || st.Snap.SlotDuration != 30*time.Minute {
		t.Errorf("window %d..%d slot %v", st.StartHour, st.EndHour, st.Snap.SlotDuration)
	}
	if st.Snap.ToOtherEvents || !st.Snap.ToTimeSlots {
		t.Errorf("snap flags = %+v", st.Snap)
	}
	if st.HourHeight != 60 || st.NavigationDelay != 600*time.Millisecond {
		t.Errorf("defaults lost: hour height %v, delay %v", st.HourHeight, st.NavigationDelay)
	}
	if len(st.Regions) != 1 || !st.Regions[0].BlockInteraction || st.Regions[0].Start.Location().String() != "Europe/Berlin" {
		t.Errorf("regions = %+v", st.Regions)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DAYVIEW_LISTEN", ":9999")
	t.Setenv("DAYVIEW_STORE_DRIVER", "memory")
	t.Setenv("DAYVIEW_REFRESH", "@hourly")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9999" || cfg.Store.Driver != "memory" || cfg.RefreshCron != "@hourly" {
		t.Errorf("overrides not applied: listen %q driver %q refresh %q", cfg.Listen, cfg.Store.Driver, cfg.RefreshCron)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad cron", func(c *Config) { c.RefreshCron = "sometimes" }, "refresh"},
		{"bad zone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"inverted hours", func(c *Config) { c.Timeline.StartHour, c.Timeline.EndHour = 18, 8 }, "hours"},
		{"odd slot", func(c *Config) { c.Timeline.Slot = 7 * time.Minute }, "slot"},
		{"duplicate source", func(c *Config) {
			c.ICS = []ICSConfig{{ID: "a", URL: "x"}, {ID: "a", URL: "y"}}
		}, "duplicate"},
		{"bad date", func(c *Config) { c.Timeline.MinDate = "20/05/2025" }, "min_date"},
		{"inverted dates", func(c *Config) {
			c.Timeline.MinDate, c.Timeline.MaxDate = "2025-06-01", "2025-05-01"
		}, "max_date"},
		{"empty region", func(c *Config) {
			c.Regions = []RegionConfig{{Start: "2025-05-20 12:00", End: "2025-05-20 12:00"}}
		}, "regions[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.ICS = []ICSConfig{{ID: "work", URL: "https://example.com/work.ics", Name: "Work"}}
	cfg.Timeline.Slot = 10 * time.Minute
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.ICS) != 1 || got.ICS[0].ID != "work" || got.Timeline.Slot != 10*time.Minute {
		t.Errorf("reloaded = %+v", got)
	}
	srcs := got.Sources()
	if len(srcs) != 1 || srcs[0].Location == nil {
		t.Errorf("sources = %+v", srcs)
	}
}
