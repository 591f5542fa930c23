package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"dayview/internal/host"
	"dayview/internal/ics"
	"dayview/internal/layout"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/refresh"
	"dayview/internal/replay"
	"dayview/internal/sched"
	"dayview/internal/store"
	"dayview/internal/web"
)

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Print one day's events with their column placement.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "day to show as YYYY-MM-DD (default: today)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			loc := cfg.Location()
			day := model.DateOf(time.Now().In(loc))
			if d := c.String("date"); d != "" {
				if day, err = time.ParseInLocation("2006-01-02", d, loc); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			events, err := st.EventsOn(c.Context, day)
			if err != nil {
				return err
			}
			return printLayout(c.App.Writer, day, events)
		},
	}
}

func printLayout(w io.Writer, day time.Time, events []model.CalendarEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", day.Format("Monday 2006-01-02"))
	for _, ev := range events {
		if ev.AllDay {
			fmt.Fprintf(tw, "all-day\t\t%s\t%s\n", ev.ID, ev.Title)
		}
	}
	for _, a := range layout.Columns(layout.TimedOn(events, day)) {
		ev := a.Event
		fmt.Fprintf(tw, "%s-%s\t%d/%d\t%s\t%s\n",
			ev.Start.Format("15:04"), ev.End.Format("15:04"), a.Column+1, a.TotalColumns, ev.ID, ev.Title)
	}
	return tw.Flush()
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Run a YAML gesture script through the engine on a manual clock.",
		ArgsUsage: "<script.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "store", Usage: "run against the configured store instead of the script's events"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("replay needs exactly one script path", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			settings, err := cfg.Engine()
			if err != nil {
				return err
			}
			script, err := replay.Load(c.Args().First())
			if err != nil {
				return err
			}
			if script.Timezone == "" {
				script.Timezone = cfg.Timezone
			}

			var st store.Store
			if c.Bool("store") {
				s, closeStore, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer closeStore()
				st = s
			}
			res, err := replay.Run(c.Context, script, settings, st, c.App.Writer)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "--")
			for _, ev := range res.Events {
				fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", ev.ID, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Fetch every configured ICS source once and replace its events in the store.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if len(cfg.ICS) == 0 {
				return cli.Exit("no ics sources configured", 1)
			}
			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			im := refresh.NewImporter(ics.NewFetcher(cfg.CacheDir, 0), st, cfg.Sources())
			return im.RunOnce(c.Context)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the store as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default: stdout)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			events, err := st.All(c.Context)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return cli.Exit("store is empty, nothing to export", 1)
			}
			w := c.App.Writer
			if out := c.String("out"); out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := ics.Encode(w, events, time.Now()); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			appLog.Info("export completed", "event_count", len(events))
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and re-import ICS sources on the refresh schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
			&cli.BoolFlag{Name: "no-refresh", Usage: "do not schedule ICS imports"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if l := c.String("listen"); l != "" {
				cfg.Listen = l
			}
			settings, err := cfg.Engine()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			loop := sched.NewLoop(0)
			go func() {
				if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
					appLog.Error("event loop stopped", err)
				}
			}()
			hst, unsubscribe := host.New(st, settings, loop, nil)
			defer unsubscribe()

			opts := []web.Option{web.WithSessions(hst), web.WithBasicAuth(cfg.BasicAuth)}
			if len(cfg.ICS) > 0 {
				im := refresh.NewImporter(ics.NewFetcher(cfg.CacheDir, 0), st, cfg.Sources())
				opts = append(opts, web.WithRefresher(im))
				if !c.Bool("no-refresh") {
					go func() {
						if err := im.RunOnce(ctx); err != nil {
							appLog.Warn("initial import incomplete", "error", err.Error())
						}
					}()
					stopCron, err := im.Schedule(ctx, cfg.RefreshCron)
					if err != nil {
						return err
					}
					defer stopCron()
				}
			}

			appLog.Info("dayview serving",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"store", cfg.Store.Driver,
				"sources", strings.Join(sourceIDs(cfg.Sources()), ","),
			)
			err = web.NewServer(st, cfg.Location(), opts...).ListenAndServe(ctx, cfg.Listen)
			appLog.Info("dayview exiting")
			return err
		},
	}
}

func sourceIDs(srcs []ics.Source) []string {
	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, s.ID)
	}
	return out
}
