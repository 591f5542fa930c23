// Package refresh imports calendar feeds into the event store on a cron
// schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"dayview/internal/ics"
	appLog "dayview/internal/log"
	"dayview/internal/model"
)

type Fetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.Result, error)
}

// Sink receives the full event set of one source per import.
type Sink interface {
	ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) error
}

// Importer fetches every source and swaps its events into the sink.
type Importer struct {
	fetcher Fetcher
	sink    Sink
	sources []ics.Source

	mu sync.Mutex // one import at a time
}

func NewImporter(f Fetcher, sink Sink, sources []ics.Source) *Importer {
	return &Importer{fetcher: f, sink: sink, sources: sources}
}

// RunOnce imports every source. A failing source keeps its previously
// imported events; the other sources are still imported. The returned
// error joins every per-source failure.
func (im *Importer) RunOnce(ctx context.Context) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	var errs []error
	total := 0
	for _, src := range im.sources {
		n, err := im.importSource(ctx, src)
		if err != nil {
			appLog.Error("import failed", err, "id", src.ID)
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			continue
		}
		total += n
	}
	appLog.Info("import completed", "sources", len(im.sources), "failed", len(errs), "event_count", total)
	return errors.Join(errs...)
}

func (im *Importer) importSource(ctx context.Context, src ics.Source) (int, error) {
	res, err := im.fetcher.Fetch(ctx, src)
	if err != nil {
		return 0, err
	}
	events, err := ics.Parse(src, res.Body)
	if err != nil {
		return 0, err
	}
	if err := im.sink.ReplaceSource(ctx, src.ID, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ValidateSpec reports whether spec is a standard five-field cron
// expression or a descriptor such as "@hourly".
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// Schedule runs RunOnce on spec until the returned stop is called. An
// overrunning import causes the next tick to be skipped.
func (im *Importer) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(spec, func() {
		if err := im.RunOnce(ctx); err != nil && ctx.Err() == nil {
			appLog.Warn("scheduled import incomplete", "error", err.Error())
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("import scheduled", "spec", spec, "sources", len(im.sources))
	return func() {
		<-c.Stop().Done()
	}, nil
}

// cronLogger routes the scheduler's own messages into the app log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) { appLog.Debug("cron "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...any) { appLog.Error("cron "+msg, err, kv...) }
