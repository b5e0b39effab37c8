// Package horizon keeps the scheduled future rolling forward: recurring
// templates are materialized a fixed number of days ahead, so a nightly
// job re-expands every template to fill dates that have newly entered the
// horizon.
package horizon

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tempora/internal/model"
	"tempora/internal/schedule"
	"tempora/internal/storage"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

type Config struct {
	Cron string // cron spec, standard 5-field
	Days int    // horizon length in days
}

// Service runs the horizon roll on a cron schedule. Runs never overlap;
// if one is still going when the next fires, the new one is skipped.
type Service struct {
	store storage.Store
	cfg   Config
	log   logx.Logger
	now   func() time.Time

	c       *cron.Cron
	running sync.Mutex
}

func New(store storage.Store, cfg Config, log logx.Logger) *Service {
	if cfg.Cron == "" {
		cfg.Cron = "0 3 * * *"
	}
	if cfg.Days <= 0 {
		cfg.Days = schedule.DefaultHorizonDays
	}
	return &Service{store: store, cfg: cfg, log: log, now: time.Now}
}

// Start schedules the nightly roll and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.c = cron.New(cron.WithLocation(time.Local))
	_, err := s.c.AddFunc(s.cfg.Cron, func() {
		if !s.running.TryLock() {
			s.log.Warn("horizon roll still running, skipping this trigger")
			return
		}
		defer s.running.Unlock()
		if err := s.RollForward(ctx); err != nil {
			s.log.Error("horizon roll failed", logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.c.Start()
	<-ctx.Done()
	stop := s.c.Stop()
	<-stop.Done()
	return ctx.Err()
}

// RollForward re-expands every template over the configured horizon,
// placing only instances on dates that do not already have one. Each
// template is independent; one failing never stops the others.
func (s *Service) RollForward(ctx context.Context) error {
	start := time.Now()
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}

	events, err := s.store.ListEvents(ctx, storage.EventFilter{})
	if err != nil {
		return err
	}
	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		return err
	}

	idx := schedule.NewConflictIndex(events)
	var created, skipped int
	for _, tpl := range templates {
		n, sk, err := s.rollTemplate(ctx, idx, events, prefs, tpl)
		if err != nil {
			s.log.Error("template roll failed",
				logx.String("template", tpl.ID),
				logx.String("title", tpl.Title),
				logx.Err(err))
			continue
		}
		created += n
		skipped += sk
	}

	s.log.Info("horizon rolled forward",
		logx.Int("templates", len(templates)),
		logx.Int("created", created),
		logx.Int("skipped", skipped),
		logx.Duration("took", time.Since(start)))
	return nil
}

func (s *Service) rollTemplate(ctx context.Context, idx *schedule.ConflictIndex, events []model.Event, prefs model.Preferences, tpl model.RecurringTemplate) (created, skipped int, err error) {
	today := timeutil.DayStart(s.now())
	from := today
	until := today.AddDate(0, 0, s.cfg.Days)

	// Dates that already hold an instance are left alone, and the roll
	// only extends past the newest one: a gap behind it was a deliberate
	// single-instance deletion, not a missing date.
	have := make(map[string]bool)
	var newest time.Time
	for _, ev := range events {
		if ev.ParentID != tpl.ID {
			continue
		}
		have[timeutil.DateKey(ev.Start)] = true
		if ev.Start.After(newest) {
			newest = ev.Start
		}
	}
	if !newest.IsZero() {
		if d := timeutil.DayStart(newest).AddDate(0, 0, 1); d.After(from) {
			from = d
		}
	}
	if from.After(until) {
		return 0, 0, nil
	}

	expander := schedule.NewExpander(idx, prefs, s.log)
	res, err := expander.ExpandRange(tpl, from, until, have)
	if err != nil {
		return 0, 0, err
	}

	for _, inst := range res.Instances {
		if _, err := s.store.CreateEvent(ctx, inst); err != nil {
			return created, skipped, err
		}
		created++
	}
	return created, len(res.Skipped), nil
}
