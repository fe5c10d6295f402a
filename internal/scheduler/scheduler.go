// Package scheduler runs the periodic jobs of the bot: scheduled arrival
// boards every minute, MRT alert polling and the nightly reference refresh.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"sgbus_bot/internal/alerts"
	"sgbus_bot/internal/arrivals"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/messages"
	"sgbus_bot/internal/model"
	"sgbus_bot/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Boards builds live arrival boards.
type Boards interface {
	Board(ctx context.Context, stopCode string) (*arrivals.Board, error)
}

// Refresher rebuilds the reference data files.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Options tune the dispatcher jobs.
type Options struct {
	AlertPollInterval time.Duration
	RefreshHour       uint
	RefreshMinute     uint
	Concurrency       int
}

// Dispatcher delivers scheduled boards and alert broadcasts.
type Dispatcher struct {
	store     storage.Storage
	boards    Boards
	alerts    alerts.Source
	refresher Refresher
	sender    Sender
	clock     *localtime.Clock
	log       *slog.Logger
	opts      Options
	pause     time.Duration
}

// New creates a Dispatcher. A zero poll interval falls back to 620s and a
// zero fan-out to 8. The refresh time is used as given, so 00:00 is midnight.
func New(store storage.Storage, boards Boards, src alerts.Source, refresher Refresher,
	sender Sender, clock *localtime.Clock, log *slog.Logger, opts Options) *Dispatcher {
	if opts.AlertPollInterval <= 0 {
		opts.AlertPollInterval = 620 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	return &Dispatcher{
		store:     store,
		boards:    boards,
		alerts:    src,
		refresher: refresher,
		sender:    sender,
		clock:     clock,
		log:       log,
		opts:      opts,
		pause:     50 * time.Millisecond,
	}
}

// SetSendInterval overrides the pause between alert broadcast messages.
func (d *Dispatcher) SetSendInterval(p time.Duration) {
	d.pause = p
}

// Run registers the jobs and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler(
		gocron.WithClock(d.clock.Base()),
		gocron.WithLocation(d.clock.Location()),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		def  gocron.JobDefinition
		task func(context.Context)
	}{
		{"dispatch_schedules", gocron.CronJob("* * * * *", false), d.dispatchDue},
		{"poll_alerts", gocron.DurationJob(d.opts.AlertPollInterval), d.pollAlerts},
		{"refresh_reference", gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(d.opts.RefreshHour, d.opts.RefreshMinute, 0))), d.refreshReference},
	}
	for _, j := range jobs {
		task := j.task
		_, err := s.NewJob(j.def,
			gocron.NewTask(func() { task(ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("register %s: %w", j.name, err)
		}
	}

	s.Start()
	d.log.Info("dispatcher started",
		"alert_poll", d.opts.AlertPollInterval,
		"refresh_at", fmt.Sprintf("%02d:%02d", d.opts.RefreshHour, d.opts.RefreshMinute))

	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// dispatchDue sends the board of every schedule due at the current minute.
func (d *Dispatcher) dispatchDue(ctx context.Context) {
	now := d.clock.TimeOfDay()
	due, err := d.store.ListDueSchedules(ctx, now)
	if err != nil {
		d.log.Error("list due schedules", "time", now, "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for _, sc := range due {
		sc := sc
		g.Go(func() error {
			d.deliver(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	d.log.Info("dispatched schedules", "time", now, "count", len(due))
}

func (d *Dispatcher) deliver(ctx context.Context, sc model.Schedule) {
	var text string
	board, err := d.boards.Board(ctx, sc.StopCode)
	if err != nil {
		d.log.Error("build scheduled board", "schedule_id", sc.ID, "stop_code", sc.StopCode, "error", err)
		text = messages.FormatScheduledUnavailable(sc.Description, sc.StopCode)
	} else {
		text = messages.FormatScheduledBoard(board.Filter(sc.Buses))
	}
	if err := d.sender.SendMessage(sc.UserID, text); err != nil {
		d.log.Error("send scheduled board", "schedule_id", sc.ID, "chat_id", sc.UserID, "error", err)
	}
}

// pollAlerts broadcasts the current alert text once per distinct text.
func (d *Dispatcher) pollAlerts(ctx context.Context) {
	text, err := d.alerts.Current(ctx)
	if err != nil {
		d.log.Warn("fetch train alerts", "error", err)
		return
	}
	if text == "" || text == alerts.AllClear {
		return
	}

	seen, err := d.store.AlertSeen(ctx, text)
	if err != nil {
		d.log.Error("check alert log", "error", err)
		return
	}
	if seen {
		return
	}

	subscribers, err := d.store.ListAlertSubscribers(ctx)
	if err != nil {
		d.log.Error("list alert subscribers", "error", err)
		return
	}

	sent := 0
broadcast:
	for _, chatID := range subscribers {
		if ctx.Err() != nil {
			break
		}
		if err := d.sender.SendMessage(chatID, text); err != nil {
			d.log.Error("send alert", "chat_id", chatID, "error", err)
		} else {
			sent++
		}
		// Telegram allows roughly 30 messages per second per bot.
		if d.pause > 0 {
			select {
			case <-ctx.Done():
				break broadcast
			case <-d.clock.Base().After(d.pause):
			}
		}
	}

	// A broadcast cut short by shutdown is still recorded.
	if err := d.store.RecordAlert(context.WithoutCancel(ctx), text, d.clock.Now()); err != nil {
		d.log.Error("record alert", "error", err)
	}
	d.log.Info("broadcast alert", "recipients", len(subscribers), "sent", sent)
}

func (d *Dispatcher) refreshReference(ctx context.Context) {
	if err := d.refresher.Refresh(ctx); err != nil {
		d.log.Error("refresh reference data", "error", err)
	}
}
