package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telegram-emotion-diary/internal/gateway"
	"telegram-emotion-diary/internal/metrics"
	"telegram-emotion-diary/internal/models"
)

const DefaultText = "Привет! Не забудь записать свой приём пищи 🍽\nНачать: /meal"

// UserLister is the part of the storage the reminder reads.
type UserLister interface {
	ListRegisteredUserIDs(ctx context.Context) ([]int64, error)
}

// Report sums up one broadcast.
type Report struct {
	Attempted int
	Delivered int
	Failed    int
}

// Reminder sends the same message to every registered user.
// One failed recipient never stops the others.
type Reminder struct {
	Users UserLister
	Bot   gateway.Sender
	Log   *zap.Logger
	Text  string
	// Concurrency caps parallel sends, keeping the job light next to interactive traffic.
	Concurrency int
	// SendInterval throttles the start of consecutive sends.
	SendInterval time.Duration
}

func (r *Reminder) Broadcast(ctx context.Context) (Report, error) {
	ids, err := r.Users.ListRegisteredUserIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}

	text := r.Text
	if text == "" {
		text = DefaultText
	}

	var delivered, failed atomic.Int64

	// errgroup without a context: a failed send must not cancel the rest.
	var g errgroup.Group
	g.SetLimit(max(1, r.Concurrency))

	var tick <-chan time.Time
	if r.SendInterval > 0 {
		t := time.NewTicker(r.SendInterval)
		defer t.Stop()
		tick = t.C
	}

loop:
	for i, id := range ids {
		if i > 0 && tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				break loop
			}
		}
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if err := r.sendOne(ctx, id, text); err != nil {
				failed.Add(1)
				metrics.ReminderSends.WithLabelValues("failed").Inc()
				r.Log.Warn("reminder not delivered", zap.Int64("user_id", id), zap.Error(err))
				return nil
			}
			delivered.Add(1)
			metrics.ReminderSends.WithLabelValues("delivered").Inc()
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
	rep.Attempted = rep.Delivered + rep.Failed
	return rep, ctx.Err()
}

// sendOne turns a panic in the transport into an error for this recipient.
func (r *Reminder) sendOne(ctx context.Context, userID int64, text string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Bot.Send(ctx, userID, models.Prompt{Text: text})
}

// Schedule picks when the broadcast runs: a cron expression, or a fixed interval when Cron is empty.
type Schedule struct {
	Cron     string
	Interval time.Duration
	Location *time.Location
}

func (s Schedule) definition() (gocron.JobDefinition, error) {
	switch {
	case s.Cron != "":
		return gocron.CronJob(s.Cron, false), nil
	case s.Interval > 0:
		return gocron.DurationJob(s.Interval), nil
	default:
		return nil, errors.New("reminder schedule: neither cron nor interval set")
	}
}

// Start registers the broadcast job and starts the scheduler. Call Shutdown on the result to stop it.
func Start(ctx context.Context, r *Reminder, sch Schedule, opts ...gocron.SchedulerOption) (gocron.Scheduler, error) {
	def, err := sch.definition()
	if err != nil {
		return nil, err
	}
	if sch.Location != nil {
		opts = append(opts, gocron.WithLocation(sch.Location))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		def,
		gocron.NewTask(func() {
			rep, err := r.Broadcast(ctx)
			if err != nil {
				r.Log.Error("reminder broadcast", zap.Error(err))
			}
			r.Log.Info("reminder broadcast finished",
				zap.Int("attempted", rep.Attempted),
				zap.Int("delivered", rep.Delivered),
				zap.Int("failed", rep.Failed),
			)
		}),
		gocron.WithName("reminder-broadcast"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	s.Start()
	return s, nil
}
