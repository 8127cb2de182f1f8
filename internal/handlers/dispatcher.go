package handlers

import (
	"context"
	"sync"
	"time"

	"telegram-emotion-diary/internal/gateway"
)

const queueSize = 64

// Dispatcher runs one worker per active user: a user's messages are handled
// in arrival order, different users never wait for each other.
type Dispatcher struct {
	handle func(context.Context, gateway.Update)
	idle   time.Duration
	// Overflow receives updates dropped because the user's queue is full.
	// It runs on its own goroutine.
	Overflow func(context.Context, gateway.Update)

	mu     sync.Mutex
	queues map[int64]chan gateway.Update
	wg     sync.WaitGroup
}

// NewDispatcher stops a user's worker after idle without messages.
func NewDispatcher(handle func(context.Context, gateway.Update), idle time.Duration) *Dispatcher {
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &Dispatcher{
		handle: handle,
		idle:   idle,
		queues: make(map[int64]chan gateway.Update),
	}
}

// Run consumes updates until the channel is closed, then waits for queued
// messages to finish. Handlers get a context that is not cancelled with ctx,
// so database calls in flight complete during shutdown.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan gateway.Update) {
	work := context.WithoutCancel(ctx)
	for upd := range updates {
		d.dispatch(work, upd)
	}

	d.mu.Lock()
	for id, ch := range d.queues {
		close(ch)
		delete(d.queues, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Serve dispatches the gateway's updates until ctx is done and the queues drain.
func (d *Dispatcher) Serve(ctx context.Context, gw gateway.Gateway) {
	d.Run(ctx, gw.Updates(ctx))
}

// dispatch never blocks: a user whose queue is full loses the update.
func (d *Dispatcher) dispatch(ctx context.Context, upd gateway.Update) {
	d.mu.Lock()
	ch, ok := d.queues[upd.UserID]
	if !ok {
		ch = make(chan gateway.Update, queueSize)
		d.queues[upd.UserID] = ch
		d.wg.Add(1)
		go d.worker(ctx, upd.UserID, ch)
	}
	var queued bool
	select {
	case ch <- upd:
		queued = true
	default:
	}
	d.mu.Unlock()

	if !queued && d.Overflow != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.Overflow(ctx, upd)
		}()
	}
}

func (d *Dispatcher) worker(ctx context.Context, userID int64, ch chan gateway.Update) {
	defer d.wg.Done()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case upd, ok := <-ch:
			if !ok {
				return
			}
			d.handle(ctx, upd)
			timer.Reset(d.idle)
		case <-timer.C:
			// Sends happen under the lock, so an empty ch stays empty once removed.
			d.mu.Lock()
			if len(ch) == 0 {
				delete(d.queues, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			timer.Reset(d.idle)
		}
	}
}

// Active reports the number of running workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}
