// services/hal/internal/worker/measure_worker.go
package worker

import (
	"context"
	"errors"
	"time"

	"camsensor-go/services/hal/internal/halcore"
	"camsensor-go/services/hal/internal/util"
)

// MeasureWorker runs split-phase measurements for the adaptors on one bus.
// Adaptors sharing a bus are serviced from the same goroutine, so their
// Trigger and Collect calls never overlap.
type MeasureWorker struct {
	cfg  halcore.WorkerConfig
	reqQ chan halcore.MeasureReq
	sink chan<- halcore.Result // fan-in sink owned by service

	pending map[string]*pendingCollect
	again   map[string]bool // prio request arrived while pending
	timer   *time.Timer
}

type pendingCollect struct {
	req     halcore.MeasureReq
	due     time.Time
	retries int
}

func New(cfg halcore.WorkerConfig, sink chan<- halcore.Result) *MeasureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &MeasureWorker{
		cfg:     cfg,
		reqQ:    make(chan halcore.MeasureReq, cfg.InputQueueSize),
		sink:    sink,
		pending: map[string]*pendingCollect{},
		again:   map[string]bool{},
		timer:   time.NewTimer(time.Hour),
	}
}

// Submit queues a request without blocking. Priority requests wait briefly
// for queue space; ordinary ones are dropped when the queue is full.
func (w *MeasureWorker) Submit(req halcore.MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
	}
	if !req.Prio {
		return false
	}
	t := time.NewTimer(5 * time.Millisecond)
	defer t.Stop()
	select {
	case w.reqQ <- req:
		return true
	case <-t.C:
		return false
	}
}

func (w *MeasureWorker) Start(ctx context.Context) {
	if !w.timer.Stop() {
		util.DrainTimer(w.timer)
	}
	go w.loop(ctx)
}

func (w *MeasureWorker) loop(ctx context.Context) {
	for {
		if next := w.nextDue(); next.IsZero() {
			util.ResetTimer(w.timer, time.Hour)
		} else {
			util.ResetTimer(w.timer, time.Until(next))
		}
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqQ:
			if _, busy := w.pending[req.ID]; busy {
				if req.Prio {
					w.again[req.ID] = true
				}
				continue
			}
			w.trigger(ctx, req)
		case <-w.timer.C:
			w.collectDue(ctx, time.Now())
		}
	}
}

func (w *MeasureWorker) trigger(ctx context.Context, req halcore.MeasureReq) {
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := req.Adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		w.emit(halcore.Result{ID: req.ID, Err: err})
		return
	}
	w.pending[req.ID] = &pendingCollect{req: req, due: time.Now().Add(after)}
}

func (w *MeasureWorker) collectDue(ctx context.Context, now time.Time) {
	for id, pc := range w.pending {
		if now.Before(pc.due) {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := pc.req.Adaptor.Collect(cctx)
		cancel()

		if errors.Is(err, halcore.ErrNotReady) && pc.retries < w.cfg.MaxRetries {
			pc.retries++
			pc.due = now.Add(w.cfg.RetryBackoff)
			continue
		}
		delete(w.pending, id)
		if err != nil {
			w.emit(halcore.Result{ID: id, Err: err})
		} else {
			w.emit(halcore.Result{ID: id, Sample: s})
		}
		if w.again[id] {
			delete(w.again, id)
			w.trigger(ctx, pc.req)
		}
	}
}

// emit blocks until the service takes the result; results are never dropped.
func (w *MeasureWorker) emit(r halcore.Result) {
	w.sink <- r
}

func (w *MeasureWorker) nextDue() time.Time {
	var first time.Time
	for _, pc := range w.pending {
		if first.IsZero() || pc.due.Before(first) {
			first = pc.due
		}
	}
	return first
}
