package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"go.uber.org/atomic"
)

// CompletionHandler resumes the request a completion belongs to.
type CompletionHandler interface {
	OnCompletion(ctx context.Context, c interfaces.Completion) error
}

// Dispatcher is the CompletionSink handed to issuers. Each delivered completion is
// handled on a worker goroutine, separate from the call that produced it.
type Dispatcher struct {
	queue   chan interfaces.Completion
	workers int
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   atomic.Bool
	handled   atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

func NewDispatcher(queueSize, workers int, log *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:   make(chan interfaces.Completion, queueSize),
		workers: workers,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Deliver enqueues a completion. It blocks while the queue is full and drops the
// completion once the dispatcher is stopped.
func (d *Dispatcher) Deliver(c interfaces.Completion) {
	select {
	case d.queue <- c:
	case <-d.ctx.Done():
		d.discarded.Inc()
		d.log.Warn("Dropping completion delivered after shutdown", slog.String("operation", string(c.Operation)))
	}
}

// Start launches the workers. Completions delivered before Start are queued.
func (d *Dispatcher) Start(handler CompletionHandler) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case c := <-d.queue:
					d.handle(handler, c)
				case <-d.ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop cancels the workers and waits for in-progress completions.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()

	d.log.Info("Completion dispatcher stopped",
		slog.Uint64("handled", d.handled.Load()),
		slog.Uint64("failed", d.failed.Load()),
		slog.Uint64("discarded", d.discarded.Load()+uint64(len(d.queue))))
}

// Stats returns the number of completions handled and of those that returned an error.
func (d *Dispatcher) Stats() (handled, failed uint64) {
	return d.handled.Load(), d.failed.Load()
}

func (d *Dispatcher) handle(handler CompletionHandler, c interfaces.Completion) {
	defer d.handled.Inc()

	err := handler.OnCompletion(context.WithoutCancel(d.ctx), c)
	if err == nil {
		return
	}
	d.failed.Inc()

	var perr *interfaces.ProvisioningError
	if errors.As(err, &perr) {
		d.log.Error("Provisioning request aborted",
			slog.String("kind", interfaces.KindName(perr)),
			slog.Uint64("code", uint64(perr.Code())),
			slog.String("identifier", perr.Identifier.String()),
			slog.String("request_id", perr.RequestID),
			"err", err)
		return
	}

	d.log.Error("Failed to handle issuer completion",
		slog.String("operation", string(c.Operation)),
		"err", err)
}
