package authkit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type mailJob struct {
	to   string
	code string
}

// mailDispatcher delivers OTP mail off the request path. A single worker
// drains a buffered channel; Close flushes whatever is queued before
// returning.
type mailDispatcher struct {
	cfg       MailConfig
	sender    MailSender
	logger    *slog.Logger
	metrics   *Metrics
	ch        chan mailJob
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newMailDispatcher(cfg MailConfig, sender MailSender, logger *slog.Logger, metrics *Metrics) *mailDispatcher {
	if sender == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &mailDispatcher{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		ch:      make(chan mailJob, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *mailDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.deliver(job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (d *mailDispatcher) deliver(job mailJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, job.to, job.code); err != nil {
		d.metrics.Inc(MetricMailFailed)
		d.logger.Warn("otp mail delivery failed",
			"to", maskEmail(job.to),
			"error", err,
		)
	}
}

// Enqueue queues an OTP delivery. With DropIfFull set a full buffer drops
// the job and counts it; otherwise the caller blocks until there is room
// or its context ends.
func (d *mailDispatcher) Enqueue(ctx context.Context, to, code string) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	job := mailJob{to: to, code: code}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- job:
			d.metrics.Inc(MetricMailEnqueued)
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- job:
		d.metrics.Inc(MetricMailEnqueued)
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting jobs, drains the queue, and waits for the worker.
func (d *mailDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many jobs were discarded due to a full buffer.
func (d *mailDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
