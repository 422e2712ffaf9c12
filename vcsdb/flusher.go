package vcsdb

import (
	"context"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/biscuitwizard/vcscore/vcslog"
)

// Flusher coalesces "please flush" signals from many writers into at
// most one fsync per quiescent period, per spec.md §5. bbolt already
// fsyncs on every Batch commit, so this component's real job in this
// engine is log-worthy bookkeeping and giving callers a place to hang
// size-based flush-interval policy without blocking writers — the
// same role datasize-bounded thresholds play in the teacher's
// eth/stagedsync/stage_log_index.go (logIndicesMemLimit,
// logIndicesCheckSizeEvery).
type Flusher struct {
	log      *vcslog.Logger
	signal   chan struct{}
	interval time.Duration
	limit    datasize.ByteSize

	mu      sync.Mutex
	pending int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFlusher builds a flusher that logs a coalesced flush at most once
// per interval, or immediately once pending writes exceed limit.
func NewFlusher(log *vcslog.Logger, interval time.Duration, limit datasize.ByteSize) *Flusher {
	return &Flusher{
		log:      log,
		signal:   make(chan struct{}, 1), // unbounded-enough: coalesces to one pending signal
		interval: interval,
		limit:    limit,
	}
}

// Start launches the background coalescing loop. Stop must be called
// to release it.
func (f *Flusher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.loop(ctx)
}

// Stop cancels the background loop and waits for it to exit.
func (f *Flusher) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

// Notify signals that a batch completed. Non-blocking: if a flush
// signal is already pending, this is a no-op, exactly the "at most
// one flush per quiescent period" contract from spec.md §5.
func (f *Flusher) Notify(bytesWritten int) {
	f.mu.Lock()
	f.pending += bytesWritten
	overLimit := datasize.ByteSize(f.pending) >= f.limit
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
	if overLimit {
		f.flush("size threshold exceeded")
	}
}

func (f *Flusher) loop(ctx context.Context) {
	defer close(f.done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.signal:
			// A signal only marks pending work; the flush waits for the
			// next tick, so a burst of Notify calls coalesces to one
			// flush per interval.
		case <-ticker.C:
			f.drainAndFlush()
		}
	}
}

func (f *Flusher) drainAndFlush() {
	for {
		select {
		case <-f.signal:
			continue
		default:
		}
		break
	}
	f.flush("quiescent period elapsed")
}

func (f *Flusher) flush(reason string) {
	f.mu.Lock()
	n := f.pending
	f.pending = 0
	f.mu.Unlock()
	if n == 0 {
		return
	}
	f.log.Debug("flush", "reason", reason, "bytes", n)
}
