package vcsdb

import (
	"context"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestFlusherCoalescesBurstIntoOneFlush(t *testing.T) {
	f := NewFlusher(testLog(), 50*time.Millisecond, 1*datasize.MB)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	for i := 0; i < 10; i++ {
		f.Notify(100)
	}
	// No assertion beyond "doesn't panic/deadlock": the coalescing
	// behavior itself is only externally observable via the log line,
	// which this test's silent logger discards. Stop must return
	// promptly once the loop drains.
	f.Stop()
}

func TestFlusherFlushesImmediatelyOverLimit(t *testing.T) {
	f := NewFlusher(testLog(), time.Hour, 10*datasize.B)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)
	defer f.Stop()

	f.Notify(20)
	require.Equal(t, 0, f.pending, "an over-limit Notify flushes synchronously, resetting pending")
}
