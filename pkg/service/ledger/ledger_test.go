package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/repository/memory"
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/m-mizutani/gt"
)

func TestMarkAndQuery(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := ledger.New(memory.New().Ledger(), ledger.WithClock(func() time.Time { return now }))

	done, err := svc.IsProcessed(ctx, "会議_第01回_20240101")
	gt.NoError(t, err).Required()
	gt.Bool(t, done).False()

	gt.NoError(t, svc.MarkProcessed(ctx, "会議_第01回_20240101", "out/会議_第01回_2024-01-01.md")).Required()

	done, err = svc.IsProcessed(ctx, "会議_第01回_20240101")
	gt.NoError(t, err).Required()
	gt.Bool(t, done).True()

	entry, err := svc.Get(ctx, "会議_第01回_20240101")
	gt.NoError(t, err).Required()
	gt.Value(t, entry.OutputPath).Equal("out/会議_第01回_2024-01-01.md")
	gt.Value(t, entry.ProcessedAt).Equal(now)

	// marking again is an upsert
	gt.NoError(t, svc.MarkProcessed(ctx, "会議_第01回_20240101", "out/other.md")).Required()
	entries, err := svc.List(ctx)
	gt.NoError(t, err).Required()
	gt.A(t, entries).Length(1)
	gt.Value(t, entries[0].OutputPath).Equal("out/other.md")

	n, err := svc.Clear(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(1)

	done, err = svc.IsProcessed(ctx, "会議_第01回_20240101")
	gt.NoError(t, err).Required()
	gt.Bool(t, done).False()
}

func TestMarkProcessedRejectsEmptyKey(t *testing.T) {
	svc := ledger.New(memory.New().Ledger())
	gt.Error(t, svc.MarkProcessed(context.Background(), "", "out.md"))
}

func TestLockSerializesPerKey(t *testing.T) {
	svc := ledger.New(memory.New().Ledger())

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := svc.Lock("same")
			defer unlock()
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	gt.Value(t, peak.Load()).Equal(int32(1))

	// different keys do not block each other
	unlockA := svc.Lock("a")
	unlockB := svc.Lock("b")
	unlockB()
	unlockA()
}
