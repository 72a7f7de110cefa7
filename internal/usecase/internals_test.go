package usecase

import (
	"context"
	"testing"
	"time"

	"calltriage/internal/domain"
)

func TestTranscriptAggregatorJoinsInOrder(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Append("  hello ")
	agg.Append("")
	before, after, ok := agg.Append("there friend")
	if !ok || before != 1 || after != 3 {
		t.Fatalf("unexpected counts: %d %d %v", before, after, ok)
	}

	text, words := agg.Seal()
	if text != "hello there friend" || words != 3 {
		t.Fatalf("unexpected transcript: %q (%d)", text, words)
	}
	if _, _, ok := agg.Append("late"); ok {
		t.Fatalf("append after seal should be dropped")
	}
}

func TestChunkQueueFIFOAndDrainSignal(t *testing.T) {
	t.Parallel()

	q := newChunkQueue()
	for i := uint64(1); i <= 3; i++ {
		if depth, ok := q.push(domain.AudioChunk{Seq: i}); !ok || depth != int(i) {
			t.Fatalf("unexpected push result: %d %v", depth, ok)
		}
	}

	ctx := context.Background()
	for want := uint64(1); want <= 3; want++ {
		chunk, ok := q.pop(ctx)
		if !ok || chunk.Seq != want {
			t.Fatalf("expected seq %d, got %d (%v)", want, chunk.Seq, ok)
		}
		if q.pending() != int(4-want) {
			t.Fatalf("in-flight chunk should count as pending")
		}
		q.done()
	}

	select {
	case <-q.emptied:
	default:
		t.Fatalf("expected emptied signal")
	}
}

func TestChunkQueuePopUnblocksOnPushAndClose(t *testing.T) {
	t.Parallel()

	q := newChunkQueue()
	got := make(chan uint64, 1)
	go func() {
		chunk, _ := q.pop(context.Background())
		got <- chunk.Seq
	}()
	time.Sleep(5 * time.Millisecond)
	q.push(domain.AudioChunk{Seq: 7})

	select {
	case seq := <-got:
		if seq != 7 {
			t.Fatalf("unexpected seq %d", seq)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop did not wake on push")
	}

	q.push(domain.AudioChunk{Seq: 8})
	if abandoned := q.close(); abandoned != 2 {
		t.Fatalf("expected in-flight and queued chunk abandoned, got %d", abandoned)
	}
	if _, ok := q.push(domain.AudioChunk{Seq: 9}); ok {
		t.Fatalf("push after close should fail")
	}
	if _, ok := q.pop(context.Background()); ok {
		t.Fatalf("pop after close should fail")
	}
}

func TestCrossedBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		before, after, interval int
		want                    bool
	}{
		{0, 9, 10, false},
		{9, 10, 10, true},
		{8, 23, 10, true},
		{10, 12, 10, false},
		{3, 5, 0, false},
	}
	for _, tc := range cases {
		if got := crossedBoundary(tc.before, tc.after, tc.interval); got != tc.want {
			t.Fatalf("crossedBoundary(%d, %d, %d) = %v", tc.before, tc.after, tc.interval, got)
		}
	}
}
