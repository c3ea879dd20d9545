package mp3buffer

import (
	"bytes"
	"testing"
)

func TestPushDrainPreservesOrder(t *testing.T) {
	b := New(10)
	b.Push([]byte("a"))
	b.Push([]byte("b"))
	b.Push([]byte("c"))
	got := b.Drain()
	if len(got) != 3 || !bytes.Equal(got[0], []byte("a")) || !bytes.Equal(got[2], []byte("c")) {
		t.Fatalf("unexpected drain order: %v", got)
	}
	if b.Depth() != 0 {
		t.Fatalf("depth after drain = %d, want 0", b.Depth())
	}
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	b := New(2)
	b.Push([]byte("1"))
	b.Push([]byte("2"))
	b.Push([]byte("3")) // should evict "1"
	got := b.Drain()
	if len(got) != 2 || !bytes.Equal(got[0], []byte("2")) || !bytes.Equal(got[1], []byte("3")) {
		t.Fatalf("expected oldest dropped, got %v", got)
	}
}

func TestDrainOnEmptyReturnsNil(t *testing.T) {
	b := New(5)
	if got := b.Drain(); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
