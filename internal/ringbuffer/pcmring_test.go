package ringbuffer

import (
	"testing"

	"github.com/retrowaves/retrowaves/internal/pcmframe"
)

func frameFilled(b byte) pcmframe.Frame {
	var f pcmframe.Frame
	for i := range f {
		f[i] = b
	}
	return f
}

func TestPushPopRoundTripOnEmptyBuffer(t *testing.T) {
	r := New(5)
	f := frameFilled(0x42)
	r.Push(f)
	got, ok := r.Pop()
	if !ok || got != f {
		t.Fatalf("Pop after single Push: ok=%v", ok)
	}
}

func TestPopOnEmptyReturnsFalse(t *testing.T) {
	r := New(5)
	if _, ok := r.Pop(); ok {
		t.Fatal("expected Pop on empty ring to return false")
	}
}

func TestPushOnFullBufferDropsNewestAndCountsOverflow(t *testing.T) {
	r := New(2)
	r.Push(frameFilled(1))
	r.Push(frameFilled(2))
	r.Push(frameFilled(3)) // should be dropped

	st := r.Snapshot()
	if st.OverflowCount != 1 {
		t.Fatalf("overflow count = %d, want 1", st.OverflowCount)
	}
	first, _ := r.Pop()
	second, _ := r.Pop()
	if first != frameFilled(1) || second != frameFilled(2) {
		t.Fatal("reader behavior changed by a dropped push")
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("expected buffer empty after draining the two admitted frames")
	}
}

func TestFIFOOrderPreserved(t *testing.T) {
	r := New(5)
	for i := byte(1); i <= 5; i++ {
		r.Push(frameFilled(i))
	}
	for i := byte(1); i <= 5; i++ {
		got, ok := r.Pop()
		if !ok || got != frameFilled(i) {
			t.Fatalf("FIFO order broken at %d", i)
		}
	}
}

func TestRatio(t *testing.T) {
	r := New(4)
	r.Push(frameFilled(1))
	r.Push(frameFilled(2))
	st := r.Snapshot()
	if st.Ratio() != 0.5 {
		t.Fatalf("ratio = %f, want 0.5", st.Ratio())
	}
}
