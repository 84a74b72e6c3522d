package bufpool

import "testing"

func TestPool_GetPut(t *testing.T) {
	bufSize := 1 << 20
	pool := New(bufSize)

	buf := pool.Get()
	if len(buf) != bufSize {
		t.Errorf("buffer length = %d, want %d", len(buf), bufSize)
	}
	pool.Put(buf)

	again := pool.Get()
	if len(again) != bufSize {
		t.Errorf("reused buffer length = %d, want %d", len(again), bufSize)
	}
	if pool.BufSize() != bufSize {
		t.Errorf("BufSize = %d, want %d", pool.BufSize(), bufSize)
	}
}

func TestPool_DiscardsUndersized(t *testing.T) {
	pool := New(4096)
	pool.Put(make([]byte, 16))

	buf := pool.Get()
	if len(buf) != 4096 {
		t.Errorf("buffer length = %d, want 4096", len(buf))
	}
}

func TestPool_PanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive bufSize")
		}
	}()
	New(0)
}
