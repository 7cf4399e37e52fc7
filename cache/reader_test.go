package cache

import "testing"

func TestReaderPreloadAndSwap(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, 11)
	for i := 0; i < RecordsPerSector; i++ {
		w.Append(moveRecord(int32(i)))
	}
	for i := 0; i < RecordsPerSector; i++ {
		w.Append(moveRecord(int32(100 + i)))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(store, 11)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.MainRecord(0).Motion.X != 0 {
		t.Fatalf("first record X = %d, want 0", r.MainRecord(0).Motion.X)
	}

	r.RequestPreload(12)
	if !r.PreloadPending() {
		t.Fatal("preload should be pending before LoadData")
	}
	if err := r.LoadData(); err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if r.PreloadPending() {
		t.Fatal("preload should no longer be pending after LoadData")
	}
	if !r.Swap() {
		t.Fatal("Swap should succeed once preload is ready")
	}
	if r.MainRecord(0).Motion.X != 100 {
		t.Fatalf("after swap, first record X = %d, want 100", r.MainRecord(0).Motion.X)
	}
}

func TestReaderLoadDataExhaustsRetries(t *testing.T) {
	store := newFakeStore()
	store.failOn[12] = true
	w := NewWriter(store, 11)
	for i := 0; i < RecordsPerSector; i++ {
		w.Append(moveRecord(int32(i)))
	}
	r, err := NewReader(store, 11)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	r.RequestPreload(12)
	if err := r.LoadData(); err == nil {
		t.Fatal("expected RamFailure after exhausting retries")
	}
}
