package observability

import "testing"

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe(StageModel, 500)
	w.Observe(StageModel, 700)
	w.Observe(StageModel, 2900)
	w.ObserveIndicator("retrieval_empty")
	w.ObserveIndicator("retrieval_empty")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageModel {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageModel)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 2900 {
		t.Fatalf("LastMS = %.2f, want 2900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 2900 {
		t.Fatalf("P95MS = %.2f, want (700,2900]", s.P95MS)
	}
	if s.TargetP95MS != 2500 {
		t.Fatalf("TargetP95MS = %.2f, want 2500", s.TargetP95MS)
	}
	if s.OverTarget != 1 {
		t.Fatalf("OverTarget = %d, want 1", s.OverTarget)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Name != "retrieval_empty" || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want retrieval_empty x2", snap.Indicators)
	}
}

func TestTurnStageWindowKeepsLastSamples(t *testing.T) {
	w := newTurnStageWindow(3)
	for _, v := range []float64{1000, 1000, 1000, 10, 20, 30} {
		w.Observe(StagePersist, v)
	}
	s := w.Snapshot().Stages[0]
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.AvgMS != 20 {
		t.Fatalf("AvgMS = %.2f, want 20 (old samples evicted)", s.AvgMS)
	}
	if s.OverTarget != 0 {
		t.Fatalf("OverTarget = %d, want 0", s.OverTarget)
	}

	w.Reset()
	if got := w.Snapshot(); len(got.Stages) != 0 || len(got.Indicators) != 0 {
		t.Fatalf("snapshot after Reset = %+v", got)
	}
}

func TestTurnStageWindowIgnoresInvalidSamples(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe("", 10)
	w.Observe(StageRetrieve, -1)
	w.ObserveIndicator("  ")
	if got := w.Snapshot(); len(got.Stages) != 0 || len(got.Indicators) != 0 {
		t.Fatalf("snapshot = %+v, want empty", got)
	}

	var nilWindow *turnStageWindow
	nilWindow.Observe(StageModel, 1)
	if got := nilWindow.Snapshot(); got.Stages == nil {
		t.Fatalf("nil window snapshot should have an empty stage list")
	}
}
