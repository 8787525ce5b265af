package pattern

import (
	"errors"
	"sync"
	"testing"
)

// TestDefaultPattern verifies the startup pattern plays C on each quarter
func TestDefaultPattern(t *testing.T) {
	p := Default()
	for i, s := range p {
		want := i%4 == 0
		if s.Active != want {
			t.Errorf("step %d: active=%v, want %v", i, s.Active, want)
		}
		if s.PitchClass != 0 || s.Accent || s.Slide {
			t.Errorf("step %d: unexpected step data %+v", i, s)
		}
	}
	if p.ActiveCount() != 4 {
		t.Errorf("ActiveCount() = %d, want 4", p.ActiveCount())
	}
}

// TestPatternAtWraps verifies cyclic indexing
func TestPatternAtWraps(t *testing.T) {
	var p Pattern
	p[0] = Step{Active: true, PitchClass: 3}
	p[15] = Step{Active: true, PitchClass: 7}

	if got := p.At(16); got != p[0] {
		t.Errorf("At(16) = %+v, want step 0", got)
	}
	if got := p.At(-1); got != p[15] {
		t.Errorf("At(-1) = %+v, want step 15", got)
	}
	if got := p.At(33); got != p[1] {
		t.Errorf("At(33) = %+v, want step 1", got)
	}
}

func TestClampPitch(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{7, 7},
		{11, 11},
		{12, 11},
		{99, 11},
	}
	for _, tt := range tests {
		if got := ClampPitch(tt.in); got != tt.want {
			t.Errorf("ClampPitch(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// TestStoreSetStep verifies edits are visible in the next snapshot
func TestStoreSetStep(t *testing.T) {
	s := NewStore(Empty())
	before := s.Snapshot()
	rev := s.Revision()

	if err := s.SetStep(5, Step{Active: true, PitchClass: 14, Accent: true}); err != nil {
		t.Fatalf("SetStep: %v", err)
	}

	after := s.Snapshot()
	if !after[5].Active || !after[5].Accent {
		t.Errorf("step 5 not updated: %+v", after[5])
	}
	if after[5].PitchClass != 11 {
		t.Errorf("pitch class not clamped: %d", after[5].PitchClass)
	}
	if before[5].Active {
		t.Error("earlier snapshot was mutated by SetStep")
	}
	if s.Revision() <= rev {
		t.Error("revision did not advance")
	}
}

func TestStoreSetStepOutOfRange(t *testing.T) {
	s := NewStore(Default())
	for _, idx := range []int{-1, NumSteps, 100} {
		err := s.SetStep(idx, Step{Active: true})
		if !errors.Is(err, ErrStepIndex) {
			t.Errorf("SetStep(%d) error = %v, want ErrStepIndex", idx, err)
		}
	}
	if s.Snapshot() != Default() {
		t.Error("rejected edit changed the pattern")
	}
}

func TestStoreUpdateAndClear(t *testing.T) {
	s := NewStore(Default())

	err := s.Update(4, func(st Step) Step {
		st.Slide = !st.Slide
		return st
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !s.Step(4).Slide {
		t.Error("slide not toggled")
	}

	s.Clear()
	if s.Snapshot().ActiveCount() != 0 {
		t.Error("Clear left active steps")
	}
}

// TestStoreReplaceNormalizes verifies installed patterns never carry bad pitch classes
func TestStoreReplaceNormalizes(t *testing.T) {
	var p Pattern
	p[2] = Step{Active: true, PitchClass: -3}
	s := NewStore(Empty())
	s.Replace(p)
	if got := s.Step(2).PitchClass; got != 0 {
		t.Errorf("pitch class = %d, want 0", got)
	}
}

// TestStoreSnapshotConsistency hammers the store with writers that keep
// Active and PitchClass in lockstep; a reader must never see them disagree.
func TestStoreSnapshotConsistency(t *testing.T) {
	s := NewStore(Empty())
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				on := n%2 == 0
				pc := 0
				if on {
					pc = 11
				}
				s.SetStep((n+w)%NumSteps, Step{Active: on, PitchClass: pc})
			}
		}(w)
	}

	for i := 0; i < 5000; i++ {
		snap := s.Snapshot()
		for idx, st := range snap {
			if st.Active != (st.PitchClass == 11) {
				t.Fatalf("torn step %d observed: %+v", idx, st)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestStoreUpdateChanCoalesces(t *testing.T) {
	s := NewStore(Empty())
	<-s.UpdateChan // drain install from NewStore

	for i := 0; i < 10; i++ {
		s.SetStep(i, Step{Active: true})
	}
	select {
	case <-s.UpdateChan:
	default:
		t.Fatal("expected an update signal")
	}
	select {
	case <-s.UpdateChan:
		t.Fatal("update signals were not coalesced")
	default:
	}
}
