package synth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/gopxl/beep"
)

type fakeOutput struct {
	inits   int
	plays   int
	clears  int
	initErr error
	played  []beep.Streamer
}

func (f *fakeOutput) output() output {
	return output{
		init: func(sr beep.SampleRate, bufferSize int) error {
			f.inits++
			return f.initErr
		},
		play: func(s ...beep.Streamer) {
			f.plays++
			f.played = append(f.played, s...)
		},
		clear: func() { f.clears++ },
	}
}

func newTestEngine(f *fakeOutput) *Engine {
	e := NewEngine(nil)
	e.out = f.output()
	e.now = func() time.Time { return time.Unix(1000, 0) }
	return e
}

func render(s beep.Streamer, n int) [][2]float64 {
	buf := make([][2]float64, n)
	s.Stream(buf)
	return buf
}

func peak(buf [][2]float64) float64 {
	m := 0.0
	for _, s := range buf {
		m = math.Max(m, math.Abs(s[0]))
	}
	return m
}

func TestEngineInitializeIdempotent(t *testing.T) {
	f := &fakeOutput{}
	e := newTestEngine(f)

	for i := 0; i < 3; i++ {
		if err := e.Initialize(); err != nil {
			t.Fatalf("Initialize #%d: %v", i, err)
		}
	}
	if f.inits != 1 || f.plays != 1 || len(f.played) != 1 {
		t.Errorf("speaker opened %d times, played %d streamers", f.inits, len(f.played))
	}
	if e.State() != StateReady {
		t.Errorf("state = %v, want ready", e.State())
	}
}

func TestEngineUnavailable(t *testing.T) {
	f := &fakeOutput{initErr: errors.New("no device")}
	e := newTestEngine(f)

	err := e.Initialize()
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if ftag.Get(err) != TagEngineUnavailable {
		t.Errorf("tag = %q", ftag.Get(err))
	}
	if e.State() != StateUninitialized {
		t.Errorf("state = %v after failure", e.State())
	}

	// notes while unavailable are dropped
	e.TriggerNote(36, time.Second, time.Unix(1000, 0), 1, false)
	e.Release()

	f.initErr = nil
	if err := e.Initialize(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.inits != 2 {
		t.Errorf("inits = %d, want 2", f.inits)
	}
}

func TestEngineParamsBeforeInitialize(t *testing.T) {
	f := &fakeOutput{}
	e := newTestEngine(f)

	p := DefaultParams()
	p.Cutoff = 9000
	p.Waveform = WaveSquare
	e.UpdateParameters(p)

	if e.Params().Cutoff != MaxCutoff {
		t.Errorf("cutoff not clamped: %v", e.Params().Cutoff)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateActive {
		t.Errorf("state = %v, want active", e.State())
	}
	v := f.played[0].(*Voice)
	if got := v.Params(); got.Waveform != WaveSquare || got.Cutoff != MaxCutoff {
		t.Errorf("voice params = %+v", got)
	}
}

func TestEngineTriggerMapsTimeToFrame(t *testing.T) {
	f := &fakeOutput{}
	e := newTestEngine(f)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	v := f.played[0].(*Voice)

	e.TriggerNote(45, 50*time.Millisecond, time.Unix(1000, 0).Add(10*time.Millisecond), 1, false)
	if v.Pending() != 1 {
		t.Fatalf("pending = %d", v.Pending())
	}

	// 10 ms plus one speaker buffer at 48 kHz
	render(v, 480+SampleRate.N(bufferTime)-1)
	if v.Sounding() {
		t.Error("note started early")
	}
	render(v, 2)
	if !v.Sounding() {
		t.Error("note did not start at its frame")
	}
	if math.Abs(v.Frequency()-110) > 0.01 {
		t.Errorf("frequency = %v, want 110", v.Frequency())
	}

	e.Release()
	if v.Pending() != 0 {
		t.Error("release kept queued notes")
	}
	e.Close()
	if f.clears != 1 || e.State() != StateUninitialized {
		t.Errorf("close: clears=%d state=%v", f.clears, e.State())
	}
}

func TestEngineTriggerAfterSpeakerReadAhead(t *testing.T) {
	f := &fakeOutput{}
	e := newTestEngine(f)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	v := f.played[0].(*Voice)

	// the speaker fills its buffer before any tick arrives
	render(v, SampleRate.N(bufferTime))

	t0 := time.Unix(1000, 0)
	e.TriggerNote(36, 50*time.Millisecond, t0.Add(10*time.Millisecond), 1, false)
	e.TriggerNote(48, 50*time.Millisecond, t0.Add(60*time.Millisecond), 1, false)
	if v.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", v.Pending())
	}
	first, second := v.queue[0].frame, v.queue[1].frame
	if first <= v.Position() {
		t.Errorf("first note clamped to render position %d", v.Position())
	}
	if got := second - first; got != int64(SampleRate.N(50*time.Millisecond)) {
		t.Errorf("notes %d frames apart, want 2400", got)
	}
}

func TestEngineReanchorsOnInitialize(t *testing.T) {
	f := &fakeOutput{}
	e := newTestEngine(f)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	v := f.played[0].(*Voice)
	render(v, SampleRate.N(time.Second))

	// wall clock ran 5 s while the card rendered 1 s
	now := time.Unix(1005, 0)
	e.now = func() time.Time { return now }
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if f.inits != 1 {
		t.Errorf("speaker reopened: inits = %d", f.inits)
	}

	e.TriggerNote(36, 50*time.Millisecond, now, 1, false)
	if got := v.queue[0].frame; got != v.Position() {
		t.Errorf("note at now queued at %d, want render position %d", got, v.Position())
	}
}

func TestVoiceRendersAndDecays(t *testing.T) {
	v, err := NewVoice(SampleRate, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if p := peak(render(v, 1000)); p != 0 {
		t.Errorf("idle voice output %v", p)
	}

	v.Schedule(v.Position(), 36, 125*time.Millisecond, 1, false)
	if p := peak(render(v, 4800)); p < 0.01 {
		t.Errorf("note peak %v, want audible", p)
	}

	// gate 125 ms, decay 0.2 s, release 0.2 s: silent well within a second
	render(v, SampleRate.N(time.Second))
	if v.Sounding() {
		t.Error("voice still sounding after a second")
	}
	if p := peak(render(v, 1000)); p != 0 {
		t.Errorf("output after decay %v", p)
	}
}

func TestVoiceSlideGlides(t *testing.T) {
	v, _ := NewVoice(SampleRate, DefaultParams())

	v.Schedule(0, 36, time.Second, 1, false)
	render(v, 10)
	start := v.Frequency()

	v.Schedule(v.Position(), 48, time.Second, 1, true)
	render(v, SampleRate.N(50*time.Millisecond))
	mid := v.Frequency()
	if mid <= start || mid >= 2*start {
		t.Errorf("mid-glide frequency %v not between %v and %v", mid, start, 2*start)
	}
	// exponential glide is halfway in octaves at half time
	if want := start * math.Sqrt2; math.Abs(mid-want) > 1 {
		t.Errorf("mid-glide frequency %v, want ~%v", mid, want)
	}

	render(v, SampleRate.N(60*time.Millisecond))
	if got := v.Frequency(); math.Abs(got-2*start) > 0.01 {
		t.Errorf("glide ended at %v, want %v", got, 2*start)
	}

	v.Schedule(v.Position(), 40, time.Second, 1, false)
	render(v, 1)
	if got := v.Frequency(); math.Abs(got-midiToFreq(40)) > 0.01 {
		t.Errorf("hard retrigger frequency %v, want %v", got, midiToFreq(40))
	}
}

func TestVoiceQueueOrder(t *testing.T) {
	v, _ := NewVoice(SampleRate, DefaultParams())

	v.Schedule(200, 40, time.Second, 1, false)
	v.Schedule(100, 36, time.Second, 1, false)
	render(v, 150)
	if got := v.Frequency(); math.Abs(got-midiToFreq(36)) > 0.01 {
		t.Errorf("frequency at 150 = %v, want pitch 36", got)
	}
	render(v, 100)
	if got := v.Frequency(); math.Abs(got-midiToFreq(40)) > 0.01 {
		t.Errorf("frequency at 250 = %v, want pitch 40", got)
	}

	// frames in the past play immediately
	v.Schedule(0, 45, time.Second, 1, false)
	render(v, 1)
	if got := v.Frequency(); math.Abs(got-110) > 0.01 {
		t.Errorf("late note frequency %v", got)
	}
}

func TestVoiceParamRamps(t *testing.T) {
	v, _ := NewVoice(SampleRate, DefaultParams())

	p := DefaultParams()
	p.Cutoff = 3000
	p.Distortion = 1
	if err := v.SetParams(p); err != nil {
		t.Fatalf("SetParams: %v", err)
	}

	render(v, SampleRate.N(50*time.Millisecond))
	if v.cutoff.value <= 1000 || v.cutoff.value >= 3000 {
		t.Errorf("cutoff mid-ramp = %v", v.cutoff.value)
	}
	render(v, SampleRate.N(60*time.Millisecond))
	if v.cutoff.value != 3000 {
		t.Errorf("cutoff after ramp = %v", v.cutoff.value)
	}
	if want := dbToGain(-15); math.Abs(v.gain.value-want) > 1e-9 {
		t.Errorf("gain = %v, want %v", v.gain.value, want)
	}
}

func TestVoiceAcceptsParamExtremes(t *testing.T) {
	lo := Params{Cutoff: MinCutoff, Resonance: MinResonance, Decay: MinDecay, Distortion: MinDistortion}
	hi := Params{Cutoff: MaxCutoff, Resonance: MaxResonance, Decay: MaxDecay, Distortion: MaxDistortion, Waveform: WaveSquare}

	for _, start := range []Params{lo, hi} {
		v, err := NewVoice(SampleRate, start)
		if err != nil {
			t.Fatalf("NewVoice(%+v): %v", start, err)
		}
		for _, p := range []Params{hi, lo} {
			if err := v.SetParams(p); err != nil {
				t.Errorf("SetParams(%+v): %v", p, err)
			}
			render(v, SampleRate.N(2*rampTime))
		}
		if err := v.Err(); err != nil {
			t.Errorf("cutoff ramp rejected: %v", err)
		}
	}
}

func TestParamsClamp(t *testing.T) {
	p := Params{Cutoff: 1, Resonance: 50, Decay: 0, Distortion: -1, Waveform: Waveform(7)}.Clamp()
	want := Params{Cutoff: MinCutoff, Resonance: MaxResonance, Decay: MinDecay, Distortion: 0, Waveform: WaveSawtooth}
	if p != want {
		t.Errorf("Clamp() = %+v, want %+v", p, want)
	}
	if DefaultParams().GainDB() != -10.5 {
		t.Errorf("default gain = %v dB", DefaultParams().GainDB())
	}
}

func TestParseWaveform(t *testing.T) {
	for in, want := range map[string]Waveform{"saw": WaveSawtooth, "Sawtooth": WaveSawtooth, "square": WaveSquare} {
		got, err := ParseWaveform(in)
		if err != nil || got != want {
			t.Errorf("ParseWaveform(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseWaveform("triangle"); err == nil {
		t.Error("triangle accepted")
	}
}
