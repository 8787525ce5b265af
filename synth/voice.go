package synth

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/filter/moog"
	"github.com/gopxl/beep"
)

// Envelope and modulation constants
const (
	attackTime  = 5 * time.Millisecond
	releaseTime = 200 * time.Millisecond
	glideTime   = 100 * time.Millisecond
	rampTime    = 100 * time.Millisecond

	filterEnvBase    = 200.0 // Hz
	filterEnvOctaves = 4.0
	filterEnvQ       = 1.0

	controlBlock = 32     // samples between filter coefficient updates
	silence      = 0.0001 // envelope level treated as finished
)

type envStage int

const (
	envIdle envStage = iota
	envAttack
	envDecay
	envRelease
)

// envelope is an attack/decay/release generator with sustain fixed at 0
type envelope struct {
	stage envStage
	level float64

	attackStep  float64 // linear increment per sample
	decayCoef   float64 // multiplier per sample
	releaseCoef float64
}

func (e *envelope) configure(sr beep.SampleRate, decay float64) {
	e.attackStep = 1 / math.Max(1, float64(sr.N(attackTime)))
	e.decayCoef = expCoef(decay*float64(sr))
	e.releaseCoef = expCoef(float64(sr.N(releaseTime)))
}

// expCoef falls to -60 dB over n samples
func expCoef(n float64) float64 {
	if n < 1 {
		return 0
	}
	return math.Exp(math.Log(0.001) / n)
}

func (e *envelope) trigger() {
	e.stage = envAttack
}

func (e *envelope) release() {
	if e.stage != envIdle {
		e.stage = envRelease
	}
}

func (e *envelope) next() float64 {
	switch e.stage {
	case envAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.stage = envDecay
		}
	case envDecay:
		e.level *= e.decayCoef
		if e.level < silence {
			e.level = 0
			e.stage = envIdle
		}
	case envRelease:
		e.level *= e.releaseCoef
		if e.level < silence {
			e.level = 0
			e.stage = envIdle
		}
	}
	return e.level
}

// ramp moves linearly to a target over a fixed number of samples
type ramp struct {
	value, target, step float64
	left                int
}

func (r *ramp) set(target float64, samples int) {
	r.target = target
	if samples <= 0 {
		r.value, r.left = target, 0
		return
	}
	r.step = (target - r.value) / float64(samples)
	r.left = samples
}

func (r *ramp) next() float64 {
	if r.left > 0 {
		r.value += r.step
		r.left--
		if r.left == 0 {
			r.value = r.target
		}
	}
	return r.value
}

func (r *ramp) moving() bool {
	return r.left > 0
}

// noteEvent is a queued trigger, applied when the render position reaches frame
type noteEvent struct {
	frame    int64
	pitch    int
	velocity float64
	gate     int // samples until release
	slide    bool
}

// Voice is a monophonic acid voice rendered as a beep.Streamer:
// oscillator -> envelope lowpass -> ladder filter -> distortion -> gain.
type Voice struct {
	mu sync.Mutex
	sr beep.SampleRate

	pos   int64
	queue []noteEvent

	params Params

	// oscillator
	phase      float64
	logFreq    float64
	glideStep  float64
	glideLeft  int
	hasPitch   bool
	velocity   float64
	gateLeft   int
	ampEnv     envelope
	filterEnv  envelope
	envFilter  *biquad.Section
	ladder     *moog.Filter
	distortion *effects.Distortion
	cutoff     ramp
	gain       ramp
	ctrlLeft   int

	err error // first DSP setter failure while rendering
}

// NewVoice builds the DSP chain at sample rate sr
func NewVoice(sr beep.SampleRate, params Params) (*Voice, error) {
	params = params.Clamp()
	rate := float64(sr)

	ladder, err := moog.New(rate,
		moog.WithCutoffHz(ladderCutoff(params.Cutoff, rate)),
		moog.WithResonance(ladderResonance(params.Resonance)),
	)
	if err != nil {
		return nil, err
	}
	dist, err := effects.NewDistortion(rate,
		effects.WithDistortionMode(effects.DistortionModeTanh),
		effects.WithDistortionDrive(distortionDrive(params.Distortion)),
		effects.WithDistortionMix(params.Distortion),
	)
	if err != nil {
		return nil, err
	}

	v := &Voice{
		sr:         sr,
		params:     params,
		envFilter:  biquad.NewSection(design.Lowpass(filterEnvBase, filterEnvQ, rate)),
		ladder:     ladder,
		distortion: dist,
	}
	v.cutoff.set(params.Cutoff, 0)
	v.gain.set(dbToGain(params.GainDB()), 0)
	v.ampEnv.configure(sr, params.Decay)
	v.filterEnv.configure(sr, params.Decay)
	return v, nil
}

// SetParams applies a parameter set. Cutoff and gain ramp, the rest is
// immediate. Setters the DSP chain rejects keep their previous value.
func (v *Voice) SetParams(p Params) error {
	p = p.Clamp()

	v.mu.Lock()
	defer v.mu.Unlock()

	v.params = p
	v.cutoff.set(p.Cutoff, v.sr.N(rampTime))
	v.gain.set(dbToGain(p.GainDB()), v.sr.N(rampTime))
	v.ampEnv.configure(v.sr, p.Decay)
	v.filterEnv.configure(v.sr, p.Decay)
	return errors.Join(
		v.ladder.SetResonance(ladderResonance(p.Resonance)),
		v.distortion.SetDrive(distortionDrive(p.Distortion)),
		v.distortion.SetMix(p.Distortion),
	)
}

// Params returns the applied parameter set
func (v *Voice) Params() Params {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.params
}

// Position is the next frame Stream will render
func (v *Voice) Position() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

// Schedule queues a note to start at frame. Frames already rendered start
// at the next sample.
func (v *Voice) Schedule(frame int64, pitch int, gate time.Duration, velocity float64, slide bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if frame < v.pos {
		frame = v.pos
	}
	ev := noteEvent{
		frame:    frame,
		pitch:    pitch,
		velocity: velocity,
		gate:     v.sr.N(gate),
		slide:    slide,
	}
	i := sort.Search(len(v.queue), func(i int) bool { return v.queue[i].frame > frame })
	v.queue = append(v.queue, noteEvent{})
	copy(v.queue[i+1:], v.queue[i:])
	v.queue[i] = ev
}

// Pending returns the number of queued notes
func (v *Voice) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// Release drops queued notes and lets the sounding one ring out
func (v *Voice) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.queue = v.queue[:0]
	v.gateLeft = 0
	v.ampEnv.release()
	v.filterEnv.release()
}

// Sounding reports whether the amplitude envelope is open
func (v *Voice) Sounding() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ampEnv.stage != envIdle
}

// Frequency is the current oscillator frequency in Hz, 0 before the first note
func (v *Voice) Frequency() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hasPitch {
		return 0
	}
	return math.Exp(v.logFreq)
}

// Stream renders mono output into both channels. It never ends.
func (v *Voice) Stream(samples [][2]float64) (n int, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range samples {
		for len(v.queue) > 0 && v.queue[0].frame <= v.pos {
			v.start(v.queue[0])
			v.queue = v.queue[1:]
		}
		s := v.render()
		samples[i][0] = s
		samples[i][1] = s
		v.pos++
	}
	return len(samples), true
}

// Err reports the first cutoff the ladder rejected while rendering
func (v *Voice) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *Voice) setCutoff(hz float64) {
	if err := v.ladder.SetCutoffHz(ladderCutoff(hz, float64(v.sr))); err != nil && v.err == nil {
		v.err = err
	}
}

func (v *Voice) start(ev noteEvent) {
	target := math.Log(midiToFreq(ev.pitch))
	if ev.slide && v.hasPitch {
		v.glideLeft = v.sr.N(glideTime)
		v.glideStep = (target - v.logFreq) / float64(v.glideLeft)
	} else {
		v.logFreq = target
		v.glideLeft = 0
	}
	v.hasPitch = true
	v.velocity = ev.velocity
	v.gateLeft = ev.gate

	// a slide into a sounding note stays legato
	if !ev.slide || v.ampEnv.stage == envIdle || v.ampEnv.stage == envRelease {
		v.ampEnv.trigger()
		v.filterEnv.trigger()
	}
}

func (v *Voice) render() float64 {
	if v.ctrlLeft <= 0 {
		v.control()
		v.ctrlLeft = controlBlock
	}
	v.ctrlLeft--

	cutoffMoving := v.cutoff.moving()
	v.cutoff.next()
	if cutoffMoving && !v.cutoff.moving() {
		v.setCutoff(v.cutoff.value)
	}
	gain := v.gain.next()

	if v.gateLeft > 0 {
		v.gateLeft--
		if v.gateLeft == 0 {
			v.ampEnv.release()
			v.filterEnv.release()
		}
	}

	if v.glideLeft > 0 {
		v.logFreq += v.glideStep
		v.glideLeft--
	}

	amp := v.ampEnv.next()
	v.filterEnv.next()
	if amp == 0 && v.ampEnv.stage == envIdle {
		return 0
	}

	x := v.oscillator()
	x = v.envFilter.ProcessSample(x)
	x = v.ladder.ProcessSample(x)
	x = v.distortion.ProcessSample(x)
	return x * amp * v.velocity * gain
}

// control updates the filter coefficients once per block
func (v *Voice) control() {
	rate := float64(v.sr)
	env := v.filterEnv.level
	freq := filterEnvBase * math.Pow(2, filterEnvOctaves*env*env)
	v.envFilter.Coefficients = design.Lowpass(math.Min(freq, 0.45*rate), filterEnvQ, rate)
	if v.cutoff.moving() {
		v.setCutoff(v.cutoff.value)
	}
}

func (v *Voice) oscillator() float64 {
	freq := math.Exp(v.logFreq)
	v.phase += freq / float64(v.sr)
	v.phase -= math.Floor(v.phase)

	if v.params.Waveform == WaveSquare {
		if v.phase < 0.5 {
			return 1
		}
		return -1
	}
	return 2*v.phase - 1
}

func midiToFreq(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// ladderCutoff keeps the ladder below Nyquist
func ladderCutoff(hz, rate float64) float64 {
	return clamp(hz, MinCutoff, 0.45*rate)
}

// ladderResonance maps Q 0-20 onto the ladder's 0-4 feedback range
func ladderResonance(q float64) float64 {
	return clamp(q/5, 0, 4)
}

func distortionDrive(amount float64) float64 {
	return 1 + 19*amount
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
