// Package generate turns a free-text description into a pattern.
//
// A Source (an LLM, a test fake) proposes raw steps; Pattern sanitizes them
// into a valid pattern.Pattern or falls back to a deterministic random
// pattern seeded by the text when the source fails.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-acid/pattern"
)

var (
	ErrNoSource  = errors.New("no pattern source configured")
	ErrEmpty     = errors.New("source returned no steps")
	ErrMalformed = errors.New("malformed pattern response")
)

// Tag attached to every generation failure, so the UI can pick it out
const TagFallback ftag.Kind = "generate_fallback"

// Source proposes steps for a description
type Source interface {
	Generate(ctx context.Context, text string) ([]RawStep, error)
}

// RawStep is a step as proposed by a Source, before validation.
// Missing fields decode as false / 0.
type RawStep struct {
	Active    Truthy  `json:"active"`
	NoteIndex float64 `json:"noteIndex"`
	Accent    Truthy  `json:"accent"`
	Slide     Truthy  `json:"slide"`
}

// Truthy decodes any JSON value into a bool: false, 0, "", null are false,
// everything else is true.
type Truthy bool

func (t *Truthy) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = false
	case bool:
		*t = Truthy(x)
	case float64:
		*t = Truthy(x != 0 && !math.IsNaN(x))
	case string:
		*t = x != ""
	default:
		*t = true
	}
	return nil
}

// Decode parses a JSON array of steps, tolerating a surrounding code fence
func Decode(data []byte) ([]RawStep, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("```")) {
		data = bytes.TrimPrefix(data, []byte("```json"))
		data = bytes.TrimPrefix(data, []byte("```"))
		data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte("```"))
	}

	var steps []RawStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fault.Wrap(errors.Join(ErrMalformed, err), fmsg.With("decode steps"))
	}
	return steps, nil
}

// Sanitize converts raw steps into a pattern: pitch clamped to 0..11,
// truncated or padded with inactive steps to 16.
func Sanitize(raw []RawStep) pattern.Pattern {
	var p pattern.Pattern
	for i := 0; i < pattern.NumSteps && i < len(raw); i++ {
		r := raw[i]
		pc := 0
		if !math.IsNaN(r.NoteIndex) {
			pc = pattern.ClampPitch(int(math.Max(-1, math.Min(pattern.NumPitches, math.Floor(r.NoteIndex)))))
		}
		p[i] = pattern.Step{
			Active:     bool(r.Active),
			PitchClass: pc,
			Accent:     bool(r.Accent),
			Slide:      bool(r.Slide),
		}
	}
	return p
}

// Fallback returns a random-looking pattern that is stable for a given text
func Fallback(text string) pattern.Pattern {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	var p pattern.Pattern
	for i := range p {
		p[i] = pattern.Step{
			Active:     rng.Float64() > 0.3,
			PitchClass: rng.Intn(pattern.NumPitches),
			Accent:     rng.Float64() > 0.8,
			Slide:      rng.Float64() > 0.8,
		}
	}
	return p
}

// Pattern asks src for a pattern matching text. On any failure it returns
// the fallback pattern along with the cause; the pattern is always usable.
func Pattern(ctx context.Context, src Source, text string) (pattern.Pattern, error) {
	if src == nil {
		return Fallback(text), fault.Wrap(ErrNoSource,
			ftag.With(TagFallback),
			fmsg.WithDesc("no source", "No generator configured, using a random pattern"))
	}

	raw, err := src.Generate(ctx, text)
	if err != nil {
		return Fallback(text), fault.Wrap(err,
			ftag.With(TagFallback),
			fmsg.WithDesc("generate pattern", "Generation failed, using a random pattern"))
	}
	if len(raw) == 0 {
		return Fallback(text), fault.Wrap(ErrEmpty,
			ftag.With(TagFallback),
			fmsg.WithDesc("empty response", "Generator returned nothing, using a random pattern"))
	}

	return Sanitize(raw), nil
}
