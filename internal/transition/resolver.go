package transition

import (
	"sort"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

// Options carries the tunable constants of implicit transition detection.
type Options struct {
	// Tolerance is the adjacency window: clip B joins clip A when B starts
	// no later than A's end plus this many seconds.
	Tolerance float64
	// MaxDuration caps an implicit transition's length in seconds.
	MaxDuration float64
	// GapDuration is used when adjacent clips do not overlap; the blend is
	// anchored so it ends exactly at the second clip's start.
	GapDuration float64
}

// DefaultOptions mirrors the historical constants.
func DefaultOptions() Options {
	return Options{Tolerance: 0.5, MaxDuration: 2.0, GapDuration: 0.5}
}

// Blend is a time-windowed blend instruction between two clips on one
// composition lane.
type Blend struct {
	FromClip  string
	ToClip    string
	Type      domain.TransitionType
	Start     float64
	Duration  float64
	Easing    domain.EasingType
	Direction string
	Implicit  bool
}

// End is the blend's exclusive end time.
func (b Blend) End() float64 { return b.Start + b.Duration }

// Resolve produces ordered blend instructions for one track's clip list,
// which must already be sorted by (start, zIndex). Explicit transitions
// take precedence over implicit detection for the same pair.
func Resolve(clips []domain.Clip, explicit []domain.Transition, opts Options, logger zerolog.Logger) []Blend {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultOptions().MaxDuration
	}
	if opts.GapDuration <= 0 {
		opts.GapDuration = DefaultOptions().GapDuration
	}

	var blends []Blend
	for i := 0; i+1 < len(clips); i++ {
		a, b := clips[i], clips[i+1]
		if b.Start > a.End()+opts.Tolerance {
			continue
		}

		if t, ok := explicitFor(explicit, a, b); ok {
			blends = append(blends, materialize(t, a, b, opts, false))
			continue
		}
		if a.Transition != nil {
			blends = append(blends, materialize(*a.Transition, a, b, opts, false))
			continue
		}
		blends = append(blends, materialize(domain.Transition{Type: implicitType(a.Type, b.Type)}, a, b, opts, true))
	}

	sort.SliceStable(blends, func(i, j int) bool { return blends[i].Start < blends[j].Start })

	// Adjacent blends must not overlap in time: shorten the earlier one and
	// say so.
	trimmed := blends[:0]
	for i := 0; i < len(blends); i++ {
		bl := blends[i]
		if i+1 < len(blends) && bl.End() > blends[i+1].Start {
			adjusted := blends[i+1].Start - bl.Start
			logger.Info().
				Str("from", bl.FromClip).
				Str("to", bl.ToClip).
				Float64("duration", bl.Duration).
				Float64("adjusted", adjusted).
				Msg("transition: shortened to avoid overlap with next transition")
			bl.Duration = adjusted
		}
		if bl.Duration <= 0 {
			logger.Info().
				Str("from", bl.FromClip).
				Str("to", bl.ToClip).
				Msg("transition: dropped after overlap adjustment left no window")
			continue
		}
		trimmed = append(trimmed, bl)
	}
	return trimmed
}

func explicitFor(explicit []domain.Transition, a, b domain.Clip) (domain.Transition, bool) {
	for _, t := range explicit {
		if t.FromClip != "" && t.FromClip == a.ID && t.ToClip == b.ID {
			return t, true
		}
	}
	return domain.Transition{}, false
}

// implicitType picks the blend kind from the pair of clip kinds.
func implicitType(a, b domain.ClipType) domain.TransitionType {
	switch {
	case a == domain.ClipText && b == domain.ClipText:
		return domain.TransitionFade
	case a == domain.ClipImage && b == domain.ClipImage:
		return domain.TransitionDissolve
	case a == domain.ClipVideo && b == domain.ClipVideo:
		return domain.TransitionCrossfade
	default:
		return domain.TransitionCrossfade
	}
}

func materialize(t domain.Transition, a, b domain.Clip, opts Options, implicit bool) Blend {
	overlap := a.End() - b.Start
	if overlap < 0 {
		overlap = 0
	}

	duration := t.Duration
	if duration <= 0 {
		if overlap > 0 {
			duration = overlap
		} else {
			duration = opts.GapDuration
		}
	}
	if overlap > 0 && duration > overlap {
		duration = overlap
	}
	if duration > opts.MaxDuration {
		duration = opts.MaxDuration
	}

	start := b.Start
	if overlap == 0 {
		// No shared window: end exactly at B's start.
		start = b.Start - duration
		if start < 0 {
			start = 0
			duration = b.Start
		}
	}

	easing := t.Easing
	if easing == "" {
		easing = domain.EaseLinear
	}

	return Blend{
		FromClip:  a.ID,
		ToClip:    b.ID,
		Type:      t.Type,
		Start:     start,
		Duration:  duration,
		Easing:    easing,
		Direction: t.Direction,
		Implicit:  implicit,
	}
}
