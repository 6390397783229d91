package compose

import (
	"sort"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
	"vidforge/internal/transition"
)

// trackPriority fixes the z-order of the final composite: background at
// the bottom, overlay on top. Ties keep declaration order.
var trackPriority = map[domain.TrackType]int{
	domain.TrackBackground: 0,
	domain.TrackVideo:      1,
	domain.TrackAudio:      2,
	domain.TrackText:       3,
	domain.TrackOverlay:    4,
}

// BlendingRule marks a within-track clip overlap the graph builder must
// blend instead of double-drawing.
type BlendingRule struct {
	ClipA     string
	ClipB     string
	Overlap   float64
	BlendType string
}

// Lane is one track prepared for composition: its clips, its resolved
// blend instructions and its priority slot.
type Lane struct {
	Track    domain.Track
	Priority int
	Blends   []transition.Blend
}

// Composition is the deterministic composite order for a whole timeline.
type Composition struct {
	Timeline domain.Timeline
	// Visual lanes in bottom-to-top draw order; Audio lanes are mixed, not
	// drawn.
	Visual []Lane
	Audio  []Lane
	// Envelope is the maximum end time across all tracks; every lane is
	// padded or trimmed to it before the final composite.
	Envelope float64
	Rules    []BlendingRule
}

// Compose orders tracks by priority, resolves per-lane transitions and
// collects inter-clip blending rules.
func Compose(t domain.Timeline, opts transition.Options, logger zerolog.Logger) Composition {
	comp := Composition{Timeline: t}

	type slot struct {
		lane  Lane
		index int
	}
	var slots []slot
	for i, track := range t.Tracks {
		if !track.IsEnabled() || len(track.Clips) == 0 {
			continue
		}
		explicit := explicitForTrack(t.Transitions, track.ID)
		lane := Lane{
			Track:    track,
			Priority: trackPriority[track.Type],
			Blends:   transition.Resolve(track.Clips, explicit, opts, logger),
		}
		slots = append(slots, slot{lane: lane, index: i})

		for _, end := range track.Clips {
			if end.End() > comp.Envelope {
				comp.Envelope = end.End()
			}
		}
		comp.Rules = append(comp.Rules, overlapRules(track)...)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].lane.Priority != slots[j].lane.Priority {
			return slots[i].lane.Priority < slots[j].lane.Priority
		}
		return slots[i].index < slots[j].index
	})

	for _, s := range slots {
		if s.lane.Track.Type == domain.TrackAudio {
			comp.Audio = append(comp.Audio, s.lane)
		} else {
			comp.Visual = append(comp.Visual, s.lane)
		}
	}

	if comp.Envelope < t.DurationSeconds {
		comp.Envelope = t.DurationSeconds
	}
	return comp
}

func explicitForTrack(all []domain.Transition, trackID string) []domain.Transition {
	var out []domain.Transition
	for _, tr := range all {
		if tr.TrackID == "" || tr.TrackID == trackID {
			out = append(out, tr)
		}
	}
	return out
}

// overlapRules records every adjacent pair that shares time on a track.
func overlapRules(track domain.Track) []BlendingRule {
	var rules []BlendingRule
	clips := track.Clips
	for i := 0; i+1 < len(clips); i++ {
		a, b := clips[i], clips[i+1]
		if b.Start < a.End() {
			rules = append(rules, BlendingRule{
				ClipA:     a.ID,
				ClipB:     b.ID,
				Overlap:   a.End() - b.Start,
				BlendType: "crossfade",
			})
		}
	}
	return rules
}
