package timeline

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

const (
	minClipDuration     = 0.1
	minClipScale        = 0.1
	minTimelineDuration = 1.0

	defaultWidth  = 1920
	defaultHeight = 1080
	defaultFPS    = 30.0
)

// ValidationError aggregates every structural problem found in a raw
// timeline. Normalization is all-or-nothing: either a complete normalized
// timeline is returned or the full problem list.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid timeline: %s", strings.Join(e.Problems, "; "))
}

// Report carries normalization diagnostics. Removals and warnings never
// fail a job on their own.
type Report struct {
	RemovedClips int
	Warnings     []string
}

// Normalize validates a raw timeline, fills defaults, infers clip types,
// drops degenerate clips and recomputes the timeline duration. The input
// value is not modified.
func Normalize(raw domain.Timeline, logger zerolog.Logger) (domain.Timeline, Report, error) {
	var report Report

	if problems := validate(raw); len(problems) > 0 {
		return domain.Timeline{}, report, &ValidationError{Problems: problems}
	}

	t := raw
	if t.Resolution.Width <= 0 {
		t.Resolution.Width = defaultWidth
	}
	if t.Resolution.Height <= 0 {
		t.Resolution.Height = defaultHeight
	}
	if t.FrameRate <= 0 {
		t.FrameRate = defaultFPS
	}
	t.Background.Color = NormalizeColor(t.Background.Color, "#000000")

	tracks := make([]domain.Track, 0, len(raw.Tracks))
	for ti, track := range raw.Tracks {
		if track.ID == "" {
			track.ID = fmt.Sprintf("track-%d", ti+1)
		}
		if track.Name == "" {
			track.Name = track.ID
		}
		if track.Type == "" {
			track.Type = domain.TrackVideo
		}

		clips := make([]domain.Clip, 0, len(track.Clips))
		for ci, clip := range track.Clips {
			if clip.Duration <= 0 {
				report.RemovedClips++
				logger.Debug().
					Str("track", track.ID).
					Int("clip", ci).
					Msg("normalize: dropping clip with non-positive duration")
				continue
			}
			clips = append(clips, normalizeClip(clip, track, ti, ci, &report))
		}

		sort.SliceStable(clips, func(i, j int) bool {
			if clips[i].Start != clips[j].Start {
				return clips[i].Start < clips[j].Start
			}
			return clips[i].ZIndex < clips[j].ZIndex
		})

		track.Clips = clips
		tracks = append(tracks, track)
	}
	t.Tracks = tracks

	t.DurationSeconds = computeDuration(t)

	optimize(&t, &report, logger)

	return t, report, nil
}

func validate(t domain.Timeline) []string {
	var problems []string
	if len(t.Tracks) == 0 {
		problems = append(problems, "timeline must declare at least one track")
	}
	for i, track := range t.Tracks {
		if track.Clips == nil {
			problems = append(problems, fmt.Sprintf("track %d is missing a clips array", i))
		}
		switch track.Type {
		case "", domain.TrackBackground, domain.TrackVideo, domain.TrackAudio, domain.TrackText, domain.TrackOverlay:
		default:
			problems = append(problems, fmt.Sprintf("track %d has unknown type %q", i, track.Type))
		}
		for j, clip := range track.Clips {
			if clip.Type == "" && clip.Src == "" && clip.Text == "" && clip.HTML == "" && clip.Color == "" {
				problems = append(problems, fmt.Sprintf("track %d clip %d has no type and no content to infer one from", i, j))
			}
		}
	}
	if t.Soundtrack != nil && t.Soundtrack.Src == "" {
		problems = append(problems, "soundtrack requires src")
	}
	return problems
}

func normalizeClip(clip domain.Clip, track domain.Track, ti, ci int, report *Report) domain.Clip {
	if clip.ID == "" {
		clip.ID = uuid.NewString()
	}
	if clip.Name == "" {
		clip.Name = fmt.Sprintf("%s-clip-%d", track.ID, ci+1)
	}
	if clip.Type == "" {
		clip.Type = inferType(clip, track)
	}

	if clip.Start < 0 {
		clip.Start = 0
	}
	if clip.Duration < minClipDuration {
		clip.Duration = minClipDuration
	}
	if clip.Scale == 0 {
		clip.Scale = 1
	}
	if clip.Scale < minClipScale {
		clip.Scale = minClipScale
	}
	if clip.Opacity != nil {
		v := clamp01(*clip.Opacity)
		clip.Opacity = &v
	}
	if clip.Volume != nil {
		v := clamp01(*clip.Volume)
		clip.Volume = &v
	}

	switch clip.Type {
	case domain.ClipText, domain.ClipHTML:
		clip.Font.Color = NormalizeColor(clip.Font.Color, "#ffffff")
	case domain.ClipBackground, domain.ClipShape:
		clip.Color = NormalizeColor(clip.Color, "#000000")
	}

	for _, anim := range clip.Animations {
		if anim.Delay+anim.Duration > clip.Duration {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"track %d clip %s: %s animation (delay %.2f + duration %.2f) exceeds clip duration %.2f",
				ti, clip.ID, anim.Type, anim.Delay, anim.Duration, clip.Duration))
		}
	}

	return clip
}

func inferType(clip domain.Clip, track domain.Track) domain.ClipType {
	switch {
	case clip.Text != "":
		return domain.ClipText
	case clip.HTML != "":
		return domain.ClipHTML
	case clip.Color != "" && clip.Src == "":
		return domain.ClipBackground
	case clip.Src != "":
		return typeFromExtension(clip.Src, track)
	}
	return trackClipType(track.Type)
}

func typeFromExtension(src string, track domain.Track) domain.ClipType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(stripQuery(src)), "."))
	switch ext {
	case "mp4", "mov", "mkv", "webm", "avi", "m4v":
		return domain.ClipVideo
	case "png", "jpg", "jpeg", "gif", "bmp", "webp":
		return domain.ClipImage
	case "mp3", "wav", "aac", "ogg", "flac", "m4a":
		return domain.ClipAudio
	}
	return trackClipType(track.Type)
}

func stripQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i]
	}
	return src
}

func trackClipType(t domain.TrackType) domain.ClipType {
	switch t {
	case domain.TrackAudio:
		return domain.ClipAudio
	case domain.TrackText:
		return domain.ClipText
	case domain.TrackBackground:
		return domain.ClipBackground
	default:
		return domain.ClipVideo
	}
}

func computeDuration(t domain.Timeline) float64 {
	end := 0.0
	for _, track := range t.Tracks {
		if !track.IsEnabled() {
			continue
		}
		for _, clip := range track.Clips {
			if clip.End() > end {
				end = clip.End()
			}
		}
	}
	if t.Soundtrack != nil && t.Soundtrack.Duration > 0 {
		if e := t.Soundtrack.Start + t.Soundtrack.Duration; e > end {
			end = e
		}
	}
	if end < minTimelineDuration {
		end = minTimelineDuration
	}
	return end
}

// optimize drops clips that can never appear in the output: clips starting
// at or after the computed end, and clips fully contained inside an earlier
// clip on the same track.
func optimize(t *domain.Timeline, report *Report, logger zerolog.Logger) {
	for ti := range t.Tracks {
		track := &t.Tracks[ti]
		kept := track.Clips[:0]
		for _, clip := range track.Clips {
			if clip.Start >= t.DurationSeconds {
				report.RemovedClips++
				logger.Debug().Str("clip", clip.ID).Msg("normalize: dropping clip past timeline end")
				continue
			}
			redundant := false
			for _, prev := range kept {
				if prev.Start <= clip.Start && prev.End() >= clip.End() {
					redundant = true
					break
				}
			}
			if redundant {
				report.RemovedClips++
				logger.Debug().Str("clip", clip.ID).Msg("normalize: dropping clip contained in earlier clip")
				continue
			}
			kept = append(kept, clip)
		}
		track.Clips = kept
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
