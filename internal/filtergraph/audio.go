package filtergraph

import (
	"fmt"

	"vidforge/internal/compose"
	"vidforge/internal/domain"
)

const silenceSpec = "anullsrc=channel_layout=stereo:sample_rate=44100"

// addAudio wires every audio source into a single mixed output. A silence
// bed spanning the envelope is always present, so the renderer can map an
// audio stream unconditionally.
func (b *builder) addAudio() error {
	silenceIdx := b.graph.addInput(Input{
		Kind:      InputLavfi,
		Value:     silenceSpec,
		ExtraArgs: []string{"-t", formatFloat(b.duration)},
	})
	mix := []string{fmt.Sprintf("%d:a", silenceIdx)}

	for _, lane := range b.audioLanes() {
		label, err := b.trackAudio(lane)
		if err != nil {
			return err
		}
		if label != "" {
			mix = append(mix, label)
		}
	}

	if st := b.comp.Timeline.Soundtrack; st != nil && st.Src != "" {
		label, err := b.soundtrackChain(st)
		if err != nil {
			return err
		}
		mix = append(mix, label)
	}

	if len(mix) == 1 {
		out := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: mix, Op: "anull", Output: out})
		b.graph.AudioOut = out
		return nil
	}

	out := b.graph.nextLabel("a")
	b.graph.add(Node{
		Inputs: mix,
		Op:     "amix",
		Params: fmt.Sprintf("inputs=%d:duration=longest:dropout_transition=0", len(mix)),
		Output: out,
	})
	b.graph.AudioOut = out
	return nil
}

// audioLanes yields the dedicated audio lanes plus synthetic lanes for
// audio clips declared on visual tracks.
func (b *builder) audioLanes() []compose.Lane {
	lanes := append([]compose.Lane(nil), b.comp.Audio...)
	for _, lane := range b.comp.Visual {
		var strays []domain.Clip
		for _, clip := range lane.Track.Clips {
			if clip.Type == domain.ClipAudio {
				strays = append(strays, clip)
			}
		}
		if len(strays) > 0 {
			lanes = append(lanes, compose.Lane{
				Track: domain.Track{ID: lane.Track.ID + "-audio", Type: domain.TrackAudio, Clips: strays},
			})
		}
	}
	return lanes
}

// trackAudio mixes one track's clips down to a single label. Returns an
// empty label for a track with no audio clips.
func (b *builder) trackAudio(lane compose.Lane) (string, error) {
	var labels []string
	for _, clip := range lane.Track.Clips {
		if clip.Type != domain.ClipAudio {
			continue
		}
		label, err := b.audioClipChain(clip)
		if err != nil {
			return "", err
		}
		labels = append(labels, label)
	}
	switch len(labels) {
	case 0:
		return "", nil
	case 1:
		return labels[0], nil
	}
	out := b.graph.nextLabel("a")
	b.graph.add(Node{
		Inputs: labels,
		Op:     "amix",
		Params: fmt.Sprintf("inputs=%d:duration=longest:dropout_transition=0", len(labels)),
		Output: out,
	})
	return out, nil
}

// audioClipChain trims, delays, scales and fades one audio clip.
func (b *builder) audioClipChain(clip domain.Clip) (string, error) {
	path, ok := b.assets[clip.Src]
	if !ok {
		return "", fmt.Errorf("%w: clip %s source %q", domain.ErrAssetUnavailable, clip.ID, clip.Src)
	}
	idx := b.graph.addInput(Input{Kind: InputFile, Value: path})
	label := fmt.Sprintf("%d:a", idx)

	if clip.Trim != nil && (clip.Trim.Start > 0 || clip.Trim.End > 0) {
		end := clip.Trim.End
		if end <= 0 {
			end = clip.Trim.Start + clip.Duration
		}
		trimmed := b.graph.nextLabel("a")
		b.graph.add(Node{
			Inputs: []string{label},
			Op:     "atrim",
			Params: fmt.Sprintf("start=%s:end=%s", formatFloat(clip.Trim.Start), formatFloat(end)),
			Output: trimmed,
		})
		reset := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: []string{trimmed}, Op: "asetpts", Params: "PTS-STARTPTS", Output: reset})
		label = reset
	}

	if vol := clip.VolumeValue(); vol != 1 {
		out := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: []string{label}, Op: "volume", Params: formatFloat(vol), Output: out})
		label = out
	}

	for _, anim := range clip.Animations {
		var node Node
		switch anim.Type {
		case domain.AnimFadeIn:
			node = Node{Op: "afade", Params: fmt.Sprintf("t=in:st=%s:d=%s", formatFloat(anim.Delay), formatFloat(anim.Duration))}
		case domain.AnimFadeOut:
			st := clip.Duration - anim.Duration
			if st < 0 {
				st = 0
			}
			node = Node{Op: "afade", Params: fmt.Sprintf("t=out:st=%s:d=%s", formatFloat(st), formatFloat(anim.Duration))}
		default:
			continue
		}
		node.Inputs = []string{label}
		node.Output = b.graph.nextLabel("a")
		b.graph.add(node)
		label = node.Output
	}

	if clip.Start > 0 {
		ms := int(clip.Start * 1000)
		out := b.graph.nextLabel("a")
		b.graph.add(Node{
			Inputs: []string{label},
			Op:     "adelay",
			Params: fmt.Sprintf("%d:all=1", ms),
			Output: out,
		})
		label = out
	}

	return label, nil
}

// soundtrackChain prepares the timeline-wide music bed.
func (b *builder) soundtrackChain(st *domain.Soundtrack) (string, error) {
	path, ok := b.assets[st.Src]
	if !ok {
		return "", fmt.Errorf("%w: soundtrack source %q", domain.ErrAssetUnavailable, st.Src)
	}
	idx := b.graph.addInput(Input{Kind: InputFile, Value: path})
	label := fmt.Sprintf("%d:a", idx)

	dur := st.Duration
	if dur <= 0 || dur > b.duration {
		dur = b.duration
	}
	trimmed := b.graph.nextLabel("a")
	b.graph.add(Node{
		Inputs: []string{label},
		Op:     "atrim",
		Params: fmt.Sprintf("start=%s:end=%s", formatFloat(st.Start), formatFloat(st.Start+dur)),
		Output: trimmed,
	})
	reset := b.graph.nextLabel("a")
	b.graph.add(Node{Inputs: []string{trimmed}, Op: "asetpts", Params: "PTS-STARTPTS", Output: reset})
	label = reset

	if st.Volume != 0 && st.Volume != 1 {
		out := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: []string{label}, Op: "volume", Params: formatFloat(st.Volume), Output: out})
		label = out
	}
	if st.FadeIn > 0 {
		out := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: []string{label}, Op: "afade", Params: fmt.Sprintf("t=in:st=0:d=%s", formatFloat(st.FadeIn)), Output: out})
		label = out
	}
	if st.FadeOut > 0 {
		fadeStart := dur - st.FadeOut
		if fadeStart < 0 {
			fadeStart = 0
		}
		out := b.graph.nextLabel("a")
		b.graph.add(Node{Inputs: []string{label}, Op: "afade", Params: fmt.Sprintf("t=out:st=%s:d=%s", formatFloat(fadeStart), formatFloat(st.FadeOut)), Output: out})
		label = out
	}
	return label, nil
}
