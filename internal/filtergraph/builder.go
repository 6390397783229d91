package filtergraph

import (
	"fmt"

	"github.com/rs/zerolog"

	"vidforge/internal/compose"
	"vidforge/internal/domain"
	"vidforge/internal/transition"
)

// AssetIndex maps a clip's source URL to the local path the prepare phase
// produced. Visual clips whose source is absent fail the build.
type AssetIndex map[string]string

type builder struct {
	graph  *Graph
	comp   compose.Composition
	assets AssetIndex
	logger zerolog.Logger

	width    int
	height   int
	fps      float64
	duration float64

	current string // running video label, single producer
}

// Build compiles a composed timeline into the instruction graph. The
// graph always carries one synthetic color source and one synthetic
// silence source, so the output has uniform video and audio streams.
func Build(comp compose.Composition, assets AssetIndex, logger zerolog.Logger) (*Graph, error) {
	t := comp.Timeline
	b := &builder{
		graph:    &Graph{},
		comp:     comp,
		assets:   assets,
		logger:   logger,
		width:    t.Resolution.Width,
		height:   t.Resolution.Height,
		fps:      t.FrameRate,
		duration: comp.Envelope,
	}

	b.addBackground()

	for _, lane := range comp.Visual {
		if err := b.addVisualLane(lane); err != nil {
			return nil, err
		}
	}

	out := b.graph.nextLabel("v")
	b.graph.add(Node{Inputs: []string{b.current}, Op: "format", Params: "yuv420p", Output: out})
	b.graph.VideoOut = out

	if err := b.addAudio(); err != nil {
		return nil, err
	}

	removed := b.graph.Optimize()
	if removed > 0 {
		logger.Debug().Int("removed", removed).Msg("filtergraph: dropped duplicate nodes")
	}
	return b.graph, nil
}

// addBackground emits the synthetic color source every composition starts
// from, plus the optional background image.
func (b *builder) addBackground() {
	color := b.comp.Timeline.Background.Color
	if color == "" {
		color = "#000000"
	}
	idx := b.graph.addInput(Input{
		Kind:      InputLavfi,
		Value:     fmt.Sprintf("color=c=%s:s=%dx%d:r=%s", color, b.width, b.height, formatFloat(b.fps)),
		ExtraArgs: []string{"-t", formatFloat(b.duration)},
	})
	base := b.graph.nextLabel("v")
	b.graph.add(Node{
		Inputs: []string{fmt.Sprintf("%d:v", idx)},
		Op:     "setsar",
		Params: "1",
		Output: base,
	})
	b.current = base

	if img := b.comp.Timeline.Background.Image; img != "" {
		if path, ok := b.assets[img]; ok {
			imgIdx := b.graph.addInput(Input{Kind: InputFile, Value: path, ExtraArgs: []string{"-loop", "1", "-t", formatFloat(b.duration)}})
			scaled := b.graph.nextLabel("v")
			b.graph.add(Node{
				Inputs: []string{fmt.Sprintf("%d:v", imgIdx)},
				Op:     "scale",
				Params: fmt.Sprintf("%d:%d", b.width, b.height),
				Output: scaled,
			})
			merged := b.graph.nextLabel("v")
			b.graph.add(Node{Inputs: []string{b.current, scaled}, Op: "overlay", Params: "0:0", Output: merged})
			b.current = merged
		} else {
			b.logger.Warn().Str("src", img).Msg("filtergraph: background image not prepared, using color only")
		}
	}
}

func (b *builder) addVisualLane(lane compose.Lane) error {
	for _, clip := range lane.Track.Clips {
		incoming := blendInto(lane.Blends, clip.ID)
		switch clip.Type {
		case domain.ClipText, domain.ClipHTML:
			if err := b.addTextClip(clip, incoming); err != nil {
				return err
			}
		case domain.ClipVideo, domain.ClipImage, domain.ClipBackground, domain.ClipShape:
			if err := b.addOverlayClip(clip, incoming); err != nil {
				return err
			}
		case domain.ClipAudio:
			// Audio clips on visual tracks are mixed, not drawn; they are
			// collected by addAudio.
			continue
		default:
			return fmt.Errorf("%w: %q (clip %s)", domain.ErrUnknownClipType, clip.Type, clip.ID)
		}
	}
	return nil
}

// addTextClip draws text directly onto the running composite; no separate
// asset input exists for text. An incoming transition becomes an alpha
// ramp on the drawtext node; positional kinds have no drawn-text
// equivalent and fall back to the same fade.
func (b *builder) addTextClip(clip domain.Clip, incoming *transition.Blend) error {
	if path, ok := b.assets[clip.Font.File]; ok {
		clip.Font.File = path
	}
	var alphaExpr string
	if incoming != nil {
		alphaExpr = textFadeAlpha(clip, incoming)
	}
	out := b.graph.nextLabel("v")
	b.graph.add(Node{
		Inputs: []string{b.current},
		Op:     "drawtext",
		Params: drawTextParams(clip, clip.Type == domain.ClipHTML, alphaExpr),
		Output: out,
	})
	b.current = out
	return nil
}

// textFadeAlpha ramps the drawn text from transparent to its resting
// opacity over the blend window. drawtext evaluates the expression in
// timeline time, so the blend window is used as-is.
func textFadeAlpha(clip domain.Clip, bl *transition.Blend) string {
	st := bl.Start
	if st < clip.Start {
		st = clip.Start
	}
	s := formatFloat(st)
	d := formatFloat(bl.Duration)
	rest := formatFloat(clip.OpacityValue())
	return fmt.Sprintf("if(lt(t,%s),0,if(lt(t,%s+%s),%s*(t-%s)/%s,%s))", s, s, d, rest, s, d, rest)
}

// addOverlayClip prepares one clip's source chain and composites it onto
// the running label.
func (b *builder) addOverlayClip(clip domain.Clip, incoming *transition.Blend) error {
	label, err := b.clipSource(clip)
	if err != nil {
		return err
	}

	label, err = b.clipChain(clip, label, incoming)
	if err != nil {
		return err
	}

	// Shift the clip stream onto the timeline clock.
	if clip.Start > 0 {
		shifted := b.graph.nextLabel("v")
		b.graph.add(Node{
			Inputs: []string{label},
			Op:     "setpts",
			Params: fmt.Sprintf("PTS-STARTPTS+%s/TB", formatFloat(clip.Start)),
			Output: shifted,
		})
		label = shifted
	}

	x, y, err := b.overlayPosition(clip, incoming)
	if err != nil {
		return err
	}

	out := b.graph.nextLabel("v")
	b.graph.add(Node{
		Inputs: []string{b.current, label},
		Op:     "overlay",
		Params: fmt.Sprintf("%s:%s:enable='between(t,%s,%s)'",
			x, y, formatFloat(clip.Start), formatFloat(clip.End())),
		Output: out,
	})
	b.current = out
	return nil
}

// clipSource resolves the clip's input slot and returns its raw label.
func (b *builder) clipSource(clip domain.Clip) (string, error) {
	switch clip.Type {
	case domain.ClipVideo:
		path, ok := b.assets[clip.Src]
		if !ok {
			return "", fmt.Errorf("%w: clip %s source %q", domain.ErrAssetUnavailable, clip.ID, clip.Src)
		}
		idx := b.graph.addInput(Input{Kind: InputFile, Value: path})
		label := fmt.Sprintf("%d:v", idx)
		if clip.Trim != nil && (clip.Trim.Start > 0 || clip.Trim.End > 0) {
			end := clip.Trim.End
			if end <= 0 {
				end = clip.Trim.Start + clip.Duration
			}
			trimmed := b.graph.nextLabel("v")
			b.graph.add(Node{
				Inputs: []string{label},
				Op:     "trim",
				Params: fmt.Sprintf("start=%s:end=%s", formatFloat(clip.Trim.Start), formatFloat(end)),
				Output: trimmed,
			})
			reset := b.graph.nextLabel("v")
			b.graph.add(Node{Inputs: []string{trimmed}, Op: "setpts", Params: "PTS-STARTPTS", Output: reset})
			label = reset
		}
		return label, nil

	case domain.ClipImage:
		path, ok := b.assets[clip.Src]
		if !ok {
			return "", fmt.Errorf("%w: clip %s source %q", domain.ErrAssetUnavailable, clip.ID, clip.Src)
		}
		idx := b.graph.addInput(Input{
			Kind:      InputFile,
			Value:     path,
			ExtraArgs: []string{"-loop", "1", "-t", formatFloat(clip.Duration)},
		})
		return fmt.Sprintf("%d:v", idx), nil

	case domain.ClipBackground, domain.ClipShape:
		w, h := b.width, b.height
		if clip.Type == domain.ClipShape {
			w = int(float64(w) * clip.Scale)
			h = int(float64(h) * clip.Scale)
			if w < 1 {
				w = 1
			}
			if h < 1 {
				h = 1
			}
		}
		idx := b.graph.addInput(Input{
			Kind:      InputLavfi,
			Value:     fmt.Sprintf("color=c=%s:s=%dx%d:r=%s", clip.Color, w, h, formatFloat(b.fps)),
			ExtraArgs: []string{"-t", formatFloat(clip.Duration)},
		})
		return fmt.Sprintf("%d:v", idx), nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownClipType, clip.Type)
}

// clipChain applies scale, rotation, effects, opacity, animations and any
// incoming alpha-blend transition to the clip's stream.
func (b *builder) clipChain(clip domain.Clip, label string, incoming *transition.Blend) (string, error) {
	if clip.Scale != 0 && clip.Scale != 1 && clip.Type != domain.ClipShape {
		out := b.graph.nextLabel("v")
		b.graph.add(Node{
			Inputs: []string{label},
			Op:     "scale",
			Params: fmt.Sprintf("iw*%s:ih*%s", formatFloat(clip.Scale), formatFloat(clip.Scale)),
			Output: out,
		})
		label = out
	}

	if clip.Rotation != 0 {
		out := b.graph.nextLabel("v")
		b.graph.add(Node{
			Inputs: []string{label},
			Op:     "rotate",
			Params: fmt.Sprintf("%s*PI/180:fillcolor=none", formatFloat(clip.Rotation)),
			Output: out,
		})
		label = out
	}

	for _, effect := range clip.Effects {
		op, params, err := effectNode(effect)
		if err != nil {
			return "", err
		}
		out := b.graph.nextLabel("v")
		b.graph.add(Node{Inputs: []string{label}, Op: op, Params: params, Output: out})
		label = out
	}

	if op := clip.OpacityValue(); op < 1 {
		fmtOut := b.graph.nextLabel("v")
		b.graph.add(Node{Inputs: []string{label}, Op: "format", Params: "yuva420p", Output: fmtOut})
		out := b.graph.nextLabel("v")
		b.graph.add(Node{
			Inputs: []string{fmtOut},
			Op:     "colorchannelmixer",
			Params: fmt.Sprintf("aa=%s", formatFloat(op)),
			Output: out,
		})
		label = out
	}

	var err error
	label, err = b.applyAnimations(clip, label)
	if err != nil {
		return "", err
	}

	if incoming != nil && isAlphaBlend(incoming.Type) {
		// The incoming transition fades the clip in over the blend window,
		// expressed in the clip's local stream time.
		st := incoming.Start - clip.Start
		if st < 0 {
			st = 0
		}
		fmtOut := b.graph.nextLabel("v")
		b.graph.add(Node{Inputs: []string{label}, Op: "format", Params: "yuva420p", Output: fmtOut})
		out := b.graph.nextLabel("v")
		b.graph.add(Node{
			Inputs: []string{fmtOut},
			Op:     "fade",
			Params: fmt.Sprintf("t=in:st=%s:d=%s:alpha=1", formatFloat(st), formatFloat(incoming.Duration)),
			Output: out,
		})
		label = out
	}

	return label, nil
}

func (b *builder) applyAnimations(clip domain.Clip, label string) (string, error) {
	for _, anim := range clip.Animations {
		dur := anim.Duration
		if anim.Delay+dur > clip.Duration {
			dur = clip.Duration - anim.Delay
			if dur <= 0 {
				b.logger.Warn().Str("clip", clip.ID).Str("animation", string(anim.Type)).
					Msg("filtergraph: animation starts past clip end, skipped")
				continue
			}
			b.logger.Warn().Str("clip", clip.ID).Str("animation", string(anim.Type)).
				Float64("clamped", dur).Msg("filtergraph: animation clamped to clip duration")
		}

		var node Node
		switch anim.Type {
		case domain.AnimFadeIn:
			node = Node{Op: "fade", Params: fmt.Sprintf("t=in:st=%s:d=%s:alpha=1", formatFloat(anim.Delay), formatFloat(dur))}
		case domain.AnimFadeOut:
			st := clip.Duration - dur
			node = Node{Op: "fade", Params: fmt.Sprintf("t=out:st=%s:d=%s:alpha=1", formatFloat(st), formatFloat(dur))}
		case domain.AnimZoom, domain.AnimScaleIn:
			node = Node{Op: "zoompan", Params: b.zoomParams(clip, dur, true)}
		case domain.AnimScaleOut:
			node = Node{Op: "zoompan", Params: b.zoomParams(clip, dur, false)}
		case domain.AnimSlideIn, domain.AnimSlideOut, domain.AnimRotateIn, domain.AnimRotateOut:
			// Position and rotation animations resolve in the overlay
			// expression; nothing on the clip stream itself.
			continue
		default:
			return "", fmt.Errorf("filtergraph: unknown animation type %q on clip %s", anim.Type, clip.ID)
		}
		node.Inputs = []string{label}
		node.Output = b.graph.nextLabel("v")
		b.graph.add(node)
		label = node.Output
	}
	return label, nil
}

// zoomParams mirrors the zoompan idiom used for slow zooms on stills.
func (b *builder) zoomParams(clip domain.Clip, dur float64, in bool) string {
	frames := int(clip.Duration * b.fps)
	if frames < 1 {
		frames = 1
	}
	rate := 0.5 / (dur * b.fps)
	z := fmt.Sprintf("min(1+%s*frame,1.5)", formatFloat(rate))
	if !in {
		z = fmt.Sprintf("max(1.5-%s*frame,1.0)", formatFloat(rate))
	}
	return fmt.Sprintf("z='%s':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%s",
		z, frames, b.width, b.height, formatFloat(b.fps))
}

// overlayPosition yields the overlay x/y, animated when a positional
// transition or slide animation is present.
func (b *builder) overlayPosition(clip domain.Clip, incoming *transition.Blend) (string, string, error) {
	x := formatFloat(clip.Position.X)
	y := formatFloat(clip.Position.Y)

	if incoming != nil && !isAlphaBlend(incoming.Type) {
		switch incoming.Type {
		case domain.TransitionSlide, domain.TransitionPush, domain.TransitionWipe:
			x = slideExpr(clip.Position.X, incoming, b.width)
		default:
			return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownTransition, incoming.Type)
		}
	}

	for _, anim := range clip.Animations {
		switch anim.Type {
		case domain.AnimSlideIn:
			bl := transition.Blend{Start: clip.Start + anim.Delay, Duration: anim.Duration, Direction: "left"}
			x = slideExpr(clip.Position.X, &bl, b.width)
		case domain.AnimSlideOut:
			start := clip.End() - anim.Duration
			x = fmt.Sprintf("if(gte(t,%s),%s+%d*(t-%s)/%s,%s)",
				formatFloat(start), formatFloat(clip.Position.X), b.width,
				formatFloat(start), formatFloat(anim.Duration), formatFloat(clip.Position.X))
		}
	}
	return x, y, nil
}

// slideExpr moves the clip horizontally into place over the blend window.
func slideExpr(targetX float64, bl *transition.Blend, width int) string {
	from := -width
	if bl.Direction == "right" {
		from = width
	}
	s := formatFloat(bl.Start)
	d := formatFloat(bl.Duration)
	tx := formatFloat(targetX)
	p := easedProgress(bl.Easing, fmt.Sprintf("(t-%s)/%s", s, d))
	// before window: offscreen; inside: interpolate; after: resting x
	return fmt.Sprintf("if(lt(t,%s),%d,if(lt(t,%s+%s),%d+(%s-(%d))*%s,%s))",
		s, from, s, d, from, tx, from, p, tx)
}

// easedProgress rewrites a linear [0,1] progress expression with the
// blend's easing curve. Bounce and elastic have no closed expression the
// renderer's parser accepts and stay linear here.
func easedProgress(e domain.EasingType, p string) string {
	switch e {
	case domain.EaseIn:
		return fmt.Sprintf("pow(%s,2)", p)
	case domain.EaseOut:
		return fmt.Sprintf("(1-pow(1-(%s),2))", p)
	case domain.EaseInOut:
		return fmt.Sprintf("if(lt(%s,0.5),2*pow(%s,2),1-pow(-2*(%s)+2,2)/2)", p, p, p)
	default:
		return fmt.Sprintf("(%s)", p)
	}
}

// isAlphaBlend reports whether the transition renders as an alpha fade on
// the incoming clip rather than an animated position.
func isAlphaBlend(t domain.TransitionType) bool {
	switch t {
	case domain.TransitionFade, domain.TransitionCrossfade, domain.TransitionDissolve,
		domain.TransitionZoom, domain.TransitionRotate:
		return true
	}
	return false
}

func blendInto(blends []transition.Blend, clipID string) *transition.Blend {
	for i := range blends {
		if blends[i].ToClip == clipID {
			return &blends[i]
		}
	}
	return nil
}
