package filtergraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vidforge/internal/compose"
	"vidforge/internal/domain"
	"vidforge/internal/transition"
)

func baseTimeline(tracks ...domain.Track) domain.Timeline {
	return domain.Timeline{
		DurationSeconds: 10,
		FrameRate:       30,
		Resolution:      domain.Resolution{Width: 1920, Height: 1080},
		Background:      domain.Background{Color: "#000000"},
		Tracks:          tracks,
	}
}

func composeTimeline(t *testing.T, tl domain.Timeline) compose.Composition {
	t.Helper()
	return compose.Compose(tl, transition.DefaultOptions(), zerolog.Nop())
}

func TestBuildMinimalTimeline(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "c1", Type: domain.ClipImage, Src: "https://cdn/x.png", Start: 0, Duration: 5, Scale: 1},
		},
	})
	assets := AssetIndex{"https://cdn/x.png": "/tmp/work/x.png"}

	g, err := Build(composeTimeline(t, tl), assets, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.VideoOut == "" || g.AudioOut == "" {
		t.Fatalf("outputs = video %q audio %q, want both set", g.VideoOut, g.AudioOut)
	}
	// color background, the image, and the silence bed
	if len(g.Inputs) != 3 {
		t.Fatalf("inputs = %d, want 3", len(g.Inputs))
	}
	if g.Inputs[0].Kind != InputLavfi || !strings.HasPrefix(g.Inputs[0].Value, "color=") {
		t.Fatalf("input 0 = %+v, want lavfi color source", g.Inputs[0])
	}
	if g.Inputs[1].Kind != InputFile || g.Inputs[1].Value != "/tmp/work/x.png" {
		t.Fatalf("input 1 = %+v, want prepared image path", g.Inputs[1])
	}

	fc := g.FilterComplex()
	if !strings.Contains(fc, "overlay") {
		t.Fatalf("filter graph missing overlay: %s", fc)
	}
	if !strings.Contains(fc, "enable='between(t,0,5)'") {
		t.Fatalf("filter graph missing display window: %s", fc)
	}
}

func TestBuildTextClipDrawsOnComposite(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "t",
		Type: domain.TrackText,
		Clips: []domain.Clip{
			{ID: "t1", Type: domain.ClipText, Text: "Hello", Start: 1, Duration: 3, Scale: 1},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	if !strings.Contains(fc, "drawtext=text='Hello'") {
		t.Fatalf("filter graph missing drawtext: %s", fc)
	}
	if !strings.Contains(fc, "between(t\\,1\\,4)") {
		t.Fatalf("drawtext missing time window: %s", fc)
	}
}

func TestBuildOverlappingTextClipsFadeIn(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "t",
		Type: domain.TrackText,
		Clips: []domain.Clip{
			{ID: "t1", Type: domain.ClipText, Text: "first", Start: 0, Duration: 5, Scale: 1},
			{ID: "t2", Type: domain.ClipText, Text: "second", Start: 4, Duration: 5, Scale: 1},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	if !strings.Contains(fc, "drawtext=text='second'") {
		t.Fatalf("second text clip missing: %s", fc)
	}
	// the overlap window [4,5) ramps the second clip's alpha from 0 to 1
	if !strings.Contains(fc, "alpha='if(lt(t\\,4)\\,0\\,if(lt(t\\,4+1)\\,1*(t-4)/1\\,1))'") {
		t.Fatalf("text fade alpha expression missing: %s", fc)
	}
}

func TestBuildMissingAssetFails(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "c1", Type: domain.ClipVideo, Src: "https://cdn/gone.mp4", Start: 0, Duration: 5, Scale: 1},
		},
	})

	_, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if !errors.Is(err, domain.ErrAssetUnavailable) {
		t.Fatalf("err = %v, want ErrAssetUnavailable", err)
	}
}

func TestBuildUnknownClipTypeFails(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "c1", Type: domain.ClipType("hologram"), Start: 0, Duration: 5, Scale: 1},
		},
	})

	_, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if !errors.Is(err, domain.ErrUnknownClipType) {
		t.Fatalf("err = %v, want ErrUnknownClipType", err)
	}
}

func TestBuildUnknownEffectFails(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{
				ID: "c1", Type: domain.ClipImage, Src: "u", Start: 0, Duration: 5, Scale: 1,
				Effects: []domain.Effect{{Type: domain.EffectType("glitter")}},
			},
		},
	})

	_, err := Build(composeTimeline(t, tl), AssetIndex{"u": "/tmp/u.png"}, zerolog.Nop())
	if !errors.Is(err, domain.ErrUnknownEffectType) {
		t.Fatalf("err = %v, want ErrUnknownEffectType", err)
	}
}

func TestBuildEffectsChainInOrder(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{
				ID: "c1", Type: domain.ClipImage, Src: "u", Start: 0, Duration: 5, Scale: 1,
				Effects: []domain.Effect{
					{Type: domain.EffectBlur, Strength: 0.5},
					{Type: domain.EffectGrayscale},
				},
			},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{"u": "/tmp/u.png"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	blurAt := strings.Index(fc, "boxblur")
	grayAt := strings.Index(fc, "hue=s=0")
	if blurAt < 0 || grayAt < 0 || blurAt > grayAt {
		t.Fatalf("effects out of order: blur@%d gray@%d in %s", blurAt, grayAt, fc)
	}
}

func TestBuildOpacityAddsAlphaNodes(t *testing.T) {
	op := 0.5
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "c1", Type: domain.ClipImage, Src: "u", Start: 0, Duration: 5, Scale: 1, Opacity: &op},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{"u": "/tmp/u.png"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	if !strings.Contains(fc, "format=yuva420p") || !strings.Contains(fc, "colorchannelmixer=aa=0.5") {
		t.Fatalf("opacity chain missing: %s", fc)
	}
}

func TestBuildOverlapEmitsAlphaFade(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "a", Type: domain.ClipImage, Src: "a", Start: 0, Duration: 10, Scale: 1},
			{ID: "b", Type: domain.ClipImage, Src: "b", Start: 9, Duration: 10, Scale: 1},
		},
	})
	assets := AssetIndex{"a": "/tmp/a.png", "b": "/tmp/b.png"}

	g, err := Build(composeTimeline(t, tl), assets, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	// the dissolve window [9,10) lands at local time 0 of the second clip
	if !strings.Contains(fc, "fade=t=in:st=0:d=1:alpha=1") {
		t.Fatalf("incoming blend fade missing: %s", fc)
	}
}

func TestBuildSlideTransitionAnimatesOverlay(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{
				ID: "a", Type: domain.ClipImage, Src: "a", Start: 0, Duration: 5, Scale: 1,
				Transition: &domain.Transition{Type: domain.TransitionSlide, Duration: 1, Direction: "left"},
			},
			{ID: "b", Type: domain.ClipImage, Src: "b", Start: 4, Duration: 5, Scale: 1},
		},
	})
	assets := AssetIndex{"a": "/tmp/a.png", "b": "/tmp/b.png"}

	g, err := Build(composeTimeline(t, tl), assets, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	if !strings.Contains(fc, "if(lt(t,4)") {
		t.Fatalf("slide overlay expression missing: %s", fc)
	}
}

func TestBuildAudioClipChain(t *testing.T) {
	vol := 0.8
	tl := baseTimeline(domain.Track{
		ID:   "a",
		Type: domain.TrackAudio,
		Clips: []domain.Clip{
			{
				ID: "m1", Type: domain.ClipAudio, Src: "song", Start: 2, Duration: 6,
				Volume: &vol,
				Trim:   &domain.Trim{Start: 10, End: 16},
				Animations: []domain.Animation{
					{Type: domain.AnimFadeIn, Duration: 1},
				},
			},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{"song": "/tmp/song.mp3"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	for _, want := range []string{
		"atrim=start=10:end=16",
		"volume=0.8",
		"afade=t=in:st=0:d=1",
		"adelay=2000:all=1",
		"amix=inputs=2",
	} {
		if !strings.Contains(fc, want) {
			t.Fatalf("audio chain missing %q: %s", want, fc)
		}
	}
	if g.AudioOut == "" {
		t.Fatalf("AudioOut empty")
	}
}

func TestBuildSilenceOnlyAudio(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "t",
		Type: domain.TrackText,
		Clips: []domain.Clip{
			{ID: "t1", Type: domain.ClipText, Text: "hi", Start: 0, Duration: 2, Scale: 1},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.AudioOut == "" {
		t.Fatalf("AudioOut empty, want silence bed")
	}
	var silence bool
	for _, in := range g.Inputs {
		if in.Kind == InputLavfi && strings.HasPrefix(in.Value, "anullsrc") {
			silence = true
		}
	}
	if !silence {
		t.Fatalf("no silence source among inputs: %+v", g.Inputs)
	}
}

func TestBuildSoundtrackMixedIn(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "v",
		Type: domain.TrackVideo,
		Clips: []domain.Clip{
			{ID: "c1", Type: domain.ClipImage, Src: "u", Start: 0, Duration: 8, Scale: 1},
		},
	})
	tl.Soundtrack = &domain.Soundtrack{Src: "music", Volume: 0.4, FadeOut: 2}
	assets := AssetIndex{"u": "/tmp/u.png", "music": "/tmp/music.mp3"}

	g, err := Build(composeTimeline(t, tl), assets, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fc := g.FilterComplex()
	if !strings.Contains(fc, "volume=0.4") {
		t.Fatalf("soundtrack volume missing: %s", fc)
	}
	if !strings.Contains(fc, "afade=t=out") {
		t.Fatalf("soundtrack fade out missing: %s", fc)
	}
}

func TestBuildBackgroundClipUsesColorSource(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "bg",
		Type: domain.TrackBackground,
		Clips: []domain.Clip{
			{ID: "b1", Type: domain.ClipBackground, Color: "#ff0000", Start: 0, Duration: 4, Scale: 1},
		},
	})

	g, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var found bool
	for _, in := range g.Inputs {
		if in.Kind == InputLavfi && strings.Contains(in.Value, "c=#ff0000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no color source for background clip: %+v", g.Inputs)
	}
}

func TestBuildKeepsDistinctInputChains(t *testing.T) {
	// identical stills still consume distinct input slots, so their chains
	// survive the dedupe pass
	clip := domain.Clip{ID: "c", Type: domain.ClipImage, Src: "u", Start: 0, Duration: 5, Scale: 0.5}
	clip2 := clip
	clip2.ID = "c2"
	tl := baseTimeline(
		domain.Track{ID: "v1", Type: domain.TrackVideo, Clips: []domain.Clip{clip}},
		domain.Track{ID: "v2", Type: domain.TrackVideo, Clips: []domain.Clip{clip2}},
	)

	g, err := Build(composeTimeline(t, tl), AssetIndex{"u": "/tmp/u.png"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var scales int
	for _, n := range g.Nodes {
		if n.Op == "scale" && n.Params == "iw*0.5:ih*0.5" {
			scales++
		}
	}
	if scales != 2 {
		t.Fatalf("scale nodes = %d, want 2 (distinct input streams survive)", scales)
	}
}

func TestBuildFinalVideoIsYUV420(t *testing.T) {
	tl := baseTimeline(domain.Track{
		ID:   "t",
		Type: domain.TrackText,
		Clips: []domain.Clip{
			{ID: "t1", Type: domain.ClipText, Text: "x", Start: 0, Duration: 2, Scale: 1},
		},
	})
	g, err := Build(composeTimeline(t, tl), AssetIndex{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var final Node
	for _, n := range g.Nodes {
		if n.Output == g.VideoOut {
			final = n
		}
	}
	if final.Op != "format" || final.Params != "yuv420p" {
		t.Fatalf("final video node = %+v, want format=yuv420p", final)
	}
}
