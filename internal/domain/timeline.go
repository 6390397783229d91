package domain

// ClipType enumerates the clip kinds a track may carry.
type ClipType string

const (
	ClipVideo      ClipType = "video"
	ClipImage      ClipType = "image"
	ClipAudio      ClipType = "audio"
	ClipText       ClipType = "text"
	ClipHTML       ClipType = "html"
	ClipBackground ClipType = "background"
	ClipShape      ClipType = "shape"
)

// TrackType enumerates the composition lanes, ordered by priority elsewhere.
type TrackType string

const (
	TrackBackground TrackType = "background"
	TrackVideo      TrackType = "video"
	TrackAudio      TrackType = "audio"
	TrackText       TrackType = "text"
	TrackOverlay    TrackType = "overlay"
)

// Timeline is the declarative document a render job carries. Duration is
// advisory on input; the normalizer always recomputes it from clip end times.
type Timeline struct {
	DurationSeconds float64          `json:"durationSeconds,omitempty"`
	FrameRate       float64          `json:"frameRate,omitempty"`
	Resolution      Resolution       `json:"resolution,omitempty"`
	Background      Background       `json:"background,omitempty"`
	Soundtrack      *Soundtrack      `json:"soundtrack,omitempty"`
	Tracks          []Track          `json:"tracks"`
	Transitions     []Transition     `json:"transitions,omitempty"`
	MergeFields     []MergeFieldSpec `json:"mergeFields,omitempty"`
}

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Background struct {
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"`
}

type Soundtrack struct {
	Src      string  `json:"src"`
	Volume   float64 `json:"volume,omitempty"`
	Start    float64 `json:"start,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	FadeIn   float64 `json:"fadeIn,omitempty"`
	FadeOut  float64 `json:"fadeOut,omitempty"`
}

type Track struct {
	ID      string    `json:"id,omitempty"`
	Name    string    `json:"name,omitempty"`
	Type    TrackType `json:"type,omitempty"`
	Enabled *bool     `json:"enabled,omitempty"`
	Clips   []Clip    `json:"clips"`
}

// IsEnabled treats a missing flag as enabled.
func (t Track) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

type Clip struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Type       ClipType    `json:"type,omitempty"`
	Start      float64     `json:"start"`
	Duration   float64     `json:"duration"`
	Src        string      `json:"src,omitempty"`
	Text       string      `json:"text,omitempty"`
	HTML       string      `json:"html,omitempty"`
	Color      string      `json:"color,omitempty"`
	Font       Font        `json:"font,omitempty"`
	Position   Position    `json:"position,omitempty"`
	Scale      float64     `json:"scale,omitempty"`
	Opacity    *float64    `json:"opacity,omitempty"`
	Rotation   float64     `json:"rotation,omitempty"`
	ZIndex     int         `json:"zIndex,omitempty"`
	Effects    []Effect    `json:"effects,omitempty"`
	Animations []Animation `json:"animations,omitempty"`
	Transition *Transition `json:"transition,omitempty"`
	Trim       *Trim       `json:"trim,omitempty"`
	Volume     *float64    `json:"volume,omitempty"`
	Transform  string      `json:"transform,omitempty"`
}

// End is the clip's exclusive end time on the timeline.
func (c Clip) End() float64 { return c.Start + c.Duration }

// OpacityValue returns the declared opacity, defaulting to fully opaque.
func (c Clip) OpacityValue() float64 {
	if c.Opacity == nil {
		return 1
	}
	return *c.Opacity
}

// VolumeValue returns the declared volume, defaulting to unity gain.
func (c Clip) VolumeValue() float64 {
	if c.Volume == nil {
		return 1
	}
	return *c.Volume
}

type Font struct {
	Family string `json:"family,omitempty"`
	File   string `json:"file,omitempty"`
	Size   int    `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Trim struct {
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// EffectType enumerates per-clip visual effects. Effects compose
// left-to-right in declaration order.
type EffectType string

const (
	EffectBlur       EffectType = "blur"
	EffectBrightness EffectType = "brightness"
	EffectContrast   EffectType = "contrast"
	EffectSaturation EffectType = "saturation"
	EffectHue        EffectType = "hue"
	EffectChromaKey  EffectType = "chromakey"
	EffectGrayscale  EffectType = "grayscale"
	EffectSepia      EffectType = "sepia"
)

type Effect struct {
	Type EffectType `json:"type"`
	// Strength is normalized to [0,1]; Intensity accepts the legacy
	// [0,100] scale and wins when both are set.
	Strength  float64 `json:"strength,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Level collapses the two declared scales into a single [0,1] value.
func (e Effect) Level() float64 {
	v := e.Strength
	if e.Intensity > 0 {
		v = e.Intensity / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type AnimationType string

const (
	AnimFadeIn    AnimationType = "fadeIn"
	AnimFadeOut   AnimationType = "fadeOut"
	AnimSlideIn   AnimationType = "slideIn"
	AnimSlideOut  AnimationType = "slideOut"
	AnimScaleIn   AnimationType = "scaleIn"
	AnimScaleOut  AnimationType = "scaleOut"
	AnimZoom      AnimationType = "zoom"
	AnimRotateIn  AnimationType = "rotateIn"
	AnimRotateOut AnimationType = "rotateOut"
)

type EasingType string

const (
	EaseLinear  EasingType = "linear"
	EaseIn      EasingType = "easeIn"
	EaseOut     EasingType = "easeOut"
	EaseInOut   EasingType = "easeInOut"
	EaseBounce  EasingType = "bounce"
	EaseElastic EasingType = "elastic"
)

type Animation struct {
	Type     AnimationType `json:"type"`
	Duration float64       `json:"duration"`
	Delay    float64       `json:"delay,omitempty"`
	Easing   EasingType    `json:"easing,omitempty"`
}

type TransitionType string

const (
	TransitionFade      TransitionType = "fade"
	TransitionCrossfade TransitionType = "crossfade"
	TransitionSlide     TransitionType = "slide"
	TransitionWipe      TransitionType = "wipe"
	TransitionDissolve  TransitionType = "dissolve"
	TransitionZoom      TransitionType = "zoom"
	TransitionRotate    TransitionType = "rotate"
	TransitionPush      TransitionType = "push"
)

// Transition is a time-windowed blend between two clips. Explicit
// transitions may pin the clips they join by id.
type Transition struct {
	Type      TransitionType `json:"type"`
	Duration  float64        `json:"duration,omitempty"`
	Direction string         `json:"direction,omitempty"`
	Easing    EasingType     `json:"easing,omitempty"`
	FromClip  string         `json:"fromClip,omitempty"`
	ToClip    string         `json:"toClip,omitempty"`
	TrackID   string         `json:"trackId,omitempty"`
	Start     float64        `json:"start,omitempty"`
}

// MergeFieldSpec is the declared contract for a named placeholder,
// checked before resolution.
type MergeFieldSpec struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"` // string, number, boolean
	Required      bool   `json:"required,omitempty"`
	MaxLength     int    `json:"maxLength,omitempty"`
	AllowedValues []any  `json:"allowedValues,omitempty"`
	DefaultValue  any    `json:"defaultValue,omitempty"`
}
