package filtergraph

import (
	"fmt"

	"vidforge/internal/domain"
)

// effectNode maps a declared effect to a filter op and parameter string.
// Unknown effect types are compilation errors, never skipped.
func effectNode(e domain.Effect) (op, params string, err error) {
	level := e.Level()
	switch e.Type {
	case domain.EffectBlur:
		// radius 1..11 over the normalized level
		return "boxblur", fmt.Sprintf("luma_radius=%d:luma_power=1", 1+int(level*10)), nil
	case domain.EffectBrightness:
		// eq takes [-1,1]; the declared level shifts upward from neutral
		return "eq", fmt.Sprintf("brightness=%s", formatFloat(level)), nil
	case domain.EffectContrast:
		return "eq", fmt.Sprintf("contrast=%s", formatFloat(1+level)), nil
	case domain.EffectSaturation:
		return "eq", fmt.Sprintf("saturation=%s", formatFloat(1+2*level)), nil
	case domain.EffectHue:
		return "hue", fmt.Sprintf("h=%s", formatFloat(level*360)), nil
	case domain.EffectChromaKey:
		color := e.Color
		if color == "" {
			color = "#00ff00"
		}
		return "chromakey", fmt.Sprintf("%s:%s:0.0", color, formatFloat(0.1+0.3*level)), nil
	case domain.EffectGrayscale:
		return "hue", "s=0", nil
	case domain.EffectSepia:
		return "colorchannelmixer", ".393:.769:.189:0:.349:.686:.168:0:.272:.534:.131", nil
	default:
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownEffectType, e.Type)
	}
}
