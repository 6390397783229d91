package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
	"vidforge/internal/filtergraph"
)

// stderrTail bounds how much renderer output survives into failure
// details.
const stderrTail = 2048

// Renderer turns a compiled filter graph into an encoded video file by
// driving the ffmpeg binary.
type Renderer struct {
	ffmpegPath  string
	ffprobePath string
	logger      zerolog.Logger
}

func NewRenderer(ffmpegPath, ffprobePath string, logger zerolog.Logger) *Renderer {
	return &Renderer{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Args assembles the full command line for one render.
func (r *Renderer) Args(g *filtergraph.Graph, out domain.OutputSpec, dest string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}

	for _, in := range g.Inputs {
		args = append(args, in.ExtraArgs...)
		if in.Kind == filtergraph.InputLavfi {
			args = append(args, "-f", "lavfi")
		}
		args = append(args, "-i", in.Value)
	}

	args = append(args, "-filter_complex", g.FilterComplex())
	args = append(args, "-map", "["+g.VideoOut+"]")
	if g.AudioOut != "" {
		args = append(args, "-map", "["+g.AudioOut+"]")
	}

	args = append(args, "-c:v", videoCodec(out.Codec))
	if out.Bitrate != "" {
		args = append(args, "-b:v", out.Bitrate)
	}
	if out.FPS > 0 {
		args = append(args, "-r", strconv.FormatFloat(out.FPS, 'f', -1, 64))
	}
	if out.Resolution.Width > 0 && out.Resolution.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", out.Resolution.Width, out.Resolution.Height))
	}
	args = append(args, "-c:a", "aac", "-pix_fmt", "yuv420p")
	if format(out) == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, dest)
}

// Render executes the command and returns the renderer's stderr tail on
// failure.
func (r *Renderer) Render(ctx context.Context, g *filtergraph.Graph, out domain.OutputSpec, dest string) error {
	args := r.Args(g, out, dest)
	r.logger.Debug().Str("dest", dest).Int("inputs", len(g.Inputs)).Int("nodes", len(g.Nodes)).
		Msg("render: invoking encoder")

	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", domain.ErrRendererFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %v: %s", domain.ErrRendererFailed, err, tail(stderr.String()))
	}
	return nil
}

// Probe reads the container duration of a finished render. Errors are not
// fatal; callers fall back to the planned duration.
func (r *Renderer) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func videoCodec(codec string) string {
	switch strings.ToLower(codec) {
	case "", "h264":
		return "libx264"
	case "h265", "hevc":
		return "libx265"
	case "vp9":
		return "libvpx-vp9"
	default:
		return codec
	}
}

func format(out domain.OutputSpec) string {
	if out.Format == "" {
		return "mp4"
	}
	return strings.ToLower(out.Format)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return "..." + s[len(s)-stderrTail:]
}
