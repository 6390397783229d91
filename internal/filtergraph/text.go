package filtergraph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidforge/internal/domain"
)

const (
	defaultFontSize  = 42
	defaultFontColor = "#ffffff"
)

// drawTextParams builds the drawtext parameter string for a text clip,
// windowed to the clip's active interval.
func drawTextParams(clip domain.Clip, boxed bool, alphaExpr string) string {
	text := applyTransform(textContent(clip), clip.Transform)

	size := clip.Font.Size
	if size < 12 {
		size = defaultFontSize
	}
	color := clip.Font.Color
	if color == "" {
		color = defaultFontColor
	}

	values := []string{
		fmt.Sprintf("text='%s'", escapeDrawText(text)),
		fmt.Sprintf("fontsize=%d", size),
		fmt.Sprintf("fontcolor=%s", color),
		fmt.Sprintf("x=%s", formatFloat(clip.Position.X)),
		fmt.Sprintf("y=%s", formatFloat(clip.Position.Y)),
	}

	if clip.Font.File != "" {
		values = append(values, fmt.Sprintf("fontfile='%s'", escapePath(clip.Font.File)))
	}
	if boxed {
		values = append(values, "box=1", "boxcolor=black@0.6", "boxborderw=12")
	}
	switch {
	case alphaExpr != "":
		values = append(values, fmt.Sprintf("alpha='%s'", escapeFilterValue(alphaExpr)))
	case clip.OpacityValue() < 1:
		values = append(values, fmt.Sprintf("alpha=%s", formatFloat(clip.OpacityValue())))
	}

	enable := fmt.Sprintf("between(t,%s,%s)", formatFloat(clip.Start), formatFloat(clip.End()))
	values = append(values, fmt.Sprintf("enable='%s'", escapeFilterValue(enable)))

	return strings.Join(values, ":")
}

// textContent yields the drawable text, stripping tags from html clips.
func textContent(clip domain.Clip) string {
	if clip.Type == domain.ClipHTML {
		return stripTags(clip.HTML)
	}
	return clip.Text
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return strings.Join(strings.Fields(text), " ")
}

func applyTransform(value, transform string) string {
	switch strings.ToLower(strings.TrimSpace(transform)) {
	case "uppercase":
		return strings.ToUpper(value)
	case "lowercase":
		return strings.ToLower(value)
	case "capitalize", "title":
		return cases.Title(language.English).String(value)
	default:
		return value
	}
}

func escapeDrawText(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")

	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, "\n", `\n`)
	value = strings.ReplaceAll(value, "'", "''")
	return value
}

func escapePath(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}

func escapeFilterValue(value string) string {
	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}

func escapeFilterValueNoQuotes(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, ",", `\,`)
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
