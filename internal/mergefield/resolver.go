package mergefield

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"vidforge/internal/domain"
)

// Report lists diagnostic findings from a resolution pass. Neither list is
// an error: unmatched placeholders stay verbatim in the output.
type Report struct {
	UsedUndeclared []string
	DeclaredUnused []string
}

// placeholderPatterns finds any of the four interchangeable syntaxes and
// captures the key name.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`),
	regexp.MustCompile(`\$\{\s*([A-Za-z0-9_.-]+)\s*\}`),
	regexp.MustCompile(`\[([A-Za-z0-9_.-]+)\]`),
	regexp.MustCompile(`%([A-Za-z0-9_.-]+)%`),
}

// Resolve substitutes merge values into every string leaf of the timeline
// and returns a new timeline; the input is never mutated. Substitution is
// literal replacement of the four bracket syntaxes, so resolving twice with
// the same map yields the same result as resolving once.
func Resolve(t domain.Timeline, values map[string]any) (domain.Timeline, Report, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return domain.Timeline{}, Report{}, fmt.Errorf("mergefield: encode timeline: %w", err)
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return domain.Timeline{}, Report{}, fmt.Errorf("mergefield: decode timeline: %w", err)
	}

	seen := map[string]bool{}
	collectKeys(tree, seen)

	replacer := newReplacer(values)
	tree = substitute(tree, replacer)

	out, err := json.Marshal(tree)
	if err != nil {
		return domain.Timeline{}, Report{}, fmt.Errorf("mergefield: encode resolved tree: %w", err)
	}
	var resolved domain.Timeline
	if err := json.Unmarshal(out, &resolved); err != nil {
		return domain.Timeline{}, Report{}, fmt.Errorf("mergefield: decode resolved timeline: %w", err)
	}

	report := buildReport(t.MergeFields, values, seen)
	return resolved, report, nil
}

func newReplacer(values map[string]any) *strings.Replacer {
	pairs := make([]string, 0, len(values)*8)
	for name, value := range values {
		v := stringify(value)
		pairs = append(pairs,
			"{{"+name+"}}", v,
			"${"+name+"}", v,
			"["+name+"]", v,
			"%"+name+"%", v,
		)
	}
	return strings.NewReplacer(pairs...)
}

func substitute(node any, r *strings.Replacer) any {
	switch v := node.(type) {
	case string:
		return r.Replace(v)
	case map[string]any:
		for k, child := range v {
			v[k] = substitute(child, r)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = substitute(child, r)
		}
		return v
	default:
		return node
	}
}

func collectKeys(node any, seen map[string]bool) {
	switch v := node.(type) {
	case string:
		for _, pattern := range placeholderPatterns {
			for _, m := range pattern.FindAllStringSubmatch(v, -1) {
				seen[m[1]] = true
			}
		}
	case map[string]any:
		for _, child := range v {
			collectKeys(child, seen)
		}
	case []any:
		for _, child := range v {
			collectKeys(child, seen)
		}
	}
}

func buildReport(specs []domain.MergeFieldSpec, values map[string]any, seen map[string]bool) Report {
	declared := map[string]bool{}
	for _, s := range specs {
		declared[s.Name] = true
	}
	for name := range values {
		declared[name] = true
	}

	var report Report
	for name := range seen {
		if !declared[name] {
			report.UsedUndeclared = append(report.UsedUndeclared, name)
		}
	}
	for _, s := range specs {
		if !seen[s.Name] {
			report.DeclaredUnused = append(report.DeclaredUnused, s.Name)
		}
	}
	sort.Strings(report.UsedUndeclared)
	sort.Strings(report.DeclaredUnused)
	return report
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
