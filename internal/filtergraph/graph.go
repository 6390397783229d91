package filtergraph

import (
	"fmt"
	"strings"
)

// InputKind distinguishes real files from synthetic lavfi generators.
type InputKind string

const (
	InputFile  InputKind = "file"
	InputLavfi InputKind = "lavfi"
)

// Input is one renderer input slot, in argv order.
type Input struct {
	Kind InputKind
	// Value is a local file path for InputFile or a lavfi source spec for
	// InputLavfi.
	Value string
	// ExtraArgs precede -i for this input (e.g. -loop 1 -t 5 for stills).
	ExtraArgs []string
}

// Node is one primitive instruction in the compiled graph.
type Node struct {
	Inputs []string
	Op     string
	Params string
	Output string
}

// String renders the node in filter_complex form.
func (n Node) String() string {
	var b strings.Builder
	for _, in := range n.Inputs {
		b.WriteString("[")
		b.WriteString(in)
		b.WriteString("]")
	}
	b.WriteString(n.Op)
	if n.Params != "" {
		b.WriteString("=")
		b.WriteString(n.Params)
	}
	b.WriteString("[")
	b.WriteString(n.Output)
	b.WriteString("]")
	return b.String()
}

// Graph is the compiled instruction graph handed to the renderer. Exactly
// one final video label; one final audio label when any audio exists.
type Graph struct {
	Inputs   []Input
	Nodes    []Node
	VideoOut string
	AudioOut string

	labelSeq int
}

func (g *Graph) nextLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("%s%d", prefix, g.labelSeq)
}

func (g *Graph) addInput(in Input) int {
	g.Inputs = append(g.Inputs, in)
	return len(g.Inputs) - 1
}

func (g *Graph) add(node Node) string {
	g.Nodes = append(g.Nodes, node)
	return node.Output
}

// FilterComplex renders the node list as a single -filter_complex string.
func (g *Graph) FilterComplex() string {
	parts := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		parts = append(parts, n.String())
	}
	return strings.Join(parts, ";")
}

// Optimize removes duplicate instructions: a node whose inputs, op and
// params match an already-emitted node is dropped, and later references to
// its output are rewired to the survivor. Order is preserved.
func (g *Graph) Optimize() int {
	seen := map[string]string{} // instruction key -> surviving output label
	alias := map[string]string{}
	kept := g.Nodes[:0]
	removed := 0

	for _, n := range g.Nodes {
		for i, in := range n.Inputs {
			if target, ok := alias[in]; ok {
				n.Inputs[i] = target
			}
		}
		key := strings.Join(n.Inputs, ",") + "|" + n.Op + "|" + n.Params
		if survivor, ok := seen[key]; ok {
			alias[n.Output] = survivor
			removed++
			continue
		}
		seen[key] = n.Output
		kept = append(kept, n)
	}
	g.Nodes = kept

	if target, ok := alias[g.VideoOut]; ok {
		g.VideoOut = target
	}
	if target, ok := alias[g.AudioOut]; ok {
		g.AudioOut = target
	}
	return removed
}
