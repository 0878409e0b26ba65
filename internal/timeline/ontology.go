package timeline

// DefaultMaxDerivationDepth caps how many implication hops Derive follows.
const DefaultMaxDerivationDepth = 8

// DerivationGraph records tag implications: a confirmed marker tagged A
// also yields markers for every tag A implies, transitively.
type DerivationGraph struct {
	edges    map[string][]string
	maxDepth int
}

// NewDerivationGraph returns an empty graph. A maxDepth below 1 selects
// DefaultMaxDerivationDepth.
func NewDerivationGraph(maxDepth int) *DerivationGraph {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDerivationDepth
	}
	return &DerivationGraph{edges: make(map[string][]string), maxDepth: maxDepth}
}

// AddEdge records that from implies to. Duplicate and self edges are ignored.
func (g *DerivationGraph) AddEdge(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Len returns the number of edges.
func (g *DerivationGraph) Len() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, to := range g.edges {
		n += len(to)
	}
	return n
}

// Derive returns every tag id reachable from tagID, breadth-first, each at
// most once and never tagID itself. Cycles are cut by the visited set.
func (g *DerivationGraph) Derive(tagID string) []string {
	if g == nil || len(g.edges) == 0 {
		return nil
	}

	visited := map[string]bool{tagID: true}
	frontier := []string{tagID}
	var out []string

	for depth := 0; depth < g.maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, to := range g.edges[id] {
				if visited[to] {
					continue
				}
				visited[to] = true
				out = append(out, to)
				next = append(next, to)
			}
		}
		frontier = next
	}
	return out
}
