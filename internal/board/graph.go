package board

// maxNodeLabel is the longest description carried on a graph node.
const maxNodeLabel = 40

// Node is a task in the dependency graph projection.
type Node struct {
	// ID is the task identifier.
	ID string `json:"id" yaml:"id"`
	// Label is the truncated task description.
	Label string `json:"label" yaml:"label"`
	// Status is the record's current status.
	Status string `json:"status" yaml:"status"`
}

// Edge is a directed dependency edge, from the dependency to the task that
// depends on it.
type Edge struct {
	// From is the dependency task ID.
	From string `json:"from" yaml:"from"`
	// To is the dependent task ID.
	To string `json:"to" yaml:"to"`
}

// Graph is the blackboard projected as a dependency DAG for visualization.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Graph projects the registry as a dependency graph. Nodes appear in
// registration order; edges point from dependency to dependent. Edges to
// unregistered dependencies are still emitted so dangling references show
// up in the visualization.
func (b *Board) Graph() Graph {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := Graph{}
	for _, id := range b.order {
		rec := b.records[id]
		g.Nodes = append(g.Nodes, Node{
			ID:     rec.ID,
			Label:  truncate(rec.Description, maxNodeLabel),
			Status: string(rec.Status),
		})
		for _, depID := range rec.DependsOn {
			g.Edges = append(g.Edges, Edge{From: depID, To: rec.ID})
		}
	}
	return g
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
