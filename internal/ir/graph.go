package ir

import "sort"

// reachable reports whether to is reachable from from along edges.
// Iterative DFS, O(V+E).
func (w *Workflow) reachable(from, to string) bool {
	if from == to {
		return true
	}
	adj := make(map[string][]string, len(w.Tasks))
	for _, e := range w.Edges {
		adj[e.Parent] = append(adj[e.Parent], e.Child)
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range adj[n] {
			if c == to {
				return true
			}
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}

// IsAcyclic reports whether the edge relation is a DAG.
func (w *Workflow) IsAcyclic() bool {
	_, ok := w.TopologicalOrder()
	return ok
}

// TopologicalOrder returns task ids in a stable topological order: among
// ready tasks the lexically smallest id is emitted first. The second return
// is false when the graph contains a cycle.
func (w *Workflow) TopologicalOrder() ([]string, bool) {
	indeg := make(map[string]int, len(w.Tasks))
	adj := make(map[string][]string, len(w.Tasks))
	for id := range w.Tasks {
		indeg[id] = 0
	}
	for _, e := range w.Edges {
		adj[e.Parent] = append(adj[e.Parent], e.Child)
		indeg[e.Child]++
	}

	var ready []string
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(w.Tasks))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, c := range adj[n] {
			indeg[c]--
			if indeg[c] == 0 {
				ready = insertSorted(ready, c)
			}
		}
	}
	return order, len(order) == len(w.Tasks)
}

// SortedEdges returns the edges in stable topological emission order:
// child position in the topological order, tie-broken by child id then
// parent id.
func (w *Workflow) SortedEdges() []Edge {
	order, _ := w.TopologicalOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	edges := append([]Edge(nil), w.Edges...)
	sort.SliceStable(edges, func(i, j int) bool {
		ei, ej := edges[i], edges[j]
		if pos[ei.Child] != pos[ej.Child] {
			return pos[ei.Child] < pos[ej.Child]
		}
		if ei.Child != ej.Child {
			return ei.Child < ej.Child
		}
		return ei.Parent < ej.Parent
	})
	return edges
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
