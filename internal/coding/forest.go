package coding

import "sort"

// Forest is an immutable arena of a project's nodes with a parent -> children index.
// All walks use explicit worklists so taxonomy depth never grows the call stack.
type Forest struct {
	nodes    map[string]Node
	children map[string][]string
	roots    []string
}

// NewForest indexes the supplied nodes. Children are ordered by position, then name, then id.
// A node whose parent is missing from the set is treated as a root so that it stays reachable.
func NewForest(nodes []Node) *Forest {
	forest := &Forest{
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string),
	}
	for _, node := range nodes {
		forest.nodes[node.ID] = node
	}
	for _, node := range nodes {
		parentID := node.ParentKey()
		if _, ok := forest.nodes[parentID]; parentID == "" || !ok || parentID == node.ID {
			forest.roots = append(forest.roots, node.ID)
			continue
		}
		forest.children[parentID] = append(forest.children[parentID], node.ID)
	}
	forest.sortGroup(forest.roots)
	for _, group := range forest.children {
		forest.sortGroup(group)
	}
	return forest
}

func (f *Forest) sortGroup(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		left, right := f.nodes[ids[i]], f.nodes[ids[j]]
		if left.Position != right.Position {
			return left.Position < right.Position
		}
		if left.Name != right.Name {
			return left.Name < right.Name
		}
		return left.ID < right.ID
	})
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Node returns the node with the given id.
func (f *Forest) Node(id string) (Node, bool) {
	node, ok := f.nodes[id]
	return node, ok
}

// Roots returns the ordered root ids.
func (f *Forest) Roots() []string {
	return append([]string(nil), f.roots...)
}

// Children returns the ordered child ids of a node.
func (f *Forest) Children(id string) []string {
	return append([]string(nil), f.children[id]...)
}

// Descendants returns every node below id, excluding id itself, in breadth-first order.
// Unknown ids yield an empty result.
func (f *Forest) Descendants(id string) []string {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	visited := map[string]struct{}{id: {}}
	var result []string
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range f.children[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// Family returns id followed by all of its descendants.
func (f *Forest) Family(id string) []string {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	return append([]string{id}, f.Descendants(id)...)
}

// IsDescendant reports whether candidate lies strictly below ancestor.
func (f *Forest) IsDescendant(ancestor, candidate string) bool {
	for _, id := range f.Descendants(ancestor) {
		if id == candidate {
			return true
		}
	}
	return false
}

// PostOrder returns every node with children listed before their parents.
func (f *Forest) PostOrder() []string {
	type frame struct {
		id       string
		expanded bool
	}
	result := make([]string, 0, len(f.nodes))
	visited := make(map[string]struct{}, len(f.nodes))
	stack := make([]frame, 0, len(f.roots))
	for i := len(f.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: f.roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.expanded {
			result = append(result, top.id)
			continue
		}
		if _, seen := visited[top.id]; seen {
			continue
		}
		visited[top.id] = struct{}{}
		stack = append(stack, frame{id: top.id, expanded: true})
		children := f.children[top.id]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i]})
		}
	}
	return result
}

// Visit is one step of a pre-order walk.
type Visit struct {
	ID    string
	Depth int
	// Path holds the 1-based index of every ancestor and of the node itself within its sibling group.
	Path []int
}

// PreOrder walks the forest (or the subtree rooted at rootID when non-empty) parents first.
func (f *Forest) PreOrder(rootID string) []Visit {
	var starts []string
	if rootID == "" {
		starts = f.roots
	} else if _, ok := f.nodes[rootID]; ok {
		starts = []string{rootID}
	}

	result := make([]Visit, 0, len(f.nodes))
	visited := make(map[string]struct{}, len(f.nodes))
	stack := make([]Visit, 0, len(starts))
	for i := len(starts) - 1; i >= 0; i-- {
		stack = append(stack, Visit{ID: starts[i], Depth: 0, Path: []int{i + 1}})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[top.ID]; seen {
			continue
		}
		visited[top.ID] = struct{}{}
		result = append(result, top)
		children := f.children[top.ID]
		for i := len(children) - 1; i >= 0; i-- {
			path := make([]int, len(top.Path)+1)
			copy(path, top.Path)
			path[len(top.Path)] = i + 1
			stack = append(stack, Visit{ID: children[i], Depth: top.Depth + 1, Path: path})
		}
	}
	return result
}
