package types

import "fmt"

// Node is one entity in a containment arena.
type Node struct {
	ID       string
	ParentID string
	ShapeID  string
	Order    int
}

// Arena holds a containment forest as nodes keyed by id plus a parent to
// children index. Deleting through an arena visits every descendant
// explicitly instead of relying on the database to cascade.
type Arena struct {
	nodes    map[string]Node
	children map[string][]string
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		nodes:    make(map[string]Node),
		children: make(map[string][]string),
	}
}

// Add inserts n. Nodes may be added before their parent; children are kept
// in insertion order.
func (a *Arena) Add(n Node) error {
	if n.ID == "" {
		return ErrInvalidID
	}
	if _, dup := a.nodes[n.ID]; dup {
		return fmt.Errorf("arena: duplicate node %s", n.ID)
	}
	a.nodes[n.ID] = n
	if n.ParentID != "" {
		a.children[n.ParentID] = append(a.children[n.ParentID], n.ID)
	}
	return nil
}

// Node returns the node with the given id.
func (a *Arena) Node(id string) (Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// Children returns the direct children of id.
func (a *Arena) Children(id string) []Node {
	out := make([]Node, 0, len(a.children[id]))
	for _, cid := range a.children[id] {
		out = append(out, a.nodes[cid])
	}
	return out
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Subtree returns id and all its descendants in post-order: every node comes
// after its descendants. Unknown ids yield nothing.
func (a *Arena) Subtree(id string) []Node {
	if _, ok := a.nodes[id]; !ok {
		return nil
	}
	var out []Node
	visited := make(map[string]bool)
	var visit func(string)
	visit = func(nid string) {
		if visited[nid] {
			return
		}
		visited[nid] = true
		for _, cid := range a.children[nid] {
			visit(cid)
		}
		out = append(out, a.nodes[nid])
	}
	visit(id)
	return out
}
