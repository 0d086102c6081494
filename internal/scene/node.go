// Package scene is a minimal scene graph: named nodes carrying string
// annotations, some of which hold triangle shapes with swappable,
// reference-counted vertex buffers.
package scene

import "sync"

// Annotation keys used by the morph engine.
const (
	ExtraBodyTri   = "BODYTRI"     // On a model root: morph file path
	ExtraMorphFile = "MORPH_FILE"  // On a shape: resolved morph file path
	ExtraMorphName = "MORPH_SHAPE" // On a shape: sub-mesh name in that file
)

// Node is a named scene-graph node.
type Node struct {
	Name   string
	Parent *Node
	Shape  *TriShape // nil for plain nodes

	children []*Node

	extraMu sync.RWMutex
	extra   map[string]string
}

// NewNode creates a plain node.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// NewShapeNode creates a node holding shape.
func NewShapeNode(name string, shape *TriShape) *Node {
	return &Node{Name: name, Shape: shape}
}

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or an ancestor of this node.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("scene: cannot add nil child")
	}
	if isAncestor(child, n) {
		panic("scene: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
}

// RemoveChild detaches child from this node. Returns false if child is not
// a child of n.
func (n *Node) RemoveChild(child *Node) bool {
	if child == nil || child.Parent != n {
		return false
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	return true
}

// Children returns the child list. The returned slice must not be mutated.
func (n *Node) Children() []*Node {
	return n.children
}

// Find returns the first node named name in the subtree, depth first.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Visit(func(node *Node) bool {
		if node.Name == name {
			found = node
			return true
		}
		return false
	})
	return found
}

// Visit walks the subtree depth first, parent before children, until fn
// returns true. It reports whether the walk was stopped.
func (n *Node) Visit(fn func(*Node) bool) bool {
	if fn(n) {
		return true
	}
	for _, child := range n.children {
		if child.Visit(fn) {
			return true
		}
	}
	return false
}

// SetExtra sets a string annotation.
func (n *Node) SetExtra(key, value string) {
	n.extraMu.Lock()
	defer n.extraMu.Unlock()
	if n.extra == nil {
		n.extra = make(map[string]string)
	}
	n.extra[key] = value
}

// Extra returns a string annotation.
func (n *Node) Extra(key string) (string, bool) {
	n.extraMu.RLock()
	defer n.extraMu.RUnlock()
	v, ok := n.extra[key]
	return v, ok
}

// isAncestor reports whether candidate is node or one of its ancestors.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}
