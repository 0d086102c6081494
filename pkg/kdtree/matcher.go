// Package kdtree provides KD-trees over 3D points for correlating vertices
// between meshes.
//
// Both trees split on axis depth%3. A node's "more" branch holds points
// whose coordinate on the split axis is lower than the node's, and "less"
// holds the rest. Nodes are stored in a flat arena and refer to their
// children by index.
package kdtree

import "github.com/Faultbox/bodymorph/pkg/math"

// Epsilon is the per-axis tolerance under which two points are duplicates.
const Epsilon = 1e-4

const none int32 = -1

// Point is an input point together with its index in the source slice.
type Point struct {
	Index int
	Pos   math.Vec3
}

// Match records a point that duplicated one already in the tree.
type Match struct {
	Point    Point // The point being inserted
	Existing Point // The point already in the tree
}

type matchNode struct {
	p          Point
	less, more int32
}

// Matcher is a KD-tree that finds duplicate vertices in a point cloud.
// Duplicates are recorded instead of being inserted.
type Matcher struct {
	nodes   []matchNode
	matches []Match
}

// NewMatcher inserts points in order and records every duplicate found.
func NewMatcher(points []math.Vec3) *Matcher {
	m := &Matcher{nodes: make([]matchNode, 0, len(points))}
	for i, pos := range points {
		m.Add(Point{Index: i, Pos: pos})
	}
	return m
}

// Add inserts a point. If a point within Epsilon on every axis is already
// present, the pair is recorded, the point is not inserted and Add
// returns the existing point.
func (m *Matcher) Add(p Point) (Point, bool) {
	if len(m.nodes) == 0 {
		m.nodes = append(m.nodes, matchNode{p: p, less: none, more: none})
		return Point{}, false
	}

	cur := int32(0)
	for depth := 0; ; depth++ {
		n := &m.nodes[cur]
		if n.p.Pos.NearlyEqual(p.Pos, Epsilon) {
			m.matches = append(m.matches, Match{Point: p, Existing: n.p})
			return n.p, true
		}

		axis := depth % 3
		child := &n.less
		if n.p.Pos.Axis(axis)-p.Pos.Axis(axis) > 0 {
			child = &n.more
		}
		if *child == none {
			*child = int32(len(m.nodes))
			// child may dangle after append, so it is written first.
			m.nodes = append(m.nodes, matchNode{p: p, less: none, more: none})
			return Point{}, false
		}
		cur = *child
	}
}

// Matches returns the duplicate pairs found so far, in insertion order.
func (m *Matcher) Matches() []Match {
	return m.matches
}

// Len returns the number of distinct points stored.
func (m *Matcher) Len() int {
	return len(m.nodes)
}
