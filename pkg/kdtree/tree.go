package kdtree

import (
	stdmath "math"
	"sort"

	"github.com/Faultbox/bodymorph/pkg/math"
)

// Result is one point returned by a query.
type Result struct {
	Index    int
	Pos      math.Vec3
	Distance float32
}

type treeNode struct {
	p          Point
	less, more int32
}

// Tree is a general purpose KD-tree supporting nearest neighbor and radius
// searches.
type Tree struct {
	nodes []treeNode
}

// New builds a tree by inserting points in order.
func New(points []math.Vec3) *Tree {
	t := &Tree{nodes: make([]treeNode, 0, len(points))}
	for i, pos := range points {
		t.insert(Point{Index: i, Pos: pos})
	}
	return t
}

// Len returns the number of points in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) insert(p Point) {
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, treeNode{p: p, less: none, more: none})
		return
	}

	cur := int32(0)
	for depth := 0; ; depth++ {
		n := &t.nodes[cur]
		axis := depth % 3
		child := &n.less
		if n.p.Pos.Axis(axis)-p.Pos.Axis(axis) > 0 {
			child = &n.more
		}
		if *child == none {
			*child = int32(len(t.nodes))
			t.nodes = append(t.nodes, treeNode{p: p, less: none, more: none})
			return
		}
		cur = *child
	}
}

// FindClosest returns the points closest to query. With a radius of 0 the
// single nearest point is returned; otherwise every point within radius,
// nearest first.
func (t *Tree) FindClosest(query math.Vec3, radius float32) []Result {
	if len(t.nodes) == 0 {
		return nil
	}

	s := search{tree: t, query: query, radius: radius, minDist: stdmath.MaxFloat32}
	if radius != 0 {
		s.minDist = radius
	}
	s.visit(0, 0)

	sort.SliceStable(s.results, func(i, j int) bool {
		return s.results[i].Distance < s.results[j].Distance
	})
	if radius == 0 && len(s.results) > 1 {
		s.results = s.results[:1]
	}
	return s.results
}

type search struct {
	tree    *Tree
	query   math.Vec3
	radius  float32
	minDist float32
	results []Result
}

func (s *search) visit(idx int32, depth int) {
	n := &s.tree.nodes[idx]
	axis := depth % 3
	d := n.p.Pos.Axis(axis) - s.query.Axis(axis)

	// Descend the side containing the query first.
	act, opp := n.less, n.more
	if d > 0 {
		act, opp = n.more, n.less
	}
	axisDist := float32(stdmath.Abs(float64(d)))

	if act != none {
		s.visit(act, depth+1)
	}

	dist := s.query.Distance(n.p.Pos)
	if dist <= s.minDist {
		s.results = append(s.results, Result{Index: n.p.Index, Pos: n.p.Pos, Distance: dist})
		s.minDist = dist
	} else if s.radius > s.minDist && dist <= s.radius {
		s.results = append(s.results, Result{Index: n.p.Index, Pos: n.p.Pos, Distance: dist})
	}

	if opp == none {
		return
	}
	if s.radius != 0 {
		if s.radius >= axisDist {
			s.visit(opp, depth+1)
		}
	} else if axisDist < s.minDist {
		s.visit(opp, depth+1)
	}
}
