package scene

import (
	"testing"

	"github.com/Faultbox/bodymorph/pkg/math"
)

func TestNode_Tree(t *testing.T) {
	root := NewNode("root")
	body := NewShapeNode("BaseFemaleBody", NewTriShape(NewGeometry(nil, nil)))
	hands := NewShapeNode("Hands", NewTriShape(NewGeometry(nil, nil)))
	armor := NewNode("Armor")

	root.AddChild(armor)
	armor.AddChild(body)
	root.AddChild(hands)

	if got := root.Find("BaseFemaleBody"); got != body {
		t.Errorf("Find returned %v", got)
	}
	if root.Find("Missing") != nil {
		t.Error("expected nil for missing node")
	}

	// Reparenting moves the node.
	root.AddChild(body)
	if len(armor.Children()) != 0 || body.Parent != root {
		t.Error("expected body reparented to root")
	}

	if !root.RemoveChild(hands) {
		t.Error("expected RemoveChild to succeed")
	}
	if root.RemoveChild(hands) {
		t.Error("expected second RemoveChild to fail")
	}
	if len(root.Children()) != 2 {
		t.Errorf("expected 2 children, got %d", len(root.Children()))
	}
}

func TestNode_AddChildCyclePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on cycle")
		}
	}()
	root := NewNode("root")
	child := NewNode("child")
	root.AddChild(child)
	child.AddChild(root)
}

func TestNode_VisitStops(t *testing.T) {
	root := NewNode("a")
	root.AddChild(NewNode("b"))
	root.AddChild(NewNode("c"))

	var seen []string
	stopped := root.Visit(func(n *Node) bool {
		seen = append(seen, n.Name)
		return n.Name == "b"
	})

	if !stopped {
		t.Error("expected Visit to report stop")
	}
	if len(seen) != 2 || seen[1] != "b" {
		t.Errorf("unexpected visit order %v", seen)
	}
}

func TestNode_Extra(t *testing.T) {
	n := NewNode("shape")
	if _, ok := n.Extra(ExtraMorphFile); ok {
		t.Error("expected no annotation")
	}
	n.SetExtra(ExtraMorphFile, "meshes/body.tri")
	if v, ok := n.Extra(ExtraMorphFile); !ok || v != "meshes/body.tri" {
		t.Errorf("Extra = %q, %v", v, ok)
	}
}

func TestGeometry_CloneAndSwap(t *testing.T) {
	base := NewGeometry([]math.Vec3{{X: 1}}, []uint16{0, 0, 0})
	shape := NewTriShape(base)

	clone := base.Clone()
	clone.Vertices[0].X = 5
	if base.Vertices[0].X != 1 {
		t.Error("clone must not share vertices")
	}
	if &clone.Triangles[0] != &base.Triangles[0] {
		t.Error("clone should share triangles")
	}

	old := shape.SetGeometry(clone)
	if old != base || shape.Geometry() != clone {
		t.Error("SetGeometry did not swap buffers")
	}

	base.IncRef()
	if base.DecRef() != 1 || base.Refs() != 1 {
		t.Errorf("unexpected ref count %d", base.Refs())
	}
}

func TestGeometry_Duplicates(t *testing.T) {
	g := NewGeometry([]math.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0.00001, Z: 0},
	}, nil)

	dups := g.Duplicates()
	if len(dups) != 2 {
		t.Fatalf("expected 2 duplicates, got %v", dups)
	}
	if dups[2] != 0 || dups[3] != 1 {
		t.Errorf("expected 2->0 and 3->1, got %v", dups)
	}
}
