package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

func TestBVH_Empty(t *testing.T) {
	bvh := NewBVH(nil)
	if _, hit := bvh.Hit(core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0)), 0.001, 100); hit {
		t.Error("Expected empty BVH to miss")
	}
}

func TestBVH_MatchesLinearSearch(t *testing.T) {
	var shapes []Shape
	for i := 0; i < 20; i++ {
		x := float64(i) * 1.5
		shapes = append(shapes, NewSphere(core.NewVec3(x, 0, 0), 0.5, material.NewPassThrough()))
	}
	bvh := NewBVH(shapes)

	rays := []core.Ray{
		core.NewRay(core.NewVec3(-5, 0, 0), core.NewVec3(1, 0, 0)),
		core.NewRay(core.NewVec3(100, 0, 0), core.NewVec3(-1, 0, 0)),
		core.NewRay(core.NewVec3(7.5, 5, 0), core.NewVec3(0, -1, 0)),
		core.NewRay(core.NewVec3(7.5, 5, 0), core.NewVec3(0, 1, 0)),
		core.NewRay(core.NewVec3(3.0, 5, 0.2), core.NewVec3(0, -1, 0)),
	}

	for i, ray := range rays {
		var expected *material.SurfaceInteraction
		tMax := math.Inf(1)
		for _, s := range shapes {
			if si, ok := s.Hit(ray, 0.001, tMax); ok {
				expected = si
				tMax = si.T
			}
		}

		got, hit := bvh.Hit(ray, 0.001, math.Inf(1))
		if hit != (expected != nil) {
			t.Errorf("Ray %d: expected hit=%v, got %v", i, expected != nil, hit)
			continue
		}
		if hit && math.Abs(got.T-expected.T) > 1e-9 {
			t.Errorf("Ray %d: expected t=%v, got %v", i, expected.T, got.T)
		}
	}
}

func TestBVH_Bounds(t *testing.T) {
	shapes := []Shape{
		NewSphere(core.NewVec3(-1, 0, 0), 1, nil),
		NewSphere(core.NewVec3(1, 0, 0), 1, nil),
	}
	bvh := NewBVH(shapes)
	if bvh.Center.Length() > 1e-9 {
		t.Errorf("Expected center at origin, got %v", bvh.Center)
	}
	expected := math.Sqrt(4 + 1 + 1)
	if math.Abs(bvh.Radius-expected) > 1e-9 {
		t.Errorf("Expected radius %v, got %v", expected, bvh.Radius)
	}
}
