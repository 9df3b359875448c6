package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

func TestQuad_Hit(t *testing.T) {
	// Unit square in the XY plane, normal +Z
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), material.NewPassThrough())

	tests := []struct {
		name      string
		origin    core.Vec3
		direction core.Vec3
		shouldHit bool
		front     bool
	}{
		{"center from front", core.NewVec3(0.5, 0.5, 1), core.NewVec3(0, 0, -1), true, true},
		{"center from back", core.NewVec3(0.5, 0.5, -1), core.NewVec3(0, 0, 1), true, false},
		{"outside u range", core.NewVec3(1.5, 0.5, 1), core.NewVec3(0, 0, -1), false, false},
		{"outside v range", core.NewVec3(0.5, -0.2, 1), core.NewVec3(0, 0, -1), false, false},
		{"parallel", core.NewVec3(0.5, 0.5, 1), core.NewVec3(1, 0, 0), false, false},
		{"pointing away", core.NewVec3(0.5, 0.5, 1), core.NewVec3(0, 0, 1), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := quad.Hit(core.NewRay(tt.origin, tt.direction), 0.001, 1000.0)
			if isHit != tt.shouldHit {
				t.Fatalf("Expected hit=%v, got %v", tt.shouldHit, isHit)
			}
			if !isHit {
				return
			}
			if math.Abs(hit.T-1.0) > 1e-9 {
				t.Errorf("Expected t=1, got %f", hit.T)
			}
			if hit.FrontFace != tt.front {
				t.Errorf("Expected FrontFace=%v, got %v", tt.front, hit.FrontFace)
			}
			if hit.Normal.Dot(tt.direction) >= 0 {
				t.Errorf("Expected normal to face the incoming ray, got %v", hit.Normal)
			}
		})
	}
}

func TestQuad_Area(t *testing.T) {
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, 3), nil)
	if math.Abs(quad.Area()-6.0) > 1e-9 {
		t.Errorf("Expected area 6, got %f", quad.Area())
	}
}

func TestQuad_BoundingBoxIsPadded(t *testing.T) {
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), nil)
	bbox := quad.BoundingBox()
	if bbox.Max.Z-bbox.Min.Z <= 0 {
		t.Errorf("Expected non-zero thickness for flat quad, got %v", bbox)
	}
}
