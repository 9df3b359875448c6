package geometry

import (
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// Face identifies one side of an axis-aligned box
type Face int

const (
	FaceFloor Face = iota
	FaceCeiling
	FaceLeft  // x = min
	FaceRight // x = max
	FaceBack  // z = min
	FaceFront // z = max
)

// Box is an axis-aligned box made up of 6 quads.
// A room box has its front faces pointing inward.
type Box struct {
	Min, Max core.Vec3
	Inward   bool
	faces    [6]*Quad
	bbox     AABB
}

// NewBox creates a solid box whose faces point outward
func NewBox(min, max core.Vec3, bsdf material.BSDF) *Box {
	return newBox(min, max, bsdf, false)
}

// NewRoom creates a shoebox room whose walls face the interior
func NewRoom(min, max core.Vec3, bsdf material.BSDF) *Box {
	return newBox(min, max, bsdf, true)
}

func newBox(min, max core.Vec3, bsdf material.BSDF, inward bool) *Box {
	b := &Box{Min: min, Max: max, Inward: inward}
	b.generateFaces(bsdf)
	b.bbox = NewAABB(min, max).Expand(1e-4)
	return b
}

// generateFaces builds each face so that U × V points into the room
func (b *Box) generateFaces(bsdf material.BSDF) {
	d := b.Max.Subtract(b.Min)
	x0, y0, z0 := b.Min.X, b.Min.Y, b.Min.Z
	dx := core.NewVec3(d.X, 0, 0)
	dy := core.NewVec3(0, d.Y, 0)
	dz := core.NewVec3(0, 0, d.Z)

	type spec struct {
		corner core.Vec3
		u, v   core.Vec3
	}
	specs := [6]spec{
		FaceFloor:   {core.NewVec3(x0, y0, z0), dz, dx},
		FaceCeiling: {core.NewVec3(x0, b.Max.Y, z0), dx, dz},
		FaceLeft:    {core.NewVec3(x0, y0, z0), dy, dz},
		FaceRight:   {core.NewVec3(b.Max.X, y0, z0), dz, dy},
		FaceBack:    {core.NewVec3(x0, y0, z0), dx, dy},
		FaceFront:   {core.NewVec3(x0, y0, b.Max.Z), dy, dx},
	}

	for i, s := range specs {
		u, v := s.u, s.v
		if !b.Inward {
			u, v = v, u
		}
		b.faces[i] = NewQuad(s.corner, u, v, bsdf)
	}
}

// SetFaceMaterial replaces the scattering function of one face
func (b *Box) SetFaceMaterial(face Face, bsdf material.BSDF) {
	b.faces[face].Material = bsdf
}

// Faces returns the six quads of the box
func (b *Box) Faces() []*Quad {
	return b.faces[:]
}

// Hit returns the closest face intersection
func (b *Box) Hit(ray core.Ray, tMin, tMax float64) (*material.SurfaceInteraction, bool) {
	var closest *material.SurfaceInteraction
	for _, face := range b.faces {
		if si, ok := face.Hit(ray, tMin, tMax); ok {
			closest = si
			tMax = si.T
		}
	}
	return closest, closest != nil
}

// BoundingBox returns the bounding box of the box
func (b *Box) BoundingBox() AABB {
	return b.bbox
}

// Volume returns the enclosed volume
func (b *Box) Volume() float64 {
	d := b.Max.Subtract(b.Min)
	return d.X * d.Y * d.Z
}

// SurfaceArea returns the total area of the six faces
func (b *Box) SurfaceArea() float64 {
	d := b.Max.Subtract(b.Min)
	return 2 * (d.X*d.Y + d.Y*d.Z + d.Z*d.X)
}
