package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/emitters"
	"github.com/df07/go-acoustic-raytracer/pkg/geometry"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

// rayEpsilon keeps spawned rays from hitting the surface they start on
const rayEpsilon = 1e-4

// Scene contains all the elements needed for an acoustic render
type Scene struct {
	Name           string
	Microphone     *sensor.Microphone       // Default receiver
	Shapes         []geometry.Shape         // Surfaces in the scene, sources included
	Emitters       []emitters.Emitter       // Sound sources in the scene
	EmitterSampler *emitters.UniformSampler // Emitter selection for next event estimation
	BVH            *geometry.BVH            // Acceleration structure for ray-object intersection
}

// Preprocess builds the acceleration structure and the emitter sampler
func (s *Scene) Preprocess() error {
	if len(s.Emitters) == 0 {
		return fmt.Errorf("%w: scene %q has no sound sources", core.ErrConfig, s.Name)
	}
	if s.Microphone == nil {
		return fmt.Errorf("%w: scene %q has no microphone", core.ErrConfig, s.Name)
	}

	s.BVH = geometry.NewBVH(s.Shapes)
	s.EmitterSampler = emitters.NewUniformSampler(s.Emitters)
	return nil
}

// Intersect returns the closest surface hit along ray
func (s *Scene) Intersect(ray core.Ray) (*material.SurfaceInteraction, bool) {
	return s.BVH.Hit(ray, rayEpsilon, math.Inf(1))
}

// SampleEmitterDirection samples a direction toward a random source and
// tests it for occlusion. Source surfaces do not occlude.
func (s *Scene) SampleEmitterDirection(ref *material.SurfaceInteraction, sample core.Vec2) (emitters.DirectionSample, float64) {
	ds, weight := s.EmitterSampler.SampleDirection(ref, sample)
	if weight == 0 {
		return ds, 0
	}

	shadowRay := ref.SpawnRay(ds.Direction)
	if hit, ok := s.BVH.Hit(shadowRay, rayEpsilon, ds.Distance*(1-rayEpsilon)); ok && hit.Emitter == nil {
		return ds, 0
	}
	return ds, weight
}

// PDFEmitterDirection returns the density of SampleEmitterDirection producing ds
func (s *Scene) PDFEmitterDirection(ref *material.SurfaceInteraction, ds emitters.DirectionSample) float64 {
	return s.EmitterSampler.PDFDirection(ref, ds)
}

// AddShape adds a passive surface
func (s *Scene) AddShape(shape geometry.Shape) {
	s.Shapes = append(s.Shapes, shape)
}

// AddRoom adds an enclosing box whose faces point inward
func (s *Scene) AddRoom(min, max core.Vec3, bsdf material.BSDF) *geometry.Box {
	room := geometry.NewRoom(min, max, bsdf)
	s.Shapes = append(s.Shapes, room)
	return room
}

// AddSphereEmitter adds a spherical source. A positive blur fades its emission at grazing angles.
func (s *Scene) AddSphereEmitter(center core.Vec3, radius float64, radiance material.Spectrum, blur float64) *emitters.SphereEmitter {
	source := emitters.NewSmoothSphereEmitter(center, radius, radiance, blur)
	s.Emitters = append(s.Emitters, source)
	s.Shapes = append(s.Shapes, source.Sphere)
	return source
}

// AddPointEmitter adds a point source, which can only be reached by emitter sampling
func (s *Scene) AddPointEmitter(position core.Vec3, intensity material.Spectrum) *emitters.PointEmitter {
	source := emitters.NewPointEmitter(position, intensity)
	s.Emitters = append(s.Emitters, source)
	return source
}

// GetPrimitiveCount returns the number of primitive surfaces in the scene
func (s *Scene) GetPrimitiveCount() int {
	count := 0
	for _, shape := range s.Shapes {
		switch obj := shape.(type) {
		case *geometry.Box:
			count += len(obj.Faces())
		default:
			count++
		}
	}
	return count
}
