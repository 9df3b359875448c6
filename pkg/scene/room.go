package scene

import (
	"fmt"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/geometry"
	"github.com/df07/go-acoustic-raytracer/pkg/loaders"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

var faceByName = map[string]geometry.Face{
	"floor":   geometry.FaceFloor,
	"ceiling": geometry.FaceCeiling,
	"left":    geometry.FaceLeft,
	"right":   geometry.FaceRight,
	"back":    geometry.FaceBack,
	"front":   geometry.FaceFront,
}

// NewRoomScene loads a JSON or YAML room description and builds its scene
func NewRoomScene(filename string) (*Scene, *loaders.RoomDescription, error) {
	desc, err := loaders.LoadRoom(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load room file: %w", err)
	}
	s, err := NewSceneFromDescription(desc)
	if err != nil {
		return nil, nil, err
	}
	return s, desc, nil
}

// NewSceneFromDescription converts a parsed room description into a ready scene
func NewSceneFromDescription(desc *loaders.RoomDescription) (*Scene, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	s := &Scene{Name: desc.Name}

	materials := make(map[string]material.BSDF, len(desc.Materials))
	for name, spec := range desc.Materials {
		bsdf, err := convertMaterial(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to convert material %q: %w", name, err)
		}
		materials[name] = bsdf
	}

	if desc.Room != nil {
		room := s.AddRoom(desc.Room.Min.ToVec3(), desc.Room.Max.ToVec3(), materials[desc.Room.Material])
		applyFaces(room, desc.Room.Faces, materials)
	}
	for _, b := range desc.Boxes {
		box := geometry.NewBox(b.Min.ToVec3(), b.Max.ToVec3(), materials[b.Material])
		applyFaces(box, b.Faces, materials)
		s.AddShape(box)
	}
	for _, sp := range desc.Spheres {
		s.AddShape(geometry.NewSphere(sp.Center.ToVec3(), sp.Radius, materials[sp.Material]))
	}
	for _, q := range desc.Quads {
		s.AddShape(geometry.NewQuad(q.Corner.ToVec3(), q.U.ToVec3(), q.V.ToVec3(), materials[q.Material]))
	}

	for i, e := range desc.Emitters {
		radiance, err := convertSpectrum(e.Radiance, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert emitter %d: %w", i, err)
		}
		switch e.Type {
		case "sphere":
			s.AddSphereEmitter(e.Position.ToVec3(), e.Radius, radiance, e.Blur)
		case "point":
			s.AddPointEmitter(e.Position.ToVec3(), radiance)
		}
	}

	mic, err := convertMicrophone(desc.Microphone)
	if err != nil {
		return nil, err
	}
	s.Microphone = mic

	if err := s.Preprocess(); err != nil {
		return nil, err
	}
	return s, nil
}

func applyFaces(box *geometry.Box, faces map[string]string, materials map[string]material.BSDF) {
	for name, mat := range faces {
		if face, ok := faceByName[name]; ok {
			box.SetFaceMaterial(face, materials[mat])
		}
	}
}

// convertSpectrum returns a Uniform for single values, an Irregular for
// tables and the fallback when the spectrum is left out
func convertSpectrum(spec loaders.SpectrumSpec, fallback float64) (material.Spectrum, error) {
	switch {
	case spec.Value != nil:
		return material.Uniform(*spec.Value), nil
	case len(spec.Frequencies) > 0:
		return material.NewIrregular(spec.Frequencies, spec.Values)
	default:
		return material.Uniform(fallback), nil
	}
}

func convertMaterial(spec loaders.MaterialSpec) (material.BSDF, error) {
	absorption, err := convertSpectrum(spec.Absorption, 0)
	if err != nil {
		return nil, err
	}

	switch spec.Type {
	case "specular":
		return material.NewSpecular(absorption), nil
	case "diffuse":
		return material.NewDiffuse(absorption), nil
	case "acoustic":
		scattering, err := convertSpectrum(spec.Scattering, 0)
		if err != nil {
			return nil, err
		}
		return material.NewAcoustic(absorption, scattering), nil
	default:
		return nil, fmt.Errorf("%w: unknown material type %q", core.ErrConfig, spec.Type)
	}
}

func convertMicrophone(spec loaders.MicrophoneSpec) (*sensor.Microphone, error) {
	if spec.Octave != nil {
		return sensor.NewOctaveMicrophone(spec.Position.ToVec3(), spec.Octave.Fraction, spec.Octave.Min, spec.Octave.Max)
	}
	return sensor.NewMicrophone(spec.Position.ToVec3(), spec.Frequencies)
}
