package scene

import (
	"fmt"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/geometry"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
	"github.com/df07/go-acoustic-raytracer/pkg/sensor"
)

// DefaultFrequencies are the octave band centres used by the built-in scenes
var DefaultFrequencies = []float64{125, 250, 500, 1000, 2000, 4000}

// builtinScene pairs the listing metadata of a scene with its constructor
type builtinScene struct {
	info   SceneInfo
	create func() *Scene
}

var builtinScenes = []builtinScene{
	{
		info: SceneInfo{
			ID:          "shoebox",
			Name:        "Shoebox Room",
			Description: "25 x 12 x 7 m room with partly scattering walls and a spherical source",
		},
		create: NewShoeboxScene,
	},
	{
		info: SceneInfo{
			ID:          "corridor",
			Name:        "Specular Corridor",
			Description: "Long corridor with mirror walls producing a regular echo train",
		},
		create: NewCorridorScene,
	},
	{
		info: SceneInfo{
			ID:          "sphere-room",
			Name:        "Sphere Room",
			Description: "5 m cube with a diffuse spherical obstacle and a smooth source",
		},
		create: NewSphereRoomScene,
	},
}

// NewBuiltinScene creates a built-in scene by id
func NewBuiltinScene(id string) (*Scene, error) {
	for _, b := range builtinScenes {
		if b.info.ID == id {
			return b.create(), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown scene %q", core.ErrConfig, id)
}

// BuiltinSceneInfos lists the built-in scenes
func BuiltinSceneInfos() []SceneInfo {
	infos := make([]SceneInfo, len(builtinScenes))
	for i, b := range builtinScenes {
		infos[i] = b.info
		infos[i].DisplayName = b.info.Name
		infos[i].Group = BuiltinGroup
		infos[i].Type = "builtin"
	}
	return infos
}

func newDefaultMicrophone(position core.Vec3) *sensor.Microphone {
	freqs := make([]float64, len(DefaultFrequencies))
	copy(freqs, DefaultFrequencies)
	return &sensor.Microphone{Position: position, Frequencies: freqs}
}

// mustIrregular builds a tabulated spectrum from constant tables
func mustIrregular(frequencies, values []float64) *material.Irregular {
	spec, err := material.NewIrregular(frequencies, values)
	if err != nil {
		panic(err)
	}
	return spec
}

func mustPreprocess(s *Scene) *Scene {
	if err := s.Preprocess(); err != nil {
		panic(err)
	}
	return s
}

// NewShoeboxScene creates a rectangular room with frequency dependent walls
func NewShoeboxScene() *Scene {
	s := &Scene{Name: "shoebox"}

	walls := material.NewAcoustic(
		mustIrregular(DefaultFrequencies, []float64{0.10, 0.15, 0.20, 0.25, 0.30, 0.35}),
		material.Uniform(0.2),
	)
	s.AddRoom(core.NewVec3(0, 0, 0), core.NewVec3(25, 12, 7), walls)

	s.AddSphereEmitter(core.NewVec3(20, 8, 3), 0.5, material.Uniform(1), 0)
	s.Microphone = newDefaultMicrophone(core.NewVec3(9, 6, 1))

	return mustPreprocess(s)
}

// NewCorridorScene creates a narrow corridor whose mirror walls produce
// repeating reflections between the source and the receiver
func NewCorridorScene() *Scene {
	s := &Scene{Name: "corridor"}

	mirror := material.NewSpecular(material.Uniform(0.05))
	s.AddRoom(core.NewVec3(0, 0, 0), core.NewVec3(40, 3, 3), mirror)

	s.AddSphereEmitter(core.NewVec3(35, 1.5, 1.5), 0.5, material.Uniform(1), 0)
	s.Microphone = newDefaultMicrophone(core.NewVec3(5, 1.5, 1.5))

	return mustPreprocess(s)
}

// NewSphereRoomScene creates a cube room with a diffuse sphere between the
// source and the receiver
func NewSphereRoomScene() *Scene {
	s := &Scene{Name: "sphere-room"}

	walls := material.NewAcoustic(
		mustIrregular([]float64{125, 1000, 4000}, []float64{0.1, 0.5, 0.9}),
		material.Uniform(0.5),
	)
	s.AddRoom(core.NewVec3(0, 0, 0), core.NewVec3(5, 5, 5), walls)

	obstacle := material.NewDiffuse(material.Uniform(0.3))
	s.AddShape(geometry.NewSphere(core.NewVec3(2.5, 2.5, 2.5), 1.0, obstacle))

	s.AddSphereEmitter(core.NewVec3(1, 1, 1), 0.25, material.Uniform(1), 0.1)
	s.Microphone = newDefaultMicrophone(core.NewVec3(4, 4, 1))

	return mustPreprocess(s)
}
