package loaders

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/minio/highwayhash"
	"gopkg.in/yaml.v3"
)

// FingerprintKey is the fixed HighwayHash key for room file fingerprints,
// so the same content always yields the same fingerprint
var FingerprintKey = []byte("acoustic room fingerprint key\x00\x00\x00")

// Format is the encoding of a room description file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Vec3 is a point or vector written as a three element array
type Vec3 [3]float64

// ToVec3 converts to the renderer's vector type
func (v Vec3) ToVec3() core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}

// SpectrumSpec is either a single value or a frequency/value table
type SpectrumSpec struct {
	Value       *float64  `json:"value,omitempty" yaml:"value,omitempty"`
	Frequencies []float64 `json:"frequencies,omitempty" yaml:"frequencies,omitempty"`
	Values      []float64 `json:"values,omitempty" yaml:"values,omitempty"`
}

// IsZero reports whether the spectrum was left out of the file
func (s SpectrumSpec) IsZero() bool {
	return s.Value == nil && len(s.Frequencies) == 0 && len(s.Values) == 0
}

// MaterialSpec describes a wall material
type MaterialSpec struct {
	Type       string       `json:"type" yaml:"type"` // specular, diffuse or acoustic
	Absorption SpectrumSpec `json:"absorption" yaml:"absorption"`
	Scattering SpectrumSpec `json:"scattering" yaml:"scattering"`
}

// BoxSpec describes an axis aligned box. Faces overrides the material per face.
type BoxSpec struct {
	Min      Vec3              `json:"min" yaml:"min"`
	Max      Vec3              `json:"max" yaml:"max"`
	Material string            `json:"material" yaml:"material"`
	Faces    map[string]string `json:"faces,omitempty" yaml:"faces,omitempty"`
}

// SphereSpec describes a passive spherical obstacle
type SphereSpec struct {
	Center   Vec3    `json:"center" yaml:"center"`
	Radius   float64 `json:"radius" yaml:"radius"`
	Material string  `json:"material" yaml:"material"`
}

// QuadSpec describes a rectangular panel
type QuadSpec struct {
	Corner   Vec3   `json:"corner" yaml:"corner"`
	U        Vec3   `json:"u" yaml:"u"`
	V        Vec3   `json:"v" yaml:"v"`
	Material string `json:"material" yaml:"material"`
}

// EmitterSpec describes a sound source
type EmitterSpec struct {
	Type     string       `json:"type" yaml:"type"` // sphere or point
	Position Vec3         `json:"position" yaml:"position"`
	Radius   float64      `json:"radius,omitempty" yaml:"radius,omitempty"`
	Radiance SpectrumSpec `json:"radiance" yaml:"radiance"`
	Blur     float64      `json:"blur,omitempty" yaml:"blur,omitempty"`
}

// OctaveSpec selects the centres of the 1/Fraction octave bands in [Min, Max]
type OctaveSpec struct {
	Fraction int     `json:"fraction" yaml:"fraction"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
}

// MicrophoneSpec describes the receiver and its bands
type MicrophoneSpec struct {
	Position    Vec3        `json:"position" yaml:"position"`
	Frequencies []float64   `json:"frequencies,omitempty" yaml:"frequencies,omitempty"`
	Octave      *OctaveSpec `json:"octave,omitempty" yaml:"octave,omitempty"`
}

// RenderSpec carries optional render defaults; zero values mean unset
type RenderSpec struct {
	MaxTime         float64 `json:"maxTime,omitempty" yaml:"maxTime,omitempty"`
	TimeSteps       int     `json:"timeSteps,omitempty" yaml:"timeSteps,omitempty"`
	SamplesPerPixel int     `json:"spp,omitempty" yaml:"spp,omitempty"`
	SamplesPerPass  int     `json:"samplesPerPass,omitempty" yaml:"samplesPerPass,omitempty"`
	MaxDepth        *int    `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
}

// RoomDescription is the file form of an acoustic scene
type RoomDescription struct {
	Name        string                  `json:"name" yaml:"name"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Group       string                  `json:"group,omitempty" yaml:"group,omitempty"`
	Materials   map[string]MaterialSpec `json:"materials" yaml:"materials"`
	Room        *BoxSpec                `json:"room,omitempty" yaml:"room,omitempty"`
	Boxes       []BoxSpec               `json:"boxes,omitempty" yaml:"boxes,omitempty"`
	Spheres     []SphereSpec            `json:"spheres,omitempty" yaml:"spheres,omitempty"`
	Quads       []QuadSpec              `json:"quads,omitempty" yaml:"quads,omitempty"`
	Emitters    []EmitterSpec           `json:"emitters" yaml:"emitters"`
	Microphone  MicrophoneSpec          `json:"microphone" yaml:"microphone"`
	Render      RenderSpec              `json:"render,omitempty" yaml:"render,omitempty"`

	// Set by LoadRoom
	Path        string `json:"-" yaml:"-"`
	Fingerprint string `json:"-" yaml:"-"`
}

// FormatFromPath picks the encoding from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported room file extension %q", core.ErrConfig, filepath.Ext(path))
	}
}

// ParseRoom decodes and validates a room description. Unknown fields are rejected.
func ParseRoom(reader io.Reader, format Format) (*RoomDescription, error) {
	var desc RoomDescription

	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(reader)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&desc); err != nil {
			return nil, fmt.Errorf("%w: failed to decode JSON room: %v", core.ErrConfig, err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(reader)
		decoder.KnownFields(true)
		if err := decoder.Decode(&desc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to decode YAML room: %v", core.ErrConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown room format %q", core.ErrConfig, format)
	}

	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// LoadRoom reads a room description from disk and fingerprints its content
func LoadRoom(filename string) (*RoomDescription, error) {
	format, err := FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read room file: %w", err)
	}

	desc, err := ParseRoom(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	desc.Path = filename
	desc.Fingerprint, err = Fingerprint(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return desc, nil
}

// Fingerprint returns the hex HighwayHash-256 of the content
func Fingerprint(reader io.Reader) (string, error) {
	hash, err := highwayhash.New(FingerprintKey)
	if err != nil {
		return "", fmt.Errorf("failed to create hash: %w", err)
	}
	if _, err := io.Copy(hash, reader); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

var (
	materialTypes = map[string]bool{"specular": true, "diffuse": true, "acoustic": true}
	faceNames     = map[string]bool{"floor": true, "ceiling": true, "left": true, "right": true, "back": true, "front": true}
)

// Validate checks references and value ranges
func (d *RoomDescription) Validate() error {
	for name, m := range d.Materials {
		if !materialTypes[m.Type] {
			return fmt.Errorf("%w: material %q has unknown type %q", core.ErrConfig, name, m.Type)
		}
		if err := m.Absorption.validate(); err != nil {
			return fmt.Errorf("material %q absorption: %w", name, err)
		}
		if err := m.Scattering.validate(); err != nil {
			return fmt.Errorf("material %q scattering: %w", name, err)
		}
	}

	boxes := d.Boxes
	if d.Room != nil {
		boxes = append([]BoxSpec{*d.Room}, boxes...)
	}
	for i, b := range boxes {
		if !(b.Min[0] < b.Max[0] && b.Min[1] < b.Max[1] && b.Min[2] < b.Max[2]) {
			return fmt.Errorf("%w: box %d has an empty extent", core.ErrConfig, i)
		}
		if err := d.checkMaterial(b.Material); err != nil {
			return err
		}
		for face, mat := range b.Faces {
			if !faceNames[face] {
				return fmt.Errorf("%w: box %d has unknown face %q", core.ErrConfig, i, face)
			}
			if err := d.checkMaterial(mat); err != nil {
				return err
			}
		}
	}

	for i, s := range d.Spheres {
		if !(s.Radius > 0) {
			return fmt.Errorf("%w: sphere %d radius must be positive", core.ErrConfig, i)
		}
		if err := d.checkMaterial(s.Material); err != nil {
			return err
		}
	}
	for _, q := range d.Quads {
		if err := d.checkMaterial(q.Material); err != nil {
			return err
		}
	}

	if len(d.Emitters) == 0 {
		return fmt.Errorf("%w: room needs at least one emitter", core.ErrConfig)
	}
	for i, e := range d.Emitters {
		switch e.Type {
		case "sphere":
			if !(e.Radius > 0) {
				return fmt.Errorf("%w: emitter %d radius must be positive", core.ErrConfig, i)
			}
		case "point":
		default:
			return fmt.Errorf("%w: emitter %d has unknown type %q", core.ErrConfig, i, e.Type)
		}
		if err := e.Radiance.validate(); err != nil {
			return fmt.Errorf("emitter %d radiance: %w", i, err)
		}
	}

	mic := d.Microphone
	if len(mic.Frequencies) == 0 && mic.Octave == nil {
		return fmt.Errorf("%w: microphone needs frequencies or an octave band range", core.ErrConfig)
	}
	return nil
}

func (d *RoomDescription) checkMaterial(name string) error {
	if _, ok := d.Materials[name]; !ok {
		return fmt.Errorf("%w: unknown material %q", core.ErrConfig, name)
	}
	return nil
}

func (s SpectrumSpec) validate() error {
	if s.Value != nil && len(s.Frequencies) > 0 {
		return fmt.Errorf("%w: spectrum has both a value and a table", core.ErrConfig)
	}
	if len(s.Frequencies) != len(s.Values) {
		return fmt.Errorf("%w: spectrum has %d frequencies but %d values", core.ErrConfig, len(s.Frequencies), len(s.Values))
	}
	return nil
}
