package emitters

import (
	"math"
	"testing"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

const tolerance = 1e-9

func refAt(p core.Vec3) *material.SurfaceInteraction {
	return &material.SurfaceInteraction{Point: p, Normal: core.NewVec3(0, 1, 0), T: 1, Frequency: 1000}
}

func TestSphereEmitter_SampleDirectionFromOutside(t *testing.T) {
	emitter := NewSphereEmitter(core.NewVec3(0, 0, 0), 1.0, material.Uniform(3))
	ref := refAt(core.NewVec3(0, 0, 5))
	sampler := core.NewSeededSampler(42)

	cosThetaMax := math.Sqrt(1 - 1.0/25.0)
	expectedWeight := 3.0 * 2 * math.Pi * (1 - cosThetaMax)

	for i := 0; i < 100; i++ {
		ds, weight := emitter.SampleDirection(ref, sampler.Get2D())
		if ds.PDF <= 0 {
			continue // grazing sample
		}
		if ds.Emitter != emitter {
			t.Fatalf("Expected sample to reference its emitter")
		}
		if math.Abs(ds.Point.Length()-1.0) > 1e-6 {
			t.Errorf("Expected sample on sphere surface, got %v", ds.Point)
		}
		if ds.Direction.Dot(ds.Normal) >= 0 {
			t.Errorf("Expected direction to face the visible side, got d=%v n=%v", ds.Direction, ds.Normal)
		}
		if math.Abs(weight-expectedWeight) > 1e-6 {
			t.Errorf("Expected weight %v, got %v", expectedWeight, weight)
		}
		if pdf := emitter.PDFDirection(ref, ds); math.Abs(pdf-ds.PDF) > tolerance {
			t.Errorf("Expected PDFDirection %v to match sampled pdf %v", pdf, ds.PDF)
		}
	}
}

func TestSphereEmitter_SampleDirectionFromInside(t *testing.T) {
	emitter := NewSphereEmitter(core.NewVec3(0, 0, 0), 2.0, material.Uniform(1))
	ref := refAt(core.NewVec3(0.5, 0, 0))
	sampler := core.NewSeededSampler(42)

	for i := 0; i < 50; i++ {
		ds, weight := emitter.SampleDirection(ref, sampler.Get2D())
		// From inside every surface point faces away from ref, so nothing is emitted toward it
		if weight != 0 {
			t.Errorf("Expected zero weight from inside the sphere, got %v", weight)
		}
		if math.Abs(ds.Point.Length()-2.0) > 1e-9 {
			t.Errorf("Expected sample on sphere surface, got %v", ds.Point)
		}
	}
}

func TestSphereEmitter_Eval(t *testing.T) {
	emitter := NewSphereEmitter(core.NewVec3(0, 0, 0), 1.0, material.Uniform(2))

	outside, ok := emitter.Hit(core.NewRay(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1)), 0.001, 100)
	if !ok {
		t.Fatal("Expected hit from outside")
	}
	if got := emitter.Eval(outside); math.Abs(got-2) > tolerance {
		t.Errorf("Expected emission 2 from outside, got %v", got)
	}
	if outside.Emitter != emitter {
		t.Error("Expected surface interaction to reference the emitter")
	}
	if !outside.Material.Flags().Has(material.Null) {
		t.Error("Expected emitter surface to be pass-through")
	}

	inside, ok := emitter.Hit(core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1)), 0.001, 100)
	if !ok {
		t.Fatal("Expected hit from inside")
	}
	if got := emitter.Eval(inside); got != 0 {
		t.Errorf("Expected no emission from inside, got %v", got)
	}
}

func TestSphereEmitter_Profile(t *testing.T) {
	emitter := NewSmoothSphereEmitter(core.NewVec3(0, 0, 0), 1.0, material.Uniform(1), DefaultBlur)

	tests := []struct {
		x        float64
		expected float64
	}{
		{0.0, 0.0},
		{0.05, 0.5},
		{0.1, 1.0},
		{0.5, 1.0},
	}
	for _, tt := range tests {
		if got := emitter.Profile(tt.x); math.Abs(got-tt.expected) > tolerance {
			t.Errorf("Profile(%v): expected %v, got %v", tt.x, tt.expected, got)
		}
	}

	// Normal incidence is unaffected, grazing incidence fades out
	head, _ := emitter.Hit(core.NewRay(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1)), 0.001, 100)
	if got := emitter.Eval(head); math.Abs(got-1) > tolerance {
		t.Errorf("Expected full emission at normal incidence, got %v", got)
	}
	graze, ok := emitter.Hit(core.NewRay(core.NewVec3(-5, 0.999, 0), core.NewVec3(1, 0, 0)), 0.001, 100)
	if !ok {
		t.Fatal("Expected grazing hit")
	}
	if got := emitter.Eval(graze); got >= 1 {
		t.Errorf("Expected attenuated emission at grazing incidence, got %v", got)
	}
}

func TestPointEmitter_SampleDirection(t *testing.T) {
	emitter := NewPointEmitter(core.NewVec3(0, 2, 0), material.Uniform(8))
	ref := refAt(core.NewVec3(0, 0, 0))

	ds, weight := emitter.SampleDirection(ref, core.NewVec2(0.3, 0.7))
	if !ds.Delta {
		t.Error("Expected delta sample")
	}
	if math.Abs(ds.Distance-2) > tolerance {
		t.Errorf("Expected distance 2, got %v", ds.Distance)
	}
	if math.Abs(weight-2) > tolerance {
		t.Errorf("Expected inverse square weight 2, got %v", weight)
	}
	if pdf := emitter.PDFDirection(ref, ds); pdf != 0 {
		t.Errorf("Expected zero pdf for delta emitter, got %v", pdf)
	}
}

func TestUniformSampler_Select(t *testing.T) {
	a := NewPointEmitter(core.NewVec3(1, 0, 0), material.Uniform(1))
	b := NewPointEmitter(core.NewVec3(-1, 0, 0), material.Uniform(1))
	sampler := NewUniformSampler([]Emitter{a, b})

	tests := []struct {
		u         float64
		expected  Emitter
		remainder float64
	}{
		{0.0, a, 0.0},
		{0.25, a, 0.5},
		{0.75, b, 0.5},
		{1.0, b, 1.0},
	}
	for _, tt := range tests {
		emitter, prob, rest := sampler.Select(tt.u)
		if emitter != tt.expected {
			t.Errorf("Select(%v): unexpected emitter", tt.u)
		}
		if prob != 0.5 {
			t.Errorf("Select(%v): expected probability 0.5, got %v", tt.u, prob)
		}
		if math.Abs(rest-tt.remainder) > tolerance {
			t.Errorf("Select(%v): expected remainder %v, got %v", tt.u, tt.remainder, rest)
		}
	}
}

func TestUniformSampler_IncludesSelectionProbability(t *testing.T) {
	emitter := NewSphereEmitter(core.NewVec3(0, 0, 0), 1.0, material.Uniform(1))
	other := NewSphereEmitter(core.NewVec3(10, 0, 0), 1.0, material.Uniform(1))
	sampler := NewUniformSampler([]Emitter{emitter, other})
	ref := refAt(core.NewVec3(0, 0, 4))

	single, singleWeight := emitter.SampleDirection(ref, core.NewVec2(0.5, 0.5))
	ds, weight := sampler.SampleDirection(ref, core.NewVec2(0.25, 0.5))

	if math.Abs(ds.PDF-single.PDF/2) > tolerance {
		t.Errorf("Expected pdf %v, got %v", single.PDF/2, ds.PDF)
	}
	if math.Abs(weight-singleWeight*2) > 1e-9 {
		t.Errorf("Expected weight %v, got %v", singleWeight*2, weight)
	}
	if pdf := sampler.PDFDirection(ref, ds); math.Abs(pdf-ds.PDF) > tolerance {
		t.Errorf("Expected PDFDirection %v, got %v", ds.PDF, pdf)
	}
}

func TestUniformSampler_Empty(t *testing.T) {
	sampler := NewUniformSampler(nil)
	if _, weight := sampler.SampleDirection(refAt(core.NewVec3(0, 0, 0)), core.NewVec2(0.5, 0.5)); weight != 0 {
		t.Errorf("Expected zero weight from empty sampler, got %v", weight)
	}
}

func TestNewDirectionSample(t *testing.T) {
	emitter := NewSphereEmitter(core.NewVec3(0, 0, 0), 1.0, material.Uniform(1))
	ref := refAt(core.NewVec3(0, 0, 5))
	hit, _ := emitter.Hit(core.NewRay(ref.Point, core.NewVec3(0, 0, -1)), 0.001, 100)

	ds := NewDirectionSample(ref, hit)
	if ds.Emitter != emitter {
		t.Error("Expected emitter to be recovered from the hit")
	}
	if math.Abs(ds.Distance-4) > tolerance {
		t.Errorf("Expected distance 4, got %v", ds.Distance)
	}
	if ds.Normal.Subtract(core.NewVec3(0, 0, 1)).Length() > tolerance {
		t.Errorf("Expected outward normal (0,0,1), got %v", ds.Normal)
	}
	if pdf := emitter.PDFDirection(ref, ds); pdf <= 0 {
		t.Errorf("Expected positive pdf for hit direction, got %v", pdf)
	}
}
