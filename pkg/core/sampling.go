package core

import (
	"math"
	"math/rand/v2"
)

// Sampler provides random sampling for the estimators.
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
}

// ReseedableSampler is a sampler whose sequence can be restarted from a seed
type ReseedableSampler interface {
	Sampler
	Seed(seed uint64)
}

// pcgStream is the fixed low half of the PCG state; the seed fills the high half
const pcgStream = 0xda3e39cb94b95bdb

// RandomSampler draws from a PCG generator seeded with the full 64 bits
type RandomSampler struct {
	pcg    *rand.PCG
	random *rand.Rand
}

// NewSeededSampler creates a sampler whose sequence is fully determined by seed
func NewSeededSampler(seed uint64) *RandomSampler {
	pcg := rand.NewPCG(seed, pcgStream)
	return &RandomSampler{pcg: pcg, random: rand.New(pcg)}
}

// Seed restarts the sample sequence
func (r *RandomSampler) Seed(seed uint64) {
	r.pcg.Seed(seed, pcgStream)
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// OrthonormalBasis builds two tangents perpendicular to w (which must be normalized)
func OrthonormalBasis(w Vec3) (u, v Vec3) {
	if math.Abs(w.X) > 0.1 {
		u = NewVec3(0, 1, 0)
	} else {
		u = NewVec3(1, 0, 0)
	}
	u = u.Cross(w).Normalize()
	v = w.Cross(u)
	return u, v
}

// SampleCosineHemisphere generates a cosine-weighted random direction in hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	r := math.Sqrt(sample.Y)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	z := math.Sqrt(math.Max(0, 1.0-sample.Y))

	tangent, bitangent := OrthonormalBasis(normal)
	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(z))
}

// CosineHemispherePDF is the density of SampleCosineHemisphere for a given cosine
func CosineHemispherePDF(cosTheta float64) float64 {
	if cosTheta <= 0 {
		return 0
	}
	return cosTheta / math.Pi
}

// SampleCone samples a direction uniformly within a cone
func SampleCone(direction Vec3, cosTotalWidth float64, sample Vec2) Vec3 {
	u, v := OrthonormalBasis(direction)

	cosTheta := 1.0 - sample.X*(1.0-cosTotalWidth)
	sinTheta := math.Sqrt(math.Max(0, 1.0-cosTheta*cosTheta))
	phi := 2.0 * math.Pi * sample.Y

	x := sinTheta * math.Cos(phi)
	y := sinTheta * math.Sin(phi)
	return u.Multiply(x).Add(v.Multiply(y)).Add(direction.Multiply(cosTheta))
}

// UniformConePDF calculates the PDF for uniform sampling within a cone
func UniformConePDF(cosTotalWidth float64) float64 {
	return 1.0 / (2.0 * math.Pi * (1.0 - cosTotalWidth))
}

// SampleOnUnitSphere generates a uniform random direction on the unit sphere
func SampleOnUnitSphere(sample Vec2) Vec3 {
	z := 1.0 - 2.0*sample.X // z ∈ [-1, 1]
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := 2.0 * math.Pi * sample.Y
	return NewVec3(r*math.Cos(phi), r*math.Sin(phi), z)
}

// UniformSpherePDF is the solid angle density of SampleOnUnitSphere
func UniformSpherePDF() float64 {
	return 1.0 / (4.0 * math.Pi)
}
