package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/emitters"
	"github.com/df07/go-acoustic-raytracer/pkg/geometry"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
	"github.com/df07/go-acoustic-raytracer/pkg/scene"
)

// InspectResponse represents the JSON response for surface inspection
type InspectResponse struct {
	Hit          bool                   `json:"hit"`
	MaterialType string                 `json:"materialType"`
	GeometryType string                 `json:"geometryType"`
	Emitter      bool                   `json:"emitter"`
	Point        [3]float64             `json:"point"`
	Normal       [3]float64             `json:"normal"`
	Distance     float64                `json:"distance"`
	ArrivalTime  float64                `json:"arrivalTime"` // Seconds for sound to travel Distance
	FrontFace    bool                   `json:"frontFace"`
	Properties   map[string]interface{} `json:"properties"`
}

func vec3Array(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// extractMaterialInfo describes a surface response at one frequency
func (s *Server) extractMaterialInfo(bsdf material.BSDF, frequency float64) (string, map[string]interface{}) {
	properties := map[string]interface{}{"frequency": frequency}

	switch m := bsdf.(type) {
	case *material.Specular:
		properties["absorption"] = m.Absorption.Eval(frequency)
		properties["reflectance"] = material.Reflectance(m.Absorption, frequency)
		return "specular", properties

	case *material.Diffuse:
		properties["absorption"] = m.Absorption.Eval(frequency)
		properties["reflectance"] = material.Reflectance(m.Absorption, frequency)
		return "diffuse", properties

	case *material.Acoustic:
		properties["absorption"] = m.Absorption.Eval(frequency)
		properties["reflectance"] = material.Reflectance(m.Absorption, frequency)
		properties["scattering"] = m.Scattering.Eval(frequency)
		properties["description"] = fmt.Sprintf("%.0f%% diffuse, %.0f%% specular",
			m.Scattering.Eval(frequency)*100, (1-m.Scattering.Eval(frequency))*100)
		return "acoustic", properties

	case *material.PassThrough:
		return "passthrough", properties

	default:
		return "unknown", properties
	}
}

// extractGeometryInfo extracts detailed geometry information
func (s *Server) extractGeometryInfo(shape geometry.Shape) (string, map[string]interface{}) {
	properties := make(map[string]interface{})

	switch geom := shape.(type) {
	case *geometry.Sphere:
		properties["center"] = vec3Array(geom.Center)
		properties["radius"] = geom.Radius
		if geom.Emitter != nil {
			return "sphere_source", properties
		}
		return "sphere", properties

	case *geometry.Quad:
		properties["corner"] = vec3Array(geom.Corner)
		properties["u"] = vec3Array(geom.U)
		properties["v"] = vec3Array(geom.V)
		properties["normal"] = vec3Array(geom.Normal)
		return "quad", properties

	case *geometry.Box:
		properties["min"] = vec3Array(geom.Min)
		properties["max"] = vec3Array(geom.Max)
		properties["volume"] = geom.Volume()
		properties["surfaceArea"] = geom.SurfaceArea()
		if geom.Inward {
			return "room", properties
		}
		return "box", properties

	default:
		return "unknown", properties
	}
}

// extractEmitterInfo describes a source hit directly by the inspection ray
func (s *Server) extractEmitterInfo(emitter material.Emitter, si *material.SurfaceInteraction) map[string]interface{} {
	properties := map[string]interface{}{"emitted": emitter.Eval(si)}
	if sphere, ok := emitter.(*emitters.SphereEmitter); ok {
		properties["blur"] = sphere.Blur
	}
	return properties
}

// InspectResult contains the first surface hit by an inspection ray
type InspectResult struct {
	Hit       bool
	HitRecord *material.SurfaceInteraction
	Shape     geometry.Shape // The top level shape that was hit
}

// inspectRay casts ray into the scene and returns the first surface hit
func inspectRay(sceneObj *scene.Scene, ray core.Ray, frequency float64) InspectResult {
	hit, isHit := sceneObj.Intersect(ray)
	if !isHit {
		return InspectResult{Hit: false}
	}
	hit.Frequency = frequency

	// The BVH does not report the shape, so find the one with the same hit distance
	for _, shape := range sceneObj.Shapes {
		if shapeHit, ok := shape.Hit(ray, 1e-4, hit.T+1e-4); ok && shapeHit.T == hit.T {
			return InspectResult{Hit: true, HitRecord: hit, Shape: shape}
		}
	}
	return InspectResult{Hit: true, HitRecord: hit}
}

// parseVec3Params reads prefix+"x", prefix+"y", prefix+"z" with a fallback
func parseVec3Params(values url.Values, prefix string, fallback core.Vec3) (core.Vec3, error) {
	x, err := parseFloatParam(values, prefix+"x", fallback.X, -1e6, 1e6)
	if err != nil {
		return core.Vec3{}, err
	}
	y, err := parseFloatParam(values, prefix+"y", fallback.Y, -1e6, 1e6)
	if err != nil {
		return core.Vec3{}, err
	}
	z, err := parseFloatParam(values, prefix+"z", fallback.Z, -1e6, 1e6)
	if err != nil {
		return core.Vec3{}, err
	}
	return core.NewVec3(x, y, z), nil
}

// handleInspect casts a ray from the microphone (or a given origin) and
// reports the surface it reaches
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	query := r.URL.Query()

	sceneID := query.Get("scene")
	if sceneID == "" {
		sceneID = "shoebox"
	}
	sceneObj, err := scene.LoadScene(sceneID, s.scenesDir)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Unknown scene: "+err.Error())
		return
	}

	origin, err := parseVec3Params(query, "", sceneObj.Microphone.Position)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	direction, err := parseVec3Params(query, "d", core.Vec3{})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if direction.Length() == 0 {
		writeJSONError(w, http.StatusBadRequest, "Direction (dx, dy, dz) must not be zero")
		return
	}
	frequency, err := parseFloatParam(query, "frequency", 1000, 1, 100000)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := inspectRay(sceneObj, core.NewRay(origin, direction.Normalize()), frequency)
	if !result.Hit {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(InspectResponse{Hit: false})
		return
	}

	hit := result.HitRecord
	materialType, materialProps := s.extractMaterialInfo(hit.Material, frequency)
	geometryType, geometryProps := s.extractGeometryInfo(result.Shape)

	allProperties := map[string]interface{}{
		"material": materialProps,
		"geometry": geometryProps,
	}
	if hit.Emitter != nil {
		allProperties["emitter"] = s.extractEmitterInfo(hit.Emitter, hit)
	}

	response := InspectResponse{
		Hit:          true,
		MaterialType: materialType,
		GeometryType: geometryType,
		Emitter:      hit.Emitter != nil,
		Point:        vec3Array(hit.Point),
		Normal:       vec3Array(hit.Normal),
		Distance:     hit.T,
		ArrivalTime:  hit.T / core.SoundSpeed,
		FrontFace:    hit.FrontFace,
		Properties:   allProperties,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
