package geometry

import (
	"sort"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/material"
)

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode struct {
	BoundingBox AABB
	Left        *BVHNode
	Right       *BVHNode
	Shapes      []Shape // Shapes for leaf nodes (nil for internal nodes)
}

// BVH represents a Bounding Volume Hierarchy for fast ray-object intersection
type BVH struct {
	Root   *BVHNode
	Center core.Vec3 // Center of the scene bounds
	Radius float64   // Radius of the sphere enclosing the scene bounds
}

// Leaf threshold: if we have this many or fewer shapes, store them in a leaf node
const leafThreshold = 4

// NewBVH constructs a BVH from a slice of shapes
func NewBVH(shapes []Shape) *BVH {
	if len(shapes) == 0 {
		return &BVH{}
	}

	// Copy so sorting never reorders the caller's slice
	shapesCopy := make([]Shape, len(shapes))
	copy(shapesCopy, shapes)

	root := buildBVH(shapesCopy)
	center := root.BoundingBox.Center()
	return &BVH{
		Root:   root,
		Center: center,
		Radius: root.BoundingBox.Max.Subtract(center).Length(),
	}
}

// buildBVH recursively builds the BVH with median splits along the longest axis
func buildBVH(shapes []Shape) *BVHNode {
	bbox := shapes[0].BoundingBox()
	for _, s := range shapes[1:] {
		bbox = bbox.Union(s.BoundingBox())
	}

	if len(shapes) <= leafThreshold {
		return &BVHNode{BoundingBox: bbox, Shapes: shapes}
	}

	longest := bbox.LongestAxis()
	sort.Slice(shapes, func(i, j int) bool {
		return axis(shapes[i].BoundingBox().Center(), longest) < axis(shapes[j].BoundingBox().Center(), longest)
	})

	mid := len(shapes) / 2
	return &BVHNode{
		BoundingBox: bbox,
		Left:        buildBVH(shapes[:mid]),
		Right:       buildBVH(shapes[mid:]),
	}
}

// Hit tests if a ray intersects any shape in the BVH and returns the closest hit
func (bvh *BVH) Hit(ray core.Ray, tMin, tMax float64) (*material.SurfaceInteraction, bool) {
	if bvh.Root == nil {
		return nil, false
	}
	return hitNode(bvh.Root, ray, tMin, tMax)
}

func hitNode(node *BVHNode, ray core.Ray, tMin, tMax float64) (*material.SurfaceInteraction, bool) {
	if !node.BoundingBox.Hit(ray, tMin, tMax) {
		return nil, false
	}

	if node.Shapes != nil {
		var closest *material.SurfaceInteraction
		for _, shape := range node.Shapes {
			if si, ok := shape.Hit(ray, tMin, tMax); ok {
				closest = si
				tMax = si.T
			}
		}
		return closest, closest != nil
	}

	left, hitLeft := hitNode(node.Left, ray, tMin, tMax)
	if hitLeft {
		tMax = left.T
	}
	right, hitRight := hitNode(node.Right, ray, tMin, tMax)
	if hitRight {
		return right, true
	}
	return left, hitLeft
}
