package meshio

import (
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/chazu/meshedit/pkg/geom"
)

// ReadGLTF loads every triangle primitive of every mesh in a .gltf or .glb
// file into one Data, in document order. Node transforms are not applied.
// Normals are kept only when every primitive carries them.
func ReadGLTF(path string) (*Data, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open: %w", err)
	}

	d := &Data{}
	allNormals := true
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			if err := appendPrimitive(d, doc, prim, &allNormals); err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
		}
	}
	if len(d.Positions) == 0 {
		return nil, errors.New("no triangle geometry")
	}
	if !allNormals {
		d.Normals = nil
	}
	return d, nil
}

func appendPrimitive(d *Data, doc *gltf.Document, prim *gltf.Primitive, allNormals *bool) error {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	base := uint32(len(d.Positions))

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("normals: %w", err)
		}
	}
	if len(normals) != len(positions) {
		*allNormals = false
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("uvs: %w", err)
		}
	}

	for i, p := range positions {
		d.Positions = append(d.Positions, geom.Vec3{X: p[0], Y: p[1], Z: p[2]})
		var n geom.Vec3
		if i < len(normals) {
			n = geom.Vec3{X: normals[i][0], Y: normals[i][1], Z: normals[i][2]}
		}
		d.Normals = append(d.Normals, n)
		var uv geom.Vec2
		if i < len(uvs) {
			uv = geom.Vec2{X: uvs[i][0], Y: uvs[i][1]}
		}
		d.UVs = append(d.UVs, uv)
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%d indices is not a triangle list", len(indices))
	}
	for i := 0; i < len(indices); i += 3 {
		f := geom.Face{indices[i] + base, indices[i+1] + base, indices[i+2] + base}
		for _, v := range f {
			if v >= base+uint32(len(positions)) {
				return fmt.Errorf("index %d out of range", v-base)
			}
		}
		d.Faces = append(d.Faces, f)
	}
	return nil
}
