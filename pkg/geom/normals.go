package geom

// VertexNormals computes area-weighted per-vertex normals. Each face adds
// its unnormalized cross product to its three corners, so larger faces
// weigh more. Vertices touched by no face, or whose contributions cancel,
// get the zero vector.
func VertexNormals(positions []Vec3, faces []Face) []Vec3 {
	normals := make([]Vec3, len(positions))
	for _, f := range faces {
		a, b, c := positions[f[0]], positions[f[1]], positions[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, i := range f {
			normals[i] = normals[i].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}
