package mesh

import (
	"strconv"
	"strings"
)

// DirtyFlag records which buffers changed since the last Sync and which
// host-side recomputations should be skipped.
type DirtyFlag uint32

const (
	PositionsChanged DirtyFlag = 1 << iota
	NormalsChanged
	ColorsChanged
	UVChanged
	FacesChanged
	SuppressNormalRecompute
	SuppressBoundsRecompute
	SuppressColorRecompute
	// PositionsChangedExclBoundary reports moved positions whose boundary
	// relationship is known to be unaffected. It is synced like
	// PositionsChanged but leaves the boundary conditions valid.
	PositionsChangedExclBoundary
)

const (
	bufferFlags   = PositionsChanged | NormalsChanged | ColorsChanged | UVChanged | FacesChanged
	suppressFlags = SuppressNormalRecompute | SuppressBoundsRecompute | SuppressColorRecompute
	allFlags      = bufferFlags | suppressFlags | PositionsChangedExclBoundary
)

var flagNames = []struct {
	flag DirtyFlag
	name string
}{
	{PositionsChanged, "Positions"},
	{NormalsChanged, "Normals"},
	{ColorsChanged, "Colors"},
	{UVChanged, "UV"},
	{FacesChanged, "Faces"},
	{SuppressNormalRecompute, "SuppressNormals"},
	{SuppressBoundsRecompute, "SuppressBounds"},
	{SuppressColorRecompute, "SuppressColors"},
	{PositionsChangedExclBoundary, "PositionsExclBoundary"},
}

// Has reports whether every bit of f is set in d.
func (d DirtyFlag) Has(f DirtyFlag) bool {
	return d&f == f
}

func (d DirtyFlag) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if d&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if rest := d &^ allFlags; rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}
