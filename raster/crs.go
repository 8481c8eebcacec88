package raster

import (
	"fmt"
	"math"
	"strings"
)

// TargetKind enumerates the ways a user can ask for a target CRS.
type TargetKind int

const (
	// TargetFixed is a fixed, well-known EPSG code chosen from the menu.
	TargetFixed TargetKind = iota
	// TargetAutoUTM derives a UTM zone from the centroid of the first source.
	TargetAutoUTM
	// TargetCustom is an EPSG code typed in by the user.
	TargetCustom
	// TargetKeepOriginal keeps the CRS of the (first) source raster.
	TargetKeepOriginal
)

// TargetCRS is a tagged target-CRS directive. Code is only meaningful for
// TargetFixed and TargetCustom.
type TargetCRS struct {
	Kind TargetKind
	Code string
}

// WGS84 is the fixed menu choice for web maps and friends.
var WGS84 = TargetCRS{Kind: TargetFixed, Code: "EPSG:4326"}

func (t TargetCRS) String() string {

	switch t.Kind {
	case TargetAutoUTM:
		return "auto UTM"
	case TargetKeepOriginal:
		return "keep original"
	default:
		return t.Code
	}
}

// ResolveTargetCRS resolves a directive against the first source raster in to
// a concrete CRS label. Resolution happens exactly once, before any
// reprojection decision is made.
func ResolveTargetCRS(t TargetCRS, first Info) (string, error) {

	switch t.Kind {
	case TargetFixed, TargetCustom:

		if t.Code == "" {
			return "", fmt.Errorf("Missing EPSG code for target CRS")
		}

		return t.Code, nil

	case TargetKeepOriginal:

		if first.CRS == "" {
			return "", fmt.Errorf("Source raster %s has no CRS to keep", first.Path)
		}

		return first.CRS, nil

	case TargetAutoUTM:
		return autoUTM(first.Bounds), nil

	default:
		return "", fmt.Errorf("Unknown target CRS directive %d", t.Kind)
	}
}

// CRSDisplay shortens a CRS identifier for listings. EPSG-style labels pass
// through; WKT definitions collapse to their name node.
func CRSDisplay(crs string) string {

	if crs == "" {
		return "No CRS"
	}

	open := strings.Index(crs, `"`)

	if open == -1 {
		return crs
	}

	rest := crs[open+1:]
	end := strings.Index(rest, `"`)

	if end == -1 {
		return crs
	}

	return rest[:end]
}

// autoUTM picks the UTM zone covering the centroid longitude of bounds and
// the hemisphere of its bottom edge. Bounds are used as-is, the way the
// original tooling always has, even though they are only longitudes when the
// source CRS is geographic.
func autoUTM(b Bounds) string {

	center_lon := (b.Left + b.Right) / 2.0
	zone := int(math.Floor((center_lon+180.0)/6.0)) + 1

	epsg := 32700 + zone

	if b.Bottom >= 0 {
		epsg = 32600 + zone
	}

	return fmt.Sprintf("EPSG:%d", epsg)
}
