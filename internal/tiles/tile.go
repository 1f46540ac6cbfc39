// Package tiles resolves slippy-map tiles for the raster tile layer: which
// tiles cover a view, where their pixels come from and how they are cached.
package tiles

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/eak1mov/go-libtiles/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	_ "golang.org/x/image/webp"
)

// ErrNoTile marks a tile the source does not have.
var ErrNoTile = errors.New("tiles: tile not found")

// Descriptor is one tile as handed to the tile layer. A nil Image is the
// "no image" state: still loading, missing, or failed (see Err).
type Descriptor struct {
	ID     tile.ID
	Bounds orb.Bound
	Image  image.Image
	Err    error
}

func NewDescriptor(id tile.ID) Descriptor {
	return Descriptor{ID: id, Bounds: Bound(id)}
}

// Bound returns the geographic extent of id.
func Bound(id tile.ID) orb.Bound {
	return maptile.New(id.X, id.Y, maptile.Zoom(id.Z)).Bound()
}

// Key renders id as z/x/y.
func Key(id tile.ID) string {
	return fmt.Sprintf("%d/%d/%d", id.Z, id.X, id.Y)
}

// Covering lists the tiles at zoom z that intersect b, row by row from the
// north-west corner. Longitudes outside the world are clamped, not wrapped.
func Covering(b orb.Bound, z uint32) []tile.ID {
	const eps = 1e-9
	west := math.Max(-180, b.Min.Lon())
	east := math.Min(180-eps, b.Max.Lon())
	south := math.Max(-maxLatitude, b.Min.Lat())
	north := math.Min(maxLatitude, b.Max.Lat())
	if west > east || south > north {
		return nil
	}

	nw := maptile.At(orb.Point{west, north}, maptile.Zoom(z))
	se := maptile.At(orb.Point{east, south}, maptile.Zoom(z))
	n := uint32(1) << z
	maxX, maxY := min(se.X, n-1), min(se.Y, n-1)
	if nw.X > maxX || nw.Y > maxY {
		return nil
	}

	ids := make([]tile.ID, 0, int(maxX-nw.X+1)*int(maxY-nw.Y+1))
	for y := nw.Y; y <= maxY; y++ {
		for x := nw.X; x <= maxX; x++ {
			ids = append(ids, tile.ID{X: x, Y: y, Z: z})
		}
	}
	return ids
}

const maxLatitude = 85.0511287798

// Decode turns raw tile bytes into an image. PNG, JPEG and WebP are accepted.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrNoTile
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}
