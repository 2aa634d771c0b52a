// Package render produces QA images of finished masks: orthogonal
// slices through the mask centroid with the mask highlighted over the
// background volume. It only consumes pipeline outputs and feeds
// nothing back into the processing chain.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"localcsf/pkg/volume"
)

// maskColor is the overlay color for mask==1 voxels.
var maskColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}

// Renderer draws a binary mask over a background volume. Both must
// share one grid.
type Renderer struct {
	background *volume.ScalarVolume
	mask       *volume.ScalarVolume

	// bgMax normalizes background intensities into display range.
	bgMax float64
}

// NewRenderer builds a renderer, validating grid agreement.
func NewRenderer(background, mask *volume.ScalarVolume) (*Renderer, error) {
	if !background.Grid.Equal(mask.Grid) {
		return nil, fmt.Errorf("%w: background grid %s vs mask grid %s",
			volume.ErrGridMismatch, background.Grid, mask.Grid)
	}
	bgMax := background.Max()
	if bgMax == 0 {
		bgMax = 1
	}
	return &Renderer{background: background, mask: mask, bgMax: bgMax}, nil
}

// Centroid returns the rounded center of mass of the mask, the natural
// slice position for QA views.
func (r *Renderer) Centroid() (x, y, z int) {
	var sx, sy, sz, n float64
	g := r.mask.Grid
	for idx, v := range r.mask.Data {
		if v != 1 {
			continue
		}
		cx, cy, cz := g.Coords(idx)
		sx += float64(cx)
		sy += float64(cy)
		sz += float64(cz)
		n++
	}
	if n == 0 {
		return g.Nx / 2, g.Ny / 2, g.Nz / 2
	}
	return int(sx / n), int(sy / n), int(sz / n)
}

// pixel renders one voxel: grayscale background, overlay where masked.
func (r *Renderer) pixel(x, y, z int) color.RGBA {
	if r.mask.At(x, y, z) == 1 {
		return maskColor
	}
	v := r.background.At(x, y, z) / r.bgMax
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	g := uint8(v * 255)
	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// ExtractSlice renders a 2D slice along the given axis at a position.
func (r *Renderer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("render: position must be non-negative")
	}
	g := r.mask.Grid

	switch axis {
	case "x", "X":
		if position >= g.Nx {
			return nil, fmt.Errorf("render: position %d exceeds width %d", position, g.Nx)
		}
		img := image.NewRGBA(image.Rect(0, 0, g.Nz, g.Ny))
		for y := 0; y < g.Ny; y++ {
			for z := 0; z < g.Nz; z++ {
				img.SetRGBA(z, y, r.pixel(position, y, z))
			}
		}
		return img, nil

	case "y", "Y":
		if position >= g.Ny {
			return nil, fmt.Errorf("render: position %d exceeds height %d", position, g.Ny)
		}
		img := image.NewRGBA(image.Rect(0, 0, g.Nx, g.Nz))
		for z := 0; z < g.Nz; z++ {
			for x := 0; x < g.Nx; x++ {
				img.SetRGBA(x, z, r.pixel(x, position, z))
			}
		}
		return img, nil

	case "z", "Z":
		if position >= g.Nz {
			return nil, fmt.Errorf("render: position %d exceeds depth %d", position, g.Nz)
		}
		img := image.NewRGBA(image.Rect(0, 0, g.Nx, g.Ny))
		for y := 0; y < g.Ny; y++ {
			for x := 0; x < g.Nx; x++ {
				img.SetRGBA(x, y, r.pixel(x, y, position))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("render: invalid axis %q (must be x, y, or z)", axis)
	}
}

// SaveSlice saves a rendered slice as a JPEG image.
func (r *Renderer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveOrthogonal writes one slice per axis through the mask centroid.
func (r *Renderer) SaveOrthogonal(outputDir, basename string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	cx, cy, cz := r.Centroid()
	positions := map[string]int{"x": cx, "y": cy, "z": cz}
	for _, axis := range []string{"x", "y", "z"} {
		img, err := r.ExtractSlice(axis, positions[axis])
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.jpg", basename, axis, positions[axis]))
		if err := r.SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}
