// Package volume holds the in-memory volume produced from a frame series
// and the decode/encode capabilities the pipeline treats as opaque.
//
// [DICOMDecoder] reads a DICOM series into a [Volume]; [NIfTIEncoder] writes
// a [Volume] as a gzip-compressed single-file NIfTI-1 image.
package volume

import (
	"context"
	"fmt"
	"math"
)

// Volume is a 3D stack of 16-bit voxels in x-fastest order (index = x + y*Width + z*Width*Height).
//
// Voxels hold stored sample values; they must fit int16, or uint16 when Unsigned is set.
type Volume struct {
	Width       int
	Height      int
	Depth       int
	Spacing     [3]float64 // voxel size in millimetres (column, row, slice)
	Slope       float64    // rescale applied by readers: value*Slope + Intercept
	Intercept   float64
	Description string
	Unsigned    bool
	Voxels      []int32
}

// Validate checks the dimensions against the voxel buffer and every voxel against the sample range.
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if v.Width > math.MaxInt16 || v.Height > math.MaxInt16 || v.Depth > math.MaxInt16 {
		return fmt.Errorf("dimensions %dx%dx%d exceed %d", v.Width, v.Height, v.Depth, math.MaxInt16)
	}
	if want := v.Width * v.Height * v.Depth; len(v.Voxels) != want {
		return fmt.Errorf("voxel count %d does not match %dx%dx%d", len(v.Voxels), v.Width, v.Height, v.Depth)
	}
	lo, hi := v.sampleRange()
	for i, x := range v.Voxels {
		if x < lo || x > hi {
			return fmt.Errorf("voxel %d value %d outside [%d, %d]", i, x, lo, hi)
		}
	}
	return nil
}

func (v *Volume) sampleRange() (lo, hi int32) {
	if v.Unsigned {
		return 0, math.MaxUint16
	}
	return math.MinInt16, math.MaxInt16
}

// Decoder turns an unordered set of frame files into one volume.
type Decoder interface {
	Decode(ctx context.Context, paths []string) (*Volume, error)
}

// Encoder writes a volume to a single destination file.
type Encoder interface {
	Encode(vol *Volume, dst string) error
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(ctx context.Context, paths []string) (*Volume, error)

func (f DecoderFunc) Decode(ctx context.Context, paths []string) (*Volume, error) {
	return f(ctx, paths)
}

// EncoderFunc adapts a function to [Encoder].
type EncoderFunc func(vol *Volume, dst string) error

func (f EncoderFunc) Encode(vol *Volume, dst string) error {
	return f(vol, dst)
}
