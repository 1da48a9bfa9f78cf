package volume

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/desertthunder/nifx/internal/shared"
)

// slice is one decoded 2D frame with the geometry needed to stack it.
type slice struct {
	path      string
	frame     int
	instance  int
	hasInst   bool
	position  float64 // z of ImagePositionPatient
	hasPos    bool
	rows      int
	cols      int
	spacing   [2]float64 // row, column
	thickness float64
	slope     float64
	intercept float64
	desc      string
	signed    bool
	pixels    []int
}

// DICOMDecoder reads uncompressed DICOM series with [dicom.ParseFile].
type DICOMDecoder struct{}

// NewDICOMDecoder returns a decoder for native (non-encapsulated) pixel data.
func NewDICOMDecoder() *DICOMDecoder {
	return &DICOMDecoder{}
}

// Decode parses every path, orders the frames and stacks them into a single volume.
//
// Multi-frame files contribute one slice per frame.
func (d *DICOMDecoder) Decode(ctx context.Context, paths []string) (*Volume, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no frame files", shared.ErrDecode)
	}

	var slices []slice
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := readSlices(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrDecode, p, err)
		}
		slices = append(slices, s...)
	}

	sortSlices(slices)
	vol, err := stack(slices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return vol, nil
}

func readSlices(path string) ([]slice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, err
	}

	rows, ok := firstFloat(&ds, tag.Rows)
	if !ok {
		return nil, fmt.Errorf("missing Rows")
	}
	cols, ok := firstFloat(&ds, tag.Columns)
	if !ok {
		return nil, fmt.Errorf("missing Columns")
	}

	base := slice{path: path, rows: int(rows), cols: int(cols), slope: 1}
	if v, ok := firstFloat(&ds, tag.InstanceNumber); ok {
		base.instance, base.hasInst = int(v), true
	}
	if vs := floats(&ds, tag.ImagePositionPatient); len(vs) == 3 {
		base.position, base.hasPos = vs[2], true
	}
	if vs := floats(&ds, tag.PixelSpacing); len(vs) == 2 {
		base.spacing = [2]float64{vs[0], vs[1]}
	}
	if v, ok := firstFloat(&ds, tag.SliceThickness); ok {
		base.thickness = v
	}
	if v, ok := firstFloat(&ds, tag.RescaleSlope); ok && v != 0 {
		base.slope = v
	}
	if v, ok := firstFloat(&ds, tag.RescaleIntercept); ok {
		base.intercept = v
	}
	if v, ok := firstFloat(&ds, tag.PixelRepresentation); ok {
		base.signed = v == 1
	}
	bitsStored := 0
	if v, ok := firstFloat(&ds, tag.BitsStored); ok {
		bitsStored = int(v)
	}
	if el, err := ds.FindElementByTag(tag.SeriesDescription); err == nil {
		if ss, ok := el.Value.GetValue().([]string); ok && len(ss) > 0 {
			base.desc = strings.TrimSpace(ss[0])
		}
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("missing PixelData")
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected PixelData value")
	}
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("no frames in PixelData")
	}

	out := make([]slice, 0, len(info.Frames))
	for i, fr := range info.Frames {
		if fr.Encapsulated {
			return nil, fmt.Errorf("encapsulated pixel data is not supported")
		}
		bits := bitsStored
		if bits <= 0 {
			bits = fr.NativeData.BitsPerSample
		}
		px := make([]int, 0, len(fr.NativeData.Data))
		for _, sample := range fr.NativeData.Data {
			if len(sample) == 0 {
				return nil, fmt.Errorf("frame %d: empty pixel", i)
			}
			px = append(px, storedValue(sample[0], bits, base.signed))
		}
		if len(px) != base.rows*base.cols {
			return nil, fmt.Errorf("frame %d: %d pixels, want %dx%d", i, len(px), base.rows, base.cols)
		}
		s := base
		s.frame = i
		s.pixels = px
		out = append(out, s)
	}
	return out, nil
}

// storedValue keeps the low bits of a raw sample and sign-extends them for signed data.
// The parser returns samples as unsigned words regardless of PixelRepresentation.
func storedValue(raw, bits int, signed bool) int {
	if bits <= 0 || bits >= 32 {
		return raw
	}
	raw &= 1<<bits - 1
	if signed && raw&(1<<(bits-1)) != 0 {
		raw -= 1 << bits
	}
	return raw
}

// sortSlices orders by InstanceNumber, then slice position, then path and frame index.
func sortSlices(slices []slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		a, b := slices[i], slices[j]
		if a.hasInst && b.hasInst && a.instance != b.instance {
			return a.instance < b.instance
		}
		if a.hasPos && b.hasPos && a.position != b.position {
			return a.position < b.position
		}
		if a.path != b.path {
			return a.path < b.path
		}
		return a.frame < b.frame
	})
}

// stack assembles ordered slices into a volume; all slices must share Rows and Columns.
func stack(slices []slice) (*Volume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices")
	}
	first := slices[0]
	if first.rows <= 0 || first.cols <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", first.rows, first.cols)
	}

	plane := first.rows * first.cols
	vol := &Volume{
		Width:       first.cols,
		Height:      first.rows,
		Depth:       len(slices),
		Slope:       first.slope,
		Intercept:   first.intercept,
		Description: first.desc,
		Unsigned:    !first.signed,
		Voxels:      make([]int32, 0, plane*len(slices)),
	}
	vol.Spacing[0] = first.spacing[1]
	vol.Spacing[1] = first.spacing[0]
	vol.Spacing[2] = sliceSpacing(slices)
	lo, hi := vol.sampleRange()

	for _, s := range slices {
		if s.rows != first.rows || s.cols != first.cols {
			return nil, fmt.Errorf("%s: frame size %dx%d differs from %dx%d", s.path, s.rows, s.cols, first.rows, first.cols)
		}
		if s.signed != first.signed {
			return nil, fmt.Errorf("%s: pixel representation differs from %s", s.path, first.path)
		}
		for _, p := range s.pixels {
			if p < int(lo) || p > int(hi) {
				return nil, fmt.Errorf("%s: sample %d outside [%d, %d]", s.path, p, lo, hi)
			}
			vol.Voxels = append(vol.Voxels, int32(p))
		}
	}
	return vol, nil
}

// sliceSpacing prefers the distance between the first two slice positions over the nominal thickness.
func sliceSpacing(slices []slice) float64 {
	if len(slices) > 1 && slices[0].hasPos && slices[1].hasPos {
		if d := math.Abs(slices[1].position - slices[0].position); d > 0 {
			return d
		}
	}
	if slices[0].thickness > 0 {
		return slices[0].thickness
	}
	return 1
}

func firstFloat(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	vs := floats(ds, t)
	if len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

// floats reads numeric element values stored as integers, floats or decimal strings.
func floats(ds *dicom.Dataset, t tag.Tag) []float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value == nil {
		return nil
	}

	var out []float64
	switch v := el.Value.GetValue().(type) {
	case []int:
		for _, n := range v {
			out = append(out, float64(n))
		}
	case []float64:
		out = append(out, v...)
	case []string:
		for _, s := range v {
			for _, part := range strings.Split(s, `\`) {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return nil
				}
				out = append(out, f)
			}
		}
	}
	return out
}
