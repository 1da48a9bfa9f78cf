package volume

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/desertthunder/nifx/internal/shared"
)

const (
	niftiHeaderSize = 348
	niftiVoxOffset  = 352 // header plus the 4-byte extension flag
	dtSignedShort   = 4
	dtUnsignedShort = 512
	unitsMM         = 2
	xformScanner    = 1
)

// niftiHeader is the NIfTI-1 single-file header, serialized field by field in little-endian order.
type niftiHeader struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NIfTIEncoder writes volumes as NIfTI-1 (.nii) files, gzip-compressed when the destination ends in ".gz".
type NIfTIEncoder struct {
	// Level is the gzip compression level; zero means [gzip.DefaultCompression].
	Level int
}

// NewNIfTIEncoder returns an encoder using the default compression level.
func NewNIfTIEncoder() *NIfTIEncoder {
	return &NIfTIEncoder{Level: gzip.DefaultCompression}
}

// Encode writes vol to dst atomically; on failure dst does not exist.
func (e *NIfTIEncoder) Encode(vol *Volume, dst string) error {
	if err := vol.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEncode, err)
	}

	level := e.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	compress := shared.HasSuffixFold(dst, ".gz")

	err := shared.WriteFileAtomic(dst, 0644, func(w io.Writer) error {
		if !compress {
			return writeNIfTI(w, vol)
		}
		gz, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return err
		}
		if err := writeNIfTI(gz, vol); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrEncode, dst, err)
	}
	return nil
}

func writeNIfTI(w io.Writer, vol *Volume) error {
	hdr := newHeader(vol)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	// Extension flag: no extensions follow.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return fmt.Errorf("write extension flag: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, samples(vol)); err != nil {
		return fmt.Errorf("write voxels: %w", err)
	}
	return nil
}

// samples narrows validated voxels to the on-disk sample type.
func samples(vol *Volume) any {
	if vol.Unsigned {
		out := make([]uint16, len(vol.Voxels))
		for i, v := range vol.Voxels {
			out[i] = uint16(v)
		}
		return out
	}
	out := make([]int16, len(vol.Voxels))
	for i, v := range vol.Voxels {
		out[i] = int16(v)
	}
	return out
}

func newHeader(vol *Volume) niftiHeader {
	hdr := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		Datatype:  dtSignedShort,
		Bitpix:    16,
		VoxOffset: niftiVoxOffset,
		XYZTUnits: unitsMM,
		QformCode: xformScanner,
		SformCode: xformScanner,
		Magic:     [4]byte{'n', '+', '1', 0},
	}

	hdr.Dim = [8]int16{3, int16(vol.Width), int16(vol.Height), int16(vol.Depth), 1, 1, 1, 1}

	sx, sy, sz := spacingOrOne(vol.Spacing[0]), spacingOrOne(vol.Spacing[1]), spacingOrOne(vol.Spacing[2])
	hdr.Pixdim = [8]float32{1, float32(sx), float32(sy), float32(sz), 1, 1, 1, 1}
	hdr.SrowX = [4]float32{float32(sx), 0, 0, 0}
	hdr.SrowY = [4]float32{0, float32(sy), 0, 0}
	hdr.SrowZ = [4]float32{0, 0, float32(sz), 0}

	if vol.Unsigned {
		hdr.Datatype = dtUnsignedShort
	}

	if vol.Slope != 0 && !(vol.Slope == 1 && vol.Intercept == 0) {
		hdr.SclSlope = float32(vol.Slope)
		hdr.SclInter = float32(vol.Intercept)
	}

	// Start inverted so the first voxel sets both bounds.
	hi, lo := vol.sampleRange()
	for _, v := range vol.Voxels {
		lo, hi = min(lo, v), max(hi, v)
	}
	hdr.GLMin, hdr.GLMax = lo, hi

	desc := strings.ToValidUTF8(vol.Description, "")
	copy(hdr.Descrip[:len(hdr.Descrip)-1], desc)
	return hdr
}

func spacingOrOne(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}
