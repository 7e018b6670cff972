package feature

import (
	"encoding/binary"
	"fmt"
	"math"

	pkgerrors "imgsearch/pkg/errors"
)

// DescriptorSet is the ordered list of local feature vectors of one image.
// Every row has the same dimension.
type DescriptorSet [][]float32

// Rows returns the number of descriptors.
func (d DescriptorSet) Rows() int { return len(d) }

// Dim returns the descriptor dimension, 0 for an empty set.
func (d DescriptorSet) Dim() int {
	if len(d) == 0 {
		return 0
	}
	return len(d[0])
}

// Validate checks that the set is non-empty and every row has dim columns.
// A non-positive dim only requires the rows to agree with each other.
func (d DescriptorSet) Validate(dim int) error {
	if len(d) == 0 {
		return pkgerrors.ErrNoDescriptors
	}
	if dim <= 0 {
		dim = len(d[0])
	}
	if dim == 0 {
		return fmt.Errorf("%w: zero-length descriptor", pkgerrors.ErrInvalidDimension)
	}
	for i, row := range d {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", pkgerrors.ErrInvalidDimension, i, len(row), dim)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (d DescriptorSet) Clone() DescriptorSet {
	if d == nil {
		return nil
	}
	out := make(DescriptorSet, len(d))
	for i, row := range d {
		out[i] = append([]float32(nil), row...)
	}
	return out
}

var descriptorMagic = [4]byte{'D', 'S', 'C', '1'}

const descriptorHeaderSize = 12

// EncodeDescriptors packs a set as magic, uint32 rows, uint32 dim and then
// little-endian IEEE 754 float32 values in row-major order.
func EncodeDescriptors(d DescriptorSet) ([]byte, error) {
	rows, dim := d.Rows(), d.Dim()
	if rows > 0 {
		if err := d.Validate(dim); err != nil {
			return nil, err
		}
	}
	b := make([]byte, descriptorHeaderSize+rows*dim*4)
	copy(b[0:4], descriptorMagic[:])
	binary.LittleEndian.PutUint32(b[4:], uint32(rows))
	binary.LittleEndian.PutUint32(b[8:], uint32(dim))
	off := descriptorHeaderSize
	for _, row := range d {
		for _, v := range row {
			binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
			off += 4
		}
	}
	return b, nil
}

// DecodeDescriptors reverses EncodeDescriptors.
func DecodeDescriptors(b []byte) (DescriptorSet, error) {
	if len(b) < descriptorHeaderSize || [4]byte(b[0:4]) != descriptorMagic {
		return nil, fmt.Errorf("%w: bad descriptor header", pkgerrors.ErrInvalidImage)
	}
	rows := int(binary.LittleEndian.Uint32(b[4:]))
	dim := int(binary.LittleEndian.Uint32(b[8:]))
	if len(b) != descriptorHeaderSize+rows*dim*4 {
		return nil, fmt.Errorf("%w: descriptor payload is %d bytes, header says %dx%d",
			pkgerrors.ErrInvalidImage, len(b)-descriptorHeaderSize, rows, dim)
	}
	d := make(DescriptorSet, rows)
	off := descriptorHeaderSize
	for i := range d {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		}
		d[i] = row
	}
	return d, nil
}
