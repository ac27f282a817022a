package audio

import "encoding/binary"

// SampleDecoder turns a little-endian s16 byte stream into samples. A byte
// left over from an odd-length chunk is carried into the next call.
type SampleDecoder struct {
	carry    byte
	hasCarry bool
}

// Decode converts chunk into samples, reusing dst when it has capacity.
func (d *SampleDecoder) Decode(dst []int16, chunk []byte) []int16 {
	dst = dst[:0]
	if len(chunk) == 0 {
		return dst
	}

	if d.hasCarry {
		dst = append(dst, int16(binary.LittleEndian.Uint16([]byte{d.carry, chunk[0]})))
		chunk = chunk[1:]
		d.hasCarry = false
	}

	even := len(chunk) &^ 1
	for i := 0; i < even; i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(chunk[i:i+2])))
	}
	if even < len(chunk) {
		d.carry = chunk[even]
		d.hasCarry = true
	}
	return dst
}

// Reset drops a pending carry byte, used when the byte stream restarts.
func (d *SampleDecoder) Reset() {
	d.carry = 0
	d.hasCarry = false
}
