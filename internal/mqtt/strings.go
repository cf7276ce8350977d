package mqtt

import "encoding/binary"

// appendString appends a 2-byte big-endian length prefix followed by the
// UTF-8 bytes of s.
func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// appendBinary appends a 2-byte big-endian length prefix followed by b.
func appendBinary(dst []byte, b []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b)))
	return append(dst, b...)
}

// readString reads a length-prefixed UTF-8 string starting at offset.
// Returns the string and the number of bytes consumed (2 + length).
func readString(buf []byte, offset int) (string, int, error) {
	if offset+2 > len(buf) {
		return "", 0, ErrMalformed
	}
	n := int(binary.BigEndian.Uint16(buf[offset:]))
	if offset+2+n > len(buf) {
		return "", 0, ErrMalformed
	}
	return string(buf[offset+2 : offset+2+n]), 2 + n, nil
}

// readBinary reads a length-prefixed byte slice starting at offset.
func readBinary(buf []byte, offset int) ([]byte, int, error) {
	if offset+2 > len(buf) {
		return nil, 0, ErrMalformed
	}
	n := int(binary.BigEndian.Uint16(buf[offset:]))
	if offset+2+n > len(buf) {
		return nil, 0, ErrMalformed
	}
	out := make([]byte, n)
	copy(out, buf[offset+2:offset+2+n])
	return out, 2 + n, nil
}

func readUint16(buf []byte, offset int) (uint16, error) {
	if offset+2 > len(buf) {
		return 0, ErrMalformed
	}
	return binary.BigEndian.Uint16(buf[offset:]), nil
}

func readUint32(buf []byte, offset int) (uint32, error) {
	if offset+4 > len(buf) {
		return 0, ErrMalformed
	}
	return binary.BigEndian.Uint32(buf[offset:]), nil
}

func appendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func appendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}
