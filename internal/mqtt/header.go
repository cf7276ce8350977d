package mqtt

// appendFixedHeader appends the one-byte (type<<4 | flags) header and the
// VLI-encoded remaining length to dst.
func appendFixedHeader(dst []byte, pt PacketType, flags byte, remainingLen int) []byte {
	dst = append(dst, (byte(pt)<<4)|flags)
	return append(dst, encodeVLI(remainingLen)...)
}

// FrameLength inspects the start of buf for a complete fixed header and
// reports the total length (header + remaining length) of the frame it
// introduces. complete is false when buf does not yet hold enough bytes to
// know the frame length or to contain the whole frame — the connection
// runner should read more and retry. err is non-nil only for a genuinely
// malformed remaining-length encoding (a fifth continuation byte).
func FrameLength(buf []byte) (length int, complete bool, err error) {
	if len(buf) < 1 {
		return 0, false, nil
	}
	remaining, n, err := peekVLI(buf[1:])
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil // VLI not fully buffered yet
	}
	total := 1 + n + remaining
	if len(buf) < total {
		return total, false, nil
	}
	return total, true, nil
}

// peekVLI is decodeVLI's streaming-safe sibling: running out of bytes
// before a terminating (high-bit-clear) byte is "not enough data yet"
// (n == 0, err == nil), not ErrMalformed. Only a fifth continuation byte —
// a VLI that would need more than four bytes — is malformed.
func peekVLI(buf []byte) (value int, consumed int, err error) {
	multiplier := 1
	for i := 0; i < 4; i++ {
		if i >= len(buf) {
			return 0, 0, nil
		}
		b := buf[i]
		value += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		multiplier *= 128
	}
	return 0, 0, ErrMalformed
}

// decodeFixedHeader parses the fixed header of a frame known (via
// FrameLength) to be fully buffered. Returns the header and the number of
// bytes it occupies (not including the payload that follows).
func decodeFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 1 {
		return FixedHeader{}, 0, ErrMalformed
	}
	pt := PacketType((buf[0] >> 4) & 0x0F)
	flags := buf[0] & 0x0F
	remaining, n, err := decodeVLI(buf, 1)
	if err != nil {
		return FixedHeader{}, 0, err
	}
	return FixedHeader{Type: pt, Flags: flags, RemainingLen: remaining}, 1 + n, nil
}
