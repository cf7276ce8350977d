package mqtt

// UnsubackPacket acknowledges an UNSUBSCRIBE. v3 carries no per-filter
// codes (just the packet id); v5 carries one reason code per filter.
type UnsubackPacket struct {
	Version  byte
	PacketID uint16
	Codes    []byte // v5 only
	Props    Properties
}

func (p *UnsubackPacket) Type() PacketType { return UNSUBACK }

func encodeUnsuback(p *UnsubackPacket) []byte {
	var vh []byte
	vh = appendUint16(vh, p.PacketID)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, unsubackProps)
		vh = append(vh, p.Codes...)
	}

	var out []byte
	out = appendFixedHeader(out, UNSUBACK, 0, len(vh))
	return append(out, vh...)
}

func decodeUnsuback(buf []byte, version byte) (*UnsubackPacket, error) {
	p := &UnsubackPacket{Version: version}
	id, err := readUint16(buf, 0)
	if err != nil {
		return nil, err
	}
	p.PacketID = id
	pos := 2

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, unsubackProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
		pos += c
		if pos > len(buf) {
			return nil, ErrMalformed
		}
		p.Codes = append([]byte(nil), buf[pos:]...)
	}
	return p, nil
}
