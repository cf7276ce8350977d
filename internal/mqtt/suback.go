package mqtt

// SubackPacket grants (or, in v5, refuses) each filter of the SUBSCRIBE it
// answers, in filter order — one SUBACK per SUBSCRIBE, one code per filter
// (the REDESIGN FLAGS fix to the reference's one-SUBACK-per-filter bug).
type SubackPacket struct {
	Version  byte
	PacketID uint16
	Codes    []byte
	Props    Properties
}

func (p *SubackPacket) Type() PacketType { return SUBACK }

func encodeSuback(p *SubackPacket) []byte {
	var vh []byte
	vh = appendUint16(vh, p.PacketID)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, subackProps)
	}
	vh = append(vh, p.Codes...)

	var out []byte
	out = appendFixedHeader(out, SUBACK, 0, len(vh))
	return append(out, vh...)
}

func decodeSuback(buf []byte, version byte) (*SubackPacket, error) {
	p := &SubackPacket{Version: version}
	id, err := readUint16(buf, 0)
	if err != nil {
		return nil, err
	}
	p.PacketID = id
	pos := 2

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, subackProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
		pos += c
	}

	if pos > len(buf) {
		return nil, ErrMalformed
	}
	p.Codes = append([]byte(nil), buf[pos:]...)
	return p, nil
}
