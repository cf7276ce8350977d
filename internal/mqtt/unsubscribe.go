package mqtt

// UnsubscribePacket requests removal of one or more topic filters.
type UnsubscribePacket struct {
	Version  byte
	PacketID uint16
	Filters  []string
	Props    Properties
}

func (p *UnsubscribePacket) Type() PacketType { return UNSUBSCRIBE }

func encodeUnsubscribe(p *UnsubscribePacket) []byte {
	var vh []byte
	vh = appendUint16(vh, p.PacketID)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, unsubscribeProps)
	}
	for _, f := range p.Filters {
		vh = appendString(vh, f)
	}

	var out []byte
	out = appendFixedHeader(out, UNSUBSCRIBE, 0x02, len(vh))
	return append(out, vh...)
}

func decodeUnsubscribe(buf []byte, version byte) (*UnsubscribePacket, error) {
	p := &UnsubscribePacket{Version: version}
	id, err := readUint16(buf, 0)
	if err != nil {
		return nil, err
	}
	p.PacketID = id
	pos := 2

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, unsubscribeProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
		pos += c
	}

	for pos < len(buf) {
		topic, n, err := readString(buf, pos)
		if err != nil {
			return nil, err
		}
		pos += n
		p.Filters = append(p.Filters, topic)
	}
	if len(p.Filters) == 0 {
		return nil, ErrMalformed
	}
	return p, nil
}
