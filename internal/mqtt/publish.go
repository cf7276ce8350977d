package mqtt

// PublishPacket carries an application message between a publisher and the
// broker, or between the broker and a subscriber.
type PublishPacket struct {
	Version  byte
	Dup      bool
	QoS      QoS
	Retain   bool
	Topic    string
	PacketID uint16 // present only when QoS > 0
	Props    Properties
	Payload  []byte
}

func (p *PublishPacket) Type() PacketType { return PUBLISH }

func encodePublish(p *PublishPacket) []byte {
	var flags byte
	if p.Dup {
		flags |= publishDupBit
	}
	flags |= byte(p.QoS) << publishQoSShift
	if p.Retain {
		flags |= publishRetainBit
	}

	var vh []byte
	vh = appendString(vh, p.Topic)
	if p.QoS != QoS0 {
		vh = appendUint16(vh, p.PacketID)
	}
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, publishProps)
	}

	var out []byte
	out = appendFixedHeader(out, PUBLISH, flags, len(vh)+len(p.Payload))
	out = append(out, vh...)
	return append(out, p.Payload...)
}

func decodePublish(buf []byte, header FixedHeader, version byte) (*PublishPacket, error) {
	p := &PublishPacket{
		Version: version,
		Dup:     header.Flags&publishDupBit != 0,
		QoS:     QoS((header.Flags >> publishQoSShift) & publishQoSMask),
		Retain:  header.Flags&publishRetainBit != 0,
	}

	topic, n, err := readString(buf, 0)
	if err != nil {
		return nil, err
	}
	p.Topic = topic
	pos := n

	if p.QoS != QoS0 {
		id, err := readUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		p.PacketID = id
		pos += 2
	}

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, publishProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
		pos += c
	}

	if pos > len(buf) {
		return nil, ErrMalformed
	}
	p.Payload = append([]byte(nil), buf[pos:]...)
	return p, nil
}
