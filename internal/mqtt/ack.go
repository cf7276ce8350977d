package mqtt

// PubackPacket, PubrecPacket, PubrelPacket and PubcompPacket share an
// identical wire shape (packet id, optional v5 reason code + properties)
// across the QoS 1 / QoS 2 handshake, so they share one encode/decode pair
// parameterized on PacketType.

type PubackPacket struct {
	Version    byte
	PacketID   uint16
	ReasonCode byte
	Props      Properties
}

func (p *PubackPacket) Type() PacketType { return PUBACK }

type PubrecPacket struct {
	Version    byte
	PacketID   uint16
	ReasonCode byte
	Props      Properties
}

func (p *PubrecPacket) Type() PacketType { return PUBREC }

type PubrelPacket struct {
	Version    byte
	PacketID   uint16
	ReasonCode byte
	Props      Properties
}

func (p *PubrelPacket) Type() PacketType { return PUBREL }

type PubcompPacket struct {
	Version    byte
	PacketID   uint16
	ReasonCode byte
	Props      Properties
}

func (p *PubcompPacket) Type() PacketType { return PUBCOMP }

func encodeAck(pt PacketType, version, reasonCode byte, packetID uint16, props Properties) []byte {
	var vh []byte
	vh = appendUint16(vh, packetID)

	// Reason code and properties are only emitted when there's something
	// non-default to say — MQTT 5 allows PUBACK etc. to be just the packet
	// id (remaining length 2) when the reason is Success and no
	// properties are present.
	if version == Level5 && (reasonCode != ReasonSuccess || len(props) > 0) {
		vh = append(vh, reasonCode)
		if len(props) > 0 {
			vh = appendProperties(vh, props, ackProps)
		}
	}

	var flags byte
	if pt == PUBREL {
		flags = 0x02 // PUBREL's fixed header reserved bits are 0010
	}

	var out []byte
	out = appendFixedHeader(out, pt, flags, len(vh))
	return append(out, vh...)
}

func decodeAck(buf []byte, version byte) (packetID uint16, reasonCode byte, props Properties, err error) {
	id, err := readUint16(buf, 0)
	if err != nil {
		return 0, 0, nil, err
	}
	packetID = id
	reasonCode = ReasonSuccess
	if version == Level5 && len(buf) > 2 {
		reasonCode = buf[2]
		if len(buf) > 3 {
			props, _, err = decodeProperties(buf, 3, ackProps)
			if err != nil {
				return 0, 0, nil, err
			}
		}
	}
	return packetID, reasonCode, props, nil
}
