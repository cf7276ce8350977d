package mqtt

// Decode parses one control packet from the start of buf, which must hold
// at least one complete frame (use FrameLength to find out how much to
// buffer first). version is the protocol level already negotiated for
// this session; it is ignored for CONNECT, whose own level byte decides
// which variable-header shape to parse (see PreDecodeConnect).
//
// Decode fails with ErrMalformed on a truncated or malformed frame and
// ErrUnknownType when the fixed header names a type outside the fifteen
// known kinds.
func Decode(buf []byte, version byte) (Packet, int, error) {
	header, headerLen, err := decodeFixedHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := headerLen + header.RemainingLen
	if total > len(buf) {
		return nil, 0, ErrMalformed
	}
	payload := buf[headerLen:total]

	var pkt Packet
	switch header.Type {
	case CONNECT:
		_, level, err := PreDecodeConnect(payload)
		if err != nil {
			return nil, 0, err
		}
		pkt, err = decodeConnect(payload, level)
		if err != nil {
			return nil, 0, err
		}

	case CONNACK:
		p, err := decodeConnack(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case PUBLISH:
		p, err := decodePublish(payload, header, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case PUBACK, PUBREC, PUBREL, PUBCOMP:
		id, reason, props, err := decodeAck(payload, version)
		if err != nil {
			return nil, 0, err
		}
		switch header.Type {
		case PUBACK:
			pkt = &PubackPacket{Version: version, PacketID: id, ReasonCode: reason, Props: props}
		case PUBREC:
			pkt = &PubrecPacket{Version: version, PacketID: id, ReasonCode: reason, Props: props}
		case PUBREL:
			pkt = &PubrelPacket{Version: version, PacketID: id, ReasonCode: reason, Props: props}
		case PUBCOMP:
			pkt = &PubcompPacket{Version: version, PacketID: id, ReasonCode: reason, Props: props}
		}

	case SUBSCRIBE:
		p, err := decodeSubscribe(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case SUBACK:
		p, err := decodeSuback(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case UNSUBSCRIBE:
		p, err := decodeUnsubscribe(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case UNSUBACK:
		p, err := decodeUnsuback(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case PINGREQ:
		pkt = &PingreqPacket{}

	case PINGRESP:
		pkt = &PingrespPacket{}

	case DISCONNECT:
		p, err := decodeDisconnect(payload, version)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	case AUTH:
		if version != Level5 {
			return nil, 0, ErrUnknownType
		}
		p, err := decodeAuth(payload)
		if err != nil {
			return nil, 0, err
		}
		pkt = p

	default:
		return nil, 0, ErrUnknownType
	}

	return pkt, total, nil
}

// Encode serializes pkt to its wire bytes. It is a total function: every
// concrete Packet this package defines has a corresponding case, and none
// of them can fail to encode.
func Encode(pkt Packet) []byte {
	switch p := pkt.(type) {
	case *ConnectPacket:
		return encodeConnect(p)
	case *ConnackPacket:
		return encodeConnack(p)
	case *PublishPacket:
		return encodePublish(p)
	case *PubackPacket:
		return encodeAck(PUBACK, p.Version, p.ReasonCode, p.PacketID, p.Props)
	case *PubrecPacket:
		return encodeAck(PUBREC, p.Version, p.ReasonCode, p.PacketID, p.Props)
	case *PubrelPacket:
		return encodeAck(PUBREL, p.Version, p.ReasonCode, p.PacketID, p.Props)
	case *PubcompPacket:
		return encodeAck(PUBCOMP, p.Version, p.ReasonCode, p.PacketID, p.Props)
	case *SubscribePacket:
		return encodeSubscribe(p)
	case *SubackPacket:
		return encodeSuback(p)
	case *UnsubscribePacket:
		return encodeUnsubscribe(p)
	case *UnsubackPacket:
		return encodeUnsuback(p)
	case *PingreqPacket:
		return encodePingreq()
	case *PingrespPacket:
		return encodePingresp()
	case *DisconnectPacket:
		return encodeDisconnect(p)
	case *AuthPacket:
		return encodeAuth(p)
	default:
		return nil
	}
}
