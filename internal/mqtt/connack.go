package mqtt

// Reason / return codes this implementation ever emits. The broker always
// reports success (see spec §7 / §9 — auth is a non-goal, every CONNECT is
// accepted), but the full set of names is kept here for documentation and
// for the client library to interpret a well-behaved peer's response.
const (
	ReasonSuccess              byte = 0x00
	ReasonUnspecifiedError     byte = 0x80
	ReasonMalformedPacket      byte = 0x81
	ReasonNotAuthorized        byte = 0x87
	ReasonQoSNotSupported      byte = 0x9B
	ReasonWildcardNotSupported byte = 0xA2
)

// ConnackPacket is the CONNACK control packet (broker -> client).
type ConnackPacket struct {
	Version        byte
	SessionPresent bool
	ReasonCode     byte
	Props          Properties // v5 only
}

func (p *ConnackPacket) Type() PacketType { return CONNACK }

func encodeConnack(p *ConnackPacket) []byte {
	var vh []byte
	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	vh = append(vh, flags, p.ReasonCode)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, connackProps)
	}

	var out []byte
	out = appendFixedHeader(out, CONNACK, 0, len(vh))
	return append(out, vh...)
}

func decodeConnack(buf []byte, version byte) (*ConnackPacket, error) {
	if len(buf) < 2 {
		return nil, ErrMalformed
	}
	p := &ConnackPacket{
		Version:        version,
		SessionPresent: buf[0]&0x01 != 0,
		ReasonCode:     buf[1],
	}
	if version == Level5 && len(buf) > 2 {
		props, _, err := decodeProperties(buf, 2, connackProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
	}
	return p, nil
}
