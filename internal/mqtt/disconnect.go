package mqtt

// DisconnectPacket signals a graceful connection close. v3's is always
// empty; v5 may carry a reason code and properties.
type DisconnectPacket struct {
	Version    byte
	ReasonCode byte
	Props      Properties
}

func (p *DisconnectPacket) Type() PacketType { return DISCONNECT }

func encodeDisconnect(p *DisconnectPacket) []byte {
	var vh []byte
	if p.Version == Level5 && (p.ReasonCode != ReasonSuccess || len(p.Props) > 0) {
		vh = append(vh, p.ReasonCode)
		if len(p.Props) > 0 {
			vh = appendProperties(vh, p.Props, disconnectProps)
		}
	}
	var out []byte
	out = appendFixedHeader(out, DISCONNECT, 0, len(vh))
	return append(out, vh...)
}

func decodeDisconnect(buf []byte, version byte) (*DisconnectPacket, error) {
	p := &DisconnectPacket{Version: version, ReasonCode: ReasonSuccess}
	if version == Level5 && len(buf) > 0 {
		p.ReasonCode = buf[0]
		if len(buf) > 1 {
			props, _, err := decodeProperties(buf, 1, disconnectProps)
			if err != nil {
				return nil, err
			}
			p.Props = props
		}
	}
	return p, nil
}
