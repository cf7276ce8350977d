package mqtt

// AuthPacket carries an extended (e.g. SCRAM/Kerberos) authentication
// exchange. v5 only.
type AuthPacket struct {
	ReasonCode byte
	Props      Properties
}

func (p *AuthPacket) Type() PacketType { return AUTH }

func encodeAuth(p *AuthPacket) []byte {
	var vh []byte
	if p.ReasonCode != ReasonSuccess || len(p.Props) > 0 {
		vh = append(vh, p.ReasonCode)
		if len(p.Props) > 0 {
			vh = appendProperties(vh, p.Props, authProps)
		}
	}
	var out []byte
	out = appendFixedHeader(out, AUTH, 0, len(vh))
	return append(out, vh...)
}

func decodeAuth(buf []byte) (*AuthPacket, error) {
	p := &AuthPacket{ReasonCode: ReasonSuccess}
	if len(buf) > 0 {
		p.ReasonCode = buf[0]
		if len(buf) > 1 {
			props, _, err := decodeProperties(buf, 1, authProps)
			if err != nil {
				return nil, err
			}
			p.Props = props
		}
	}
	return p, nil
}
