package mqtt

// ConnectPacket is the CONNECT control packet (client -> broker).
type ConnectPacket struct {
	Version      byte
	ProtocolName string

	CleanSession bool
	WillFlag     bool
	WillQoS      QoS
	WillRetain   bool
	UsernameFlag bool
	PasswordFlag bool
	KeepAlive    uint16

	ClientID string

	WillProps   Properties // v5 only
	WillTopic   string
	WillMessage []byte

	Username string
	Password []byte

	Props Properties // v5 only
}

func (p *ConnectPacket) Type() PacketType { return CONNECT }

// PreDecodeConnect extracts just the protocol name and level from a
// CONNECT packet's payload (the bytes after the fixed header), without
// committing to a v3 or v5 decode path. Decode uses this to pick the
// right decoder before doing the full decode.
func PreDecodeConnect(payload []byte) (protocolName string, level byte, err error) {
	name, n, err := readString(payload, 0)
	if err != nil {
		return "", 0, err
	}
	if n >= len(payload) {
		return "", 0, ErrMalformed
	}
	return name, payload[n], nil
}

func encodeConnectFlags(p *ConnectPacket) byte {
	var flags byte
	if p.CleanSession {
		flags |= 0x02
	}
	if p.WillFlag {
		flags |= 0x04
		flags |= byte(p.WillQoS) << 3
		if p.WillRetain {
			flags |= 0x20
		}
	}
	if p.PasswordFlag {
		flags |= 0x40
	}
	if p.UsernameFlag {
		flags |= 0x80
	}
	return flags
}

func encodeConnect(p *ConnectPacket) []byte {
	var vh []byte
	vh = appendString(vh, p.ProtocolName)
	vh = append(vh, p.Version)
	vh = append(vh, encodeConnectFlags(p))
	vh = appendUint16(vh, p.KeepAlive)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, connectProps)
	}

	var payload []byte
	payload = appendString(payload, p.ClientID)
	if p.WillFlag {
		if p.Version == Level5 {
			payload = appendProperties(payload, p.WillProps, willProps)
		}
		payload = appendString(payload, p.WillTopic)
		payload = appendBinary(payload, p.WillMessage)
	}
	if p.UsernameFlag {
		payload = appendString(payload, p.Username)
	}
	if p.PasswordFlag {
		payload = appendBinary(payload, p.Password)
	}

	var out []byte
	out = appendFixedHeader(out, CONNECT, 0, len(vh)+len(payload))
	out = append(out, vh...)
	out = append(out, payload...)
	return out
}

func decodeConnect(buf []byte, version byte) (*ConnectPacket, error) {
	p := &ConnectPacket{Version: version}

	name, n, err := readString(buf, 0)
	if err != nil {
		return nil, err
	}
	p.ProtocolName = name
	pos := n

	if pos >= len(buf) {
		return nil, ErrMalformed
	}
	pos++ // protocol level already known to caller

	if pos >= len(buf) {
		return nil, ErrMalformed
	}
	flags := buf[pos]
	pos++
	p.UsernameFlag = flags&0x80 != 0
	p.PasswordFlag = flags&0x40 != 0
	p.WillRetain = flags&0x20 != 0
	p.WillQoS = QoS((flags >> 3) & 0x03)
	p.WillFlag = flags&0x04 != 0
	p.CleanSession = flags&0x02 != 0

	keepAlive, err := readUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	p.KeepAlive = keepAlive
	pos += 2

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, connectProps)
		if err != nil {
			return nil, err
		}
		p.Props = props
		pos += c
	}

	clientID, n, err := readString(buf, pos)
	if err != nil {
		return nil, err
	}
	p.ClientID = clientID
	pos += n

	if p.WillFlag {
		if version == Level5 {
			props, c, err := decodeProperties(buf, pos, willProps)
			if err != nil {
				return nil, err
			}
			p.WillProps = props
			pos += c
		}
		willTopic, n, err := readString(buf, pos)
		if err != nil {
			return nil, err
		}
		p.WillTopic = willTopic
		pos += n

		willMsg, n, err := readBinary(buf, pos)
		if err != nil {
			return nil, err
		}
		p.WillMessage = willMsg
		pos += n
	}

	if p.UsernameFlag {
		username, n, err := readString(buf, pos)
		if err != nil {
			return nil, err
		}
		p.Username = username
		pos += n
	}

	if p.PasswordFlag {
		password, n, err := readBinary(buf, pos)
		if err != nil {
			return nil, err
		}
		p.Password = password
		pos += n
	}

	return p, nil
}
