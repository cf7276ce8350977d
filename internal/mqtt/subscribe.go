package mqtt

// Subscription is one topic filter entry within a SUBSCRIBE packet.
type Subscription struct {
	Topic             string
	QoS               QoS
	NoLocal           bool // v5 subscribe option bit 2
	RetainAsPublished bool // v5 subscribe option bit 3
	RetainHandling    byte // v5 subscribe option bits 4-5
}

func (s Subscription) encodeOptions() byte {
	opts := byte(s.QoS) & 0x03
	if s.NoLocal {
		opts |= 0x04
	}
	if s.RetainAsPublished {
		opts |= 0x08
	}
	opts |= (s.RetainHandling & 0x03) << 4
	return opts
}

func decodeSubscriptionOptions(b byte) (qos QoS, noLocal, retainAsPublished bool, retainHandling byte) {
	return QoS(b & 0x03), b&0x04 != 0, b&0x08 != 0, (b >> 4) & 0x03
}

// SubscribePacket requests one or more topic filters.
type SubscribePacket struct {
	Version  byte
	PacketID uint16
	Filters  []Subscription
	Props    Properties
}

func (p *SubscribePacket) Type() PacketType { return SUBSCRIBE }

func encodeSubscribe(p *SubscribePacket) []byte {
	var vh []byte
	vh = appendUint16(vh, p.PacketID)
	if p.Version == Level5 {
		vh = appendProperties(vh, p.Props, subscribeProps)
	}
	for _, f := range p.Filters {
		vh = appendString(vh, f.Topic)
		vh = append(vh, f.encodeOptions())
	}

	var out []byte
	out = appendFixedHeader(out, SUBSCRIBE, 0x02, len(vh))
	return append(out, vh...)
}

func decodeSubscribe(buf []byte, version byte) (*SubscribePacket, error) {
	p := &SubscribePacket{Version: version}

	id, err := readUint16(buf, 0)
	if err != nil {
		return nil, err
	}
	p.PacketID = id
	pos := 2

	if version == Level5 {
		props, c, err := decodeProperties(buf, pos, subscribeProps)
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
		if pos >= len(buf) {
			return nil, ErrMalformed
		}
		qos, noLocal, rap, rh := decodeSubscriptionOptions(buf[pos])
		pos++
		p.Filters = append(p.Filters, Subscription{
			Topic: topic, QoS: qos, NoLocal: noLocal, RetainAsPublished: rap, RetainHandling: rh,
		})
	}
	if len(p.Filters) == 0 {
		return nil, ErrMalformed
	}
	return p, nil
}
