package mqtt

// Property identifiers from the MQTT 5.0 property table (§2.2.2.2 / §3.x.2.5
// of the various packet sections). Values carry their MQTT-defined wire
// type; see propertyKind below.
const (
	PropPayloadFormatIndicator          byte = 0x01
	PropMessageExpiryInterval           byte = 0x02
	PropContentType                     byte = 0x03
	PropResponseTopic                   byte = 0x08
	PropCorrelationData                 byte = 0x09
	PropSubscriptionIdentifier          byte = 0x0B
	PropSessionExpiryInterval           byte = 0x11
	PropAssignedClientIdentifier        byte = 0x12
	PropServerKeepAlive                 byte = 0x13
	PropAuthenticationMethod            byte = 0x15
	PropAuthenticationData              byte = 0x16
	PropRequestProblemInformation       byte = 0x17
	PropWillDelayInterval                byte = 0x18
	PropRequestResponseInformation      byte = 0x19
	PropResponseInformation             byte = 0x1A
	PropServerReference                 byte = 0x1C
	PropReasonString                    byte = 0x1F
	PropReceiveMaximum                  byte = 0x21
	PropTopicAliasMaximum               byte = 0x22
	PropTopicAlias                       byte = 0x23
	PropMaximumQoS                       byte = 0x24
	PropRetainAvailable                  byte = 0x25
	PropUserProperty                     byte = 0x26
	PropMaximumPacketSize                byte = 0x27
	PropWildcardSubscriptionAvailable    byte = 0x28
	PropSubscriptionIdentifierAvailable  byte = 0x29
	PropSharedSubscriptionAvailable      byte = 0x2A
)

// propertyKind is the wire representation a given property identifier
// carries. The identifier alone determines this — independent of which
// packet type it appears on — so an identifier that is out of place for
// the enclosing packet can still be parsed (and discarded) correctly.
type propertyKind byte

const (
	kindByte propertyKind = iota
	kindU16
	kindU32
	kindVLI
	kindString
	kindBinary
	kindStringPair
)

var propertyKinds = map[byte]propertyKind{
	PropPayloadFormatIndicator:         kindByte,
	PropMessageExpiryInterval:          kindU32,
	PropContentType:                    kindString,
	PropResponseTopic:                  kindString,
	PropCorrelationData:                kindBinary,
	PropSubscriptionIdentifier:         kindVLI,
	PropSessionExpiryInterval:          kindU32,
	PropAssignedClientIdentifier:       kindString,
	PropServerKeepAlive:                kindU16,
	PropAuthenticationMethod:           kindString,
	PropAuthenticationData:             kindBinary,
	PropRequestProblemInformation:      kindByte,
	PropWillDelayInterval:              kindU32,
	PropRequestResponseInformation:     kindByte,
	PropResponseInformation:            kindString,
	PropServerReference:                kindString,
	PropReasonString:                   kindString,
	PropReceiveMaximum:                 kindU16,
	PropTopicAliasMaximum:              kindU16,
	PropTopicAlias:                     kindU16,
	PropMaximumQoS:                     kindByte,
	PropRetainAvailable:                kindByte,
	PropUserProperty:                   kindStringPair,
	PropMaximumPacketSize:              kindU32,
	PropWildcardSubscriptionAvailable:  kindByte,
	PropSubscriptionIdentifierAvailable: kindByte,
	PropSharedSubscriptionAvailable:    kindByte,
}

// StringPair is the value type of PropUserProperty.
type StringPair struct {
	Key   string
	Value string
}

// Property is a single (identifier, value) entry. Value holds one of:
// byte, uint16, uint32, int (for VLI-typed properties), string, []byte, or
// StringPair, depending on ID's propertyKind.
type Property struct {
	ID    byte
	Value any
}

// Properties is the ordered list of properties attached to a v5 packet (or
// to the will fields of a v5 CONNECT payload). v3 packets carry a nil/empty
// Properties and v3 encoders never emit them.
type Properties []Property

// Get returns the first property with the given ID, if present.
func (p Properties) Get(id byte) (any, bool) {
	for _, prop := range p {
		if prop.ID == id {
			return prop.Value, true
		}
	}
	return nil, false
}

// admissible identifier sets, one per packet-type family that carries
// properties. Decoding never fails on an inadmissible identifier (per the
// wire spec's skip-and-continue policy); these sets are consulted so that
// an out-of-place identifier is dropped rather than retained.
var (
	connectProps = set(PropSessionExpiryInterval, PropAuthenticationMethod, PropAuthenticationData,
		PropRequestProblemInformation, PropRequestResponseInformation, PropReceiveMaximum,
		PropTopicAliasMaximum, PropUserProperty, PropMaximumPacketSize)

	willProps = set(PropWillDelayInterval, PropPayloadFormatIndicator, PropMessageExpiryInterval,
		PropContentType, PropResponseTopic, PropCorrelationData, PropUserProperty)

	connackProps = set(PropSessionExpiryInterval, PropAssignedClientIdentifier, PropServerKeepAlive,
		PropAuthenticationMethod, PropAuthenticationData, PropResponseInformation, PropServerReference,
		PropReasonString, PropReceiveMaximum, PropTopicAliasMaximum, PropMaximumQoS, PropRetainAvailable,
		PropUserProperty, PropMaximumPacketSize, PropWildcardSubscriptionAvailable,
		PropSubscriptionIdentifierAvailable, PropSharedSubscriptionAvailable)

	publishProps = set(PropPayloadFormatIndicator, PropMessageExpiryInterval, PropContentType,
		PropResponseTopic, PropCorrelationData, PropSubscriptionIdentifier, PropTopicAlias, PropUserProperty)

	ackProps = set(PropReasonString, PropUserProperty) // PUBACK/PUBREC/PUBREL/PUBCOMP

	subscribeProps = set(PropSubscriptionIdentifier, PropUserProperty)

	subackProps = set(PropReasonString, PropUserProperty)

	unsubscribeProps = set(PropUserProperty)

	unsubackProps = set(PropReasonString, PropUserProperty)

	disconnectProps = set(PropSessionExpiryInterval, PropServerReference, PropReasonString, PropUserProperty)

	authProps = set(PropAuthenticationMethod, PropAuthenticationData, PropReasonString,
		PropUserProperty, PropReasonString)
)

func set(ids ...byte) map[byte]bool {
	m := make(map[byte]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// appendProperties serializes props (filtered by admissible) as a
// VLI-length-prefixed TLV block and appends it to dst.
func appendProperties(dst []byte, props Properties, admissible map[byte]bool) []byte {
	var body []byte
	for _, p := range props {
		if admissible != nil && !admissible[p.ID] {
			continue
		}
		body = append(body, p.ID)
		switch propertyKinds[p.ID] {
		case kindByte:
			body = append(body, toByte(p.Value))
		case kindU16:
			body = appendUint16(body, toUint16(p.Value))
		case kindU32:
			body = appendUint32(body, toUint32(p.Value))
		case kindVLI:
			body = append(body, encodeVLI(toInt(p.Value))...)
		case kindString:
			body = appendString(body, toString(p.Value))
		case kindBinary:
			body = appendBinary(body, toBytes(p.Value))
		case kindStringPair:
			sp := toStringPair(p.Value)
			body = appendString(body, sp.Key)
			body = appendString(body, sp.Value)
		}
	}
	dst = append(dst, encodeVLI(len(body))...)
	return append(dst, body...)
}

// decodeProperties reads a VLI-length-prefixed TLV block starting at
// offset. Identifiers outside admissible are decoded (to stay in sync with
// the byte stream) but dropped from the returned list, matching the
// skip-unknown-or-inadmissible policy. An identifier with no entry in
// propertyKinds has no knowable value length, so it and everything after it
// up to the end of the block are skipped; the block's own length prefix
// keeps the caller in sync, and no error is returned for it.
func decodeProperties(buf []byte, offset int, admissible map[byte]bool) (Properties, int, error) {
	length, n, err := decodeVLI(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	start := offset + n
	end := start + length
	if end > len(buf) {
		return nil, 0, ErrMalformed
	}

	var props Properties
	pos := start
	for pos < end {
		id := buf[pos]
		pos++
		kind, known := propertyKinds[id]
		if !known {
			pos = end
			break
		}
		var value any
		switch kind {
		case kindByte:
			if pos >= len(buf) {
				return nil, 0, ErrMalformed
			}
			value = buf[pos]
			pos++
		case kindU16:
			v, err := readUint16(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			value = v
			pos += 2
		case kindU32:
			v, err := readUint32(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			value = v
			pos += 4
		case kindVLI:
			v, c, err := decodeVLI(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			value = v
			pos += c
		case kindString:
			s, c, err := readString(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			value = s
			pos += c
		case kindBinary:
			b, c, err := readBinary(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			value = b
			pos += c
		case kindStringPair:
			k, c1, err := readString(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			pos += c1
			v, c2, err := readString(buf, pos)
			if err != nil {
				return nil, 0, err
			}
			pos += c2
			value = StringPair{Key: k, Value: v}
		}
		if admissible == nil || admissible[id] {
			props = append(props, Property{ID: id, Value: value})
		}
	}
	if pos != end {
		return nil, 0, ErrMalformed
	}
	return props, end - offset, nil
}

func toByte(v any) byte {
	switch x := v.(type) {
	case byte:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toUint16(v any) uint16 {
	if x, ok := v.(uint16); ok {
		return x
	}
	return 0
}

func toUint32(v any) uint32 {
	if x, ok := v.(uint32); ok {
		return x
	}
	return 0
}

func toInt(v any) int {
	if x, ok := v.(int); ok {
		return x
	}
	return 0
}

func toString(v any) string {
	if x, ok := v.(string); ok {
		return x
	}
	return ""
}

func toBytes(v any) []byte {
	if x, ok := v.([]byte); ok {
		return x
	}
	return nil
}

func toStringPair(v any) StringPair {
	if x, ok := v.(StringPair); ok {
		return x
	}
	return StringPair{}
}
