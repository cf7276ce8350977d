package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, pkt Packet, version byte) Packet {
	t.Helper()
	buf := Encode(pkt)
	require.NotEmpty(t, buf)

	length, complete, err := FrameLength(buf)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, len(buf), length)

	decoded, consumed, err := Decode(buf, version)
	require.NoError(t, err)
	require.Equal(t, len(buf), consumed)
	return decoded
}

func TestConnectRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &ConnectPacket{
			Version:      version,
			ProtocolName: "MQTT",
			CleanSession: true,
			WillFlag:     true,
			WillQoS:      QoS1,
			WillRetain:   true,
			UsernameFlag: true,
			PasswordFlag: true,
			KeepAlive:    60,
			ClientID:     "client-a",
			WillTopic:    "lwt/client-a",
			WillMessage:  []byte("goodbye"),
			Username:     "alice",
			Password:     []byte("s3cr3t"),
		}
		if version == Level5 {
			p.Props = Properties{{ID: PropSessionExpiryInterval, Value: uint32(120)}}
			p.WillProps = Properties{{ID: PropWillDelayInterval, Value: uint32(5)}}
		}
		got := roundTrip(t, p, version)
		gotConn, ok := got.(*ConnectPacket)
		require.True(t, ok)
		require.Equal(t, p.ProtocolName, gotConn.ProtocolName)
		require.Equal(t, p.Version, gotConn.Version)
		require.Equal(t, p.CleanSession, gotConn.CleanSession)
		require.Equal(t, p.WillFlag, gotConn.WillFlag)
		require.Equal(t, p.WillQoS, gotConn.WillQoS)
		require.Equal(t, p.WillRetain, gotConn.WillRetain)
		require.Equal(t, p.KeepAlive, gotConn.KeepAlive)
		require.Equal(t, p.ClientID, gotConn.ClientID)
		require.Equal(t, p.WillTopic, gotConn.WillTopic)
		require.Equal(t, p.WillMessage, gotConn.WillMessage)
		require.Equal(t, p.Username, gotConn.Username)
		require.Equal(t, p.Password, gotConn.Password)
		if version == Level5 {
			require.Equal(t, p.Props, gotConn.Props)
			require.Equal(t, p.WillProps, gotConn.WillProps)
		}
	}
}

func TestConnackRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &ConnackPacket{Version: version, SessionPresent: true, ReasonCode: ReasonSuccess}
		if version == Level5 {
			p.Props = Properties{{ID: PropServerKeepAlive, Value: uint16(30)}}
		}
		got := roundTrip(t, p, version).(*ConnackPacket)
		require.Equal(t, p.SessionPresent, got.SessionPresent)
		require.Equal(t, p.ReasonCode, got.ReasonCode)
		if version == Level5 {
			require.Equal(t, p.Props, got.Props)
		}
	}
}

func TestPublishRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		for _, qos := range []QoS{QoS0, QoS1, QoS2} {
			for _, dup := range []bool{false, true} {
				for _, retain := range []bool{false, true} {
					p := &PublishPacket{
						Version: version,
						Dup:     dup,
						QoS:     qos,
						Retain:  retain,
						Topic:   "sensors/room1/temp",
						Payload: []byte("21.5C"),
					}
					if qos != QoS0 {
						p.PacketID = 42
					}
					if version == Level5 {
						p.Props = Properties{{ID: PropContentType, Value: "text/plain"}}
					}
					got := roundTrip(t, p, version).(*PublishPacket)
					require.Equal(t, p.Dup, got.Dup)
					require.Equal(t, p.QoS, got.QoS)
					require.Equal(t, p.Retain, got.Retain)
					require.Equal(t, p.Topic, got.Topic)
					require.Equal(t, p.PacketID, got.PacketID)
					require.Equal(t, p.Payload, got.Payload)
					if version == Level5 {
						require.Equal(t, p.Props, got.Props)
					}
				}
			}
		}
	}
}

func TestAckRoundTrip(t *testing.T) {
	build := func(pt PacketType, version byte) Packet {
		switch pt {
		case PUBACK:
			return &PubackPacket{Version: version, PacketID: 7, ReasonCode: ReasonSuccess}
		case PUBREC:
			return &PubrecPacket{Version: version, PacketID: 7, ReasonCode: ReasonSuccess}
		case PUBREL:
			return &PubrelPacket{Version: version, PacketID: 7, ReasonCode: ReasonSuccess}
		case PUBCOMP:
			return &PubcompPacket{Version: version, PacketID: 7, ReasonCode: ReasonSuccess}
		}
		return nil
	}
	for _, pt := range []PacketType{PUBACK, PUBREC, PUBREL, PUBCOMP} {
		for _, version := range []byte{Level311, Level5} {
			p := build(pt, version)
			got := roundTrip(t, p, version)
			require.Equal(t, pt, got.Type())
		}
	}
}

func TestAckV5WithReasonCodeAndProps(t *testing.T) {
	p := &PubackPacket{
		Version:    Level5,
		PacketID:   9,
		ReasonCode: ReasonUnspecifiedError,
		Props:      Properties{{ID: PropReasonString, Value: "no matching subscribers"}},
	}
	got := roundTrip(t, p, Level5).(*PubackPacket)
	require.Equal(t, p.ReasonCode, got.ReasonCode)
	require.Equal(t, p.Props, got.Props)
}

func TestSubscribeRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &SubscribePacket{
			Version:  version,
			PacketID: 1,
			Filters: []Subscription{
				{Topic: "x", QoS: QoS1},
				{Topic: "y", QoS: QoS2},
			},
		}
		if version == Level5 {
			p.Props = Properties{{ID: PropSubscriptionIdentifier, Value: 5}}
		}
		got := roundTrip(t, p, version).(*SubscribePacket)
		require.Equal(t, p.PacketID, got.PacketID)
		require.Equal(t, p.Filters, got.Filters)
		if version == Level5 {
			require.Equal(t, p.Props, got.Props)
		}
	}
}

func TestSubackRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &SubackPacket{Version: version, PacketID: 1, Codes: []byte{1, 2}}
		got := roundTrip(t, p, version).(*SubackPacket)
		require.Equal(t, p.PacketID, got.PacketID)
		require.Equal(t, p.Codes, got.Codes)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &UnsubscribePacket{Version: version, PacketID: 2, Filters: []string{"x", "y"}}
		got := roundTrip(t, p, version).(*UnsubscribePacket)
		require.Equal(t, p.PacketID, got.PacketID)
		require.Equal(t, p.Filters, got.Filters)
	}
}

func TestUnsubackRoundTrip(t *testing.T) {
	for _, version := range []byte{Level311, Level5} {
		p := &UnsubackPacket{Version: version, PacketID: 2}
		if version == Level5 {
			p.Codes = []byte{0x00, 0x11}
		}
		got := roundTrip(t, p, version).(*UnsubackPacket)
		require.Equal(t, p.PacketID, got.PacketID)
		if version == Level5 {
			require.Equal(t, p.Codes, got.Codes)
		}
	}
}

func TestPingRoundTrip(t *testing.T) {
	got := roundTrip(t, &PingreqPacket{}, Level311)
	require.Equal(t, PINGREQ, got.Type())

	got = roundTrip(t, &PingrespPacket{}, Level311)
	require.Equal(t, PINGRESP, got.Type())
}

func TestDisconnectRoundTrip(t *testing.T) {
	got := roundTrip(t, &DisconnectPacket{Version: Level311}, Level311)
	require.Equal(t, DISCONNECT, got.Type())

	p := &DisconnectPacket{Version: Level5, ReasonCode: ReasonNotAuthorized,
		Props: Properties{{ID: PropReasonString, Value: "nope"}}}
	got = roundTrip(t, p, Level5)
	gotD := got.(*DisconnectPacket)
	require.Equal(t, p.ReasonCode, gotD.ReasonCode)
	require.Equal(t, p.Props, gotD.Props)
}

func TestAuthRoundTrip(t *testing.T) {
	p := &AuthPacket{ReasonCode: ReasonSuccess,
		Props: Properties{{ID: PropAuthenticationMethod, Value: "SCRAM-SHA-1"}}}
	got := roundTrip(t, p, Level5).(*AuthPacket)
	require.Equal(t, p.ReasonCode, got.ReasonCode)
	require.Equal(t, p.Props, got.Props)
}

func TestDecodeUnknownTypeFails(t *testing.T) {
	buf := []byte{0x00, 0x00} // type 0 is not a valid MQTT packet type
	_, _, err := Decode(buf, Level311)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeTruncatedFails(t *testing.T) {
	buf := []byte{byte(PUBLISH) << 4, 0x10} // claims 16 bytes remaining, has 0
	_, _, err := Decode(buf, Level311)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestUnknownPropertyIdentifierIsSkippedNotFailed(t *testing.T) {
	// Identifier 0x7E has no entry in the v5 property table: the rest of
	// the one-byte block is skipped and decoding carries on after it.
	buf := []byte{1, 0x7E, 0x00}
	props, n, err := decodeProperties(buf, 0, nil)
	require.NoError(t, err)
	require.Empty(t, props)
	require.Equal(t, 2, n)
}

func TestInadmissiblePropertyIsSkippedNotFailed(t *testing.T) {
	// PropTopicAlias (u16) is valid MQTT5 but not admissible on SUBSCRIBE.
	var body []byte
	body = append(body, PropTopicAlias)
	body = appendUint16(body, 7)
	buf := append(encodeVLI(len(body)), body...)

	props, n, err := decodeProperties(buf, 0, subscribeProps)
	require.NoError(t, err)
	require.Empty(t, props)
	require.Equal(t, len(buf), n)
}
