// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
)

// SAPPort is the well-known UDP port for Session Announcement Protocol
// traffic (spec §4.8, §6).
const SAPPort = 9875

// DefaultSAPAddresses are the two SAP multicast destinations the
// announcer picks between by the announced stream's own connection
// address scope (spec §4.8 "Announce loop").
var DefaultSAPAddresses = []string{"239.255.255.255", "224.2.127.254"}

const sapPayloadType = "application/sdp"

// sapSessionKey identifies a SAP session: the origin address plus the
// 16-bit hash the originator chose for it (spec §4.8 "the tuple
// (origin_ip, msg_id_hash) is the session key").
type sapSessionKey struct {
	Origin    string
	MsgIDHash uint16
}

type sapPacket struct {
	Deletion  bool
	MsgIDHash uint16
	Origin    net.IP
	Payload   []byte // raw SDP bytes, payload-type prefix already stripped
}

// encodeSAP builds the wire bytes for one SAP announce or deletion
// packet, per the header layout in spec §6 "SAP wire format".
func encodeSAP(deletion bool, msgIDHash uint16, origin net.IP, sdpPayload []byte) []byte {
	origin4 := origin.To4()
	if origin4 == nil {
		origin4 = net.IPv4zero.To4()
	}

	var buf bytes.Buffer
	var b0 byte = 0x20 // version=1 in the top 3 bits, address-type=IPv4 (bit4)=0
	if deletion {
		b0 |= 0x04 // T bit
	}
	buf.WriteByte(b0)
	buf.WriteByte(0x00) // auth length: no authentication data
	_ = binary.Write(&buf, binary.BigEndian, msgIDHash)
	buf.Write(origin4)
	buf.WriteString(sapPayloadType)
	buf.WriteByte(0x00)
	buf.Write(sdpPayload)
	return buf.Bytes()
}

// decodeSAP parses a received SAP datagram. Unknown/encrypted/compressed
// packets are rejected with an error rather than guessed at.
func decodeSAP(data []byte) (sapPacket, error) {
	if len(data) < 8 {
		return sapPacket{}, fmt.Errorf("discovery: sap packet too short (%d bytes)", len(data))
	}
	b0 := data[0]
	version := b0 >> 5
	if version != 1 {
		return sapPacket{}, fmt.Errorf("discovery: unsupported sap version %d", version)
	}
	ipv6 := b0&0x10 != 0
	deletion := b0&0x04 != 0
	encrypted := b0&0x02 != 0
	compressed := b0&0x01 != 0
	if encrypted || compressed {
		return sapPacket{}, fmt.Errorf("discovery: encrypted/compressed sap packets are not supported")
	}

	authLen := int(data[1])
	msgIDHash := binary.BigEndian.Uint16(data[2:4])

	offset := 4
	addrLen := 4
	if ipv6 {
		addrLen = 16
	}
	if len(data) < offset+addrLen {
		return sapPacket{}, fmt.Errorf("discovery: sap packet truncated before origin address")
	}
	origin := net.IP(append([]byte(nil), data[offset:offset+addrLen]...))
	offset += addrLen
	offset += authLen * 4 // auth data, if any, is authLen 32-bit words
	if offset > len(data) {
		return sapPacket{}, fmt.Errorf("discovery: sap packet truncated by auth length")
	}

	payload := data[offset:]
	if idx := bytes.IndexByte(payload, 0); idx >= 0 && looksLikeMIMEType(payload[:idx]) {
		payload = payload[idx+1:]
	}

	return sapPacket{Deletion: deletion, MsgIDHash: msgIDHash, Origin: origin, Payload: payload}, nil
}

func looksLikeMIMEType(b []byte) bool {
	if len(b) == 0 || len(b) > 64 {
		return false
	}
	for _, c := range b {
		if c == '/' || c == '-' || c == '.' || c == '+' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return bytes.ContainsRune(b, '/')
}

// sapMsgIDHash hashes flowID+blockID into a 16-bit slot so that
// re-announcing from the same block instance reuses the same session id
// and is recognisable as a deletion by receivers (spec §4.8).
func sapMsgIDHash(flowID, blockID string) uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(flowID))
	_, _ = h.Write([]byte(blockID))
	sum := h.Sum32()
	return uint16(sum ^ (sum >> 16))
}

// sapDestinationFor picks the multicast destination matching the scope of
// connAddr: AES67 default scope for 239.255.255.255-style admin-scoped
// addresses, global scope otherwise (spec §4.8, §4 scenario 5).
func sapDestinationFor(connAddr string) string {
	ip := net.ParseIP(connAddr)
	if ip == nil {
		return DefaultSAPAddresses[0]
	}
	if ip4 := ip.To4(); ip4 != nil && ip4[0] == 239 {
		return DefaultSAPAddresses[0]
	}
	return DefaultSAPAddresses[1]
}
