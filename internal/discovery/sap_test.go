// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"net"
	"testing"
)

func TestSAPEncodeDecodeRoundTrip(t *testing.T) {
	origin := net.ParseIP("192.168.1.10")
	payload := []byte("v=0\r\no=- 1 1 IN IP4 192.168.1.10\r\n")

	raw := encodeSAP(false, 0xBEEF, origin, payload)
	pkt, err := decodeSAP(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt.Deletion {
		t.Error("expected non-deletion packet")
	}
	if pkt.MsgIDHash != 0xBEEF {
		t.Errorf("expected msg id hash 0xBEEF, got %#x", pkt.MsgIDHash)
	}
	if !pkt.Origin.Equal(origin.To4()) {
		t.Errorf("expected origin %s, got %s", origin, pkt.Origin)
	}
	if string(pkt.Payload) != string(payload) {
		t.Errorf("expected payload %q, got %q", payload, pkt.Payload)
	}
}

func TestSAPEncodeDecodeDeletion(t *testing.T) {
	origin := net.ParseIP("10.0.0.5")
	raw := encodeSAP(true, 1, origin, []byte("v=0\r\n"))
	pkt, err := decodeSAP(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !pkt.Deletion {
		t.Error("expected deletion flag set")
	}
}

func TestSAPDestinationFor(t *testing.T) {
	if got := sapDestinationFor("239.100.0.1"); got != "239.255.255.255" {
		t.Errorf("expected AES67-scope destination, got %s", got)
	}
	if got := sapDestinationFor("230.0.0.1"); got != "224.2.127.254" {
		t.Errorf("expected global-scope destination, got %s", got)
	}
}

func TestSAPMsgIDHashStable(t *testing.T) {
	a := sapMsgIDHash("flow-1", "block-1")
	b := sapMsgIDHash("flow-1", "block-1")
	if a != b {
		t.Error("expected stable hash for the same flow/block pair")
	}
	c := sapMsgIDHash("flow-2", "block-1")
	if a == c {
		t.Error("expected different flows to hash differently (in the common case)")
	}
}
