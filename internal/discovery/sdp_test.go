// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import "testing"

func TestBuildSDPParseSDPRoundTrip(t *testing.T) {
	a := AnnouncedStream{
		StreamKey:         "mixer-out-1",
		Name:              "Mixer Output 1",
		ConnectionAddress: "239.69.1.10",
		Port:              5004,
		Channels:          8,
		SampleRate:        48000,
		Encoding:          "L24",
	}
	raw, err := buildSDP(a, "192.168.1.50")
	if err != nil {
		t.Fatalf("buildSDP: %v", err)
	}

	parsed, err := parseSDP(raw)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if parsed.Name != a.Name {
		t.Errorf("expected name %q, got %q", a.Name, parsed.Name)
	}
	if parsed.ConnectionAddress != a.ConnectionAddress {
		t.Errorf("expected connection address %q, got %q", a.ConnectionAddress, parsed.ConnectionAddress)
	}
	if parsed.Port != a.Port {
		t.Errorf("expected port %d, got %d", a.Port, parsed.Port)
	}
	if parsed.Encoding != a.Encoding {
		t.Errorf("expected encoding %q, got %q", a.Encoding, parsed.Encoding)
	}
	if parsed.SampleRate != a.SampleRate {
		t.Errorf("expected sample rate %d, got %d", a.SampleRate, parsed.SampleRate)
	}
	if parsed.Channels != a.Channels {
		t.Errorf("expected channels %d, got %d", a.Channels, parsed.Channels)
	}
	if parsed.OriginAddress != "192.168.1.50" {
		t.Errorf("expected origin 192.168.1.50, got %q", parsed.OriginAddress)
	}
}

func TestBuildSDPAppliesDefaults(t *testing.T) {
	a := AnnouncedStream{StreamKey: "bare", Name: "Bare Stream", ConnectionAddress: "239.1.1.1", Port: 5004}
	raw, err := buildSDP(a, "10.0.0.1")
	if err != nil {
		t.Fatalf("buildSDP: %v", err)
	}
	parsed, err := parseSDP(raw)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if parsed.Encoding != "L24" {
		t.Errorf("expected default encoding L24, got %q", parsed.Encoding)
	}
	if parsed.SampleRate != 48000 {
		t.Errorf("expected default sample rate 48000, got %d", parsed.SampleRate)
	}
	if parsed.Channels != 2 {
		t.Errorf("expected default channel count 2, got %d", parsed.Channels)
	}
}

func TestParseRTPMap(t *testing.T) {
	enc, rate, ch := parseRTPMap("97 L24/48000/8")
	if enc != "L24" || rate != 48000 || ch != 8 {
		t.Errorf("expected L24/48000/8, got %s/%d/%d", enc, rate, ch)
	}

	enc, rate, ch = parseRTPMap("97 opus/48000")
	if enc != "opus" || rate != 48000 || ch != 1 {
		t.Errorf("expected opus/48000/1 (implicit mono), got %s/%d/%d", enc, rate, ch)
	}
}

func TestStreamIDFromOrigin(t *testing.T) {
	id := streamIDFromOrigin("192.168.1.10", 123456)
	if id != "192.168.1.10-123456" {
		t.Errorf("unexpected stream id %q", id)
	}
}
