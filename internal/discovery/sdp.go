// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pion/sdp/v3"
)

// buildSDP renders an AnnouncedStream as an AES67-shaped SDP document:
// one audio media line, L24/48000 by default, with the origin and
// connection lines SAP/mDNS receivers key their stream identity on.
func buildSDP(s AnnouncedStream, originAddr string) ([]byte, error) {
	encoding := s.Encoding
	if encoding == "" {
		encoding = "L24"
	}
	sampleRate := s.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	channels := s.Channels
	if channels == 0 {
		channels = 2
	}

	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(time.Now().Unix()),
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: originAddr,
		},
		SessionName: sdp.SessionName(s.Name),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: s.ConnectionAddress, TTL: intPtr(32)},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: s.Port},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"97"},
				},
				Attributes: []sdp.Attribute{
					sdp.NewAttribute("rtpmap", fmt.Sprintf("97 %s/%d/%d", encoding, sampleRate, channels)),
					sdp.NewAttribute("ptime", "1"),
					sdp.NewAttribute("recvonly", ""),
				},
			},
		},
	}
	return sd.Marshal()
}

func intPtr(v int) *int { return &v }

// parsedStream is what parseSDP extracts for a discovered_streams upsert.
type parsedStream struct {
	Name              string
	ConnectionAddress string
	Port              int
	Channels          int
	SampleRate        int
	Encoding          string
	OriginAddress     string
	OriginSessionID   uint64
}

// parseSDP extracts the fields the discovery upsert needs from a raw SDP
// document (spec §4.8 "Receive pipeline").
func parseSDP(raw []byte) (parsedStream, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return parsedStream{}, fmt.Errorf("discovery: parse sdp: %w", err)
	}

	out := parsedStream{
		Name:            string(sd.SessionName),
		OriginAddress:   sd.Origin.UnicastAddress,
		OriginSessionID: sd.Origin.SessionID,
	}
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		out.ConnectionAddress = sd.ConnectionInformation.Address.Address
	}

	if len(sd.MediaDescriptions) > 0 {
		md := sd.MediaDescriptions[0]
		out.Port = md.MediaName.Port.Value
		if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			out.ConnectionAddress = md.ConnectionInformation.Address.Address
		}
		for _, attr := range md.Attributes {
			if attr.Key != "rtpmap" {
				continue
			}
			out.Encoding, out.SampleRate, out.Channels = parseRTPMap(attr.Value)
		}
	}
	return out, nil
}

// parseRTPMap parses an "a=rtpmap" value of the form "<fmt> <encoding>/<rate>[/<channels>]".
func parseRTPMap(value string) (encoding string, rate int, channels int) {
	channels = 1
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return "", 0, 1
	}
	parts := strings.Split(fields[1], "/")
	if len(parts) == 0 {
		return "", 0, 1
	}
	encoding = parts[0]
	if len(parts) > 1 {
		rate, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		if c, err := strconv.Atoi(parts[2]); err == nil {
			channels = c
		}
	}
	return encoding, rate, channels
}

// streamIDFromOrigin builds a stable stream_id from an SDP origin address
// and session id, used for SAP-sourced entries and, with a "-mdns" suffix,
// for mDNS-sourced entries (spec §4.8).
func streamIDFromOrigin(originAddr string, sessionID uint64) string {
	return fmt.Sprintf("%s-%d", originAddr, sessionID)
}
