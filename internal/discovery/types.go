// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package discovery finds peer AES67/RAVENNA streams reachable on the
// local network and announces the streams this instance publishes,
// symmetrically, over SAP multicast and mDNS/DNS-SD (spec §4.8).
package discovery

import "time"

// DiscoveredStream is one peer stream learned via SAP or mDNS.
type DiscoveredStream struct {
	ID                 string    `json:"id"`
	Protocol           string    `json:"protocol"` // "sap" or "mdns"
	Name               string    `json:"name"`
	ConnectionAddress  string    `json:"connection_address"`
	Port               int       `json:"port"`
	Channels           int       `json:"channels"`
	SampleRate         int       `json:"sample_rate"`
	Encoding           string    `json:"encoding"`
	OriginAddress      string    `json:"origin_address"`
	ReceivedOnInterface string   `json:"received_on_interface,omitempty"`
	SDP                string    `json:"sdp"`
	FirstSeen          time.Time `json:"first_seen"`
	LastSeen           time.Time `json:"last_seen"`

	sessionKey sapSessionKey // zero for mDNS-sourced entries
}

// AnnouncedStream is one of this instance's own outputs, published over
// SAP and/or registered as an mDNS service.
type AnnouncedStream struct {
	StreamKey         string `json:"stream_key"`
	FlowID            string `json:"flow_id"`
	BlockID           string `json:"block_id"`
	Name              string `json:"name"`
	ConnectionAddress string `json:"connection_address"`
	Port              int    `json:"port"`
	Channels          int    `json:"channels"`
	SampleRate        int    `json:"sample_rate"`
	Encoding          string `json:"encoding"`
	InterfaceName     string `json:"interface_name,omitempty"`
	SDP               string `json:"sdp"`

	msgIDHash     uint16
	lastAnnounced time.Time
}
