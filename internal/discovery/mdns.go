// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/log"
)

const (
	mdnsGroup       = "224.0.0.251"
	mdnsPort        = 5353
	mdnsServiceType = "_rtsp._tcp.local."
	mdnsQueryPeriod = 30 * time.Second
	mdnsTTL         = 120
)

func openMDNSSocket(ifaces []net.Interface) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: mdnsPort})
	if err != nil {
		return nil, err
	}
	pc := ipv4.NewPacketConn(conn)
	group := net.ParseIP(mdnsGroup)
	if len(ifaces) == 0 {
		_ = pc.JoinGroup(nil, &net.UDPAddr{IP: group})
		return conn, nil
	}
	for _, iface := range ifaces {
		iface := iface
		if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: group}); err != nil {
			log.L().Debug().Err(err).Str(log.FieldInterface, iface.Name).Msg("discovery: mdns join failed")
		}
	}
	return conn, nil
}

// mdnsBrowseLoop periodically queries for _rtsp._tcp.local. instances and
// resolves each response into a discovered stream via RTSP DESCRIBE (spec
// §4.8 "mDNS plane").
func (s *Service) mdnsBrowseLoop(ctx context.Context) {
	if s.mdnsConn == nil {
		return
	}
	t := time.NewTicker(mdnsQueryPeriod)
	defer t.Stop()
	s.sendMDNSQuery()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.mdnsReadLoop(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-t.C:
			s.sendMDNSQuery()
		}
	}
}

func (s *Service) sendMDNSQuery() {
	msg := encodePTRQuery(0, mdnsServiceType)
	_, _ = s.mdnsConn.WriteToUDP(msg, &net.UDPAddr{IP: net.ParseIP(mdnsGroup), Port: mdnsPort})
}

func (s *Service) mdnsReadLoop(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = s.mdnsConn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := s.mdnsConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}
		msg, err := decodeDNSMessage(buf[:n])
		if err != nil {
			continue
		}
		s.handleMDNSMessage(msg)
	}
}

func (s *Service) handleMDNSMessage(msg *dnsMessage) {
	var instanceFQDN, target, path string
	var port uint16
	var ip net.IP

	for _, rec := range msg.Answers {
		switch rec.Type {
		case dnsTypePTR:
			if rec.Name == mdnsServiceType {
				instanceFQDN = rec.PTRName
			}
		case dnsTypeSRV:
			target = rec.SRV.Target
			port = rec.SRV.Port
		case dnsTypeTXT:
			for _, kv := range rec.TXT {
				if strings.HasPrefix(kv, "path=") {
					path = strings.TrimPrefix(kv, "path=")
				}
			}
		case dnsTypeA:
			ip = rec.A
		}
	}
	if instanceFQDN == "" || target == "" || port == 0 || ip == nil {
		return
	}
	if path == "" {
		path = "/" + strings.TrimSuffix(strings.SplitN(instanceFQDN, ".", 2)[0], ".")
	}
	if s.isLocalAddress(ip) {
		return
	}

	s.resolveMDNSStream(instanceFQDN, ip.String(), int(port), path)
}

func (s *Service) isLocalAddress(ip net.IP) bool {
	for _, iface := range s.interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.IP.Equal(ip) {
				return true
			}
		}
	}
	return false
}

func (s *Service) resolveMDNSStream(instanceFQDN, ip string, port int, path string) {
	url := "rtsp://" + ip + ":" + strconv.Itoa(port) + path
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sdpBytes, err := rtspDescribe(ctx, url)
	if err != nil {
		log.L().Debug().Err(err).Str(log.FieldURL, url).Msg("discovery: mdns rtsp describe failed")
		return
	}
	parsed, err := parseSDP(sdpBytes)
	if err != nil {
		log.L().Debug().Err(err).Str(log.FieldURL, url).Msg("discovery: mdns sdp unparseable")
		return
	}

	id := streamIDFromOrigin(parsed.OriginAddress, parsed.OriginSessionID) + "-mdns"
	now := time.Now()

	s.mu.Lock()
	existing, isUpdate := s.discovered[id]
	firstSeen := now
	if isUpdate {
		firstSeen = existing.FirstSeen
	}
	d := &DiscoveredStream{
		ID:                id,
		Protocol:          "mdns",
		Name:              parsed.Name,
		ConnectionAddress: parsed.ConnectionAddress,
		Port:              parsed.Port,
		Channels:          parsed.Channels,
		SampleRate:        parsed.SampleRate,
		Encoding:          parsed.Encoding,
		OriginAddress:     parsed.OriginAddress,
		SDP:               string(sdpBytes),
		FirstSeen:         firstSeen,
		LastSeen:          now,
	}
	s.discovered[id] = d
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.save(d)
	}
	kind := events.KindStreamDiscovered
	if isUpdate {
		kind = events.KindStreamUpdated
	}
	s.broadcaster.Publish(events.New(kind, map[string]any{"stream_id": id, "name": d.Name}))
}

// mdnsRegister advertises a as a _rtsp._tcp.local. service instance named
// after its StreamKey.
func (s *Service) mdnsRegister(a *AnnouncedStream) {
	if s.mdnsConn == nil || s.cfg.RTSPAddr == "" {
		return
	}
	origin := s.primaryOriginAddress()
	hostTarget := a.StreamKey + ".local."
	msg := encodeAnnounce(mdnsServiceType, a.StreamKey, hostTarget, rtspPort(s.cfg.RTSPAddr), "path=/"+a.StreamKey, origin, mdnsTTL)
	_, _ = s.mdnsConn.WriteToUDP(msg, &net.UDPAddr{IP: net.ParseIP(mdnsGroup), Port: mdnsPort})
}

// mdnsUnregister sends a goodbye (ttl=0) packet withdrawing a's service
// instance.
func (s *Service) mdnsUnregister(a *AnnouncedStream) {
	if s.mdnsConn == nil || s.cfg.RTSPAddr == "" {
		return
	}
	origin := s.primaryOriginAddress()
	hostTarget := a.StreamKey + ".local."
	msg := encodeAnnounce(mdnsServiceType, a.StreamKey, hostTarget, rtspPort(s.cfg.RTSPAddr), "path=/"+a.StreamKey, origin, 0)
	_, _ = s.mdnsConn.WriteToUDP(msg, &net.UDPAddr{IP: net.ParseIP(mdnsGroup), Port: mdnsPort})
}

func rtspPort(addr string) uint16 {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 554
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return 554
	}
	return uint16(p)
}
