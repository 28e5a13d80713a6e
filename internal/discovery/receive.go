// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/log"
)

// openReceiveSocket binds the single shared SAP receive socket and joins
// every configured multicast group on every discovered interface (spec
// §4.8 "Interfaces & sockets").
func (s *Service) openReceiveSocket() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: SAPPort})
	if err != nil {
		return err
	}
	s.recvConn = conn

	pc := ipv4.NewPacketConn(conn)
	for _, addrStr := range s.cfg.SAPAddresses {
		group := net.ParseIP(addrStr)
		if group == nil {
			continue
		}
		if len(s.interfaces) == 0 {
			if err := pc.JoinGroup(nil, &net.UDPAddr{IP: group}); err != nil {
				log.L().Warn().Err(err).Str(log.FieldGroup, addrStr).Msg("discovery: failed to join multicast group on default interface")
			}
			continue
		}
		for _, iface := range s.interfaces {
			iface := iface
			if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: group}); err != nil {
				log.L().Warn().Err(err).Str(log.FieldGroup, addrStr).Str(log.FieldInterface, iface.Name).
					Msg("discovery: failed to join multicast group")
			}
		}
	}
	return nil
}

// openSendSockets opens one send socket per interface, multicast TTL 32
// and multicast-if bound to that interface's address; falls back to a
// single unbound socket if interface enumeration produced nothing.
func (s *Service) openSendSockets() {
	if len(s.interfaces) == 0 {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
		if err != nil {
			log.L().Warn().Err(err).Msg("discovery: failed to open fallback send socket")
			return
		}
		s.sendConns[""] = conn
		return
	}
	for _, iface := range s.interfaces {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
		if err != nil {
			log.L().Warn().Err(err).Str(log.FieldInterface, iface.Name).Msg("discovery: failed to open send socket")
			continue
		}
		pc := ipv4.NewPacketConn(conn)
		_ = pc.SetMulticastTTL(32)
		if err := pc.SetMulticastInterface(&iface); err != nil {
			log.L().Warn().Err(err).Str(log.FieldInterface, iface.Name).Msg("discovery: failed to bind multicast interface")
		}
		s.sendConns[iface.Name] = conn
	}
}

// receiveLoop reads SAP datagrams until ctx is canceled, dispatching each
// to handleSAPPacket (upsert or deletion path) (spec §4.8 "Receive pipeline").
func (s *Service) receiveLoop(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = s.recvConn.SetReadDeadline(time.Now().Add(time.Second))
		n, src, err := s.recvConn.ReadFromUDP(buf)
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
		pkt, err := decodeSAP(buf[:n])
		if err != nil {
			log.L().Debug().Err(err).Str(log.FieldFrom, src.String()).Msg("discovery: malformed sap packet")
			continue
		}
		s.handleSAPPacket(pkt, src)
	}
}

func (s *Service) handleSAPPacket(pkt sapPacket, src *net.UDPAddr) {
	key := sapSessionKey{Origin: pkt.Origin.String(), MsgIDHash: pkt.MsgIDHash}

	if pkt.Deletion {
		s.removeBySessionKey(key)
		return
	}

	parsed, err := parseSDP(pkt.Payload)
	if err != nil {
		log.L().Debug().Err(err).Str(log.FieldFrom, src.String()).Msg("discovery: unparseable sap sdp payload")
		return
	}

	id := streamIDFromOrigin(parsed.OriginAddress, parsed.OriginSessionID)
	receivedOn := s.interfaceFor(src.IP)
	now := time.Now()

	s.mu.Lock()
	existing, isUpdate := s.discovered[id]
	firstSeen := now
	if isUpdate {
		firstSeen = existing.FirstSeen
	}
	d := &DiscoveredStream{
		ID:                  id,
		Protocol:            "sap",
		Name:                parsed.Name,
		ConnectionAddress:   parsed.ConnectionAddress,
		Port:                parsed.Port,
		Channels:            parsed.Channels,
		SampleRate:          parsed.SampleRate,
		Encoding:            parsed.Encoding,
		OriginAddress:       parsed.OriginAddress,
		ReceivedOnInterface: receivedOn,
		SDP:                 string(pkt.Payload),
		FirstSeen:           firstSeen,
		LastSeen:            now,
		sessionKey:          key,
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

func (s *Service) removeBySessionKey(key sapSessionKey) {
	s.mu.Lock()
	var removed []string
	for id, d := range s.discovered {
		if d.sessionKey == key {
			removed = append(removed, id)
			delete(s.discovered, id)
		}
	}
	s.mu.Unlock()
	for _, id := range removed {
		if s.cache != nil {
			s.cache.delete(id)
		}
		s.broadcaster.Publish(events.New(events.KindStreamRemoved, map[string]any{"stream_id": id}))
	}
}

func (s *Service) interfaceFor(ip net.IP) string {
	for _, iface := range s.interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.Contains(ip) {
				return iface.Name
			}
		}
	}
	return ""
}

// expiryLoop drops discovered entries whose LastSeen has aged past the
// configured TTL; this is the only way a non-deleted stream disappears
// (spec §4.8 "Expiry").
func (s *Service) expiryLoop(ctx context.Context) {
	t := time.NewTicker(expiryTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.expireStale()
		}
	}
}

func (s *Service) expireStale() {
	cutoff := time.Now().Add(-s.cfg.StreamTTL)
	s.mu.Lock()
	var expired []string
	for id, d := range s.discovered {
		if d.LastSeen.Before(cutoff) {
			expired = append(expired, id)
			delete(s.discovered, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		if s.cache != nil {
			s.cache.delete(id)
		}
		s.broadcaster.Publish(events.New(events.KindStreamRemoved, map[string]any{"stream_id": id, "reason": "expired"}))
	}
}
