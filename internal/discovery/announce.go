// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/log"
)

// announceLoop re-emits SAP announcements for every registered stream
// every announceEvery interval (spec §4.8 "Announce loop").
func (s *Service) announceLoop(ctx context.Context) {
	t := time.NewTicker(announceTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.announceDue()
		}
	}
}

func (s *Service) announceDue() {
	now := time.Now()
	s.mu.Lock()
	var due []*AnnouncedStream
	for _, a := range s.announced {
		if now.Sub(a.lastAnnounced) >= announceEvery {
			a.lastAnnounced = now
			due = append(due, a)
		}
	}
	s.mu.Unlock()

	for _, a := range due {
		if err := s.sendSAPAnnounce(a); err != nil {
			log.L().Warn().Err(err).Str(log.FieldStreamKey, a.StreamKey).Msg("discovery: sap announce failed on all interfaces")
		}
	}
}

func (s *Service) sendSAPAnnounce(a *AnnouncedStream) error {
	return s.sendSAP(a, false)
}

func (s *Service) sendSAPDeletion(a *AnnouncedStream) {
	if err := s.sendSAP(a, true); err != nil {
		log.L().Warn().Err(err).Str(log.FieldStreamKey, a.StreamKey).Msg("discovery: sap deletion failed on all interfaces")
	}
}

// sendSAP emits an announce or deletion packet for a on every interface
// send socket that applies (just the named one, if the stream pins an
// interface); success on any socket counts as a send (spec §4.8).
func (s *Service) sendSAP(a *AnnouncedStream, deletion bool) error {
	dest := sapDestinationFor(a.ConnectionAddress)
	destAddr := &net.UDPAddr{IP: net.ParseIP(dest), Port: SAPPort}
	origin := s.primaryOriginAddress()
	payload := encodeSAP(deletion, a.msgIDHash, net.ParseIP(origin), []byte(a.SDP))

	conns := s.sendConns
	if a.InterfaceName != "" {
		if c, ok := s.sendConns[a.InterfaceName]; ok {
			conns = map[string]*net.UDPConn{a.InterfaceName: c}
		}
	}

	var sent bool
	var lastErr error
	for name, conn := range conns {
		if _, err := conn.WriteToUDP(payload, destAddr); err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}
		sent = true
	}
	if !sent {
		if lastErr == nil {
			lastErr = flowerr.NewValidation("no send sockets available")
		}
		return lastErr
	}
	return nil
}
