// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/log"
)

const (
	expiryTick     = 30 * time.Second
	announceTick   = 5 * time.Second
	announceEvery  = 5 * time.Second
	defaultTTL     = 90 * time.Second
)

// Config configures a Service instance.
type Config struct {
	SAPAddresses []string      // defaults to DefaultSAPAddresses
	StreamTTL    time.Duration // defaults to defaultTTL
	RTSPAddr     string        // e.g. ":8554"; empty disables the RTSP server
	CachePath    string        // badger directory for warm-restart persistence; empty disables it
}

// Service owns the discovered/announced stream maps and the background
// loops that populate them (spec §4.8). One instance per process.
type Service struct {
	cfg         Config
	broadcaster *events.Broadcaster

	mu          sync.RWMutex
	discovered  map[string]*DiscoveredStream
	announced   map[string]*AnnouncedStream

	interfaces []net.Interface
	recvConn   *net.UDPConn
	sendConns  map[string]*net.UDPConn // interface name -> send socket
	mdnsConn   *net.UDPConn

	cache  *cache
	rtsp   *rtspServer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Service. Call Start to bring up its sockets and loops.
func New(cfg Config, broadcaster *events.Broadcaster) *Service {
	if len(cfg.SAPAddresses) == 0 {
		cfg.SAPAddresses = DefaultSAPAddresses
	}
	if cfg.StreamTTL == 0 {
		cfg.StreamTTL = defaultTTL
	}
	return &Service{
		cfg:         cfg,
		broadcaster: broadcaster,
		discovered:  make(map[string]*DiscoveredStream),
		announced:   make(map[string]*AnnouncedStream),
		sendConns:   make(map[string]*net.UDPConn),
	}
}

// Start enumerates interfaces, opens sockets, reloads any cached warm
// state, and launches the receive/announce/expiry loops.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ifaces, err := usableInterfaces()
	if err != nil {
		log.L().Warn().Err(err).Msg("discovery: interface enumeration failed, using unspecified interface")
	}
	s.interfaces = ifaces

	if s.cfg.CachePath != "" {
		c, err := openCache(s.cfg.CachePath)
		if err != nil {
			log.L().Warn().Err(err).Msg("discovery: warm-restart cache unavailable")
		} else {
			s.cache = c
			for _, d := range c.loadAll() {
				d := d
				s.mu.Lock()
				s.discovered[d.ID] = &d
				s.mu.Unlock()
			}
		}
	}

	if err := s.openReceiveSocket(); err != nil {
		return fmt.Errorf("discovery: open receive socket: %w", err)
	}
	s.openSendSockets()
	if conn, err := openMDNSSocket(s.interfaces); err != nil {
		log.L().Warn().Err(err).Msg("discovery: mdns socket unavailable")
	} else {
		s.mdnsConn = conn
	}

	if s.cfg.RTSPAddr != "" {
		srv, err := newRTSPServer(s.cfg.RTSPAddr, s)
		if err != nil {
			log.L().Warn().Err(err).Msg("discovery: rtsp server unavailable")
		} else {
			s.rtsp = srv
			s.wg.Add(1)
			go func() { defer s.wg.Done(); srv.run(ctx) }()
		}
	}

	s.wg.Add(4)
	go func() { defer s.wg.Done(); s.receiveLoop(ctx) }()
	go func() { defer s.wg.Done(); s.announceLoop(ctx) }()
	go func() { defer s.wg.Done(); s.expiryLoop(ctx) }()
	go func() { defer s.wg.Done(); s.mdnsBrowseLoop(ctx) }()

	return nil
}

// Stop emits deletions for every announced stream, then releases every
// socket and background loop (spec §4.8 "Ordering & cancellation").
func (s *Service) Stop() {
	s.mu.RLock()
	streams := make([]*AnnouncedStream, 0, len(s.announced))
	for _, a := range s.announced {
		streams = append(streams, a)
	}
	s.mu.RUnlock()
	for _, a := range streams {
		s.sendSAPDeletion(a)
		s.mdnsUnregister(a)
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.recvConn != nil {
		_ = s.recvConn.Close()
	}
	for _, c := range s.sendConns {
		_ = c.Close()
	}
	if s.mdnsConn != nil {
		_ = s.mdnsConn.Close()
	}
	if s.rtsp != nil {
		s.rtsp.close()
	}
	if s.cache != nil {
		_ = s.cache.close()
	}
}

// ListDiscovered returns a snapshot of every currently known peer stream.
func (s *Service) ListDiscovered() []DiscoveredStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DiscoveredStream, 0, len(s.discovered))
	for _, d := range s.discovered {
		out = append(out, *d)
	}
	return out
}

// ListAnnounced returns a snapshot of every stream this process currently
// announces via SAP/mDNS.
func (s *Service) ListAnnounced() []AnnouncedStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AnnouncedStream, 0, len(s.announced))
	for _, a := range s.announced {
		out = append(out, *a)
	}
	return out
}

// SDPFor returns the stored SDP for a discovered stream, by id.
func (s *Service) SDPFor(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discovered[id]
	if !ok {
		return "", flowerr.NewNotFound("discovered stream", id)
	}
	return d.SDP, nil
}

// Announce registers an output stream for SAP and mDNS announcement.
// Re-calling with the same StreamKey replaces the prior registration.
func (s *Service) Announce(a AnnouncedStream) error {
	a.msgIDHash = sapMsgIDHash(a.FlowID, a.BlockID)
	origin := s.primaryOriginAddress()
	sdpBytes, err := buildSDP(a, origin)
	if err != nil {
		return fmt.Errorf("discovery: build sdp for %s: %w", a.StreamKey, err)
	}
	a.SDP = string(sdpBytes)

	s.mu.Lock()
	s.announced[a.StreamKey] = &a
	s.mu.Unlock()

	s.mdnsRegister(&a)
	return nil
}

// Unannounce removes a previously announced stream and emits an
// immediate SAP deletion and mDNS unregistration.
func (s *Service) Unannounce(streamKey string) {
	s.mu.Lock()
	a, ok := s.announced[streamKey]
	delete(s.announced, streamKey)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.sendSAPDeletion(a)
	s.mdnsUnregister(a)
}

func (s *Service) primaryOriginAddress() string {
	for _, iface := range s.interfaces {
		if addr, ok := ipv4AddressOf(iface); ok {
			return addr
		}
	}
	return "0.0.0.0"
}

func usableInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if _, ok := ipv4AddressOf(iface); !ok {
			continue
		}
		out = append(out, iface)
	}
	return out, nil
}

func ipv4AddressOf(iface net.Interface) (string, bool) {
	addrs, err := iface.Addrs()
	if err != nil {
		return "", false
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLinkLocalUnicast() {
			continue
		}
		return ip4.String(), true
	}
	return "", false
}
