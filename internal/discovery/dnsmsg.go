// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// A minimal DNS message codec covering only the record types mDNS/DNS-SD
// service browsing needs (PTR, SRV, TXT, A). The pack's pion/mdns binding
// resolves single address-label names for ICE candidates and has no
// service-browsing surface (no PTR/SRV/TXT support), so this hand-rolled
// codec fills that gap the way the discovery service's RTSP DESCRIBE
// client fills gortsplib's absence — see DESIGN.md.
package discovery

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

const (
	dnsTypeA   = 1
	dnsTypePTR = 12
	dnsTypeTXT = 16
	dnsTypeSRV = 33
	dnsClassIN = 1
)

type dnsQuestion struct {
	Name  string
	Type  uint16
	Class uint16
}

type dnsRecord struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	// Exactly one of the following is populated, selected by Type.
	PTRName string
	SRV     dnsSRV
	TXT     []string
	A       net.IP
}

type dnsSRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

type dnsMessage struct {
	ID        uint16
	Flags     uint16
	Questions []dnsQuestion
	Answers   []dnsRecord
}

func encodeDNSName(buf *[]byte, name string) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		*buf = append(*buf, 0)
		return
	}
	for _, label := range strings.Split(name, ".") {
		*buf = append(*buf, byte(len(label)))
		*buf = append(*buf, label...)
	}
	*buf = append(*buf, 0)
}

// encodePTRQuery builds a one-question PTR query message for serviceName
// (e.g. "_rtsp._tcp.local.").
func encodePTRQuery(id uint16, serviceName string) []byte {
	buf := make([]byte, 0, 64)
	var hdr [12]byte
	binary.BigEndian.PutUint16(hdr[0:2], id)
	binary.BigEndian.PutUint16(hdr[4:6], 1) // qdcount
	buf = append(buf, hdr[:]...)
	encodeDNSName(&buf, serviceName)
	buf = binary.BigEndian.AppendUint16(buf, dnsTypePTR)
	buf = binary.BigEndian.AppendUint16(buf, dnsClassIN)
	return buf
}

// encodeAnnounce builds an unsolicited response carrying PTR+SRV+TXT+A
// records advertising one service instance, as used for mDNS registration
// and for goodbye packets (ttl=0).
func encodeAnnounce(serviceType, instanceName, target string, port uint16, txt, hostIP4 string, ttl uint32) []byte {
	buf := make([]byte, 0, 256)
	var hdr [12]byte
	binary.BigEndian.PutUint16(hdr[2:4], 0x8400) // response, authoritative
	binary.BigEndian.PutUint16(hdr[6:8], 4)       // ancount
	buf = append(buf, hdr[:]...)

	fqdn := instanceName + "." + serviceType

	encodeDNSName(&buf, serviceType)
	buf = binary.BigEndian.AppendUint16(buf, dnsTypePTR)
	buf = binary.BigEndian.AppendUint16(buf, dnsClassIN)
	buf = binary.BigEndian.AppendUint32(buf, ttl)
	rdataStart := len(buf)
	buf = binary.BigEndian.AppendUint16(buf, 0) // placeholder rdlength
	var rdata []byte
	encodeDNSName(&rdata, fqdn)
	buf = append(buf, rdata...)
	binary.BigEndian.PutUint16(buf[rdataStart:rdataStart+2], uint16(len(rdata)))

	encodeDNSName(&buf, fqdn)
	buf = binary.BigEndian.AppendUint16(buf, dnsTypeSRV)
	buf = binary.BigEndian.AppendUint16(buf, dnsClassIN)
	buf = binary.BigEndian.AppendUint32(buf, ttl)
	rdataStart = len(buf)
	buf = binary.BigEndian.AppendUint16(buf, 0)
	srvStart := len(buf)
	buf = binary.BigEndian.AppendUint16(buf, 0) // priority
	buf = binary.BigEndian.AppendUint16(buf, 0) // weight
	buf = binary.BigEndian.AppendUint16(buf, port)
	var targetBuf []byte
	encodeDNSName(&targetBuf, target)
	buf = append(buf, targetBuf...)
	binary.BigEndian.PutUint16(buf[rdataStart:rdataStart+2], uint16(len(buf)-srvStart))

	encodeDNSName(&buf, fqdn)
	buf = binary.BigEndian.AppendUint16(buf, dnsTypeTXT)
	buf = binary.BigEndian.AppendUint16(buf, dnsClassIN)
	buf = binary.BigEndian.AppendUint32(buf, ttl)
	txtRData := append([]byte{byte(len(txt))}, txt...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(txtRData)))
	buf = append(buf, txtRData...)

	encodeDNSName(&buf, target)
	buf = binary.BigEndian.AppendUint16(buf, dnsTypeA)
	buf = binary.BigEndian.AppendUint16(buf, dnsClassIN)
	buf = binary.BigEndian.AppendUint32(buf, ttl)
	buf = binary.BigEndian.AppendUint16(buf, 4)
	ip4 := net.ParseIP(hostIP4).To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	buf = append(buf, ip4...)

	return buf
}

func decodeDNSMessage(data []byte) (*dnsMessage, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("discovery: dns message too short")
	}
	msg := &dnsMessage{
		ID:    binary.BigEndian.Uint16(data[0:2]),
		Flags: binary.BigEndian.Uint16(data[2:4]),
	}
	qdcount := binary.BigEndian.Uint16(data[4:6])
	ancount := binary.BigEndian.Uint16(data[6:8])
	nscount := binary.BigEndian.Uint16(data[8:10])
	arcount := binary.BigEndian.Uint16(data[10:12])

	off := 12
	for i := 0; i < int(qdcount); i++ {
		name, next, err := decodeDNSName(data, off)
		if err != nil {
			return nil, err
		}
		off = next
		if off+4 > len(data) {
			return nil, fmt.Errorf("discovery: dns question truncated")
		}
		msg.Questions = append(msg.Questions, dnsQuestion{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[off : off+2]),
			Class: binary.BigEndian.Uint16(data[off+2 : off+4]),
		})
		off += 4
	}

	total := int(ancount) + int(nscount) + int(arcount)
	for i := 0; i < total; i++ {
		rec, next, err := decodeDNSRecord(data, off)
		if err != nil {
			return nil, err
		}
		off = next
		msg.Answers = append(msg.Answers, rec)
	}
	return msg, nil
}

func decodeDNSRecord(data []byte, off int) (dnsRecord, int, error) {
	name, off, err := decodeDNSName(data, off)
	if err != nil {
		return dnsRecord{}, 0, err
	}
	if off+10 > len(data) {
		return dnsRecord{}, 0, fmt.Errorf("discovery: dns record header truncated")
	}
	rec := dnsRecord{
		Name:  name,
		Type:  binary.BigEndian.Uint16(data[off : off+2]),
		Class: binary.BigEndian.Uint16(data[off+2 : off+4]),
		TTL:   binary.BigEndian.Uint32(data[off+4 : off+8]),
	}
	rdlen := int(binary.BigEndian.Uint16(data[off+8 : off+10]))
	off += 10
	if off+rdlen > len(data) {
		return dnsRecord{}, 0, fmt.Errorf("discovery: dns record rdata truncated")
	}
	rdata := data[off : off+rdlen]
	end := off + rdlen

	switch rec.Type {
	case dnsTypePTR:
		n, _, err := decodeDNSName(data, off)
		if err != nil {
			return dnsRecord{}, 0, err
		}
		rec.PTRName = n
	case dnsTypeSRV:
		if len(rdata) < 6 {
			return dnsRecord{}, 0, fmt.Errorf("discovery: srv rdata too short")
		}
		rec.SRV.Priority = binary.BigEndian.Uint16(rdata[0:2])
		rec.SRV.Weight = binary.BigEndian.Uint16(rdata[2:4])
		rec.SRV.Port = binary.BigEndian.Uint16(rdata[4:6])
		target, _, err := decodeDNSName(data, off+6)
		if err != nil {
			return dnsRecord{}, 0, err
		}
		rec.SRV.Target = target
	case dnsTypeTXT:
		p := 0
		for p < len(rdata) {
			l := int(rdata[p])
			p++
			if p+l > len(rdata) {
				break
			}
			rec.TXT = append(rec.TXT, string(rdata[p:p+l]))
			p += l
		}
	case dnsTypeA:
		if len(rdata) >= 4 {
			rec.A = net.IP(append([]byte(nil), rdata[:4]...))
		}
	}
	return rec, end, nil
}

// decodeDNSName decodes a (possibly compressed) name starting at off,
// returning the dotted name and the offset immediately after it in the
// original message (pointer targets do not advance that offset further
// than the two-byte pointer itself).
func decodeDNSName(data []byte, off int) (string, int, error) {
	var labels []string
	start := off
	jumped := false
	guard := 0
	for {
		guard++
		if guard > 128 {
			return "", 0, fmt.Errorf("discovery: dns name compression loop")
		}
		if off >= len(data) {
			return "", 0, fmt.Errorf("discovery: dns name truncated")
		}
		l := int(data[off])
		if l == 0 {
			off++
			break
		}
		if l&0xC0 == 0xC0 {
			if off+1 >= len(data) {
				return "", 0, fmt.Errorf("discovery: dns name pointer truncated")
			}
			ptr := (l&0x3F)<<8 | int(data[off+1])
			if !jumped {
				start = off + 2
				jumped = true
			}
			off = ptr
			continue
		}
		if off+1+l > len(data) {
			return "", 0, fmt.Errorf("discovery: dns label truncated")
		}
		labels = append(labels, string(data[off+1:off+1+l]))
		off += 1 + l
	}
	end := off
	if jumped {
		end = start
	}
	return strings.Join(labels, ".") + ".", end, nil
}
