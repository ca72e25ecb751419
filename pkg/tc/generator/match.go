package generator

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	tctypes "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// u32 offsets relative to the network header
const (
	ipv4OffTOS      = 0
	ipv4OffProto    = 8
	ipv4OffSrc      = 12
	ipv4OffDst      = 16
	ipv4OffPorts    = 20
	ipv4OffTCPFlags = 32

	ipv6OffTClass   = 0
	ipv6OffNextHdr  = 4
	ipv6OffSrc      = 8
	ipv6OffDst      = 24
	ipv6OffPorts    = 40
	ipv6OffTCPFlags = 52

	etherOffDst = -16
	etherOffSrc = -8

	tcpFlagACK = 0x10
	tcpFlagSYN = 0x02
)

// genMatchFilter returns the filter of a single match. Header fields are matched by u32,
// a firewall mark alone by fw and everything else by a basic filter combining ematches.
func (s *SimpleTCGenerator) genMatchFilter(m *policy.Match, pref uint16, flowID uint32,
	actions []tctypes.Action) (tctypes.Filter, error) {
	keys := u32Keys(m)
	proto := tctypes.FilterProtocolAll
	if m.Ether != nil && m.Ether.Protocol != nil && m.Ether.Protocol.Number != unix.ETH_P_ALL {
		proto = tctypes.FilterProtocol(m.Ether.Protocol.Name)
	}

	var fb *tctypes.FilterBuilder
	switch {
	case m.Mark == nil && m.Interface == "" && m.Vif == nil:
		fb = tctypes.NewFilterBuilder(tctypes.FilterKindU32)
		for _, k := range keys {
			fb.WithKey(k.Val, k.Mask, k.Off)
		}
	case len(keys) == 0 && m.Interface == "" && m.Vif == nil:
		fb = tctypes.NewFilterBuilder(tctypes.FilterKindFw).WithHandle(*m.Mark)
	default:
		ematch, err := s.ematch(m, keys)
		if err != nil {
			return nil, err
		}
		fb = tctypes.NewFilterBuilder(tctypes.FilterKindBasic).WithEmatch(ematch)
	}
	fb.WithProtocol(proto).WithPriority(pref).WithFlowID(flowID)
	for _, a := range actions {
		fb.WithAction(a)
	}
	return fb.Build(), nil
}

// ematch returns the basic filter expression of m
func (s *SimpleTCGenerator) ematch(m *policy.Match, keys []tctypes.U32Key) (string, error) {
	terms := []string{}
	for _, k := range keys {
		terms = append(terms, fmt.Sprintf("u32(u32 0x%08x 0x%08x at %d)", k.Val, k.Mask, k.Off))
	}
	if m.Mark != nil {
		terms = append(terms, fmt.Sprintf("meta(nf_mark eq %d)", *m.Mark))
	}
	if m.Interface != "" {
		if s.ifIndex == nil {
			return "", fmt.Errorf("can not resolve interface %s", m.Interface)
		}
		idx, err := s.ifIndex(m.Interface)
		if err != nil {
			return "", fmt.Errorf("failed to get index of interface %s: %w", m.Interface, err)
		}
		terms = append(terms, fmt.Sprintf("meta(rt_iif eq %d)", idx))
	}
	if m.Vif != nil {
		terms = append(terms, fmt.Sprintf("meta(vlan mask 0xfff eq %d)", *m.Vif))
	}
	return strings.Join(terms, " and "), nil
}

// u32Keys returns the u32 selector keys of the ip, ipv6 and ether predicates of m
func u32Keys(m *policy.Match) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if m.IP != nil {
		keys = append(keys, ipv4Keys(m.IP)...)
	}
	if m.IPv6 != nil {
		keys = append(keys, ipv6Keys(m.IPv6)...)
	}
	if m.Ether != nil {
		keys = append(keys, etherKeys(m.Ether)...)
	}
	return keys
}

func ipv4Keys(ip *policy.IPMatch) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if ip.DSField != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.DSField) << 16, Mask: 0x00ff0000, Off: ipv4OffTOS})
	}
	if ip.MaxLength != nil {
		// total length is the low half of the first word
		keys = append(keys, tctypes.U32Key{Val: 0, Mask: uint32(^*ip.MaxLength), Off: ipv4OffTOS})
	}
	if ip.Protocol != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.Protocol) << 16, Mask: 0x00ff0000, Off: ipv4OffProto})
	}
	keys = append(keys, prefixKeys(ip.Source.Prefix, ipv4OffSrc)...)
	keys = append(keys, prefixKeys(ip.Destination.Prefix, ipv4OffDst)...)
	keys = append(keys, portKeys(ip, ipv4OffPorts)...)
	return append(keys, tcpFlagKeys(ip, ipv4OffTCPFlags)...)
}

func ipv6Keys(ip *policy.IPMatch) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if ip.DSField != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.DSField) << 20, Mask: 0x0ff00000, Off: ipv6OffTClass})
	}
	if ip.MaxLength != nil {
		// payload length is the high half of the second word
		keys = append(keys, tctypes.U32Key{Val: 0, Mask: uint32(^*ip.MaxLength) << 16, Off: ipv6OffNextHdr})
	}
	if ip.Protocol != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.Protocol) << 8, Mask: 0x0000ff00, Off: ipv6OffNextHdr})
	}
	keys = append(keys, prefixKeys(ip.Source.Prefix, ipv6OffSrc)...)
	keys = append(keys, prefixKeys(ip.Destination.Prefix, ipv6OffDst)...)
	keys = append(keys, portKeys(ip, ipv6OffPorts)...)
	return append(keys, tcpFlagKeys(ip, ipv6OffTCPFlags)...)
}

// prefixKeys matches an address prefix one 32 bit word at a time starting at off,
// words outside of the prefix length are skipped
func prefixKeys(prefix *net.IPNet, off int32) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if prefix == nil {
		return keys
	}
	ip, mask := prefix.IP, prefix.Mask
	if v4 := ip.To4(); v4 != nil && len(mask) == net.IPv4len {
		ip = v4
	}
	for i := 0; i+4 <= len(ip) && i+4 <= len(mask); i += 4 {
		m := binary.BigEndian.Uint32(mask[i : i+4])
		if m == 0 {
			continue
		}
		v := binary.BigEndian.Uint32(ip[i:i+4]) & m
		keys = append(keys, tctypes.U32Key{Val: v, Mask: m, Off: off + int32(i)})
	}
	return keys
}

// portKeys matches the source port in the high and the destination port in the low half
// of the first transport header word
func portKeys(ip *policy.IPMatch, off int32) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if ip.Source.Port != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.Source.Port) << 16, Mask: 0xffff0000, Off: off})
	}
	if ip.Destination.Port != nil {
		keys = append(keys, tctypes.U32Key{Val: uint32(*ip.Destination.Port), Mask: 0x0000ffff, Off: off})
	}
	return keys
}

// tcpFlagKeys matches the flags byte, the 14th byte of a tcp header
func tcpFlagKeys(ip *policy.IPMatch, off int32) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if ip.TCPAck {
		keys = append(keys, tctypes.U32Key{Val: tcpFlagACK << 16, Mask: tcpFlagACK << 16, Off: off})
	}
	if ip.TCPSyn {
		keys = append(keys, tctypes.U32Key{Val: tcpFlagSYN << 16, Mask: tcpFlagSYN << 16, Off: off})
	}
	return keys
}

// etherKeys matches mac addresses, the ethernet header ends at offset 0
func etherKeys(e *policy.EtherMatch) []tctypes.U32Key {
	keys := []tctypes.U32Key{}
	if len(e.Destination) == 6 {
		d := e.Destination
		keys = append(keys,
			tctypes.U32Key{Val: uint32(d[0])<<8 | uint32(d[1]), Mask: 0x0000ffff, Off: etherOffDst},
			tctypes.U32Key{Val: binary.BigEndian.Uint32(d[2:6]), Mask: 0xffffffff, Off: etherOffDst + 4})
	}
	if len(e.Source) == 6 {
		src := e.Source
		keys = append(keys,
			tctypes.U32Key{Val: binary.BigEndian.Uint32(src[0:4]), Mask: 0xffffffff, Off: etherOffSrc},
			tctypes.U32Key{Val: uint32(src[4])<<24 | uint32(src[5])<<16, Mask: 0xffff0000, Off: etherOffSrc + 4})
	}
	return keys
}
