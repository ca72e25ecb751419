package policy

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Match is a single classification predicate. All set fields must match.
type Match struct {
	// Name of the match within its class or match group
	Name        string
	Description string
	IP          *IPMatch
	IPv6        *IPMatch
	Ether       *EtherMatch
	Mark        *uint32
	// Interface is the inbound interface name
	Interface string
	// Vif is the VLAN id
	Vif *uint16
}

// Endpoint is an address prefix and/or port of an IP header
type Endpoint struct {
	Prefix *net.IPNet
	Port   *uint16
}

// IPMatch holds IPv4 or IPv6 header fields. DSField is the full dsfield (tos or traffic class) byte.
type IPMatch struct {
	Source      Endpoint
	Destination Endpoint
	Protocol    *uint8
	DSField     *uint8
	MaxLength   *uint16
	TCPAck      bool
	TCPSyn      bool
}

// EtherProtocol is an ethernet protocol, Name is the tc protocol keyword
type EtherProtocol struct {
	Name   string
	Number uint16
}

// EtherMatch holds ethernet header fields
type EtherMatch struct {
	Source      net.HardwareAddr
	Destination net.HardwareAddr
	Protocol    *EtherProtocol
}

// IsEmpty returns true if the match carries no predicate, such a match produces no filter
func (m *Match) IsEmpty() bool {
	return m.IP == nil && m.IPv6 == nil && m.Ether == nil && m.Mark == nil && m.Interface == "" && m.Vif == nil
}

// Key returns the canonical representation of the predicate, two matches with the same
// Key classify the same traffic. Name and description are not part of the Key.
func (m *Match) Key() string {
	parts := []string{}
	if m.IP != nil {
		parts = append(parts, "ip("+m.IP.key()+")")
	}
	if m.IPv6 != nil {
		parts = append(parts, "ipv6("+m.IPv6.key()+")")
	}
	if m.Ether != nil {
		e := []string{}
		if m.Ether.Source != nil {
			e = append(e, "src="+m.Ether.Source.String())
		}
		if m.Ether.Destination != nil {
			e = append(e, "dst="+m.Ether.Destination.String())
		}
		if m.Ether.Protocol != nil {
			e = append(e, fmt.Sprintf("proto=%#04x", m.Ether.Protocol.Number))
		}
		parts = append(parts, "ether("+strings.Join(e, ",")+")")
	}
	if m.Mark != nil {
		parts = append(parts, fmt.Sprintf("mark=%d", *m.Mark))
	}
	if m.Interface != "" {
		parts = append(parts, "iif="+m.Interface)
	}
	if m.Vif != nil {
		parts = append(parts, fmt.Sprintf("vif=%d", *m.Vif))
	}
	return strings.Join(parts, " ")
}

func (ip *IPMatch) key() string {
	parts := []string{}
	endpoint := func(dir string, e Endpoint) {
		if e.Prefix != nil {
			parts = append(parts, dir+"="+e.Prefix.String())
		}
		if e.Port != nil {
			parts = append(parts, fmt.Sprintf("%sport=%d", dir, *e.Port))
		}
	}
	endpoint("src", ip.Source)
	endpoint("dst", ip.Destination)
	if ip.Protocol != nil {
		parts = append(parts, fmt.Sprintf("proto=%d", *ip.Protocol))
	}
	if ip.DSField != nil {
		parts = append(parts, fmt.Sprintf("dsfield=%#02x", *ip.DSField))
	}
	if ip.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("maxlen=%d", *ip.MaxLength))
	}
	if ip.TCPAck {
		parts = append(parts, "ack")
	}
	if ip.TCPSyn {
		parts = append(parts, "syn")
	}
	return strings.Join(parts, ",")
}

// dsfield byte values of the named DSCP and TOS classes
var dsfieldNames = map[string]uint8{
	"default":        0x00,
	"lowdelay":       0x10,
	"throughput":     0x08,
	"reliability":    0x04,
	"mincost":        0x02,
	"priority":       0x20,
	"immediate":      0x40,
	"flash":          0x60,
	"flash-override": 0x80,
	"critical":       0x0a,
	"internet":       0xc0,
	"network":        0xe0,
	"af11":           0x28,
	"af12":           0x30,
	"af13":           0x38,
	"af21":           0x48,
	"af22":           0x50,
	"af23":           0x58,
	"af31":           0x68,
	"af32":           0x70,
	"af33":           0x78,
	"af41":           0x88,
	"af42":           0x90,
	"af43":           0x98,
	"cs0":            0x00,
	"cs1":            0x20,
	"cs2":            0x40,
	"cs3":            0x60,
	"cs4":            0x80,
	"cs5":            0xa0,
	"cs6":            0xc0,
	"cs7":            0xe0,
	"ef":             0xb8,
}

// ParseDSCP returns the dsfield byte of a DSCP name or of a numeric DSCP value (0-63)
func ParseDSCP(s string) (uint8, error) {
	if v, ok := dsfieldNames[strings.ToLower(s)]; ok {
		return v, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil || n > 63 {
		return 0, errors.Errorf("invalid dscp value %q", s)
	}
	return uint8(n) << 2, nil
}

var ipProtocols = map[string]uint8{
	"icmp":      unix.IPPROTO_ICMP,
	"igmp":      unix.IPPROTO_IGMP,
	"tcp":       unix.IPPROTO_TCP,
	"udp":       unix.IPPROTO_UDP,
	"gre":       unix.IPPROTO_GRE,
	"esp":       unix.IPPROTO_ESP,
	"ah":        unix.IPPROTO_AH,
	"icmpv6":    unix.IPPROTO_ICMPV6,
	"ipv6-icmp": unix.IPPROTO_ICMPV6,
	"pim":       unix.IPPROTO_PIM,
	"sctp":      unix.IPPROTO_SCTP,
	"ospf":      89,
	"vrrp":      112,
}

// ParseIPProtocol returns the IP protocol number of a protocol name or number
func ParseIPProtocol(s string) (uint8, error) {
	if v, ok := ipProtocols[strings.ToLower(s)]; ok {
		return v, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Errorf("invalid ip protocol %q", s)
	}
	return uint8(n), nil
}

var etherProtocols = map[string]uint16{
	"all":       unix.ETH_P_ALL,
	"802.1q":    unix.ETH_P_8021Q,
	"802_2":     unix.ETH_P_802_2,
	"802_3":     unix.ETH_P_802_3,
	"aarp":      unix.ETH_P_AARP,
	"aoe":       unix.ETH_P_AOE,
	"arp":       unix.ETH_P_ARP,
	"atalk":     unix.ETH_P_ATALK,
	"dec":       unix.ETH_P_DEC,
	"ip":        unix.ETH_P_IP,
	"ipv6":      unix.ETH_P_IPV6,
	"ipx":       unix.ETH_P_IPX,
	"lat":       unix.ETH_P_LAT,
	"localtalk": unix.ETH_P_LOCALTALK,
	"rarp":      unix.ETH_P_RARP,
	"snap":      unix.ETH_P_SNAP,
	"x25":       unix.ETH_P_X25,
}

// ParseEtherProtocol returns the EtherProtocol of a protocol keyword or number
func ParseEtherProtocol(s string) (*EtherProtocol, error) {
	name := strings.ToLower(s)
	if v, ok := etherProtocols[name]; ok {
		if name == "802.1q" {
			name = "802.1Q"
		}
		return &EtherProtocol{Name: name, Number: v}, nil
	}
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return nil, errors.Errorf("invalid ether protocol %q", s)
	}
	p := &EtherProtocol{Number: uint16(n)}
	// tc protocol keyword of well known numbers, everything else is passed as a number
	for k, v := range etherProtocols {
		if v == p.Number && k != "all" {
			p.Name = k
			if k == "802.1q" {
				p.Name = "802.1Q"
			}
			return p, nil
		}
	}
	p.Name = strconv.FormatUint(n, 10)
	return p, nil
}
