// Package config holds the raw QoS configuration tree as delivered by the configuration store.
// All leaves are kept as strings; typing and validation is done by the policy package.
package config

import (
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is the top level of a QoS configuration file
type Document struct {
	QoS QoS `yaml:"qos"`
}

// QoS is the "qos" configuration tree
type QoS struct {
	// Interface maps an interface name to its bindings
	Interface map[string]*InterfaceBinding `yaml:"interface,omitempty"`
	Policy    Policies                     `yaml:"policy,omitempty"`
	// TrafficMatchGroup holds the named, reusable match groups
	TrafficMatchGroup map[string]*MatchGroup `yaml:"traffic-match-group,omitempty"`
}

// InterfaceBinding holds the policy names bound to an interface per direction
type InterfaceBinding struct {
	Ingress string `yaml:"ingress,omitempty"`
	Egress  string `yaml:"egress,omitempty"`
}

// Policies holds the configured policies keyed by type and then by name
type Policies struct {
	Cake            map[string]*Cake            `yaml:"cake,omitempty"`
	DropTail        map[string]*DropTail        `yaml:"drop-tail,omitempty"`
	FairQueue       map[string]*FairQueue       `yaml:"fair-queue,omitempty"`
	FQCodel         map[string]*FQCodel         `yaml:"fq-codel,omitempty"`
	Limiter         map[string]*ClassPolicy     `yaml:"limiter,omitempty"`
	NetworkEmulator map[string]*NetworkEmulator `yaml:"network-emulator,omitempty"`
	PriorityQueue   map[string]*ClassPolicy     `yaml:"priority-queue,omitempty"`
	RandomDetect    map[string]*RandomDetect    `yaml:"random-detect,omitempty"`
	RateControl     map[string]*RateControl     `yaml:"rate-control,omitempty"`
	RoundRobin      map[string]*ClassPolicy     `yaml:"round-robin,omitempty"`
	Shaper          map[string]*ClassPolicy     `yaml:"shaper,omitempty"`
	ShaperHFSC      map[string]*ClassPolicy     `yaml:"shaper-hfsc,omitempty"`
}

// Cake policy
type Cake struct {
	Description      string `yaml:"description,omitempty"`
	Bandwidth        string `yaml:"bandwidth,omitempty"`
	RTT              string `yaml:"rtt,omitempty"`
	FlowIsolation    string `yaml:"flow-isolation,omitempty"`
	FlowIsolationNat Flag   `yaml:"flow-isolation-nat,omitempty"`
}

// DropTail policy
type DropTail struct {
	Description string `yaml:"description,omitempty"`
	QueueLimit  string `yaml:"queue-limit,omitempty"`
}

// FairQueue policy
type FairQueue struct {
	Description  string `yaml:"description,omitempty"`
	HashInterval string `yaml:"hash-interval,omitempty"`
	QueueLimit   string `yaml:"queue-limit,omitempty"`
}

// FQCodel policy
type FQCodel struct {
	Description  string `yaml:"description,omitempty"`
	CodelQuantum string `yaml:"codel-quantum,omitempty"`
	Flows        string `yaml:"flows,omitempty"`
	Interval     string `yaml:"interval,omitempty"`
	QueueLimit   string `yaml:"queue-limit,omitempty"`
	Target       string `yaml:"target,omitempty"`
}

// NetworkEmulator policy
type NetworkEmulator struct {
	Description string `yaml:"description,omitempty"`
	Bandwidth   string `yaml:"bandwidth,omitempty"`
	Corruption  string `yaml:"corruption,omitempty"`
	Delay       string `yaml:"delay,omitempty"`
	Duplicate   string `yaml:"duplicate,omitempty"`
	Loss        string `yaml:"loss,omitempty"`
	QueueLimit  string `yaml:"queue-limit,omitempty"`
	Reordering  string `yaml:"reordering,omitempty"`
}

// RandomDetect policy
type RandomDetect struct {
	Description string                 `yaml:"description,omitempty"`
	Bandwidth   string                 `yaml:"bandwidth,omitempty"`
	Precedence  map[string]*Precedence `yaml:"precedence,omitempty"`
}

// Precedence holds the per virtual queue parameters of a random-detect policy
type Precedence struct {
	AveragePacket    string `yaml:"average-packet,omitempty"`
	MarkProbability  string `yaml:"mark-probability,omitempty"`
	MaximumThreshold string `yaml:"maximum-threshold,omitempty"`
	MinimumThreshold string `yaml:"minimum-threshold,omitempty"`
	QueueLimit       string `yaml:"queue-limit,omitempty"`
}

// RateControl policy
type RateControl struct {
	Description string `yaml:"description,omitempty"`
	Bandwidth   string `yaml:"bandwidth,omitempty"`
	Burst       string `yaml:"burst,omitempty"`
	Latency     string `yaml:"latency,omitempty"`
}

// ClassPolicy is the raw tree of the class based policies
// (limiter, priority-queue, round-robin, shaper and shaper-hfsc)
type ClassPolicy struct {
	Description string            `yaml:"description,omitempty"`
	Bandwidth   string            `yaml:"bandwidth,omitempty"`
	Default     *Class            `yaml:"default,omitempty"`
	Class       map[string]*Class `yaml:"class,omitempty"`
}

// Class is a traffic class. The set of meaningful fields depends on the policy type.
type Class struct {
	Description string `yaml:"description,omitempty"`

	Bandwidth string `yaml:"bandwidth,omitempty"`
	Ceiling   string `yaml:"ceiling,omitempty"`
	Burst     string `yaml:"burst,omitempty"`
	Priority  string `yaml:"priority,omitempty"`
	Quantum   string `yaml:"quantum,omitempty"`

	// limiter
	Exceed    string `yaml:"exceed,omitempty"`
	NotExceed string `yaml:"not-exceed,omitempty"`
	MTU       string `yaml:"mtu,omitempty"`

	// shaper-hfsc
	Linkshare  *Curve `yaml:"linkshare,omitempty"`
	Realtime   *Curve `yaml:"realtime,omitempty"`
	Upperlimit *Curve `yaml:"upperlimit,omitempty"`

	// nested queue
	QueueType        string `yaml:"queue-type,omitempty"`
	QueueLimit       string `yaml:"queue-limit,omitempty"`
	CodelQuantum     string `yaml:"codel-quantum,omitempty"`
	Flows            string `yaml:"flows,omitempty"`
	Interval         string `yaml:"interval,omitempty"`
	Target           string `yaml:"target,omitempty"`
	HashInterval     string `yaml:"hash-interval,omitempty"`
	AveragePacket    string `yaml:"average-packet,omitempty"`
	MaximumThreshold string `yaml:"maximum-threshold,omitempty"`
	MinimumThreshold string `yaml:"minimum-threshold,omitempty"`
	MarkProbability  string `yaml:"mark-probability,omitempty"`

	Match      map[string]*Match `yaml:"match,omitempty"`
	MatchGroup StringList        `yaml:"match-group,omitempty"`
}

// Curve is an HFSC service curve
type Curve struct {
	M1 string `yaml:"m1,omitempty"`
	M2 string `yaml:"m2,omitempty"`
	D  string `yaml:"d,omitempty"`
}

// MatchGroup is a named, reusable set of matches which may include other groups
type MatchGroup struct {
	Description string            `yaml:"description,omitempty"`
	Match       map[string]*Match `yaml:"match,omitempty"`
	MatchGroup  StringList        `yaml:"match-group,omitempty"`
}

// Match is a single match predicate
type Match struct {
	Description string      `yaml:"description,omitempty"`
	IP          *IPMatch    `yaml:"ip,omitempty"`
	IPv6        *IPMatch    `yaml:"ipv6,omitempty"`
	Ether       *EtherMatch `yaml:"ether,omitempty"`
	Mark        string      `yaml:"mark,omitempty"`
	Interface   string      `yaml:"interface,omitempty"`
	Vif         string      `yaml:"vif,omitempty"`
}

// IPMatch holds the IPv4 or IPv6 match fields
type IPMatch struct {
	Source      *AddrPort `yaml:"source,omitempty"`
	Destination *AddrPort `yaml:"destination,omitempty"`
	Protocol    string    `yaml:"protocol,omitempty"`
	DSCP        string    `yaml:"dscp,omitempty"`
	MaxLength   string    `yaml:"max-length,omitempty"`
	TCP         *TCPFlags `yaml:"tcp,omitempty"`
}

// AddrPort is an address prefix and/or a port
type AddrPort struct {
	Address string `yaml:"address,omitempty"`
	Port    string `yaml:"port,omitempty"`
}

// TCPFlags are the tcp flags to match on
type TCPFlags struct {
	ACK Flag `yaml:"ack,omitempty"`
	SYN Flag `yaml:"syn,omitempty"`
}

// EtherMatch holds the ethernet header match fields
type EtherMatch struct {
	Source      string `yaml:"source,omitempty"`
	Destination string `yaml:"destination,omitempty"`
	Protocol    string `yaml:"protocol,omitempty"`
}

// Flag is a valueless configuration node. It is set by its mere presence
// (an empty mapping) or by an explicit boolean.
type Flag bool

// UnmarshalYAML implements yaml.Unmarshaler
func (f *Flag) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		if len(value.Content) != 0 {
			return errors.Errorf("line %d: flag takes no values", value.Line)
		}
		*f = true
	case yaml.ScalarNode:
		b, err := strconv.ParseBool(value.Value)
		if err != nil {
			return errors.Wrapf(err, "line %d: invalid flag value %q", value.Line, value.Value)
		}
		*f = Flag(b)
	default:
		return errors.Errorf("line %d: invalid flag", value.Line)
	}
	return nil
}

// StringList is a multi value leaf. A single scalar is accepted as a one element list.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var l []string
		if err := value.Decode(&l); err != nil {
			return err
		}
		*s = l
		return nil
	default:
		return errors.Errorf("line %d: expected a value or a list of values", value.Line)
	}
}
