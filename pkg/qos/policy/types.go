// Package policy holds the typed QoS policy model and the validator which builds it
// out of the raw configuration tree.
package policy

import (
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

// Type is the discipline type of a policy
type Type string

const (
	TypeCake            Type = "cake"
	TypeDropTail        Type = "drop-tail"
	TypeFairQueue       Type = "fair-queue"
	TypeFQCodel         Type = "fq-codel"
	TypeLimiter         Type = "limiter"
	TypeNetworkEmulator Type = "network-emulator"
	TypePriorityQueue   Type = "priority-queue"
	TypeRandomDetect    Type = "random-detect"
	TypeRateControl     Type = "rate-control"
	TypeRoundRobin      Type = "round-robin"
	TypeShaper          Type = "shaper"
	TypeShaperHFSC      Type = "shaper-hfsc"
)

// Direction is the traffic direction of a binding
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// Policy is a named configuration of exactly one discipline type
type Policy interface {
	// Name returns the policy name
	Name() string
	// Type returns the discipline type
	Type() Type
	// Direction returns the only direction the policy can be bound to
	Direction() Direction
}

// Classful is a Policy made of numbered classes and a default class
type Classful interface {
	Policy
	// DefaultClass returns the default class, nil if not configured
	DefaultClass() Class
	// NumberedClasses returns the numbered classes in ascending id order
	NumberedClasses() []Class
}

// Meta holds the attributes common to all policies
type Meta struct {
	PolicyName  string
	Description string
}

// Name implements Policy
func (m *Meta) Name() string {
	return m.PolicyName
}

func egressOnly() Direction {
	return DirectionEgress
}

// Cake is a "cake" policy
type Cake struct {
	Meta
	Bandwidth units.Rate
	// RTT in microseconds
	RTT uint32
	// FlowMode is the tc flow isolation keyword
	FlowMode string
	NAT      bool
}

func (p *Cake) Type() Type           { return TypeCake }
func (p *Cake) Direction() Direction { return egressOnly() }

// DropTail is a "drop-tail" (pfifo) policy
type DropTail struct {
	Meta
	QueueLimit *uint32
}

func (p *DropTail) Type() Type           { return TypeDropTail }
func (p *DropTail) Direction() Direction { return egressOnly() }

// FairQueue is a "fair-queue" (sfq) policy
type FairQueue struct {
	Meta
	// HashInterval is the perturbation period in seconds
	HashInterval *uint32
	QueueLimit   *uint32
}

func (p *FairQueue) Type() Type           { return TypeFairQueue }
func (p *FairQueue) Direction() Direction { return egressOnly() }

// FQCodel is an "fq-codel" policy, times are in microseconds
type FQCodel struct {
	Meta
	CodelQuantum *uint32
	Flows        *uint32
	Interval     *uint32
	QueueLimit   *uint32
	Target       *uint32
}

func (p *FQCodel) Type() Type           { return TypeFQCodel }
func (p *FQCodel) Direction() Direction { return egressOnly() }

// NetworkEmulator is a "network-emulator" (netem) policy. Probabilities are percentages.
type NetworkEmulator struct {
	Meta
	Bandwidth units.Rate
	// Delay in microseconds
	Delay      *uint32
	Corruption *float64
	Duplicate  *float64
	Loss       *float64
	Reordering *float64
	QueueLimit *uint32
}

func (p *NetworkEmulator) Type() Type           { return TypeNetworkEmulator }
func (p *NetworkEmulator) Direction() Direction { return egressOnly() }

// RandomDetect is a "random-detect" (gred) policy with one virtual queue per IP precedence
type RandomDetect struct {
	Meta
	Bandwidth units.Rate
	// Precedence holds the parameters of virtual queues 0..7
	Precedence [PrecedenceCount]RED
}

// PrecedenceCount is the number of virtual queues of a random-detect policy
const PrecedenceCount = 8

func (p *RandomDetect) Type() Type           { return TypeRandomDetect }
func (p *RandomDetect) Direction() Direction { return egressOnly() }

// RateControl is a "rate-control" (tbf) policy
type RateControl struct {
	Meta
	Bandwidth units.Rate
	Burst     uint32
	// Latency in microseconds
	Latency uint32
}

func (p *RateControl) Type() Type           { return TypeRateControl }
func (p *RateControl) Direction() Direction { return egressOnly() }

// Shaper is a "shaper" (htb) policy
type Shaper struct {
	Meta
	Bandwidth units.Rate
	Default   *ShaperClass
	Classes   []*ShaperClass
}

func (p *Shaper) Type() Type           { return TypeShaper }
func (p *Shaper) Direction() Direction { return egressOnly() }

// DefaultClass implements Classful
func (p *Shaper) DefaultClass() Class {
	if p.Default == nil {
		return nil
	}
	return p.Default
}

// NumberedClasses implements Classful
func (p *Shaper) NumberedClasses() []Class {
	return toClasses(p.Classes)
}

// ShaperHFSC is a "shaper-hfsc" policy
type ShaperHFSC struct {
	Meta
	Bandwidth units.Rate
	Default   *HFSCClass
	Classes   []*HFSCClass
}

func (p *ShaperHFSC) Type() Type           { return TypeShaperHFSC }
func (p *ShaperHFSC) Direction() Direction { return egressOnly() }

// DefaultClass implements Classful
func (p *ShaperHFSC) DefaultClass() Class {
	if p.Default == nil {
		return nil
	}
	return p.Default
}

// NumberedClasses implements Classful
func (p *ShaperHFSC) NumberedClasses() []Class {
	return toClasses(p.Classes)
}

// Limiter is an ingress "limiter" (police) policy
type Limiter struct {
	Meta
	Default *LimiterClass
	Classes []*LimiterClass
}

func (p *Limiter) Type() Type           { return TypeLimiter }
func (p *Limiter) Direction() Direction { return DirectionIngress }

// DefaultClass implements Classful
func (p *Limiter) DefaultClass() Class {
	if p.Default == nil {
		return nil
	}
	return p.Default
}

// NumberedClasses implements Classful
func (p *Limiter) NumberedClasses() []Class {
	return toClasses(p.Classes)
}

// PriorityQueue is a "priority-queue" (prio) policy
type PriorityQueue struct {
	Meta
	Default *PriorityClass
	Classes []*PriorityClass
}

func (p *PriorityQueue) Type() Type           { return TypePriorityQueue }
func (p *PriorityQueue) Direction() Direction { return egressOnly() }

// DefaultClass implements Classful
func (p *PriorityQueue) DefaultClass() Class {
	if p.Default == nil {
		return nil
	}
	return p.Default
}

// NumberedClasses implements Classful
func (p *PriorityQueue) NumberedClasses() []Class {
	return toClasses(p.Classes)
}

// RoundRobin is a "round-robin" (drr) policy
type RoundRobin struct {
	Meta
	Default *RoundRobinClass
	Classes []*RoundRobinClass
}

func (p *RoundRobin) Type() Type           { return TypeRoundRobin }
func (p *RoundRobin) Direction() Direction { return egressOnly() }

// DefaultClass implements Classful
func (p *RoundRobin) DefaultClass() Class {
	if p.Default == nil {
		return nil
	}
	return p.Default
}

// NumberedClasses implements Classful
func (p *RoundRobin) NumberedClasses() []Class {
	return toClasses(p.Classes)
}

func toClasses[C Class](classes []C) []Class {
	out := make([]Class, 0, len(classes))
	for _, c := range classes {
		out = append(out, c)
	}
	return out
}
