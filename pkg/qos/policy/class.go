package policy

import (
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

// Class is a traffic class of a Classful policy
type Class interface {
	// Base returns the attributes common to all classes
	Base() *ClassBase
}

// ClassBase holds the attributes common to all classes
type ClassBase struct {
	// ID is the class id, 0 for the default class
	ID          uint16
	Description string
	// Priority is the explicit priority override
	Priority *uint16
	// Matches are the class local matches sorted by name
	Matches []Match
	// MatchGroups are the referenced traffic match groups in configuration order
	MatchGroups []string
}

// Base implements Class
func (c *ClassBase) Base() *ClassBase {
	return c
}

// IsDefault returns true for the default class
func (c *ClassBase) IsDefault() bool {
	return c.ID == 0
}

// QueueType is the type of the queue attached to a leaf class
type QueueType string

const (
	// QueueDefault selects the policy specific leaf queue
	QueueDefault      QueueType = ""
	QueueDropTail     QueueType = "drop-tail"
	QueueFairQueue    QueueType = "fair-queue"
	QueueFQCodel      QueueType = "fq-codel"
	QueuePriority     QueueType = "priority"
	QueueRandomDetect QueueType = "random-detect"
)

// Queue is the queue attached to a leaf class. Times are in microseconds.
type Queue struct {
	Type         QueueType
	Limit        *uint32
	CodelQuantum *uint32
	Flows        *uint32
	Interval     *uint32
	Target       *uint32
	HashInterval *uint32
	RED          RED
}

// RED holds random early detection parameters. Thresholds are in packets.
type RED struct {
	AveragePacket    *uint32
	MaximumThreshold *uint32
	MinimumThreshold *uint32
	// MarkProbability is the inverse of the mark probability (10 marks 1 of 10 packets)
	MarkProbability *uint32
	QueueLimit      *uint32
}

// ShaperClass is a class of a Shaper policy
type ShaperClass struct {
	ClassBase
	Bandwidth units.Rate
	// Ceiling is the zero Rate when not configured
	Ceiling units.Rate
	Burst   uint32
	Quantum *uint32
	Queue   Queue
}

// Curve is an HFSC service curve. A zero M1 means a linear curve.
type Curve struct {
	M1 units.Rate
	// D in microseconds
	D  uint32
	M2 units.Rate
}

// HFSCClass is a class of a ShaperHFSC policy. Unset curves are nil.
type HFSCClass struct {
	ClassBase
	Linkshare  *Curve
	Realtime   *Curve
	Upperlimit *Curve
}

// PoliceVerb is the action of a police action on conforming or exceeding traffic
type PoliceVerb string

const (
	PoliceDrop       PoliceVerb = "drop"
	PolicePipe       PoliceVerb = "pipe"
	PoliceContinue   PoliceVerb = "continue"
	PoliceOK         PoliceVerb = "ok"
	PoliceReclassify PoliceVerb = "reclassify"
)

var policeVerbs = map[string]PoliceVerb{
	string(PoliceDrop):       PoliceDrop,
	string(PolicePipe):       PolicePipe,
	string(PoliceContinue):   PoliceContinue,
	string(PoliceOK):         PoliceOK,
	string(PoliceReclassify): PoliceReclassify,
}

// LimiterClass is a class of a Limiter policy
type LimiterClass struct {
	ClassBase
	Bandwidth units.Rate
	Burst     uint32
	// MTU is 0 when not configured
	MTU       uint32
	Exceed    PoliceVerb
	NotExceed PoliceVerb
}

// PriorityClass is a band of a PriorityQueue policy
type PriorityClass struct {
	ClassBase
	Queue Queue
}

// RoundRobinClass is a class of a RoundRobin policy
type RoundRobinClass struct {
	ClassBase
	Quantum *uint32
	Queue   Queue
}
