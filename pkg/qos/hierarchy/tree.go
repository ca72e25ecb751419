// Package hierarchy turns a validated policy into the tree of tc nodes it is made of:
// a root, the classes in emission order and their leaf queues.
package hierarchy

import (
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
)

const (
	// RootMajor is the handle major of an egress root qdisc
	RootMajor uint16 = 0x1
	// IngressMajor is the handle major of the ingress qdisc
	IngressMajor uint16 = 0xffff
	// RootMinor is the minor of the HTB and HFSC class owning the aggregate bandwidth
	RootMinor uint16 = 0x1
	// LeafMajorBase is added to the class minor to get the handle major of its leaf queue
	LeafMajorBase uint16 = 0x1000
	// DefaultPref is the filter preference of the default class catch-all filter
	DefaultPref uint16 = 255
)

// Tree is the node tree of a single policy
type Tree struct {
	Name      string
	Type      policy.Type
	Direction policy.Direction
	// Root is the queue of a classless policy, nil for classful ones
	Root Queue
	// Bandwidth is the resolved aggregate bandwidth in bits/s, 0 if the policy has none
	Bandwidth uint64
	// Bands is the band count of a priority-queue
	Bands uint8
	// DefaultMinor is the class minor of the default class
	DefaultMinor uint16
	// Classes holds the numbered classes sorted by id, followed by the default class if any
	Classes []*Class
}

// Classful returns true if the tree has classes
func (t *Tree) Classful() bool {
	return t.Root == nil
}

// RootHandleMajor returns the handle major of the root qdisc
func (t *Tree) RootHandleMajor() uint16 {
	if t.Direction == policy.DirectionIngress {
		return IngressMajor
	}
	return RootMajor
}

// Default returns the default class, nil if there is none
func (t *Tree) Default() *Class {
	if n := len(t.Classes); n > 0 && t.Classes[n-1].IsDefault() {
		return t.Classes[n-1]
	}
	return nil
}

// Class is a class node. Exactly one of the discipline specific parameters is set,
// matching the Tree type.
type Class struct {
	// ID is the configured class id, 0 for the default class
	ID uint16
	// Minor is the class minor, the band for a priority-queue
	Minor uint16
	// Pref is the preference of the class filters
	Pref        uint16
	Description string
	// Implicit is true for a default class that is not configured
	Implicit bool

	HTB    *HTBParams
	HFSC   *HFSCParams
	DRR    *DRRParams
	Police *PoliceParams
	// Leaf is the queue attached to the class, nil for limiter classes
	Leaf Queue
}

// IsDefault returns true for the default class
func (c *Class) IsDefault() bool {
	return c.ID == 0
}

// LeafMajor returns the handle major of the class leaf queue
func (c *Class) LeafMajor() uint16 {
	return LeafMajorBase + c.Minor
}

// HTBParams are rates in bits/s
type HTBParams struct {
	Rate    uint64
	Ceil    uint64
	Burst   uint32
	Prio    uint32
	Quantum *uint32
}

// ServiceCurve is an HFSC curve, rates in bits/s and D in microseconds
type ServiceCurve struct {
	M1 uint64
	D  uint32
	M2 uint64
}

type HFSCParams struct {
	Realtime   *ServiceCurve
	Linkshare  *ServiceCurve
	Upperlimit *ServiceCurve
}

type DRRParams struct {
	Quantum *uint32
}

// PoliceParams is the police action of a limiter class
type PoliceParams struct {
	// Rate in bits/s
	Rate      uint64
	Burst     uint32
	MTU       uint32
	Exceed    policy.PoliceVerb
	NotExceed policy.PoliceVerb
}

// Less orders classes by filter preference then class id, the default class last
func Less(a, b *Class) bool {
	if a.Pref != b.Pref {
		return a.Pref < b.Pref
	}
	if a.IsDefault() != b.IsDefault() {
		return b.IsDefault()
	}
	return a.ID < b.ID
}
