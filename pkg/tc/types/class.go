package types

import (
	"slices"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

const (
	ClassHTBType  ClassType = "htb"
	ClassHFSCType ClassType = "hfsc"
	ClassDRRType  ClassType = "drr"
)

// ClassType is the type of class
type ClassType string

// ClassAttrs holds Class object attributes
type ClassAttrs struct {
	Parent  uint32
	ClassID uint32
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (ca *ClassAttrs) GenCmdLineArgs() []string {
	return []string{"parent", FormatHandle(ca.Parent), "classid", FormatHandle(ca.ClassID)}
}

// Class is an interface which represents a TC class object
type Class interface {
	// Attrs returns ClassAttrs for a class
	Attrs() *ClassAttrs
	// Type returns the class type
	Type() ClassType
	// Equals compares this Class with other, returns true if they are equal or false otherwise
	Equals(other Class) bool

	// Driver Specific related Interfaces
	CmdLineGenerator
}

func classEquals(c, other Class) bool {
	if other == nil || c.Type() != other.Type() {
		return false
	}
	return slices.Equal(c.GenCmdLineArgs(), other.GenCmdLineArgs())
}

func classArgs(attrs *ClassAttrs, t ClassType, opts ...string) []string {
	args := attrs.GenCmdLineArgs()
	args = append(args, string(t))
	return append(args, opts...)
}

// HTBClass is an htb class, rates are in bits/s
type HTBClass struct {
	ClassAttrs
	Rate    uint64
	Ceil    uint64
	Burst   *uint32
	Prio    *uint32
	Quantum *uint32
}

func (c *HTBClass) Attrs() *ClassAttrs  { return &c.ClassAttrs }
func (c *HTBClass) Type() ClassType     { return ClassHTBType }
func (c *HTBClass) Equals(o Class) bool { return classEquals(c, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (c *HTBClass) GenCmdLineArgs() []string {
	opts := []string{"rate", units.FormatRate(c.Rate)}
	if c.Ceil != 0 {
		opts = append(opts, "ceil", units.FormatRate(c.Ceil))
	}
	opts = appendUint(opts, "burst", c.Burst)
	opts = appendUint(opts, "prio", c.Prio)
	opts = appendUint(opts, "quantum", c.Quantum)
	return classArgs(&c.ClassAttrs, c.Type(), opts...)
}

// ServiceCurve is an hfsc service curve, rates in bits/s and D in microseconds.
// M1 and D are 0 for a linear curve.
type ServiceCurve struct {
	M1 uint64
	D  uint32
	M2 uint64
}

func (sc *ServiceCurve) args(name string) []string {
	args := []string{name}
	if sc.M1 != 0 || sc.D != 0 {
		args = append(args, "m1", units.FormatRate(sc.M1), "d", units.FormatTime(sc.D))
	}
	return append(args, "m2", units.FormatRate(sc.M2))
}

// HFSCClass is an hfsc class. SC sets both the realtime and the linkshare curve.
type HFSCClass struct {
	ClassAttrs
	SC         *ServiceCurve
	Realtime   *ServiceCurve
	Linkshare  *ServiceCurve
	Upperlimit *ServiceCurve
}

func (c *HFSCClass) Attrs() *ClassAttrs  { return &c.ClassAttrs }
func (c *HFSCClass) Type() ClassType     { return ClassHFSCType }
func (c *HFSCClass) Equals(o Class) bool { return classEquals(c, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (c *HFSCClass) GenCmdLineArgs() []string {
	opts := []string{}
	for _, sc := range []struct {
		name  string
		curve *ServiceCurve
	}{{"sc", c.SC}, {"rt", c.Realtime}, {"ls", c.Linkshare}, {"ul", c.Upperlimit}} {
		if sc.curve != nil {
			opts = append(opts, sc.curve.args(sc.name)...)
		}
	}
	return classArgs(&c.ClassAttrs, c.Type(), opts...)
}

// DRRClass is a drr class
type DRRClass struct {
	ClassAttrs
	Quantum *uint32
}

func (c *DRRClass) Attrs() *ClassAttrs  { return &c.ClassAttrs }
func (c *DRRClass) Type() ClassType     { return ClassDRRType }
func (c *DRRClass) Equals(o Class) bool { return classEquals(c, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (c *DRRClass) GenCmdLineArgs() []string {
	return classArgs(&c.ClassAttrs, c.Type(), appendUint(nil, "quantum", c.Quantum)...)
}

// Builders

// NewHTBClassBuilder returns a new HTBClassBuilder
func NewHTBClassBuilder() *HTBClassBuilder {
	return &HTBClassBuilder{}
}

// HTBClassBuilder is an HTBClass builder
type HTBClassBuilder struct {
	class HTBClass
}

// WithParent adds Parent to HTBClassBuilder
func (b *HTBClassBuilder) WithParent(p uint32) *HTBClassBuilder {
	b.class.Parent = p
	return b
}

// WithClassID adds ClassID to HTBClassBuilder
func (b *HTBClassBuilder) WithClassID(id uint32) *HTBClassBuilder {
	b.class.ClassID = id
	return b
}

// WithRate adds Rate and Ceil to HTBClassBuilder
func (b *HTBClassBuilder) WithRate(rate, ceil uint64) *HTBClassBuilder {
	b.class.Rate = rate
	b.class.Ceil = ceil
	return b
}

// WithBurst adds Burst to HTBClassBuilder
func (b *HTBClassBuilder) WithBurst(burst uint32) *HTBClassBuilder {
	b.class.Burst = &burst
	return b
}

// WithPrio adds Prio to HTBClassBuilder
func (b *HTBClassBuilder) WithPrio(prio uint32) *HTBClassBuilder {
	b.class.Prio = &prio
	return b
}

// WithQuantum adds Quantum to HTBClassBuilder, nil leaves it to the kernel
func (b *HTBClassBuilder) WithQuantum(q *uint32) *HTBClassBuilder {
	b.class.Quantum = q
	return b
}

// Build builds and returns a new HTBClass instance
func (b *HTBClassBuilder) Build() *HTBClass {
	c := b.class
	return &c
}
