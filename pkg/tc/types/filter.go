package types

import (
	"fmt"
	"slices"
	"strconv"
)

const (
	// Values for FilterAttrs.Protocol
	FilterProtocolAll   FilterProtocol = "all"
	FilterProtocolIPv4  FilterProtocol = "ip"
	FilterProtocolIPv6  FilterProtocol = "ipv6"
	FilterProtocol8021Q FilterProtocol = "802.1Q"

	// Filter kinds
	FilterKindU32   FilterKind = "u32"
	FilterKindFw    FilterKind = "fw"
	FilterKindBasic FilterKind = "basic"
)

// FilterProtocol is the type of filter protocol, either a tc protocol keyword or a number
type FilterProtocol string

// FilterKind is the type of filter
type FilterKind string

// Filter represent a tc filter object
type Filter interface {
	// Attrs returns FilterAttrs
	Attrs() *FilterAttrs
	// Equals compares this Filter with other, returns true if they are equal or false otherwise
	Equals(other Filter) bool

	// Driver Specific related Interfaces
	CmdLineGenerator
}

// FilterAttrs holds filter object attributes
type FilterAttrs struct {
	Kind     FilterKind
	Protocol FilterProtocol
	Chain    *uint32
	Handle   *uint32
	Priority *uint16
}

// NewFilterAttrs creates new FilterAttrs instance
func NewFilterAttrs(
	kind FilterKind, protocol FilterProtocol, chain *uint32, handle *uint32, priority *uint16) *FilterAttrs {
	return &FilterAttrs{
		Kind:     kind,
		Protocol: protocol,
		Chain:    chain,
		Handle:   handle,
		Priority: priority,
	}
}

// GenCmdLineArgs implements CmdLineGenerator interface, it generates the needed tc command line args for FilterAttrs
func (fa *FilterAttrs) GenCmdLineArgs() []string {
	args := []string{}

	if fa.Protocol != "" {
		args = append(args, "protocol", string(fa.Protocol))
	}

	if fa.Handle != nil {
		args = append(args, "handle", strconv.FormatUint(uint64(*fa.Handle), 10))
	}

	if fa.Chain != nil {
		args = append(args, "chain", strconv.FormatUint(uint64(*fa.Chain), 10))
	}

	if fa.Priority != nil {
		args = append(args, "pref", strconv.FormatUint(uint64(*fa.Priority), 10))
	}

	// must be last as next are filter type specific params
	if fa.Kind != "" {
		args = append(args, string(fa.Kind))
	}

	return args
}

// Equals compares this FilterAttrs with other, returns true if they are equal or false otherwise
func (fa *FilterAttrs) Equals(other *FilterAttrs) bool {
	if fa == other {
		return true
	}

	if (fa == nil && other != nil) || (fa != nil && other == nil) {
		return false
	}

	if fa.Kind != other.Kind {
		return false
	}
	if fa.Protocol != other.Protocol {
		return false
	}
	defChain := uint32(ChainDefaultChain)
	if !compare(fa.Chain, other.Chain, &defChain) {
		return false
	}
	if !compare(fa.Handle, other.Handle, nil) {
		return false
	}
	if !compare(fa.Priority, other.Priority, nil) {
		return false
	}
	return true
}

// U32Key is a single u32 selector key, Val and Mask in host byte order and Off relative to
// the network header
type U32Key struct {
	Val  uint32
	Mask uint32
	Off  int32
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (k U32Key) GenCmdLineArgs() []string {
	return []string{"match", "u32", fmt.Sprintf("0x%08x", k.Val), fmt.Sprintf("0x%08x", k.Mask),
		"at", strconv.FormatInt(int64(k.Off), 10)}
}

// classifier holds what all the filters of this package share
type classifier struct {
	FilterAttrs
	// FlowID is the class the filter classifies into, nil if none
	FlowID *uint32
	// Actions
	Actions []Action
}

// Attrs implements Filter interface, it returns FilterAttrs
func (c *classifier) Attrs() *FilterAttrs {
	return &c.FilterAttrs
}

func (c *classifier) equals(other *classifier) bool {
	if !c.FilterAttrs.Equals(&other.FilterAttrs) {
		return false
	}
	if !compare(c.FlowID, other.FlowID, nil) {
		return false
	}
	// Actions Equal (order matters)
	if len(c.Actions) != len(other.Actions) {
		return false
	}
	for i := range c.Actions {
		if !c.Actions[i].Equals(other.Actions[i]) {
			return false
		}
	}
	return true
}

func (c *classifier) tailArgs() []string {
	args := []string{}
	if c.FlowID != nil {
		args = append(args, "flowid", FormatHandle(*c.FlowID))
	}
	for _, action := range c.Actions {
		args = append(args, action.GenCmdLineArgs()...)
	}
	return args
}

// U32Filter is a u32 filter matching all of its Keys. With no keys it matches everything.
type U32Filter struct {
	classifier
	Keys []U32Key
}

// Equals implements Filter interface
func (f *U32Filter) Equals(other Filter) bool {
	o, ok := other.(*U32Filter)
	if !ok {
		return false
	}
	return f.classifier.equals(&o.classifier) && slices.Equal(f.Keys, o.Keys)
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (f *U32Filter) GenCmdLineArgs() []string {
	args := f.FilterAttrs.GenCmdLineArgs()
	keys := f.Keys
	if len(keys) == 0 {
		keys = []U32Key{{}}
	}
	for _, k := range keys {
		args = append(args, k.GenCmdLineArgs()...)
	}
	return append(args, f.tailArgs()...)
}

// FwFilter is a fw filter, it matches the firewall mark held by FilterAttrs.Handle
type FwFilter struct {
	classifier
}

// Equals implements Filter interface
func (f *FwFilter) Equals(other Filter) bool {
	o, ok := other.(*FwFilter)
	if !ok {
		return false
	}
	return f.classifier.equals(&o.classifier)
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (f *FwFilter) GenCmdLineArgs() []string {
	return append(f.FilterAttrs.GenCmdLineArgs(), f.tailArgs()...)
}

// BasicFilter is a basic filter with an optional ematch expression, e.g "meta(rt_iif eq 2)".
// With no expression it matches everything.
type BasicFilter struct {
	classifier
	Ematch string
}

// Equals implements Filter interface
func (f *BasicFilter) Equals(other Filter) bool {
	o, ok := other.(*BasicFilter)
	if !ok {
		return false
	}
	return f.classifier.equals(&o.classifier) && f.Ematch == o.Ematch
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (f *BasicFilter) GenCmdLineArgs() []string {
	args := f.FilterAttrs.GenCmdLineArgs()
	if f.Ematch != "" {
		args = append(args, "match", f.Ematch)
	}
	return append(args, f.tailArgs()...)
}

// Builders

// NewFilterAttrsBuilder returns a new FilterAttrsBuilder
func NewFilterAttrsBuilder() *FilterAttrsBuilder {
	return &FilterAttrsBuilder{}
}

// FilterAttrsBuilder is a FilterAttr builder
type FilterAttrsBuilder struct {
	filterAttrs FilterAttrs
}

// WithKind adds Kind to FilterAttrsBuilder
func (fb *FilterAttrsBuilder) WithKind(k FilterKind) *FilterAttrsBuilder {
	fb.filterAttrs.Kind = k
	return fb
}

// WithProtocol adds Protocol to FilterAttrsBuilder
func (fb *FilterAttrsBuilder) WithProtocol(p FilterProtocol) *FilterAttrsBuilder {
	fb.filterAttrs.Protocol = p
	return fb
}

// WithChain adds Chain index to FilterAttrsBuilder
func (fb *FilterAttrsBuilder) WithChain(c uint32) *FilterAttrsBuilder {
	fb.filterAttrs.Chain = &c
	return fb
}

// WithHandle adds Handle to FilterAttrsBuilder
func (fb *FilterAttrsBuilder) WithHandle(h uint32) *FilterAttrsBuilder {
	fb.filterAttrs.Handle = &h
	return fb
}

// WithPriority adds Priority to FilterAttrsBuilder
func (fb *FilterAttrsBuilder) WithPriority(p uint16) *FilterAttrsBuilder {
	fb.filterAttrs.Priority = &p
	return fb
}

// Build builds and returns a new FilterAttrs instance
// Note: calling Build() multiple times will not return a completely
// new object on each call. that is, pointer/slice/map types will not be deep copied.
// to create several objects, different builders should be used.
func (fb *FilterAttrsBuilder) Build() *FilterAttrs {
	return NewFilterAttrs(fb.filterAttrs.Kind, fb.filterAttrs.Protocol, fb.filterAttrs.Chain, fb.filterAttrs.Handle,
		fb.filterAttrs.Priority)
}

// NewFilterBuilder returns a new FilterBuilder for filters of kind k
func NewFilterBuilder(k FilterKind) *FilterBuilder {
	fb := &FilterBuilder{
		filterAttrsBuilder: NewFilterAttrsBuilder().WithKind(k),
		actions:            make([]Action, 0),
	}
	return fb
}

// FilterBuilder builds U32Filter, FwFilter and BasicFilter instances
type FilterBuilder struct {
	filterAttrsBuilder *FilterAttrsBuilder
	flowID             *uint32
	actions            []Action
	keys               []U32Key
	ematch             string
}

// WithProtocol adds Protocol to FilterBuilder
func (fb *FilterBuilder) WithProtocol(p FilterProtocol) *FilterBuilder {
	fb.filterAttrsBuilder.WithProtocol(p)
	return fb
}

// WithChain adds Chain number to FilterBuilder
func (fb *FilterBuilder) WithChain(c uint32) *FilterBuilder {
	fb.filterAttrsBuilder.WithChain(c)
	return fb
}

// WithHandle adds Handle to FilterBuilder
func (fb *FilterBuilder) WithHandle(h uint32) *FilterBuilder {
	fb.filterAttrsBuilder.WithHandle(h)
	return fb
}

// WithPriority adds Priority to FilterBuilder
func (fb *FilterBuilder) WithPriority(p uint16) *FilterBuilder {
	fb.filterAttrsBuilder.WithPriority(p)
	return fb
}

// WithFlowID adds the target class to FilterBuilder
func (fb *FilterBuilder) WithFlowID(id uint32) *FilterBuilder {
	fb.flowID = &id
	return fb
}

// WithKey adds a u32 selector key to FilterBuilder
func (fb *FilterBuilder) WithKey(val, mask uint32, off int32) *FilterBuilder {
	fb.keys = append(fb.keys, U32Key{Val: val, Mask: mask, Off: off})
	return fb
}

// WithEmatch adds a basic ematch expression to FilterBuilder
func (fb *FilterBuilder) WithEmatch(e string) *FilterBuilder {
	fb.ematch = e
	return fb
}

// WithAction adds specified Action to FilterBuilder
func (fb *FilterBuilder) WithAction(a Action) *FilterBuilder {
	fb.actions = append(fb.actions, a)
	return fb
}

// Build builds and creates a new Filter instance of the builder kind
// Note: calling Build() multiple times will not return a completely
// new object on each call. that is, pointer/slice/map types will not be deep copied.
// to create several objects, different builders should be used.
func (fb *FilterBuilder) Build() Filter {
	c := classifier{
		FilterAttrs: *fb.filterAttrsBuilder.Build(),
		FlowID:      fb.flowID,
		Actions:     fb.actions,
	}
	switch c.Kind {
	case FilterKindFw:
		return &FwFilter{classifier: c}
	case FilterKindBasic:
		return &BasicFilter{classifier: c, Ematch: fb.ematch}
	default:
		c.Kind = FilterKindU32
		return &U32Filter{classifier: c, Keys: fb.keys}
	}
}
