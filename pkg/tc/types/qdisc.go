package types

import (
	"slices"
	"strings"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

const (
	QDiscIngressType QDiscType = "ingress"
	QDiscHTBType     QDiscType = "htb"
	QDiscHFSCType    QDiscType = "hfsc"
	QDiscDRRType     QDiscType = "drr"
	QDiscPrioType    QDiscType = "prio"
	QDiscSFQType     QDiscType = "sfq"
	QDiscFQCodelType QDiscType = "fq_codel"
	QDiscPFIFOType   QDiscType = "pfifo"
	QDiscREDType     QDiscType = "red"
	QDiscGREDType    QDiscType = "gred"
	QDiscCakeType    QDiscType = "cake"
	QDiscNetemType   QDiscType = "netem"
	QDiscTBFType     QDiscType = "tbf"
)

// QDiscType is the type of qdisc
type QDiscType string

// QDiscAttrs holds QDisc object attributes
type QDiscAttrs struct {
	Parent *uint32
	Handle *uint32
}

// NewQDiscAttrs creates new QDiscAttrs instance
func NewQDiscAttrs(parent, handle *uint32) *QDiscAttrs {
	return &QDiscAttrs{
		Parent: parent,
		Handle: handle,
	}
}

// IsRoot returns true if the qdisc is attached to the root of the device
func (qa *QDiscAttrs) IsRoot() bool {
	return qa.Parent != nil && *qa.Parent == HandleRoot
}

// GenCmdLineArgs implements CmdLineGenerator interface. The ingress qdisc has an implicit parent.
func (qa *QDiscAttrs) GenCmdLineArgs() []string {
	args := []string{}
	if qa.Parent != nil {
		switch *qa.Parent {
		case HandleRoot:
			args = append(args, "root")
		case HandleIngress:
		default:
			args = append(args, "parent", FormatHandle(*qa.Parent))
		}
	}
	if qa.Handle != nil {
		args = append(args, "handle", FormatHandle(*qa.Handle))
	}
	return args
}

// Equals compares this QDiscAttrs with other, returns true if they are equal or false otherwise
func (qa *QDiscAttrs) Equals(other *QDiscAttrs) bool {
	return compare(qa.Parent, other.Parent, nil) && compare(qa.Handle, other.Handle, nil)
}

// QDisc is an interface which represents a TC qdisc object
type QDisc interface {
	// Attrs returns QDiscAttrs for a qdisc
	Attrs() *QDiscAttrs
	// Type returns the QDisc type
	Type() QDiscType
	// Equals compares this QDisc with other, returns true if they are equal or false otherwise
	Equals(other QDisc) bool

	// Driver Specific related Interfaces
	CmdLineGenerator
}

// qdiscEquals compares qdiscs by type, attributes and options. The options of all qdiscs
// render to a canonical argument list so they are compared through it.
func qdiscEquals(q, other QDisc) bool {
	if other == nil || q.Type() != other.Type() {
		return false
	}
	return slices.Equal(q.GenCmdLineArgs(), other.GenCmdLineArgs())
}

func qdiscArgs(attrs *QDiscAttrs, t QDiscType, opts ...string) []string {
	args := attrs.GenCmdLineArgs()
	args = append(args, string(t))
	return append(args, opts...)
}

// GenericQDisc is a generic qdisc of an arbitrary type without options
type GenericQDisc struct {
	QDiscAttrs
	QdiscType QDiscType
}

// Attrs implements QDisc interface
func (g *GenericQDisc) Attrs() *QDiscAttrs {
	return &g.QDiscAttrs
}

// Type implements QDisc interface
func (g *GenericQDisc) Type() QDiscType {
	return g.QdiscType
}

// Equals implements QDisc interface
func (g *GenericQDisc) Equals(other QDisc) bool {
	return qdiscEquals(g, other)
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (g *GenericQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&g.QDiscAttrs, g.QdiscType)
}

// NewGenericQdisc creates a new Generic QDisc object
func NewGenericQdisc(qDiscAttrs *QDiscAttrs, qType QDiscType) *GenericQDisc {
	return &GenericQDisc{
		QDiscAttrs: *qDiscAttrs,
		QdiscType:  qType,
	}
}

// HTBQDisc is an htb qdisc, Default is the minor of the default class
type HTBQDisc struct {
	QDiscAttrs
	Default uint16
}

func (q *HTBQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *HTBQDisc) Type() QDiscType     { return QDiscHTBType }
func (q *HTBQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *HTBQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(), "default", formatHex(q.Default))
}

// HFSCQDisc is an hfsc qdisc, Default is the minor of the default class
type HFSCQDisc struct {
	QDiscAttrs
	Default uint16
}

func (q *HFSCQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *HFSCQDisc) Type() QDiscType     { return QDiscHFSCType }
func (q *HFSCQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *HFSCQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(), "default", formatHex(q.Default))
}

// PrioQDisc is a prio qdisc. An empty PrioMap keeps the kernel default.
type PrioQDisc struct {
	QDiscAttrs
	Bands   uint8
	PrioMap []uint8
}

func (q *PrioQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *PrioQDisc) Type() QDiscType     { return QDiscPrioType }
func (q *PrioQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *PrioQDisc) GenCmdLineArgs() []string {
	opts := []string{}
	if q.Bands != 0 {
		opts = append(opts, "bands", formatUint(q.Bands))
	}
	if len(q.PrioMap) > 0 {
		opts = append(opts, "priomap")
		for _, b := range q.PrioMap {
			opts = append(opts, formatUint(b))
		}
	}
	return qdiscArgs(&q.QDiscAttrs, q.Type(), opts...)
}

// SFQQDisc is an sfq qdisc, Perturb is in seconds
type SFQQDisc struct {
	QDiscAttrs
	Perturb *uint32
	Limit   *uint32
}

func (q *SFQQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *SFQQDisc) Type() QDiscType     { return QDiscSFQType }
func (q *SFQQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *SFQQDisc) GenCmdLineArgs() []string {
	opts := appendUint(nil, "perturb", q.Perturb)
	opts = appendUint(opts, "limit", q.Limit)
	return qdiscArgs(&q.QDiscAttrs, q.Type(), opts...)
}

// FQCodelQDisc is an fq_codel qdisc, Target and Interval are in microseconds
type FQCodelQDisc struct {
	QDiscAttrs
	Limit    *uint32
	Flows    *uint32
	Target   *uint32
	Interval *uint32
	Quantum  *uint32
}

func (q *FQCodelQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *FQCodelQDisc) Type() QDiscType     { return QDiscFQCodelType }
func (q *FQCodelQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *FQCodelQDisc) GenCmdLineArgs() []string {
	opts := appendUint(nil, "limit", q.Limit)
	opts = appendUint(opts, "flows", q.Flows)
	if q.Target != nil {
		opts = append(opts, "target", units.FormatTime(units.TargetFigure(*q.Target)))
	}
	if q.Interval != nil {
		opts = append(opts, "interval", units.FormatTime(*q.Interval))
	}
	opts = appendUint(opts, "quantum", q.Quantum)
	return qdiscArgs(&q.QDiscAttrs, q.Type(), opts...)
}

// PFIFOQDisc is a packet limited pfifo qdisc
type PFIFOQDisc struct {
	QDiscAttrs
	Limit *uint32
}

func (q *PFIFOQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *PFIFOQDisc) Type() QDiscType     { return QDiscPFIFOType }
func (q *PFIFOQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *PFIFOQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(), appendUint(nil, "limit", q.Limit)...)
}

// REDParams are the random early detection parameters shared by red and gred
type REDParams struct {
	// Limit, Min, Max and AvPkt are in bytes
	Limit uint32
	Min   uint32
	Max   uint32
	AvPkt uint32
	// Burst is in packets
	Burst       uint32
	Probability float64
	// Bandwidth in bits/s, omitted when 0
	Bandwidth uint64
}

func (r *REDParams) args() []string {
	args := []string{
		"limit", formatUint(r.Limit),
		"min", formatUint(r.Min),
		"max", formatUint(r.Max),
		"avpkt", formatUint(r.AvPkt),
		"burst", formatUint(r.Burst),
	}
	if r.Bandwidth != 0 {
		args = append(args, "bandwidth", units.FormatRate(r.Bandwidth))
	}
	return append(args, "probability", formatFloat(r.Probability))
}

// REDQDisc is a red qdisc
type REDQDisc struct {
	QDiscAttrs
	REDParams
}

func (q *REDQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *REDQDisc) Type() QDiscType     { return QDiscREDType }
func (q *REDQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *REDQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(), q.REDParams.args()...)
}

// GREDQDisc is a gred qdisc in grio mode with one virtual queue per entry of DPs, DPs[0]
// is the default one. It is created with its setup arguments, each virtual queue is then
// configured by changing the qdisc with the matching GREDVirtualQueue.
type GREDQDisc struct {
	QDiscAttrs
	DPs []REDParams
}

func (q *GREDQDisc) Attrs() *QDiscAttrs { return &q.QDiscAttrs }
func (q *GREDQDisc) Type() QDiscType    { return QDiscGREDType }

// Equals implements QDisc interface
func (q *GREDQDisc) Equals(o QDisc) bool {
	other, ok := o.(*GREDQDisc)
	if !ok || !qdiscEquals(q, o) {
		return false
	}
	return slices.Equal(q.DPs, other.DPs)
}

// GenCmdLineArgs implements CmdLineGenerator interface, it returns the setup arguments
func (q *GREDQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(), "setup", "DPs", formatUint(uint32(len(q.DPs))), "default", "0", "grio")
}

// VirtualQueues returns the changes configuring each virtual queue, higher precedences
// get a higher priority
func (q *GREDQDisc) VirtualQueues() []*GREDVirtualQueue {
	out := make([]*GREDVirtualQueue, 0, len(q.DPs))
	for i := range q.DPs {
		vq := &GREDVirtualQueue{DP: uint8(i), Prio: uint8(len(q.DPs) - i), REDParams: q.DPs[i]}
		if q.Handle != nil {
			h := *q.Handle
			vq.Handle = &h
		}
		out = append(out, vq)
	}
	return out
}

// GREDVirtualQueue is the change of a single virtual queue of a gred qdisc. tc identifies
// the qdisc to change by its handle only.
type GREDVirtualQueue struct {
	QDiscAttrs
	REDParams
	DP   uint8
	Prio uint8
}

func (q *GREDVirtualQueue) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *GREDVirtualQueue) Type() QDiscType     { return QDiscGREDType }
func (q *GREDVirtualQueue) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *GREDVirtualQueue) GenCmdLineArgs() []string {
	attrs := QDiscAttrs{Handle: q.Handle}
	args := qdiscArgs(&attrs, q.Type(), q.REDParams.args()...)
	return append(args, "DP", formatUint(q.DP), "prio", formatUint(q.Prio))
}

// CakeQDisc is a cake qdisc, RTT is in microseconds
type CakeQDisc struct {
	QDiscAttrs
	Bandwidth uint64
	RTT       uint32
	FlowMode  string
	NAT       bool
}

func (q *CakeQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *CakeQDisc) Type() QDiscType     { return QDiscCakeType }
func (q *CakeQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *CakeQDisc) GenCmdLineArgs() []string {
	opts := []string{"bandwidth", units.FormatRate(q.Bandwidth), "rtt", units.FormatTime(q.RTT)}
	if q.FlowMode != "" {
		opts = append(opts, q.FlowMode)
	}
	if q.NAT {
		opts = append(opts, "nat")
	} else {
		opts = append(opts, "nonat")
	}
	return qdiscArgs(&q.QDiscAttrs, q.Type(), opts...)
}

// NetemQDisc is a netem qdisc. Delay is in microseconds, the probabilities are percentages.
type NetemQDisc struct {
	QDiscAttrs
	// Rate in bits/s, omitted when 0
	Rate      uint64
	Delay     *uint32
	Corrupt   *float64
	Duplicate *float64
	Loss      *float64
	Reorder   *float64
	Limit     *uint32
}

func (q *NetemQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *NetemQDisc) Type() QDiscType     { return QDiscNetemType }
func (q *NetemQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *NetemQDisc) GenCmdLineArgs() []string {
	opts := []string{}
	if q.Rate != 0 {
		opts = append(opts, "rate", units.FormatRate(q.Rate))
	}
	if q.Delay != nil {
		opts = append(opts, "delay", units.FormatTime(*q.Delay))
	}
	percent := func(key string, v *float64) {
		if v != nil {
			opts = append(opts, key, formatFloat(*v)+"%")
		}
	}
	percent("corrupt", q.Corrupt)
	percent("duplicate", q.Duplicate)
	percent("loss", q.Loss)
	percent("reorder", q.Reorder)
	opts = appendUint(opts, "limit", q.Limit)
	return qdiscArgs(&q.QDiscAttrs, q.Type(), opts...)
}

// TBFQDisc is a tbf qdisc, Latency is in microseconds
type TBFQDisc struct {
	QDiscAttrs
	Rate    uint64
	Burst   uint32
	Latency uint32
}

func (q *TBFQDisc) Attrs() *QDiscAttrs  { return &q.QDiscAttrs }
func (q *TBFQDisc) Type() QDiscType     { return QDiscTBFType }
func (q *TBFQDisc) Equals(o QDisc) bool { return qdiscEquals(q, o) }

// GenCmdLineArgs implements CmdLineGenerator interface
func (q *TBFQDisc) GenCmdLineArgs() []string {
	return qdiscArgs(&q.QDiscAttrs, q.Type(),
		"rate", units.FormatRate(q.Rate),
		"burst", formatUint(q.Burst),
		"latency", units.FormatTime(q.Latency))
}

// FormatQDisc renders a qdisc for logs
func FormatQDisc(q QDisc) string {
	return strings.Join(q.GenCmdLineArgs(), " ")
}

// Builders

// NewQDiscAttrsBuilder returns a new QDiscAttrsBuilder
func NewQDiscAttrsBuilder() *QDiscAttrsBuilder {
	return &QDiscAttrsBuilder{}
}

// QDiscAttrsBuilder is a QDiscAttrs builder
type QDiscAttrsBuilder struct {
	qDiscAttrs QDiscAttrs
}

// WithParent adds Parent to QDiscAttrsBuilder
func (qb *QDiscAttrsBuilder) WithParent(p uint32) *QDiscAttrsBuilder {
	qb.qDiscAttrs.Parent = &p
	return qb
}

// WithRoot sets the root as Parent of QDiscAttrsBuilder
func (qb *QDiscAttrsBuilder) WithRoot() *QDiscAttrsBuilder {
	return qb.WithParent(HandleRoot)
}

// WithHandle adds Handle to QDiscAttrsBuilder
func (qb *QDiscAttrsBuilder) WithHandle(h uint32) *QDiscAttrsBuilder {
	qb.qDiscAttrs.Handle = &h
	return qb
}

// Build builds and returns a new QDiscAttrs instance
// Note: calling Build() multiple times will not return a completely
// new object on each call. that is, pointer/slice/map types will not be deep copied.
// to create several objects, different builders should be used.
func (qb *QDiscAttrsBuilder) Build() *QDiscAttrs {
	return NewQDiscAttrs(qb.qDiscAttrs.Parent, qb.qDiscAttrs.Handle)
}

// NewIngressQDiscBuilder returns a new NewIngressQDiscBuilder
func NewIngressQDiscBuilder() *IngressQDiscBuilder {
	return &IngressQDiscBuilder{qDiscAttrsBuilder: NewQDiscAttrsBuilder(), qDiscType: QDiscIngressType}
}

// IngressQDiscBuilder is an IngressQDisc builder
type IngressQDiscBuilder struct {
	qDiscAttrsBuilder *QDiscAttrsBuilder
	qDiscType         QDiscType
}

// WithParent adds Parent to IngressQDiscBuilder
func (iqb *IngressQDiscBuilder) WithParent(p uint32) *IngressQDiscBuilder {
	iqb.qDiscAttrsBuilder.WithParent(p)
	return iqb
}

// WithHandle adds Handle to IngressQDiscBuilder
func (iqb *IngressQDiscBuilder) WithHandle(h uint32) *IngressQDiscBuilder {
	iqb.qDiscAttrsBuilder.WithHandle(h)
	return iqb
}

// Build builds and returns a new GenericQDisc instance of type QDiscIngressType. Parent and
// Handle default to the ingress hook and ffff:.
func (iqb *IngressQDiscBuilder) Build() *GenericQDisc {
	attrs := iqb.qDiscAttrsBuilder.Build()
	if attrs.Parent == nil {
		p := HandleIngress
		attrs.Parent = &p
	}
	if attrs.Handle == nil {
		h := MakeHandle(0xffff, 0)
		attrs.Handle = &h
	}
	return NewGenericQdisc(attrs, iqb.qDiscType)
}
