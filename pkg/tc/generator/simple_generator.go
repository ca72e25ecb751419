package generator

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/hierarchy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	tctypes "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// prioMapLen is the number of entries of a prio qdisc priomap
const prioMapLen = 16

// IfIndexFunc returns the index of the named interface
type IfIndexFunc func(name string) (int, error)

// NewSimpleTCGenerator creates a new SimpleTCGenerator instance. ifIndex resolves the
// interfaces of "interface" matches.
func NewSimpleTCGenerator(ifIndex IfIndexFunc) *SimpleTCGenerator {
	return &SimpleTCGenerator{ifIndex: ifIndex}
}

// SimpleTCGenerator is a simple implementation for Generator interface
type SimpleTCGenerator struct {
	ifIndex IfIndexFunc
}

// Generate implements Generator interface
// It renders the TC objects of the provided tree:
//  1. the root qdisc, handle 1: on egress and ffff: on ingress
//  2. the classes, the aggregate class 1:1 first for htb and hfsc
//  3. the leaf qdiscs of the classes
//  4. the filters of the classes sorted by priority then class id, the default class last
func (s *SimpleTCGenerator) Generate(tree *hierarchy.Tree, matches ResolvedMatches) (*Objects, error) {
	tcObj := &Objects{
		Direction: tree.Direction,
		Policy:    tree.Name,
		QDiscs:    make([]tctypes.QDisc, 0),
		Classes:   make([]tctypes.Class, 0),
		Filters:   make([]tctypes.Filter, 0),
	}
	rootHandle := tctypes.MakeHandle(tree.RootHandleMajor(), 0)
	rootAttrs := tctypes.NewQDiscAttrsBuilder().WithRoot().WithHandle(rootHandle).Build()

	if !tree.Classful() {
		q, err := convertQueue(tree.Root, rootAttrs)
		if err != nil {
			return nil, err
		}
		tcObj.QDiscs = append(tcObj.QDiscs, q)
		return tcObj, nil
	}

	// classes parent, flowid major
	classParent := rootHandle
	switch tree.Type {
	case policy.TypeShaper:
		tcObj.QDiscs = append(tcObj.QDiscs, &tctypes.HTBQDisc{QDiscAttrs: *rootAttrs, Default: tree.DefaultMinor})
		classParent = tctypes.MakeHandle(hierarchy.RootMajor, hierarchy.RootMinor)
		tcObj.Classes = append(tcObj.Classes, tctypes.NewHTBClassBuilder().
			WithParent(rootHandle).
			WithClassID(classParent).
			WithRate(tree.Bandwidth, tree.Bandwidth).
			Build())
	case policy.TypeShaperHFSC:
		tcObj.QDiscs = append(tcObj.QDiscs, &tctypes.HFSCQDisc{QDiscAttrs: *rootAttrs, Default: tree.DefaultMinor})
		classParent = tctypes.MakeHandle(hierarchy.RootMajor, hierarchy.RootMinor)
		tcObj.Classes = append(tcObj.Classes, &tctypes.HFSCClass{
			ClassAttrs: tctypes.ClassAttrs{Parent: rootHandle, ClassID: classParent},
			SC:         &tctypes.ServiceCurve{M2: tree.Bandwidth},
			Upperlimit: &tctypes.ServiceCurve{M2: tree.Bandwidth},
		})
	case policy.TypeRoundRobin:
		tcObj.QDiscs = append(tcObj.QDiscs, tctypes.NewGenericQdisc(rootAttrs, tctypes.QDiscDRRType))
	case policy.TypePriorityQueue:
		prioMap := make([]uint8, prioMapLen)
		for i := range prioMap {
			prioMap[i] = tree.Bands - 1
		}
		tcObj.QDiscs = append(tcObj.QDiscs, &tctypes.PrioQDisc{
			QDiscAttrs: *rootAttrs, Bands: tree.Bands, PrioMap: prioMap})
	case policy.TypeLimiter:
		tcObj.QDiscs = append(tcObj.QDiscs, tctypes.NewIngressQDiscBuilder().Build())
	default:
		return nil, fmt.Errorf("unsupported classful policy type. %s", tree.Type)
	}

	// classes and their leaf qdiscs
	for _, c := range tree.Classes {
		classID := tctypes.MakeHandle(tree.RootHandleMajor(), c.Minor)
		if cls := s.genClass(c, classParent, classID); cls != nil {
			tcObj.Classes = append(tcObj.Classes, cls)
		}
		if c.Leaf != nil {
			attrs := tctypes.NewQDiscAttrsBuilder().WithParent(classID).
				WithHandle(tctypes.MakeHandle(c.LeafMajor(), 0)).Build()
			q, err := convertQueue(c.Leaf, attrs)
			if err != nil {
				return nil, errors.Wrapf(err, "class %d", c.ID)
			}
			tcObj.QDiscs = append(tcObj.QDiscs, q)
		}
	}

	filters, err := s.genFilters(tree, matches)
	if err != nil {
		return nil, err
	}
	tcObj.Filters = filters
	return tcObj, nil
}

// genClass returns the class object of c, nil for disciplines without explicit classes
func (s *SimpleTCGenerator) genClass(c *hierarchy.Class, parent, classID uint32) tctypes.Class {
	switch {
	case c.HTB != nil:
		return tctypes.NewHTBClassBuilder().
			WithParent(parent).
			WithClassID(classID).
			WithRate(c.HTB.Rate, c.HTB.Ceil).
			WithBurst(c.HTB.Burst).
			WithPrio(c.HTB.Prio).
			WithQuantum(c.HTB.Quantum).
			Build()
	case c.HFSC != nil:
		return &tctypes.HFSCClass{
			ClassAttrs: tctypes.ClassAttrs{Parent: parent, ClassID: classID},
			Realtime:   convertCurve(c.HFSC.Realtime),
			Linkshare:  convertCurve(c.HFSC.Linkshare),
			Upperlimit: convertCurve(c.HFSC.Upperlimit),
		}
	case c.DRR != nil:
		return &tctypes.DRRClass{
			ClassAttrs: tctypes.ClassAttrs{Parent: parent, ClassID: classID},
			Quantum:    c.DRR.Quantum,
		}
	}
	return nil
}

func convertCurve(sc *hierarchy.ServiceCurve) *tctypes.ServiceCurve {
	if sc == nil {
		return nil
	}
	return &tctypes.ServiceCurve{M1: sc.M1, D: sc.D, M2: sc.M2}
}

// genFilters generates the filters of all classes. Filters of one priority must share
// their kind and protocol as the kernel keeps one classifier per priority and protocol.
func (s *SimpleTCGenerator) genFilters(tree *hierarchy.Tree, matches ResolvedMatches) ([]tctypes.Filter, error) {
	classes := make([]*hierarchy.Class, len(tree.Classes))
	copy(classes, tree.Classes)
	sort.SliceStable(classes, func(i, j int) bool { return hierarchy.Less(classes[i], classes[j]) })

	filters := make([]tctypes.Filter, 0)
	type slot struct {
		kind  tctypes.FilterKind
		proto tctypes.FilterProtocol
		class uint16
	}
	slots := map[uint16]slot{}
	add := func(c *hierarchy.Class, f tctypes.Filter) error {
		attrs := f.Attrs()
		if sl, ok := slots[c.Pref]; ok && (sl.kind != attrs.Kind || sl.proto != attrs.Protocol) {
			return errors.Errorf("class %d: %s filter of protocol %s conflicts with the %s filter of protocol %s "+
				"of class %d at priority %d", c.ID, attrs.Kind, attrs.Protocol, sl.kind, sl.proto, sl.class, c.Pref)
		}
		slots[c.Pref] = slot{kind: attrs.Kind, proto: attrs.Protocol, class: c.ID}
		filters = append(filters, f)
		return nil
	}

	for _, c := range classes {
		flowID := tctypes.MakeHandle(tree.RootHandleMajor(), c.Minor)
		actions := genActions(c)
		if c.IsDefault() {
			f, ok := genCatchAll(tree, c.Pref, flowID, actions)
			if ok {
				if err := add(c, f); err != nil {
					return nil, err
				}
			}
			continue
		}
		for i := range matches[c.ID] {
			m := &matches[c.ID][i]
			if m.IsEmpty() {
				continue
			}
			f, err := s.genMatchFilter(m, c.Pref, flowID, actions)
			if err != nil {
				return nil, errors.Wrapf(err, "class %d match %s", c.ID, m.Name)
			}
			if err := add(c, f); err != nil {
				return nil, err
			}
		}
	}
	return filters, nil
}

// genCatchAll returns the filter sending unclassified traffic to the default class.
// htb and hfsc use the qdisc default and prio its priomap so they have none.
func genCatchAll(tree *hierarchy.Tree, pref uint16, flowID uint32, actions []tctypes.Action) (tctypes.Filter, bool) {
	switch tree.Type {
	case policy.TypeLimiter:
		fb := tctypes.NewFilterBuilder(tctypes.FilterKindBasic).
			WithProtocol(tctypes.FilterProtocolAll).
			WithPriority(pref).
			WithFlowID(flowID)
		for _, a := range actions {
			fb.WithAction(a)
		}
		return fb.Build(), true
	case policy.TypeRoundRobin:
		return tctypes.NewFilterBuilder(tctypes.FilterKindU32).
			WithProtocol(tctypes.FilterProtocolAll).
			WithPriority(pref).
			WithKey(0, 0, 0).
			WithFlowID(flowID).
			Build(), true
	}
	return nil, false
}

func genActions(c *hierarchy.Class) []tctypes.Action {
	if c.Police == nil {
		return nil
	}
	return []tctypes.Action{tctypes.NewPoliceActionBuilder().
		WithRate(c.Police.Rate, c.Police.Burst).
		WithMTU(c.Police.MTU).
		WithConformExceed(tctypes.PoliceControl(c.Police.Exceed), tctypes.PoliceControl(c.Police.NotExceed)).
		Build()}
}

// convertQueue returns the qdisc of a queue with the provided attributes
func convertQueue(q hierarchy.Queue, attrs *tctypes.QDiscAttrs) (tctypes.QDisc, error) {
	switch queue := q.(type) {
	case *hierarchy.SFQ:
		return &tctypes.SFQQDisc{QDiscAttrs: *attrs, Perturb: queue.Perturb, Limit: queue.Limit}, nil
	case *hierarchy.FQCodel:
		return &tctypes.FQCodelQDisc{
			QDiscAttrs: *attrs,
			Limit:      queue.Limit,
			Flows:      queue.Flows,
			Target:     queue.Target,
			Interval:   queue.Interval,
			Quantum:    queue.Quantum,
		}, nil
	case *hierarchy.PFIFO:
		return &tctypes.PFIFOQDisc{QDiscAttrs: *attrs, Limit: queue.Limit}, nil
	case *hierarchy.Prio:
		return &tctypes.PrioQDisc{QDiscAttrs: *attrs}, nil
	case *hierarchy.RED:
		return &tctypes.REDQDisc{QDiscAttrs: *attrs, REDParams: convertRED(queue)}, nil
	case *hierarchy.GRED:
		dps := make([]tctypes.REDParams, 0, len(queue.DPs))
		for i := range queue.DPs {
			dps = append(dps, convertRED(&queue.DPs[i]))
		}
		return &tctypes.GREDQDisc{QDiscAttrs: *attrs, DPs: dps}, nil
	case *hierarchy.Cake:
		return &tctypes.CakeQDisc{
			QDiscAttrs: *attrs,
			Bandwidth:  queue.Bandwidth,
			RTT:        queue.RTT,
			FlowMode:   queue.FlowMode,
			NAT:        queue.NAT,
		}, nil
	case *hierarchy.Netem:
		return &tctypes.NetemQDisc{
			QDiscAttrs: *attrs,
			Rate:       queue.Rate,
			Delay:      queue.Delay,
			Corrupt:    queue.Corrupt,
			Duplicate:  queue.Duplicate,
			Loss:       queue.Loss,
			Reorder:    queue.Reorder,
			Limit:      queue.Limit,
		}, nil
	case *hierarchy.TBF:
		return &tctypes.TBFQDisc{QDiscAttrs: *attrs, Rate: queue.Rate, Burst: queue.Burst, Latency: queue.Latency}, nil
	}
	return nil, fmt.Errorf("unsupported queue %T", q)
}

func convertRED(r *hierarchy.RED) tctypes.REDParams {
	return tctypes.REDParams{
		Limit:       r.Limit,
		Min:         r.Min,
		Max:         r.Max,
		AvPkt:       r.AvPkt,
		Burst:       r.Burst,
		Probability: r.Probability,
		Bandwidth:   r.Bandwidth,
	}
}
