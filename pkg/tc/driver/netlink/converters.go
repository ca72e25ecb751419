package netlink

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

/*
Helpers (for converters below)
*/

// u32ValFromPtr returns defaultVal if p is nil, else returns the value of p
func u32ValFromPtr(p *uint32, defaultVal uint32) uint32 {
	var v = defaultVal

	if p != nil {
		v = *p
	}
	return v
}

// u16ValFromPtr returns defaultVal if p is nil, else returns the value of p
func u16ValFromPtr(p *uint16, defaultVal uint16) uint16 {
	var v = defaultVal

	if p != nil {
		v = *p
	}
	return v
}

// unsupported is the error of objects the netlink driver can not express
func unsupported(what string, kind any) error {
	return fmt.Errorf("unsupported %s for netlink driver: %v", what, kind)
}

// bitsToBytes converts a rate in bits/s to bytes/s
func bitsToBytes(rate uint64) uint64 {
	return rate / 8
}

// toU32 returns v if it fits a uint32
func toU32(what string, v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%s %d out of range for netlink driver", what, v)
	}
	return uint32(v), nil
}

// filterProtoToUnixProto converts FilterProtocol to unix protocol
func filterProtoToUnixProto(protocol types.FilterProtocol) (uint16, error) {
	switch strings.ToLower(string(protocol)) {
	case string(types.FilterProtocolIPv4):
		return unix.ETH_P_IP, nil
	case string(types.FilterProtocolIPv6):
		return unix.ETH_P_IPV6, nil
	case strings.ToLower(string(types.FilterProtocol8021Q)):
		return unix.ETH_P_8021Q, nil
	case "802.1ad":
		return unix.ETH_P_8021AD, nil
	case "arp":
		return unix.ETH_P_ARP, nil
	case string(types.FilterProtocolAll), "":
		return unix.ETH_P_ALL, nil
	}
	p, err := strconv.ParseUint(string(protocol), 0, 16)
	if err != nil {
		return 0, unsupported("filter protocol", protocol)
	}
	return uint16(p), nil
}

// policeControlToNlPolAct converts PoliceControl to netlink TcPolAct
func policeControlToNlPolAct(control types.PoliceControl) (netlink.TcPolAct, error) {
	switch control {
	case types.PoliceControlDrop:
		return netlink.TC_POLICE_SHOT, nil
	case types.PoliceControlOK:
		return netlink.TC_POLICE_OK, nil
	case types.PoliceControlPipe:
		return netlink.TC_POLICE_PIPE, nil
	case types.PoliceControlReclassify:
		return netlink.TC_POLICE_RECLASSIFY, nil
	case types.PoliceControlContinue:
		return netlink.TC_POLICE_UNSPEC, nil
	}
	return 0, unsupported("police control action", control)
}

/*
Converters
*/

func nlQdiscAttrs(qd types.QDisc, linkIdx int) netlink.QdiscAttrs {
	return netlink.QdiscAttrs{
		LinkIndex: linkIdx,
		Handle:    u32ValFromPtr(qd.Attrs().Handle, 0),
		Parent:    u32ValFromPtr(qd.Attrs().Parent, netlink.HANDLE_ROOT),
	}
}

// qdiscToNlQdisc converts Qdisc to netlink Qdisc
func qdiscToNlQdisc(qd types.QDisc, linkIdx int) (netlink.Qdisc, error) {
	attrs := nlQdiscAttrs(qd, linkIdx)

	switch q := qd.(type) {
	case *types.HTBQDisc:
		htb := netlink.NewHtb(attrs)
		htb.Defcls = uint32(q.Default)
		return htb, nil
	case *types.HFSCQDisc:
		hfsc := netlink.NewHfsc(attrs)
		hfsc.Defcls = q.Default
		return hfsc, nil
	case *types.PrioQDisc:
		prio := netlink.NewPrio(attrs)
		if q.Bands != 0 {
			prio.Bands = q.Bands
		}
		if len(q.PrioMap) > 0 {
			copy(prio.PriorityMap[:], q.PrioMap)
		}
		return prio, nil
	case *types.SFQQDisc:
		sfq := &netlink.Sfq{QdiscAttrs: attrs, Limit: u32ValFromPtr(q.Limit, 0)}
		if q.Perturb != nil {
			if *q.Perturb > math.MaxUint8 {
				return nil, fmt.Errorf("sfq perturb %d out of range for netlink driver", *q.Perturb)
			}
			sfq.Perturb = uint8(*q.Perturb)
		}
		return sfq, nil
	case *types.FQCodelQDisc:
		fq := netlink.NewFqCodel(attrs)
		fq.Limit = u32ValFromPtr(q.Limit, 0)
		fq.Flows = u32ValFromPtr(q.Flows, 0)
		fq.Target = units.TargetFigure(u32ValFromPtr(q.Target, 0))
		fq.Interval = u32ValFromPtr(q.Interval, 0)
		fq.Quantum = u32ValFromPtr(q.Quantum, 0)
		return fq, nil
	case *types.TBFQDisc:
		rate := bitsToBytes(q.Rate)
		// tc derives the byte limit from the latency
		limit, err := toU32("tbf limit", rate*uint64(q.Latency)/1000000+uint64(q.Burst))
		if err != nil {
			return nil, err
		}
		return &netlink.Tbf{
			QdiscAttrs: attrs,
			Rate:       rate,
			Limit:      limit,
			Buffer:     netlink.Xmittime(rate, q.Burst),
		}, nil
	case *types.NetemQDisc:
		if q.Rate != 0 {
			return nil, unsupported("netem option", "rate")
		}
		f32 := func(v *float64) float32 {
			if v == nil {
				return 0
			}
			return float32(*v)
		}
		return netlink.NewNetem(attrs, netlink.NetemQdiscAttrs{
			Latency:     u32ValFromPtr(q.Delay, 0),
			Limit:       u32ValFromPtr(q.Limit, 0),
			Loss:        f32(q.Loss),
			Duplicate:   f32(q.Duplicate),
			ReorderProb: f32(q.Reorder),
			CorruptProb: f32(q.Corrupt),
		}), nil
	case *types.PFIFOQDisc:
		if q.Limit != nil {
			return nil, unsupported("pfifo option", "limit")
		}
		return &netlink.GenericQdisc{QdiscAttrs: attrs, QdiscType: string(q.Type())}, nil
	case *types.GenericQDisc:
		switch q.Type() {
		case types.QDiscIngressType:
			// the ingress qdisc has no parent handle of its own
			attrs.Parent = netlink.HANDLE_INGRESS
			return &netlink.Ingress{QdiscAttrs: attrs}, nil
		case types.QDiscDRRType:
			return &netlink.GenericQdisc{QdiscAttrs: attrs, QdiscType: string(q.Type())}, nil
		}
	}
	return nil, unsupported("qdisc type", qd.Type())
}

// nlQdiscToQdisc converts netlink Qdisc to QDisc, options are not kept
func nlQdiscToQdisc(qd netlink.Qdisc) types.QDisc {
	attrs := types.NewQDiscAttrsBuilder().
		WithParent(qd.Attrs().Parent).
		WithHandle(qd.Attrs().Handle).Build()
	return types.NewGenericQdisc(attrs, types.QDiscType(qd.Type()))
}

// classToNlClass converts Class to netlink Class
func classToNlClass(class types.Class, linkIdx int) (netlink.Class, error) {
	attrs := netlink.ClassAttrs{
		LinkIndex: linkIdx,
		Parent:    class.Attrs().Parent,
		Handle:    class.Attrs().ClassID,
	}

	switch c := class.(type) {
	case *types.HTBClass:
		return netlink.NewHtbClass(attrs, netlink.HtbClassAttrs{
			Rate:    c.Rate,
			Ceil:    c.Ceil,
			Buffer:  u32ValFromPtr(c.Burst, 0),
			Prio:    u32ValFromPtr(c.Prio, 0),
			Quantum: u32ValFromPtr(c.Quantum, 0),
		}), nil
	case *types.HFSCClass:
		hfsc := netlink.NewHfscClass(attrs)
		curves := []struct {
			curve *types.ServiceCurve
			set   []func(m1, d, m2 uint32)
		}{
			{c.SC, []func(m1, d, m2 uint32){hfsc.SetRsc, hfsc.SetFsc}},
			{c.Realtime, []func(m1, d, m2 uint32){hfsc.SetRsc}},
			{c.Linkshare, []func(m1, d, m2 uint32){hfsc.SetFsc}},
			{c.Upperlimit, []func(m1, d, m2 uint32){hfsc.SetUsc}},
		}
		for _, sc := range curves {
			if sc.curve == nil {
				continue
			}
			m1, err := toU32("hfsc m1", sc.curve.M1)
			if err != nil {
				return nil, err
			}
			m2, err := toU32("hfsc m2", sc.curve.M2)
			if err != nil {
				return nil, err
			}
			// the delay is in milliseconds
			for _, set := range sc.set {
				set(m1, sc.curve.D/1000, m2)
			}
		}
		return hfsc, nil
	case *types.DRRClass:
		if c.Quantum != nil {
			return nil, unsupported("drr class option", "quantum")
		}
		return &netlink.GenericClass{ClassAttrs: attrs, ClassType: string(c.Type())}, nil
	}
	return nil, unsupported("class type", class.Type())
}

func nlFilterAttrs(attrs *types.FilterAttrs, parent uint32, linkIdx int) (netlink.FilterAttrs, error) {
	proto, err := filterProtoToUnixProto(attrs.Protocol)
	if err != nil {
		return netlink.FilterAttrs{}, err
	}
	// ATM Generators dont utilize chains in filters and rely on default chain being 0
	return netlink.FilterAttrs{
		LinkIndex: linkIdx,
		Handle:    u32ValFromPtr(attrs.Handle, 0),
		Parent:    parent,
		Chain:     attrs.Chain,
		Priority:  u16ValFromPtr(attrs.Priority, 0),
		Protocol:  proto,
	}, nil
}

// actionsToNlActions converts filter actions to netlink actions
func actionsToNlActions(actions []types.Action) ([]netlink.Action, error) {
	var nlActions []netlink.Action
	for _, act := range actions {
		police, ok := act.(*types.PoliceAction)
		if !ok {
			return nil, unsupported("action type", act.Type())
		}
		rate, err := toU32("police rate", bitsToBytes(police.Rate))
		if err != nil {
			return nil, err
		}
		exceed, err := policeControlToNlPolAct(police.Exceed)
		if err != nil {
			return nil, err
		}
		notExceed, err := policeControlToNlPolAct(police.NotExceed)
		if err != nil {
			return nil, err
		}
		nlPolice := netlink.NewPoliceAction()
		nlPolice.Rate = rate
		nlPolice.Burst = police.Burst
		nlPolice.Mtu = police.MTU
		nlPolice.ExceedAction = exceed
		nlPolice.NotExceedAction = notExceed
		nlActions = append(nlActions, nlPolice)
	}
	return nlActions, nil
}

// filterToNlFilter converts Filter to netlink Filter attached to parent
func filterToNlFilter(filter types.Filter, parent uint32, linkIdx int) (netlink.Filter, error) {
	attrs, err := nlFilterAttrs(filter.Attrs(), parent, linkIdx)
	if err != nil {
		return nil, err
	}

	switch f := filter.(type) {
	case *types.U32Filter:
		actions, err := actionsToNlActions(f.Actions)
		if err != nil {
			return nil, err
		}
		keys := f.Keys
		if len(keys) == 0 {
			// match all
			keys = []types.U32Key{{}}
		}
		sel := &netlink.TcU32Sel{Nkeys: uint8(len(keys))}
		for _, k := range keys {
			sel.Keys = append(sel.Keys, netlink.TcU32Key{Val: k.Val, Mask: k.Mask, Off: k.Off})
		}
		u32 := &netlink.U32{FilterAttrs: attrs, Sel: sel, Actions: actions}
		if f.FlowID != nil {
			u32.ClassId = *f.FlowID
			sel.Flags |= nl.TC_U32_TERMINAL
		}
		return u32, nil
	case *types.FwFilter:
		actions, err := actionsToNlActions(f.Actions)
		if err != nil {
			return nil, err
		}
		return &netlink.FwFilter{
			FilterAttrs: attrs,
			ClassId:     u32ValFromPtr(f.FlowID, 0),
			Mask:        math.MaxUint32,
			Actions:     actions,
		}, nil
	}
	return nil, unsupported("filter kind", filter.Attrs().Kind)
}

// filterAttrsToNlFilter converts FilterAttrs to a netlink Filter identifying the filters to delete
func filterAttrsToNlFilter(filterAttr *types.FilterAttrs, parent uint32, linkIdx int) (netlink.Filter, error) {
	attrs, err := nlFilterAttrs(filterAttr, parent, linkIdx)
	if err != nil {
		return nil, err
	}
	return &netlink.GenericFilter{FilterAttrs: attrs, FilterType: string(filterAttr.Kind)}, nil
}

// chainToNlChain converts Chain to netlink Chain
func chainToNlChain(chain types.Chain, parent uint32) netlink.Chain {
	return netlink.Chain{
		Parent: parent,
		Chain:  uint32(u16ValFromPtr(chain.Attrs().Chain, 0)),
	}
}

// nlChainToChain converts netlink Chain to Chain
func nlChainToChain(chain *netlink.Chain) types.Chain {
	return types.NewChainBuilder().
		WithParent(chain.Parent).
		WithChain(uint16(chain.Chain)).Build()
}
