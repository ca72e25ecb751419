package tc

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// NewActuatorTCImpl creates a new ActuatorTCImpl
func NewActuatorTCImpl(factory Factory, log klog.Logger) *ActuatorTCImpl {
	return &ActuatorTCImpl{factory: factory, log: log}
}

// ActuatorTCImpl is an implementation of Actuator interface using provided TC interface to apply TC objects
type ActuatorTCImpl struct {
	factory Factory
	log     klog.Logger
}

// binding is the TC of a single binding
type binding struct {
	tcAPI     TC
	netDev    string
	direction policy.Direction
}

// Actuate is an implementation of Actuator interface. it applies desired objects on the netdev:
//  1. nothing is done if desired equals previous and the root qdisc is present
//  2. only the changed filter priorities are replaced if the qdiscs and classes are unchanged
//  3. otherwise the root qdisc is replaced and all objects are created again
//
// On failure the previous objects are restored, best effort.
// Note: it assumes all filters are in Chain 0
func (a *ActuatorTCImpl) Actuate(desired, previous *generator.Objects) error {
	root := desired.Root()
	if root == nil {
		return errors.New("objects have no root qdisc")
	}
	b, err := a.binding(desired)
	if err != nil {
		return err
	}
	current, err := b.rootQDisc()
	if err != nil {
		return err
	}
	present := current != nil && sameQDisc(current, root)

	if previous != nil && present {
		if desired.Equals(previous) {
			a.log.V(4).Info("objects unchanged, nothing to do", "interface", b.netDev, "direction", b.direction)
			return nil
		}
		if desired.TreeEquals(previous) {
			a.log.V(4).Info("qdiscs and classes unchanged, updating filters",
				"interface", b.netDev, "direction", b.direction)
			err = a.updateFilters(b, desired, previous)
			if err != nil {
				a.rollback(b, previous)
			}
			return err
		}
	}

	a.log.V(4).Info("replacing root qdisc", "interface", b.netDev, "direction", b.direction, "present", present)
	if err = a.replace(b, desired, current); err != nil && previous != nil {
		a.rollback(b, previous)
	}
	return err
}

// Teardown implements Actuator interface, it deletes the root qdisc of previous if present
func (a *ActuatorTCImpl) Teardown(previous *generator.Objects) error {
	root := previous.Root()
	if root == nil {
		return nil
	}
	b, err := a.binding(previous)
	if err != nil {
		return err
	}
	current, err := b.rootQDisc()
	if err != nil {
		return err
	}
	if current == nil || !sameQDisc(current, root) {
		a.log.V(4).Info("root qdisc not present, nothing to tear down", "interface", b.netDev, "direction", b.direction)
		return nil
	}
	return b.run("qdisc-del", delArgs(b.netDev, current), func() error { return b.tcAPI.QDiscDel(current) })
}

func (a *ActuatorTCImpl) binding(objects *generator.Objects) (*binding, error) {
	tcAPI, err := a.factory(objects.Interface)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get tc of interface %s", objects.Interface)
	}
	return &binding{tcAPI: tcAPI, netDev: objects.Interface, direction: objects.Direction}, nil
}

// replace deletes current, then creates all of desired in order
func (a *ActuatorTCImpl) replace(b *binding, desired *generator.Objects, current types.QDisc) error {
	if current != nil && removable(current) {
		err := b.run("qdisc-del", delArgs(b.netDev, current), func() error { return b.tcAPI.QDiscDel(current) })
		if err != nil {
			return err
		}
	}
	root := desired.Root()
	parent := *root.Attrs().Handle
	for _, op := range desired.Operations() {
		if err := a.apply(b, root, parent, op); err != nil {
			return err
		}
	}
	return nil
}

func (a *ActuatorTCImpl) apply(b *binding, root types.QDisc, parent uint32, op generator.Operation) error {
	args := op.Args(b.netDev, parent)
	switch op.Kind {
	case generator.OpAddQDisc:
		return b.run(string(op.Kind), args, func() error { return b.tcAPI.QDiscAdd(op.QDisc) })
	case generator.OpChangeQDisc:
		return b.run(string(op.Kind), args, func() error { return b.tcAPI.QDiscChange(op.QDisc) })
	case generator.OpAddClass:
		return b.run(string(op.Kind), args, func() error { return b.tcAPI.ClassAdd(op.Class) })
	case generator.OpAddFilter:
		return b.run(string(op.Kind), args, func() error { return b.tcAPI.FilterAdd(root, op.Filter) })
	}
	return errors.Errorf("unknown operation %s", op.Kind)
}

// updateFilters replaces the filter priorities which differ between desired and previous.
// When no filter remains chain 0 is flushed.
func (a *ActuatorTCImpl) updateFilters(b *binding, desired, previous *generator.Objects) error {
	root := desired.Root()
	parent := *root.Attrs().Handle

	if len(desired.Filters) == 0 {
		chains, err := b.tcAPI.ChainList(root)
		if err != nil {
			return &ApplyError{Interface: b.netDev, Direction: b.direction, Op: "chain list", Err: err}
		}
		for _, c := range chains {
			if c.Attrs().Chain != nil && *c.Attrs().Chain == types.ChainDefaultChain {
				chain := types.NewChainBuilder().WithParent(parent).WithChain(types.ChainDefaultChain).Build()
				args := append([]string{"chain", "del", "dev", b.netDev}, chain.GenCmdLineArgs()...)
				return b.run("chain-del", args, func() error { return b.tcAPI.ChainDel(root, chain) })
			}
		}
		return nil
	}

	prevGroups := GroupFiltersByPref(previous.Filters)
	newGroups := GroupFiltersByPref(desired.Filters)
	changed := sets.New(newGroups.Changed(prevGroups)...)
	for _, pref := range sets.List(changed) {
		prev := prevGroups[pref]
		a.log.V(4).Info("filter priority changed", "interface", b.netDev, "pref", pref,
			"previous", len(prev), "desired", len(newGroups[pref]))
		if len(prev) == 0 {
			continue
		}
		first := prev[0].Attrs()
		p := pref
		attrs := types.NewFilterAttrs(first.Kind, first.Protocol, nil, nil, &p)
		args := append([]string{"filter", "del", "dev", b.netDev, "parent", types.FormatHandle(parent)},
			attrs.GenCmdLineArgs()...)
		if err := b.run("del-filter", args, func() error { return b.tcAPI.FilterDel(root, attrs) }); err != nil {
			return err
		}
	}

	for _, f := range desired.Filters {
		if !changed.Has(*f.Attrs().Priority) {
			continue
		}
		op := generator.Operation{Kind: generator.OpAddFilter, Filter: f}
		if err := a.apply(b, root, parent, op); err != nil {
			return err
		}
	}
	return nil
}

// rollback restores previous after a failure, errors are only logged
func (a *ActuatorTCImpl) rollback(b *binding, previous *generator.Objects) {
	RollbacksTotal.Inc()
	current, err := b.rootQDisc()
	if err == nil {
		err = a.replace(b, previous, current)
	}
	if err != nil {
		a.log.Error(err, "failed to restore previous objects", "interface", b.netDev, "direction", b.direction)
		return
	}
	a.log.V(4).Info("restored previous objects", "interface", b.netDev, "direction", b.direction)
}

// rootQDisc returns the qdisc attached to the root of the binding direction, nil if there is none
func (b *binding) rootQDisc() (types.QDisc, error) {
	qdiscs, err := b.tcAPI.QDiscList()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list qdiscs of interface %s", b.netDev)
	}
	for _, q := range qdiscs {
		attrs := q.Attrs()
		if attrs.Parent == nil {
			continue
		}
		if b.direction == policy.DirectionIngress && *attrs.Parent == types.HandleIngress {
			return q, nil
		}
		if b.direction != policy.DirectionIngress && *attrs.Parent == types.HandleRoot {
			return q, nil
		}
	}
	return nil, nil
}

// run executes a single tc call, wrapping its error into an ApplyError
func (b *binding) run(op string, args []string, call func() error) error {
	err := call()
	observeOp(op, err)
	if err != nil {
		return &ApplyError{
			Interface: b.netDev,
			Direction: b.direction,
			Op:        "tc " + strings.Join(args, " "),
			Err:       err,
		}
	}
	return nil
}

func delArgs(netDev string, q types.QDisc) []string {
	return append([]string{"qdisc", "del", "dev", netDev}, q.Attrs().GenCmdLineArgs()...)
}

// removable returns false for the kernel default root qdisc which has no handle
func removable(q types.QDisc) bool {
	return q.Type() == types.QDiscIngressType || (q.Attrs().Handle != nil && *q.Attrs().Handle != 0)
}

// sameQDisc returns true if the listed qdisc q is the root qdisc created for root
func sameQDisc(q, root types.QDisc) bool {
	if q.Type() != root.Type() {
		return false
	}
	h, rh := q.Attrs().Handle, root.Attrs().Handle
	return h != nil && rh != nil && *h == *rh
}
