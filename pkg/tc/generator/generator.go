package generator

import (
	"strings"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/hierarchy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	tctypes "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// Objects is a struct containing the TC objects of a single interface binding
type Objects struct {
	// Interface is the name of the bound interface
	Interface string
	// Direction is the direction of the binding
	Direction policy.Direction
	// Policy is the name of the bound policy
	Policy string
	// Pass is the id of the compilation pass which generated the objects
	Pass string
	// QDiscs are the qdiscs to create, the root qdisc first then the leaf qdiscs
	QDiscs []tctypes.QDisc
	// Classes are the classes to create, parents before children
	Classes []tctypes.Class
	// Filters are the TC filters attached to the root qdisc, sorted by priority
	Filters []tctypes.Filter
}

// Root returns the root qdisc, nil if there is none
func (o *Objects) Root() tctypes.QDisc {
	if len(o.QDiscs) == 0 {
		return nil
	}
	return o.QDiscs[0]
}

// ResolvedMatches maps a class id to the resolved matches of the class
type ResolvedMatches map[uint16][]policy.Match

// Generator is an interface to generate Objects from a class hierarchy
type Generator interface {
	// Generate creates Objects that correspond to the provided tree
	Generate(tree *hierarchy.Tree, matches ResolvedMatches) (*Objects, error)
}

// OpKind is the kind of an Operation
type OpKind string

const (
	OpAddQDisc    OpKind = "add-qdisc"
	OpChangeQDisc OpKind = "change-qdisc"
	OpAddClass    OpKind = "add-class"
	OpAddFilter   OpKind = "add-filter"
)

// Operation is a single tc operation. Exactly one of QDisc, Class and Filter is set.
type Operation struct {
	Kind   OpKind
	QDisc  tctypes.QDisc
	Class  tctypes.Class
	Filter tctypes.Filter
}

// Operations returns the operations creating the objects in order: the root qdisc, the
// classes, the leaf qdiscs then the filters. A leaf qdisc needs its parent class.
func (o *Objects) Operations() []Operation {
	ops := make([]Operation, 0, len(o.QDiscs)+len(o.Classes)+len(o.Filters))
	addQDisc := func(q tctypes.QDisc) {
		ops = append(ops, Operation{Kind: OpAddQDisc, QDisc: q})
		if gred, ok := q.(*tctypes.GREDQDisc); ok {
			for _, vq := range gred.VirtualQueues() {
				ops = append(ops, Operation{Kind: OpChangeQDisc, QDisc: vq})
			}
		}
	}
	if root := o.Root(); root != nil {
		addQDisc(root)
	}
	for _, c := range o.Classes {
		ops = append(ops, Operation{Kind: OpAddClass, Class: c})
	}
	for i := 1; i < len(o.QDiscs); i++ {
		addQDisc(o.QDiscs[i])
	}
	for _, f := range o.Filters {
		ops = append(ops, Operation{Kind: OpAddFilter, Filter: f})
	}
	return ops
}

// Args returns the tc arguments of the operation on dev. Filters are attached to parent.
func (op *Operation) Args(dev string, parent uint32) []string {
	var args []string
	switch op.Kind {
	case OpAddQDisc:
		args = append([]string{"qdisc", "add", "dev", dev}, op.QDisc.GenCmdLineArgs()...)
	case OpChangeQDisc:
		args = append([]string{"qdisc", "change", "dev", dev}, op.QDisc.GenCmdLineArgs()...)
	case OpAddClass:
		args = append([]string{"class", "add", "dev", dev}, op.Class.GenCmdLineArgs()...)
	case OpAddFilter:
		args = append([]string{"filter", "add", "dev", dev, "parent", tctypes.FormatHandle(parent)},
			op.Filter.GenCmdLineArgs()...)
	}
	return args
}

// Render returns the tc command lines creating the objects
func (o *Objects) Render() []string {
	root := o.Root()
	if root == nil {
		return nil
	}
	parent := *root.Attrs().Handle
	lines := []string{}
	for _, op := range o.Operations() {
		args := op.Args(o.Interface, parent)
		for i := range args {
			if strings.ContainsAny(args[i], " ()") {
				args[i] = "'" + args[i] + "'"
			}
		}
		lines = append(lines, "tc "+strings.Join(args, " "))
	}
	return lines
}

// Equals returns true if o and other create the same objects on the same binding
func (o *Objects) Equals(other *Objects) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.Interface != other.Interface || o.Direction != other.Direction {
		return false
	}
	return o.TreeEquals(other) && FiltersEqual(o.Filters, other.Filters)
}

// TreeEquals returns true if o and other have the same qdiscs and classes
func (o *Objects) TreeEquals(other *Objects) bool {
	if len(o.QDiscs) != len(other.QDiscs) || len(o.Classes) != len(other.Classes) {
		return false
	}
	for i := range o.QDiscs {
		if !o.QDiscs[i].Equals(other.QDiscs[i]) {
			return false
		}
	}
	for i := range o.Classes {
		if !o.Classes[i].Equals(other.Classes[i]) {
			return false
		}
	}
	return true
}

// FiltersEqual compares two ordered filter lists
func FiltersEqual(a, b []tctypes.Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
