// Package matchgroup flattens the traffic-match-group inclusion graph into the predicate
// set of a single class.
package matchgroup

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
)

// WarningKind is the kind of a non fatal resolution problem
type WarningKind string

const (
	// WarningCycle is reported when a group is reached again on its own inclusion path
	WarningCycle WarningKind = "cycle"
	// WarningDangling is reported when a referenced group does not exist
	WarningDangling WarningKind = "dangling"
)

// Warning is a non fatal resolution problem. The resolved predicates exclude the
// contribution of the offending reference.
type Warning struct {
	Kind WarningKind
	// Group is the referenced group name
	Group string
	// Owner identifies the class or group the resolution was done for
	Owner string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarningCycle:
		return fmt.Sprintf("%s: traffic-match-group %s is already on the inclusion path, ignoring the cyclic reference", w.Owner, w.Group)
	case WarningDangling:
		return fmt.Sprintf("%s: traffic-match-group %s does not exist", w.Owner, w.Group)
	}
	return fmt.Sprintf("%s: %s traffic-match-group %s", w.Owner, w.Kind, w.Group)
}

// Resolver is an interface used to resolve the match set of a class
type Resolver interface {
	// Resolve returns the flattened, deduplicated predicates of local followed by the
	// predicates of each group in groups. owner identifies the requester in warnings.
	Resolve(owner string, local []policy.Match, groups []string) ([]policy.Match, []Warning)
	// ResolveGroup returns the flattened predicates of the named group
	ResolveGroup(name string) ([]policy.Match, []Warning)
}

// ResolverImpl implements Resolver interface over a set of validated match groups
type ResolverImpl struct {
	groups map[string]*policy.MatchGroup
	log    klog.Logger
}

// NewResolverImpl creates a new instance of ResolverImpl
func NewResolverImpl(groups map[string]*policy.MatchGroup, log klog.Logger) *ResolverImpl {
	return &ResolverImpl{groups: groups, log: log}
}

// resolution holds the state of a single Resolve call
type resolution struct {
	owner    string
	out      []policy.Match
	seen     map[string]struct{}
	warnings []Warning
	warned   map[Warning]struct{}
	// path holds the groups on the current inclusion path
	path map[string]struct{}
}

// Resolve implements Resolver interface
func (r *ResolverImpl) Resolve(owner string, local []policy.Match, groups []string) ([]policy.Match, []Warning) {
	res := &resolution{
		owner:  owner,
		out:    []policy.Match{},
		seen:   make(map[string]struct{}),
		warned: make(map[Warning]struct{}),
		path:   make(map[string]struct{}),
	}
	res.add(local)
	for _, g := range groups {
		r.visit(res, g)
	}
	r.log.V(5).Info("match set resolved", "owner", owner, "matches", len(res.out), "warnings", len(res.warnings))
	return res.out, res.warnings
}

// ResolveGroup implements Resolver interface
func (r *ResolverImpl) ResolveGroup(name string) ([]policy.Match, []Warning) {
	return r.Resolve("traffic-match-group "+name, nil, []string{name})
}

func (r *ResolverImpl) visit(res *resolution, name string) {
	if _, onPath := res.path[name]; onPath {
		res.warn(WarningCycle, name)
		return
	}
	g, ok := r.groups[name]
	if !ok {
		res.warn(WarningDangling, name)
		return
	}

	res.path[name] = struct{}{}
	defer delete(res.path, name)

	r.log.V(8).Info("expanding traffic-match-group", "owner", res.owner, "group", name)
	res.add(g.Matches)
	for _, inc := range g.MatchGroups {
		r.visit(res, inc)
	}
}

// add appends the predicates not seen so far, matches without a predicate are skipped
func (res *resolution) add(matches []policy.Match) {
	for i := range matches {
		m := matches[i]
		if m.IsEmpty() {
			continue
		}
		key := m.Key()
		if _, dup := res.seen[key]; dup {
			continue
		}
		res.seen[key] = struct{}{}
		res.out = append(res.out, m)
	}
}

func (res *resolution) warn(kind WarningKind, group string) {
	w := Warning{Kind: kind, Group: group, Owner: res.owner}
	if _, dup := res.warned[w]; dup {
		return
	}
	res.warned[w] = struct{}{}
	res.warnings = append(res.warnings, w)
}
