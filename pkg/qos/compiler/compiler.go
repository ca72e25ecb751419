// Package compiler turns a raw qos configuration into the tc objects of every interface binding.
package compiler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/hierarchy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/matchgroup"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/utils"
)

// LinkSpeedFunc returns the speed of netDev in bits/s, 0 if unknown
type LinkSpeedFunc func(netDev string) (uint64, error)

// Result is the outcome of a compilation pass
type Result struct {
	// Pass identifies the compilation pass
	Pass string
	// Objects are the tc objects of every binding, sorted by interface and direction
	Objects []*generator.Objects
	// Warnings are the match group resolution problems of all classful policies
	Warnings []matchgroup.Warning
}

// Compiler is an interface used to compile a qos configuration
type Compiler interface {
	// Compile validates cfg and generates the tc objects of its bindings. A *policy.ValidationError
	// is returned as is, nothing is generated in that case.
	Compile(cfg *config.QoS) (*Result, error)
}

// NewCompilerImpl creates a new CompilerImpl. linkSpeed may be nil, defaultSpeed in bits/s is used
// for "auto" bandwidths when the link speed is unknown.
func NewCompilerImpl(gen generator.Generator, linkSpeed LinkSpeedFunc, defaultSpeed uint64,
	log klog.Logger) *CompilerImpl {
	return &CompilerImpl{
		gen:          gen,
		linkSpeed:    linkSpeed,
		defaultSpeed: defaultSpeed,
		log:          log,
	}
}

// CompilerImpl implements Compiler interface
type CompilerImpl struct {
	gen          generator.Generator
	linkSpeed    LinkSpeedFunc
	defaultSpeed uint64
	log          klog.Logger
}

// pass holds the state of a single compilation
type pass struct {
	id       string
	resolved map[string]generator.ResolvedMatches
	speeds   map[string]uint64
	warnings []matchgroup.Warning
}

// Compile implements Compiler interface
func (c *CompilerImpl) Compile(cfg *config.QoS) (res *Result, err error) {
	start := time.Now()
	defer func() {
		observePass(start, res, err)
	}()

	set, err := policy.Validate(cfg)
	if err != nil {
		return nil, err
	}

	p := &pass{
		id:       uuid.NewString(),
		resolved: make(map[string]generator.ResolvedMatches),
		speeds:   make(map[string]uint64),
	}
	log := c.log.WithValues("pass", p.id)

	resolver := matchgroup.NewResolverImpl(set.MatchGroups, log.WithName("match-group-resolver"))
	for _, name := range utils.SortedKeys(set.Policies) {
		if cp, ok := set.Policies[name].(policy.Classful); ok {
			p.resolved[name] = p.resolve(resolver, cp)
		}
	}
	for _, w := range p.warnings {
		log.Info("match group warning", "warning", w.String())
	}

	var errs []error
	objects := make([]*generator.Objects, 0, len(set.Bindings))
	for _, b := range set.Bindings {
		objs, err := c.compileBinding(p, b)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "interface %s %s", b.Interface, b.Direction))
			continue
		}
		log.V(4).Info("binding compiled", "interface", b.Interface, "direction", b.Direction,
			"policy", b.Policy.Name(), "operations", len(objs.Operations()))
		objects = append(objects, objs)
	}
	if len(errs) > 0 {
		return nil, utilerrors.NewAggregate(errs)
	}

	return &Result{Pass: p.id, Objects: objects, Warnings: p.warnings}, nil
}

func (c *CompilerImpl) compileBinding(p *pass, b policy.Binding) (*generator.Objects, error) {
	tree, err := hierarchy.Build(b.Policy, c.speedOf(p, b.Interface))
	if err != nil {
		return nil, err
	}
	objs, err := c.gen.Generate(tree, p.resolved[b.Policy.Name()])
	if err != nil {
		return nil, err
	}
	objs.Interface = b.Interface
	objs.Direction = b.Direction
	objs.Policy = b.Policy.Name()
	objs.Pass = p.id
	return objs, nil
}

// speedOf returns the link speed of netDev, queried once per pass
func (c *CompilerImpl) speedOf(p *pass, netDev string) uint64 {
	if s, ok := p.speeds[netDev]; ok {
		return s
	}
	speed := c.defaultSpeed
	if c.linkSpeed != nil {
		s, err := c.linkSpeed(netDev)
		switch {
		case err != nil:
			c.log.Error(err, "failed to get link speed, using default", "interface", netDev,
				"default", speed)
		case s == 0:
			c.log.V(4).Info("link speed unknown, using default", "interface", netDev, "default", speed)
		default:
			speed = s
		}
	}
	p.speeds[netDev] = speed
	return speed
}

func (p *pass) resolve(r matchgroup.Resolver, cp policy.Classful) generator.ResolvedMatches {
	classes := cp.NumberedClasses()
	if def := cp.DefaultClass(); def != nil {
		classes = append(classes, def)
	}
	matches := make(generator.ResolvedMatches, len(classes))
	for _, cl := range classes {
		base := cl.Base()
		owner := fmt.Sprintf("%s policy %s class %d", cp.Type(), cp.Name(), base.ID)
		if base.IsDefault() {
			owner = fmt.Sprintf("%s policy %s class default", cp.Type(), cp.Name())
		}
		resolved, warnings := r.Resolve(owner, base.Matches, base.MatchGroups)
		matches[base.ID] = resolved
		p.warnings = append(p.warnings, warnings...)
	}
	return matches
}
