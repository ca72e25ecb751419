package policy

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/utils"
)

const (
	defaultBurst       = "15k"
	defaultCakeRTT     = "100"
	defaultLatency     = "50"
	defaultLimiterPrio = 20
	maxClassID         = 4095
	maxPriorityBands   = 7
	maxHTBPrio         = 7
	maxVlanID          = 4095
)

// cake flow isolation keywords and their tc flow mode
var cakeFlowModes = map[string]string{
	"blind":          "blind",
	"src-host":       "srchost",
	"dst-host":       "dsthost",
	"dual-src-host":  "dual-srchost",
	"dual-dst-host":  "dual-dsthost",
	"triple-isolate": "triple-isolate",
	"flow":           "flows",
	"host":           "hosts",
}

// Set is a validated QoS configuration
type Set struct {
	// Policies by name
	Policies map[string]Policy
	// Bindings sorted by interface and direction
	Bindings []Binding
	// MatchGroups by name
	MatchGroups map[string]*MatchGroup
}

// Binding binds a policy to an interface direction
type Binding struct {
	Interface string
	Direction Direction
	Policy    Policy
}

// MatchGroup is a validated traffic match group
type MatchGroup struct {
	Name        string
	Description string
	// Matches sorted by name
	Matches []Match
	// MatchGroups are the included groups in configuration order
	MatchGroups []string
}

// scope locates a value in the configuration for error reporting
type scope struct {
	typ    Type
	policy string
	class  string
	group  string
	iface  string
}

func (s scope) withClass(c string) scope {
	s.class = c
	return s
}

type validator struct {
	errs []*FieldError
}

// Validate converts the raw configuration tree into typed policies and bindings.
// All failures are collected and returned as a single *ValidationError.
func Validate(cfg *config.QoS) (*Set, error) {
	v := &validator{}
	set := &Set{
		Policies:    make(map[string]Policy),
		MatchGroups: make(map[string]*MatchGroup),
	}
	if cfg == nil {
		return set, nil
	}

	add := func(p Policy) {
		if other, ok := set.Policies[p.Name()]; ok {
			v.fail(scope{typ: p.Type(), policy: p.Name()}, "",
				"name is already used by %s policy %s", other.Type(), other.Name())
			return
		}
		set.Policies[p.Name()] = p
	}

	pol := &cfg.Policy
	for _, name := range utils.SortedKeys(pol.Cake) {
		add(v.cake(name, pol.Cake[name]))
	}
	for _, name := range utils.SortedKeys(pol.DropTail) {
		add(v.dropTail(name, pol.DropTail[name]))
	}
	for _, name := range utils.SortedKeys(pol.FairQueue) {
		add(v.fairQueue(name, pol.FairQueue[name]))
	}
	for _, name := range utils.SortedKeys(pol.FQCodel) {
		add(v.fqCodel(name, pol.FQCodel[name]))
	}
	for _, name := range utils.SortedKeys(pol.Limiter) {
		add(v.limiter(name, pol.Limiter[name]))
	}
	for _, name := range utils.SortedKeys(pol.NetworkEmulator) {
		add(v.networkEmulator(name, pol.NetworkEmulator[name]))
	}
	for _, name := range utils.SortedKeys(pol.PriorityQueue) {
		add(v.priorityQueue(name, pol.PriorityQueue[name]))
	}
	for _, name := range utils.SortedKeys(pol.RandomDetect) {
		add(v.randomDetect(name, pol.RandomDetect[name]))
	}
	for _, name := range utils.SortedKeys(pol.RateControl) {
		add(v.rateControl(name, pol.RateControl[name]))
	}
	for _, name := range utils.SortedKeys(pol.RoundRobin) {
		add(v.roundRobin(name, pol.RoundRobin[name]))
	}
	for _, name := range utils.SortedKeys(pol.Shaper) {
		add(v.shaper(name, pol.Shaper[name]))
	}
	for _, name := range utils.SortedKeys(pol.ShaperHFSC) {
		add(v.shaperHFSC(name, pol.ShaperHFSC[name]))
	}

	for _, name := range utils.SortedKeys(cfg.TrafficMatchGroup) {
		raw := cfg.TrafficMatchGroup[name]
		if raw == nil {
			raw = &config.MatchGroup{}
		}
		s := scope{group: name}
		set.MatchGroups[name] = &MatchGroup{
			Name:        name,
			Description: raw.Description,
			Matches:     v.matches(s, raw.Match),
			MatchGroups: append([]string(nil), raw.MatchGroup...),
		}
	}

	for _, iface := range utils.SortedKeys(cfg.Interface) {
		b := cfg.Interface[iface]
		if b == nil {
			continue
		}
		v.bind(set, iface, DirectionEgress, b.Egress)
		v.bind(set, iface, DirectionIngress, b.Ingress)
	}

	if len(v.errs) > 0 {
		return nil, &ValidationError{Errors: v.errs}
	}
	return set, nil
}

func (v *validator) bind(set *Set, iface string, dir Direction, name string) {
	if name == "" {
		return
	}
	s := scope{iface: iface}
	p, ok := set.Policies[name]
	if !ok {
		v.fail(s, string(dir), "policy %s does not exist", name)
		return
	}
	if p.Direction() != dir {
		v.fail(s, string(dir), "%s policy %s on interface %s only supports %s", p.Type(), name, iface, p.Direction())
		return
	}
	set.Bindings = append(set.Bindings, Binding{Interface: iface, Direction: dir, Policy: p})
}

func (v *validator) fail(s scope, field, format string, args ...interface{}) {
	v.errs = append(v.errs, &FieldError{
		Type:       s.typ,
		Policy:     s.policy,
		Class:      s.class,
		MatchGroup: s.group,
		Interface:  s.iface,
		Field:      field,
		Message:    fmt.Sprintf(format, args...),
	})
}

func (v *validator) failErr(s scope, field string, err error) {
	v.fail(s, field, "%s", err.Error())
}

// rate parses a mandatory rate when def is empty
func (v *validator) rate(s scope, field, val, def string) units.Rate {
	if val == "" {
		if def == "" {
			v.fail(s, field, "bandwidth not defined")
			return units.Rate{}
		}
		val = def
	}
	r, err := units.ParseRate(val)
	if err != nil {
		v.failErr(s, field, err)
	}
	return r
}

func (v *validator) optRate(s scope, field, val string) units.Rate {
	if val == "" {
		return units.Rate{}
	}
	return v.rate(s, field, val, "")
}

func (v *validator) size(s scope, field, val, def string) uint32 {
	if val == "" {
		val = def
	}
	b, err := units.ParseSize(val)
	if err != nil {
		v.failErr(s, field, err)
	}
	return b
}

func (v *validator) time(s scope, field, val, def string) uint32 {
	if val == "" {
		val = def
	}
	us, err := units.ParseTime(val)
	if err != nil {
		v.failErr(s, field, err)
	}
	return us
}

func (v *validator) optTime(s scope, field, val string) *uint32 {
	if val == "" {
		return nil
	}
	us := v.time(s, field, val, "")
	return &us
}

// optUint parses an optional integer in the range [lo, hi]
func (v *validator) optUint(s scope, field, val string, lo, hi uint32) *uint32 {
	if val == "" {
		return nil
	}
	n, err := units.ParseUint(field, val)
	if err != nil {
		v.failErr(s, field, err)
		return nil
	}
	if n < lo || n > hi {
		v.fail(s, field, "value %d out of range %d-%d", n, lo, hi)
		return nil
	}
	return &n
}

func (v *validator) optPercent(s scope, field, val string) *float64 {
	if val == "" {
		return nil
	}
	p, err := units.ParsePercent(val)
	if err != nil {
		v.failErr(s, field, err)
		return nil
	}
	return &p
}

func (v *validator) cake(name string, raw *config.Cake) Policy {
	if raw == nil {
		raw = &config.Cake{}
	}
	s := scope{typ: TypeCake, policy: name}
	p := &Cake{
		Meta:      Meta{PolicyName: name, Description: raw.Description},
		Bandwidth: v.rate(s, "bandwidth", raw.Bandwidth, ""),
		RTT:       v.time(s, "rtt", raw.RTT, defaultCakeRTT),
		FlowMode:  cakeFlowModes["triple-isolate"],
		NAT:       bool(raw.FlowIsolationNat),
	}
	if raw.FlowIsolation != "" {
		mode, ok := cakeFlowModes[raw.FlowIsolation]
		if !ok {
			v.fail(s, "flow-isolation", "unknown flow isolation %q", raw.FlowIsolation)
		}
		p.FlowMode = mode
	}
	return p
}

func (v *validator) dropTail(name string, raw *config.DropTail) Policy {
	if raw == nil {
		raw = &config.DropTail{}
	}
	s := scope{typ: TypeDropTail, policy: name}
	return &DropTail{
		Meta:       Meta{PolicyName: name, Description: raw.Description},
		QueueLimit: v.optUint(s, "queue-limit", raw.QueueLimit, 1, 4294967295),
	}
}

func (v *validator) fairQueue(name string, raw *config.FairQueue) Policy {
	if raw == nil {
		raw = &config.FairQueue{}
	}
	s := scope{typ: TypeFairQueue, policy: name}
	return &FairQueue{
		Meta:         Meta{PolicyName: name, Description: raw.Description},
		HashInterval: v.optUint(s, "hash-interval", raw.HashInterval, 0, 127),
		QueueLimit:   v.optUint(s, "queue-limit", raw.QueueLimit, 1, 127),
	}
}

func (v *validator) fqCodel(name string, raw *config.FQCodel) Policy {
	if raw == nil {
		raw = &config.FQCodel{}
	}
	s := scope{typ: TypeFQCodel, policy: name}
	p := &FQCodel{
		Meta:         Meta{PolicyName: name, Description: raw.Description},
		CodelQuantum: v.optUint(s, "codel-quantum", raw.CodelQuantum, 0, 1048576),
		Flows:        v.optUint(s, "flows", raw.Flows, 1, 65536),
		QueueLimit:   v.optUint(s, "queue-limit", raw.QueueLimit, 1, 4294967295),
	}
	p.Interval, p.Target = v.codelTimes(s, raw.Interval, raw.Target)
	return p
}

// codelTimes parses millisecond interval and target figures into the microsecond values
// held by the kernel
func (v *validator) codelTimes(s scope, interval, target string) (*uint32, *uint32) {
	var i, t *uint32
	if ms := v.optUint(s, "interval", interval, 1, 4294967); ms != nil {
		us := units.IntervalMicros(*ms)
		i = &us
	}
	if ms := v.optUint(s, "target", target, 1, 4294967); ms != nil {
		us := units.TargetMicros(*ms)
		t = &us
	}
	return i, t
}

func (v *validator) networkEmulator(name string, raw *config.NetworkEmulator) Policy {
	if raw == nil {
		raw = &config.NetworkEmulator{}
	}
	s := scope{typ: TypeNetworkEmulator, policy: name}
	p := &NetworkEmulator{
		Meta:       Meta{PolicyName: name, Description: raw.Description},
		Bandwidth:  v.optRate(s, "bandwidth", raw.Bandwidth),
		Delay:      v.optTime(s, "delay", raw.Delay),
		Corruption: v.optPercent(s, "corruption", raw.Corruption),
		Duplicate:  v.optPercent(s, "duplicate", raw.Duplicate),
		Loss:       v.optPercent(s, "loss", raw.Loss),
		Reordering: v.optPercent(s, "reordering", raw.Reordering),
		QueueLimit: v.optUint(s, "queue-limit", raw.QueueLimit, 1, 4294967295),
	}
	if p.Bandwidth.Kind() != units.RateAbsolute {
		v.fail(s, "bandwidth", "only absolute rates are supported")
	}
	return p
}

func (v *validator) randomDetect(name string, raw *config.RandomDetect) Policy {
	if raw == nil {
		raw = &config.RandomDetect{}
	}
	s := scope{typ: TypeRandomDetect, policy: name}
	p := &RandomDetect{
		Meta:      Meta{PolicyName: name, Description: raw.Description},
		Bandwidth: v.rate(s, "bandwidth", raw.Bandwidth, "auto"),
	}
	if p.Bandwidth.Kind() == units.RatePercent {
		v.fail(s, "bandwidth", "percentage is not supported on the root of a policy")
	}
	for _, key := range utils.SortedKeys(raw.Precedence) {
		prec := v.optUint(s, "precedence", key, 0, PrecedenceCount-1)
		if prec == nil {
			continue
		}
		pr := raw.Precedence[key]
		if pr == nil {
			continue
		}
		ps := s.withClass("precedence " + key)
		p.Precedence[*prec] = v.red(ps, pr.AveragePacket, pr.MaximumThreshold, pr.MinimumThreshold,
			pr.MarkProbability, pr.QueueLimit)
	}
	return p
}

func (v *validator) red(s scope, avpkt, maxThr, minThr, markProb, limit string) RED {
	r := RED{
		AveragePacket:    v.optUint(s, "average-packet", avpkt, 16, 10240),
		MaximumThreshold: v.optUint(s, "maximum-threshold", maxThr, 1, 4096),
		MinimumThreshold: v.optUint(s, "minimum-threshold", minThr, 0, 4096),
		MarkProbability:  v.optUint(s, "mark-probability", markProb, 1, 4294967295),
		QueueLimit:       v.optUint(s, "queue-limit", limit, 1, 4294967295),
	}
	if r.MaximumThreshold != nil && r.MinimumThreshold != nil && *r.MinimumThreshold >= *r.MaximumThreshold {
		v.fail(s, "minimum-threshold", "must be lower than maximum-threshold")
	}
	return r
}

func (v *validator) rateControl(name string, raw *config.RateControl) Policy {
	if raw == nil {
		raw = &config.RateControl{}
	}
	s := scope{typ: TypeRateControl, policy: name}
	p := &RateControl{
		Meta:      Meta{PolicyName: name, Description: raw.Description},
		Bandwidth: v.rate(s, "bandwidth", raw.Bandwidth, ""),
		Burst:     v.size(s, "burst", raw.Burst, defaultBurst),
		Latency:   v.time(s, "latency", raw.Latency, defaultLatency),
	}
	if !p.Bandwidth.IsZero() && p.Bandwidth.Kind() != units.RateAbsolute {
		v.fail(s, "bandwidth", "only absolute rates are supported")
	}
	return p
}

// classIDs returns the class keys of raw sorted by their numeric id
func (v *validator) classIDs(s scope, classes map[string]*config.Class, lo, hi uint32) ([]uint16, map[uint16]*config.Class) {
	byID := make(map[uint16]*config.Class)
	for key, c := range classes {
		id := v.optUint(s.withClass(key), "class", key, lo, hi)
		if id == nil {
			continue
		}
		if c == nil {
			c = &config.Class{}
		}
		if _, dup := byID[uint16(*id)]; dup {
			v.fail(s.withClass(key), "class", "duplicate class id %d", *id)
			continue
		}
		byID[uint16(*id)] = c
	}
	return utils.SortedKeys(byID), byID
}

func (v *validator) classBase(s scope, id uint16, raw *config.Class, maxPrio uint32) ClassBase {
	b := ClassBase{
		ID:          id,
		Description: raw.Description,
		Matches:     v.matches(s, raw.Match),
		MatchGroups: append([]string(nil), raw.MatchGroup...),
	}
	if p := v.optUint(s, "priority", raw.Priority, 0, maxPrio); p != nil {
		prio := uint16(*p)
		b.Priority = &prio
	}
	return b
}

func (v *validator) queue(s scope, raw *config.Class) Queue {
	q := Queue{Type: QueueType(raw.QueueType)}
	switch q.Type {
	case QueueDefault, QueueDropTail, QueueFairQueue, QueueFQCodel, QueuePriority, QueueRandomDetect:
	default:
		v.fail(s, "queue-type", "unknown queue type %q", raw.QueueType)
	}
	q.Limit = v.optUint(s, "queue-limit", raw.QueueLimit, 1, 4294967295)
	q.CodelQuantum = v.optUint(s, "codel-quantum", raw.CodelQuantum, 0, 1048576)
	q.Flows = v.optUint(s, "flows", raw.Flows, 1, 65536)
	q.Interval, q.Target = v.codelTimes(s, raw.Interval, raw.Target)
	q.HashInterval = v.optUint(s, "hash-interval", raw.HashInterval, 0, 127)
	q.RED = v.red(s, raw.AveragePacket, raw.MaximumThreshold, raw.MinimumThreshold, raw.MarkProbability, "")
	q.RED.QueueLimit = q.Limit
	return q
}

func (v *validator) shaper(name string, raw *config.ClassPolicy) Policy {
	if raw == nil {
		raw = &config.ClassPolicy{}
	}
	s := scope{typ: TypeShaper, policy: name}
	p := &Shaper{
		Meta:      Meta{PolicyName: name, Description: raw.Description},
		Bandwidth: v.rate(s, "bandwidth", raw.Bandwidth, "auto"),
	}
	if p.Bandwidth.Kind() == units.RatePercent {
		v.fail(s, "bandwidth", "percentage is not supported on the root of a policy")
	}
	conv := func(cs scope, id uint16, c *config.Class) *ShaperClass {
		return &ShaperClass{
			ClassBase: v.classBase(cs, id, c, maxHTBPrio),
			Bandwidth: v.rate(cs, "bandwidth", c.Bandwidth, ""),
			Ceiling:   v.optRate(cs, "ceiling", c.Ceiling),
			Burst:     v.size(cs, "burst", c.Burst, defaultBurst),
			Quantum:   v.optUint(cs, "quantum", c.Quantum, 1, 4294967295),
			Queue:     v.queue(cs, c),
		}
	}

	if raw.Default == nil {
		v.fail(s, "", "policy misses \"default\" class")
	} else {
		p.Default = conv(s.withClass("default"), 0, raw.Default)
	}
	ids, byID := v.classIDs(s, raw.Class, 2, maxClassID)
	for _, id := range ids {
		p.Classes = append(p.Classes, conv(s.withClass(fmt.Sprint(id)), id, byID[id]))
	}
	return p
}

func (v *validator) shaperHFSC(name string, raw *config.ClassPolicy) Policy {
	if raw == nil {
		raw = &config.ClassPolicy{}
	}
	s := scope{typ: TypeShaperHFSC, policy: name}
	p := &ShaperHFSC{
		Meta:      Meta{PolicyName: name, Description: raw.Description},
		Bandwidth: v.rate(s, "bandwidth", raw.Bandwidth, "auto"),
	}
	if p.Bandwidth.Kind() == units.RatePercent {
		v.fail(s, "bandwidth", "percentage is not supported on the root of a policy")
	}
	conv := func(cs scope, id uint16, c *config.Class) *HFSCClass {
		hc := &HFSCClass{
			ClassBase:  v.classBase(cs, id, c, 65535),
			Linkshare:  v.curve(cs, "linkshare", c.Linkshare),
			Realtime:   v.curve(cs, "realtime", c.Realtime),
			Upperlimit: v.curve(cs, "upperlimit", c.Upperlimit),
		}
		if !hasM2(c.Linkshare) && !hasM2(c.Realtime) && !hasM2(c.Upperlimit) {
			v.fail(cs, "", "At least one m2 value needs to be set")
		}
		if hasM2(c.Upperlimit) && !hasM2(c.Linkshare) {
			v.fail(cs, "upperlimit", "upperlimit m2 requires linkshare m2")
		}
		return hc
	}

	if raw.Default == nil {
		v.fail(s, "", "policy misses \"default\" class")
	} else {
		p.Default = conv(s.withClass("default"), 0, raw.Default)
	}
	ids, byID := v.classIDs(s, raw.Class, 2, maxClassID)
	for _, id := range ids {
		p.Classes = append(p.Classes, conv(s.withClass(fmt.Sprint(id)), id, byID[id]))
	}
	return p
}

func hasM2(c *config.Curve) bool {
	return c != nil && c.M2 != ""
}

func (v *validator) curve(s scope, field string, raw *config.Curve) *Curve {
	if raw == nil {
		return nil
	}
	c := &Curve{
		M1: v.optRate(s, field+" m1", raw.M1),
		M2: v.optRate(s, field+" m2", raw.M2),
	}
	if raw.D != "" {
		c.D = v.time(s, field+" d", raw.D, "")
	}
	if raw.M1 != "" && raw.M2 == "" {
		v.fail(s, field, "m1 requires m2")
	}
	if raw.M1 != "" && raw.M2 != "" && raw.D == "" {
		v.fail(s, field, "m1 and m2 require d")
	}
	return c
}

func (v *validator) limiter(name string, raw *config.ClassPolicy) Policy {
	if raw == nil {
		raw = &config.ClassPolicy{}
	}
	s := scope{typ: TypeLimiter, policy: name}
	p := &Limiter{Meta: Meta{PolicyName: name, Description: raw.Description}}
	conv := func(cs scope, id uint16, c *config.Class) *LimiterClass {
		lc := &LimiterClass{
			ClassBase: v.classBase(cs, id, c, 65535),
			Bandwidth: v.rate(cs, "bandwidth", c.Bandwidth, ""),
			Burst:     v.size(cs, "burst", c.Burst, defaultBurst),
			Exceed:    v.verb(cs, "exceed", c.Exceed, PoliceDrop),
			NotExceed: v.verb(cs, "not-exceed", c.NotExceed, PoliceOK),
		}
		if c.MTU != "" {
			lc.MTU = v.size(cs, "mtu", c.MTU, "")
		}
		if lc.Priority == nil {
			prio := uint16(defaultLimiterPrio)
			lc.Priority = &prio
		}
		if !lc.Bandwidth.IsZero() && lc.Bandwidth.Kind() != units.RateAbsolute {
			v.fail(cs, "bandwidth", "only absolute rates are supported")
		}
		return lc
	}

	if raw.Default != nil {
		p.Default = conv(s.withClass("default"), 0, raw.Default)
	}
	ids, byID := v.classIDs(s, raw.Class, 1, maxClassID)
	for _, id := range ids {
		cs := s.withClass(fmt.Sprint(id))
		lc := conv(cs, id, byID[id])
		if len(lc.Matches) == 0 && len(lc.MatchGroups) == 0 {
			v.fail(cs, "match", "class needs at least one match or match-group")
		}
		p.Classes = append(p.Classes, lc)
	}
	return p
}

func (v *validator) verb(s scope, field, val string, def PoliceVerb) PoliceVerb {
	if val == "" {
		return def
	}
	verb, ok := policeVerbs[val]
	if !ok {
		v.fail(s, field, "unknown action %q", val)
	}
	return verb
}

func (v *validator) priorityQueue(name string, raw *config.ClassPolicy) Policy {
	if raw == nil {
		raw = &config.ClassPolicy{}
	}
	s := scope{typ: TypePriorityQueue, policy: name}
	p := &PriorityQueue{Meta: Meta{PolicyName: name, Description: raw.Description}}
	conv := func(cs scope, id uint16, c *config.Class) *PriorityClass {
		return &PriorityClass{
			ClassBase: v.classBase(cs, id, c, 65535),
			Queue:     v.queue(cs, c),
		}
	}
	if raw.Default != nil {
		p.Default = conv(s.withClass("default"), 0, raw.Default)
	}
	ids, byID := v.classIDs(s, raw.Class, 1, maxPriorityBands)
	for _, id := range ids {
		p.Classes = append(p.Classes, conv(s.withClass(fmt.Sprint(id)), id, byID[id]))
	}
	return p
}

func (v *validator) roundRobin(name string, raw *config.ClassPolicy) Policy {
	if raw == nil {
		raw = &config.ClassPolicy{}
	}
	s := scope{typ: TypeRoundRobin, policy: name}
	p := &RoundRobin{Meta: Meta{PolicyName: name, Description: raw.Description}}
	conv := func(cs scope, id uint16, c *config.Class) *RoundRobinClass {
		return &RoundRobinClass{
			ClassBase: v.classBase(cs, id, c, 65535),
			Quantum:   v.optUint(cs, "quantum", c.Quantum, 1, 4294967295),
			Queue:     v.queue(cs, c),
		}
	}
	if raw.Default != nil {
		p.Default = conv(s.withClass("default"), 0, raw.Default)
	}
	ids, byID := v.classIDs(s, raw.Class, 1, maxClassID)
	for _, id := range ids {
		p.Classes = append(p.Classes, conv(s.withClass(fmt.Sprint(id)), id, byID[id]))
	}
	return p
}

// matches converts the named matches of a class or match group in name order
func (v *validator) matches(s scope, raw map[string]*config.Match) []Match {
	out := make([]Match, 0, len(raw))
	for _, name := range utils.SortedKeys(raw) {
		out = append(out, v.match(s, name, raw[name]))
	}
	return out
}

func (v *validator) match(s scope, name string, raw *config.Match) Match {
	m := Match{Name: name}
	if raw == nil {
		return m
	}
	field := "match " + name
	m.Description = raw.Description
	if raw.IP != nil && raw.IPv6 != nil {
		v.fail(s, field, "can not use both ip and ipv6 in one match")
	}
	if raw.IP != nil {
		m.IP = v.ipMatch(s, field+" ip", raw.IP, false)
	}
	if raw.IPv6 != nil {
		m.IPv6 = v.ipMatch(s, field+" ipv6", raw.IPv6, true)
	}
	if raw.Ether != nil {
		m.Ether = v.etherMatch(s, field+" ether", raw.Ether)
	}
	if raw.Mark != "" {
		if mark, err := units.ParseUint("mark", raw.Mark); err != nil {
			v.failErr(s, field, err)
		} else {
			m.Mark = &mark
		}
	}
	m.Interface = raw.Interface
	if vif := v.optUint(s, field+" vif", raw.Vif, 0, maxVlanID); vif != nil {
		id := uint16(*vif)
		m.Vif = &id
	}
	return m
}

func (v *validator) ipMatch(s scope, field string, raw *config.IPMatch, v6 bool) *IPMatch {
	ip := &IPMatch{
		Source:      v.endpoint(s, field+" source", raw.Source, v6),
		Destination: v.endpoint(s, field+" destination", raw.Destination, v6),
	}
	if raw.Protocol != "" {
		proto, err := ParseIPProtocol(raw.Protocol)
		if err != nil {
			v.failErr(s, field+" protocol", err)
		} else {
			ip.Protocol = &proto
		}
	}
	if raw.DSCP != "" {
		ds, err := ParseDSCP(raw.DSCP)
		if err != nil {
			v.failErr(s, field+" dscp", err)
		} else {
			ip.DSField = &ds
		}
	}
	if l := v.optUint(s, field+" max-length", raw.MaxLength, 0, 65535); l != nil {
		ml := uint16(*l)
		ip.MaxLength = &ml
	}
	if raw.TCP != nil {
		ip.TCPAck = bool(raw.TCP.ACK)
		ip.TCPSyn = bool(raw.TCP.SYN)
		if ip.TCPAck || ip.TCPSyn {
			tcp := ipProtocols["tcp"]
			if ip.Protocol != nil && *ip.Protocol != tcp {
				v.fail(s, field+" tcp", "tcp flags require protocol tcp")
			}
			ip.Protocol = &tcp
		}
	}
	return ip
}

func (v *validator) endpoint(s scope, field string, raw *config.AddrPort, v6 bool) Endpoint {
	e := Endpoint{}
	if raw == nil {
		return e
	}
	if raw.Address != "" {
		prefix, err := parsePrefix(raw.Address, v6)
		if err != nil {
			v.failErr(s, field+" address", err)
		} else {
			e.Prefix = prefix
		}
	}
	if p := v.optUint(s, field+" port", raw.Port, 1, 65535); p != nil {
		port := uint16(*p)
		e.Port = &port
	}
	return e
}

// parsePrefix parses an address or prefix of the given family. A plain address is a host prefix.
func parsePrefix(s string, v6 bool) (*net.IPNet, error) {
	ipNet, err := utils.IPToIPNet(s)
	if err != nil {
		return nil, err
	}
	if utils.IsIPv4(ipNet.IP) == v6 {
		return nil, errors.Errorf("address %s is not of the match address family", s)
	}
	return ipNet, nil
}

func (v *validator) etherMatch(s scope, field string, raw *config.EtherMatch) *EtherMatch {
	e := &EtherMatch{}
	mac := func(f, val string) net.HardwareAddr {
		if val == "" {
			return nil
		}
		hw, err := net.ParseMAC(val)
		if err != nil || len(hw) != 6 {
			v.fail(s, f, "invalid mac address %q", val)
			return nil
		}
		return hw
	}
	e.Source = mac(field+" source", raw.Source)
	e.Destination = mac(field+" destination", raw.Destination)
	if raw.Protocol != "" {
		proto, err := ParseEtherProtocol(raw.Protocol)
		if err != nil {
			v.failErr(s, field+" protocol", err)
		} else {
			e.Protocol = proto
		}
	}
	return e
}
