package hierarchy

import (
	"sort"

	"github.com/pkg/errors"
	"k8s.io/utils/pointer"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
)

const (
	defaultPerturb     = 10
	defaultPFIFOLimit  = 1000
	defaultShaperPrio  = 0
	defaultClassPrio   = 7
	redDefaultAvPkt    = 1024
	redDefaultMaxThr   = 18
	redDefaultMarkProb = 10
)

// Build returns the node tree of p. linkSpeed in bits/s resolves "auto" bandwidths.
func Build(p policy.Policy, linkSpeed uint64) (*Tree, error) {
	t := &Tree{Name: p.Name(), Type: p.Type(), Direction: p.Direction()}
	var err error
	switch pol := p.(type) {
	case *policy.Cake:
		t.Bandwidth = pol.Bandwidth.Resolve(linkSpeed)
		t.Root = &Cake{Bandwidth: t.Bandwidth, RTT: pol.RTT, FlowMode: pol.FlowMode, NAT: pol.NAT}
	case *policy.DropTail:
		t.Root = &PFIFO{Limit: pol.QueueLimit}
	case *policy.FairQueue:
		t.Root = &SFQ{Perturb: pol.HashInterval, Limit: pol.QueueLimit}
	case *policy.FQCodel:
		t.Root = &FQCodel{
			Quantum:  pol.CodelQuantum,
			Flows:    pol.Flows,
			Interval: pol.Interval,
			Target:   pol.Target,
			Limit:    pol.QueueLimit,
		}
	case *policy.NetworkEmulator:
		t.Bandwidth = pol.Bandwidth.Resolve(linkSpeed)
		t.Root = &Netem{
			Rate:      t.Bandwidth,
			Delay:     pol.Delay,
			Corrupt:   pol.Corruption,
			Duplicate: pol.Duplicate,
			Loss:      pol.Loss,
			Reorder:   pol.Reordering,
			Limit:     pol.QueueLimit,
		}
	case *policy.RateControl:
		t.Bandwidth = pol.Bandwidth.Resolve(linkSpeed)
		t.Root = &TBF{Rate: t.Bandwidth, Burst: pol.Burst, Latency: pol.Latency}
	case *policy.RandomDetect:
		t.Bandwidth = pol.Bandwidth.Resolve(linkSpeed)
		g := &GRED{}
		for i := range g.DPs {
			g.DPs[i] = DeriveRED(pol.Precedence[i], i, t.Bandwidth)
		}
		t.Root = g
	case *policy.Shaper:
		err = buildShaper(t, pol, linkSpeed)
	case *policy.ShaperHFSC:
		err = buildHFSC(t, pol, linkSpeed)
	case *policy.Limiter:
		buildLimiter(t, pol)
	case *policy.PriorityQueue:
		buildPriorityQueue(t, pol)
	case *policy.RoundRobin:
		buildRoundRobin(t, pol)
	default:
		return nil, errors.Errorf("unsupported policy type %s", p.Type())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s policy %s", p.Type(), p.Name())
	}
	return t, nil
}

// DeriveRED fills the unset parameters of r for virtual queue precedence prec (0 for a leaf
// queue) and converts the thresholds to bytes.
func DeriveRED(r policy.RED, prec int, bandwidth uint64) RED {
	avpkt := valueOr(r.AveragePacket, redDefaultAvPkt)
	maxThr := valueOr(r.MaximumThreshold, redDefaultMaxThr)
	minThr := valueOr(r.MinimumThreshold, (uint32(9+prec)*maxThr)/18)
	limit := valueOr(r.QueueLimit, 4*maxThr)
	mark := valueOr(r.MarkProbability, redDefaultMarkProb)
	return RED{
		Limit:       limit * avpkt,
		Min:         minThr * avpkt,
		Max:         maxThr * avpkt,
		AvPkt:       avpkt,
		Burst:       (2*minThr + maxThr) / 3,
		Probability: 1 / float64(mark),
		Bandwidth:   bandwidth,
	}
}

func buildShaper(t *Tree, p *policy.Shaper, linkSpeed uint64) error {
	t.Bandwidth = p.Bandwidth.Resolve(linkSpeed)
	if t.Bandwidth == 0 {
		return errors.New("bandwidth resolves to 0")
	}
	ids := make([]uint16, 0, len(p.Classes))
	htb := func(c *policy.ShaperClass, minor, prio uint16) *Class {
		rate := c.Bandwidth.Resolve(t.Bandwidth)
		ceil := rate
		if !c.Ceiling.IsZero() {
			ceil = c.Ceiling.Resolve(t.Bandwidth)
		}
		if c.Priority != nil {
			prio = *c.Priority
		}
		return &Class{
			ID:          c.ID,
			Minor:       minor,
			Pref:        pref(&c.ClassBase),
			Description: c.Description,
			HTB: &HTBParams{
				Rate:    rate,
				Ceil:    ceil,
				Burst:   c.Burst,
				Prio:    uint32(prio),
				Quantum: c.Quantum,
			},
			Leaf: leafQueue(c.Queue, &SFQ{Perturb: pointer.Uint32(defaultPerturb)}),
		}
	}
	for _, c := range p.Classes {
		ids = append(ids, c.ID)
		t.Classes = append(t.Classes, htb(c, c.ID, defaultShaperPrio))
	}
	t.DefaultMinor = nextMinor(ids, 1)
	if p.Default != nil {
		t.Classes = append(t.Classes, htb(p.Default, t.DefaultMinor, defaultClassPrio))
	}
	sortClasses(t)
	return nil
}

func buildHFSC(t *Tree, p *policy.ShaperHFSC, linkSpeed uint64) error {
	// an unset bandwidth is the link speed
	t.Bandwidth = linkSpeed
	if !p.Bandwidth.IsZero() {
		t.Bandwidth = p.Bandwidth.Resolve(linkSpeed)
	}
	if t.Bandwidth == 0 {
		return errors.New("bandwidth resolves to 0")
	}
	ids := make([]uint16, 0, len(p.Classes))
	hfsc := func(c *policy.HFSCClass, minor uint16) *Class {
		return &Class{
			ID:          c.ID,
			Minor:       minor,
			Pref:        pref(&c.ClassBase),
			Description: c.Description,
			HFSC: &HFSCParams{
				Realtime:   curve(c.Realtime, t.Bandwidth),
				Linkshare:  curve(c.Linkshare, t.Bandwidth),
				Upperlimit: curve(c.Upperlimit, t.Bandwidth),
			},
			Leaf: &SFQ{Perturb: pointer.Uint32(defaultPerturb)},
		}
	}
	for _, c := range p.Classes {
		ids = append(ids, c.ID)
		t.Classes = append(t.Classes, hfsc(c, c.ID))
	}
	t.DefaultMinor = nextMinor(ids, 1)
	if p.Default != nil {
		t.Classes = append(t.Classes, hfsc(p.Default, t.DefaultMinor))
	}
	sortClasses(t)
	return nil
}

func curve(c *policy.Curve, parent uint64) *ServiceCurve {
	if c == nil {
		return nil
	}
	sc := &ServiceCurve{M2: c.M2.Resolve(parent), D: c.D}
	if !c.M1.IsZero() {
		sc.M1 = c.M1.Resolve(parent)
	}
	return sc
}

func buildLimiter(t *Tree, p *policy.Limiter) {
	ids := make([]uint16, 0, len(p.Classes))
	police := func(c *policy.LimiterClass, minor uint16) *Class {
		return &Class{
			ID:          c.ID,
			Minor:       minor,
			Pref:        pref(&c.ClassBase),
			Description: c.Description,
			Police: &PoliceParams{
				Rate:      c.Bandwidth.Resolve(0),
				Burst:     c.Burst,
				MTU:       c.MTU,
				Exceed:    c.Exceed,
				NotExceed: c.NotExceed,
			},
		}
	}
	for _, c := range p.Classes {
		ids = append(ids, c.ID)
		t.Classes = append(t.Classes, police(c, c.ID))
	}
	t.DefaultMinor = nextMinor(ids, 0)
	if p.Default != nil {
		t.Classes = append(t.Classes, police(p.Default, t.DefaultMinor))
	}
	sortClasses(t)
}

func buildPriorityQueue(t *Tree, p *policy.PriorityQueue) {
	var maxID uint16 = 1
	for _, c := range p.Classes {
		if c.ID > maxID {
			maxID = c.ID
		}
		t.Classes = append(t.Classes, &Class{
			ID:          c.ID,
			Minor:       c.ID,
			Pref:        pref(&c.ClassBase),
			Description: c.Description,
			Leaf:        leafQueue(c.Queue, &PFIFO{Limit: pointer.Uint32(defaultPFIFOLimit)}),
		})
	}
	t.Bands = uint8(maxID + 1)
	t.DefaultMinor = uint16(t.Bands)
	def := &Class{Minor: t.DefaultMinor, Pref: DefaultPref, Implicit: true}
	if p.Default != nil {
		def.Implicit = false
		def.Description = p.Default.Description
		def.Leaf = leafQueue(p.Default.Queue, &PFIFO{Limit: pointer.Uint32(defaultPFIFOLimit)})
	} else {
		def.Leaf = &PFIFO{Limit: pointer.Uint32(defaultPFIFOLimit)}
	}
	t.Classes = append(t.Classes, def)
	sortClasses(t)
}

func buildRoundRobin(t *Tree, p *policy.RoundRobin) {
	ids := make([]uint16, 0, len(p.Classes))
	for _, c := range p.Classes {
		ids = append(ids, c.ID)
		t.Classes = append(t.Classes, &Class{
			ID:          c.ID,
			Minor:       c.ID,
			Pref:        pref(&c.ClassBase),
			Description: c.Description,
			DRR:         &DRRParams{Quantum: c.Quantum},
			Leaf:        leafQueue(c.Queue, &SFQ{}),
		})
	}
	t.DefaultMinor = nextMinor(ids, 0)
	def := &Class{Minor: t.DefaultMinor, Pref: DefaultPref, Implicit: true, DRR: &DRRParams{}, Leaf: &SFQ{}}
	if p.Default != nil {
		def.Implicit = false
		def.Description = p.Default.Description
		def.DRR.Quantum = p.Default.Quantum
		def.Leaf = leafQueue(p.Default.Queue, &SFQ{})
	}
	t.Classes = append(t.Classes, def)
	sortClasses(t)
}

// leafQueue returns the queue of a class, def when the class uses the policy default
func leafQueue(q policy.Queue, def Queue) Queue {
	switch q.Type {
	case policy.QueueDropTail:
		return &PFIFO{Limit: q.Limit}
	case policy.QueueFairQueue:
		return &SFQ{Perturb: q.HashInterval, Limit: q.Limit}
	case policy.QueueFQCodel:
		return &FQCodel{
			Quantum:  q.CodelQuantum,
			Flows:    q.Flows,
			Interval: q.Interval,
			Target:   q.Target,
			Limit:    q.Limit,
		}
	case policy.QueuePriority:
		return &Prio{}
	case policy.QueueRandomDetect:
		red := DeriveRED(q.RED, 0, 0)
		return &red
	default:
		return def
	}
}

// pref is the explicit priority when set and non zero, the class id otherwise.
// The default class always comes last.
func pref(c *policy.ClassBase) uint16 {
	if c.IsDefault() {
		return DefaultPref
	}
	if c.Priority != nil && *c.Priority > 0 {
		return *c.Priority
	}
	return c.ID
}

// nextMinor returns max(ids ∪ {floor}) + 1
func nextMinor(ids []uint16, floor uint16) uint16 {
	m := floor
	for _, id := range ids {
		if id > m {
			m = id
		}
	}
	return m + 1
}

// sortClasses orders numbered classes by id and keeps the default class last
func sortClasses(t *Tree) {
	sort.SliceStable(t.Classes, func(i, j int) bool {
		a, b := t.Classes[i], t.Classes[j]
		if a.IsDefault() != b.IsDefault() {
			return b.IsDefault()
		}
		return a.ID < b.ID
	})
}

func valueOr(v *uint32, def uint32) uint32 {
	if v == nil {
		return def
	}
	return *v
}
