package compiler_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/compiler"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/matchgroup"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

const (
	mbit = 1000000
	gbit = 1000 * mbit
)

func load(cmds ...string) *config.QoS {
	cfg, err := config.Load([]byte(strings.Join(cmds, "\n")), config.FormatSet)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return cfg
}

func rootClassRate(objs *generator.Objects) uint64 {
	c, ok := objs.Classes[0].(*types.HTBClass)
	ExpectWithOffset(1, ok).To(BeTrue())
	return c.Rate
}

var shaperCmds = []string{
	"set qos policy shaper S class 10 bandwidth 50%",
	"set qos policy shaper S class 10 match ssh ip destination port 22",
	"set qos policy shaper S class 10 match-group web",
	"set qos policy shaper S default bandwidth 10%",
	"set qos traffic-match-group web match http ip destination port 80",
	"set qos traffic-match-group web match https ip destination port 443",
}

var _ = Describe("Compiler tests", func() {
	var (
		speeds    map[string]uint64
		speedErrs map[string]error
		queried   []string
		c         compiler.Compiler
	)

	BeforeEach(func() {
		speeds = map[string]uint64{"eth0": 100 * mbit}
		speedErrs = map[string]error{}
		queried = nil
		linkSpeed := func(netDev string) (uint64, error) {
			queried = append(queried, netDev)
			if err, ok := speedErrs[netDev]; ok {
				return 0, err
			}
			return speeds[netDev], nil
		}
		gen := generator.NewSimpleTCGenerator(func(name string) (int, error) {
			if name == "eth1" {
				return 3, nil
			}
			return 0, errors.New("link not found")
		})
		c = compiler.NewCompilerImpl(gen, linkSpeed, gbit, klog.NewKlogr().WithName("compiler"))
	})

	Context("Compile", func() {
		It("generates the objects of every binding", func() {
			res, err := c.Compile(load(append(shaperCmds,
				"set qos policy fq-codel F",
				"set qos policy limiter L default bandwidth 1mbit",
				"set qos interface eth0 egress S",
				"set qos interface eth0 ingress L",
				"set qos interface eth1 egress F")...))
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Pass).ToNot(BeEmpty())
			Expect(res.Warnings).To(BeEmpty())
			Expect(res.Objects).To(HaveLen(3))

			for _, objs := range res.Objects {
				Expect(objs.Pass).To(Equal(res.Pass))
			}
			Expect(res.Objects[0].Interface).To(Equal("eth0"))
			Expect(res.Objects[0].Direction).To(Equal(policy.DirectionEgress))
			Expect(res.Objects[0].Policy).To(Equal("S"))
			Expect(res.Objects[1].Interface).To(Equal("eth0"))
			Expect(res.Objects[1].Direction).To(Equal(policy.DirectionIngress))
			Expect(res.Objects[1].Policy).To(Equal("L"))
			Expect(res.Objects[2].Interface).To(Equal("eth1"))
			Expect(res.Objects[2].Policy).To(Equal("F"))
		})

		It("resolves class match groups", func() {
			res, err := c.Compile(load(append(shaperCmds, "set qos interface eth0 egress S")...))
			Expect(err).ToNot(HaveOccurred())
			// ssh, http, https then the default catch-all
			Expect(res.Objects[0].Filters).To(HaveLen(4))
		})

		It("returns the warnings of every classful policy", func() {
			res, err := c.Compile(load(
				"set qos policy shaper S class 10 bandwidth 50%",
				"set qos policy shaper S class 10 match-group missing",
				"set qos policy shaper S default bandwidth 10%",
				"set qos policy shaper T class 10 bandwidth 50%",
				"set qos policy shaper T class 10 match-group loop",
				"set qos policy shaper T default bandwidth 10%",
				"set qos traffic-match-group loop match ssh ip destination port 22",
				"set qos traffic-match-group loop match-group loop",
				"set qos interface eth0 egress S"))
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Warnings).To(ConsistOf(
				matchgroup.Warning{Kind: matchgroup.WarningDangling, Group: "missing",
					Owner: "shaper policy S class 10"},
				matchgroup.Warning{Kind: matchgroup.WarningCycle, Group: "loop",
					Owner: "shaper policy T class 10"},
			))
		})

		It("resolves auto bandwidth from the link speed once per interface", func() {
			res, err := c.Compile(load(append(shaperCmds,
				"set qos policy fq-codel F",
				"set qos interface eth0 egress S",
				"set qos interface eth1 egress S")...))
			Expect(err).ToNot(HaveOccurred())
			Expect(rootClassRate(res.Objects[0])).To(Equal(uint64(100 * mbit)))
			Expect(queried).To(Equal([]string{"eth0", "eth1"}))
		})

		It("falls back to the default speed", func() {
			speedErrs["eth1"] = errors.New("ethtool failed")
			res, err := c.Compile(load(append(shaperCmds,
				"set qos interface eth1 egress S",
				"set qos interface eth2 egress S")...))
			Expect(err).ToNot(HaveOccurred())
			Expect(rootClassRate(res.Objects[0])).To(Equal(uint64(gbit)))
			Expect(rootClassRate(res.Objects[1])).To(Equal(uint64(gbit)))
		})

		It("uses the default speed without a link speed function", func() {
			c = compiler.NewCompilerImpl(generator.NewSimpleTCGenerator(nil), nil, 10*mbit,
				klog.NewKlogr().WithName("compiler"))
			res, err := c.Compile(load(append(shaperCmds, "set qos interface eth0 egress S")...))
			Expect(err).ToNot(HaveOccurred())
			Expect(rootClassRate(res.Objects[0])).To(Equal(uint64(10 * mbit)))
		})

		It("returns the validation error as is", func() {
			res, err := c.Compile(load(
				"set qos policy fq-codel F",
				"set qos interface eth0 ingress F"))
			Expect(res).To(BeNil())
			var verr *policy.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Errors).To(HaveLen(1))
			Expect(queried).To(BeEmpty())
		})

		It("aggregates the generation errors of all bindings", func() {
			res, err := c.Compile(load(
				"set qos policy shaper S class 10 bandwidth 50%",
				"set qos policy shaper S class 10 match in interface eth9",
				"set qos policy shaper S default bandwidth 10%",
				"set qos interface eth0 egress S",
				"set qos interface eth1 egress S"))
			Expect(res).To(BeNil())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("interface eth0 egress: "))
			Expect(err.Error()).To(ContainSubstring("interface eth1 egress: "))
			Expect(err.Error()).To(ContainSubstring("eth9"))
		})

		It("compiles an empty configuration", func() {
			res, err := c.Compile(&config.QoS{})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Objects).To(BeEmpty())
		})

		It("produces equal objects for the same configuration", func() {
			cfg := load(append(shaperCmds, "set qos interface eth0 egress S")...)
			first, err := c.Compile(cfg)
			Expect(err).ToNot(HaveOccurred())
			second, err := c.Compile(cfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(first.Pass).ToNot(Equal(second.Pass))
			Expect(first.Objects[0].Equals(second.Objects[0])).To(BeTrue())
			Expect(first.Objects[0].Render()).To(Equal(second.Objects[0].Render()))
		})
	})

	Context("metrics", func() {
		It("counts passes by result", func() {
			reg := prometheus.NewRegistry()
			Expect(compiler.RegisterMetrics(reg)).To(Succeed())

			ok := testutil.ToFloat64(compiler.PassesTotal.WithLabelValues("ok"))
			invalid := testutil.ToFloat64(compiler.PassesTotal.WithLabelValues("invalid"))
			_, err := c.Compile(&config.QoS{})
			Expect(err).ToNot(HaveOccurred())
			_, err = c.Compile(load("set qos interface eth0 egress missing"))
			Expect(err).To(HaveOccurred())

			Expect(testutil.ToFloat64(compiler.PassesTotal.WithLabelValues("ok"))).To(Equal(ok + 1))
			Expect(testutil.ToFloat64(compiler.PassesTotal.WithLabelValues("invalid"))).To(Equal(invalid + 1))
		})
	})
})
