package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
)

var _ = Describe("Set commands tests", func() {
	load := func(cmds string) *config.QoS {
		cfg, err := config.Load([]byte(cmds), config.FormatSet)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return cfg
	}

	It("parses a limiter policy", func() {
		cfg := load(`
# limiter on eth0
set qos interface eth0 ingress smoke_test
set qos policy limiter smoke_test class 100 bandwidth '20gbit'
set qos policy limiter smoke_test class 100 burst 3760k
set qos policy limiter smoke_test class 100 match INTERNAL mark 100
set qos policy limiter smoke_test class 100 match test interface eth0
set qos policy limiter smoke_test class 100 priority 20
set qos policy limiter smoke_test default bandwidth 1gbit
set qos policy limiter smoke_test default burst 125000000b
`)
		Expect(cfg.Interface["eth0"].Ingress).To(Equal("smoke_test"))
		l := cfg.Policy.Limiter["smoke_test"]
		Expect(l).ToNot(BeNil())
		Expect(l.Default.Bandwidth).To(Equal("1gbit"))
		Expect(l.Default.Burst).To(Equal("125000000b"))
		c := l.Class["100"]
		Expect(c.Bandwidth).To(Equal("20gbit"))
		Expect(c.Priority).To(Equal("20"))
		Expect(c.Match["INTERNAL"].Mark).To(Equal("100"))
		Expect(c.Match["test"].Interface).To(Equal("eth0"))
	})

	It("parses ip and ether matches", func() {
		cfg := load(`
set qos policy shaper S class 23 match 10 ip destination address 192.0.2.8/32
set qos policy shaper S class 23 match 10 ip source port 22
set qos policy shaper S class 23 match 10 ip tcp ack
set qos policy shaper S class 23 match 11 ether source 0c:89:0a:2e:00:01
set qos policy shaper S class 23 match 11 ether protocol all
set qos policy shaper S class 23 match 11 description "ether match"
`)
		m := cfg.Policy.Shaper["S"].Class["23"].Match
		Expect(m["10"].IP.Destination.Address).To(Equal("192.0.2.8/32"))
		Expect(m["10"].IP.Source.Port).To(Equal("22"))
		Expect(m["10"].IP.TCP.ACK).To(BeTrue())
		Expect(m["10"].IP.TCP.SYN).To(BeFalse())
		Expect(m["11"].Ether.Source).To(Equal("0c:89:0a:2e:00:01"))
		Expect(m["11"].Ether.Protocol).To(Equal("all"))
		Expect(m["11"].Description).To(Equal("ether match"))
	})

	It("keeps presence containers and flags", func() {
		cfg := load(`
set qos policy shaper-hfsc H
set qos policy shaper-hfsc H default upperlimit
set qos policy cake C flow-isolation-nat
set qos policy rate-control R
`)
		Expect(cfg.Policy.ShaperHFSC["H"].Default.Upperlimit).To(Equal(&config.Curve{}))
		Expect(cfg.Policy.ShaperHFSC["H"].Default.Linkshare).To(BeNil())
		Expect(cfg.Policy.Cake["C"].FlowIsolationNat).To(BeTrue())
		Expect(cfg.Policy.RateControl).To(HaveKeyWithValue("R", &config.RateControl{}))
	})

	It("collects repeated match-group values and replaces single values", func() {
		cfg := load(`
set qos traffic-match-group 1 match one ip dscp EF
set qos traffic-match-group 1 match-group 1
set qos traffic-match-group 1 match-group 3
set qos traffic-match-group 1 match-group 3
set qos traffic-match-group 2 match one ip dscp CS4
set qos traffic-match-group 2 match one ip dscp CS5
`)
		Expect(cfg.TrafficMatchGroup["1"].MatchGroup).To(Equal(config.StringList{"1", "3"}))
		Expect(cfg.TrafficMatchGroup["2"].Match["one"].IP.DSCP).To(Equal("CS5"))
	})

	It("parses random-detect precedences", func() {
		cfg := load(`
set qos policy random-detect RD bandwidth 5000
set qos policy random-detect RD precedence 3 minimum-threshold 10
`)
		rd := cfg.Policy.RandomDetect["RD"]
		Expect(rd.Bandwidth).To(Equal("5000"))
		Expect(rd.Precedence["3"].MinimumThreshold).To(Equal("10"))
	})

	DescribeTable("rejects malformed commands",
		func(cmds string, msg string) {
			_, err := config.Load([]byte(cmds), config.FormatSet)
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("not a set command", "delete qos policy", "line 1"),
		Entry("other configuration domain", "\nset system host-name vyos", "line 2"),
		Entry("tag without name", "set qos policy shaper S class", "requires a name"),
		Entry("extra tokens after value", "set qos policy shaper S bandwidth 10mbit 20mbit", "unexpected"),
		Entry("unterminated quote", "set qos policy shaper S description 'foo", "line 1"),
	)
})
