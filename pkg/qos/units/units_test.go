package units_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

var _ = Describe("Units tests", func() {
	Describe("ParseRate()", func() {
		DescribeTable("absolute rates resolve to bits per second",
			func(in string, expectedBits uint64) {
				r, err := units.ParseRate(in)
				Expect(err).ToNot(HaveOccurred())
				Expect(r.Kind()).To(Equal(units.RateAbsolute))
				Expect(r.Resolve(0)).To(Equal(expectedBits))
			},
			Entry("unsuffixed values are kbit", "1000000", uint64(1000000000)),
			Entry("bit", "500bit", uint64(500)),
			Entry("kbit", "150kbit", uint64(150000)),
			Entry("mbit", "250mbit", uint64(250000000)),
			Entry("upper case suffix", "250Mbit", uint64(250000000)),
			Entry("gbit", "20gbit", uint64(20000000000)),
			Entry("binary kibit", "1kibit", uint64(1024)),
			Entry("byte based mbps", "1mbps", uint64(8000000)),
			Entry("fractions", "1.5mbit", uint64(1500000)),
		)

		It("converts bandwidth to the kernel byte rate", func() {
			for _, b := range []uint64{1000000, 2000000, 5000} {
				r, err := units.ParseRate(units.FormatRate(b * 1000))
				Expect(err).ToNot(HaveOccurred())
				Expect(units.BytesPerSecond(r.Resolve(0))).To(Equal(b * 125))
			}
		})

		It("keeps percentages symbolic until resolved", func() {
			r, err := units.ParseRate("10%")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Kind()).To(Equal(units.RatePercent))
			Expect(r.Resolve(100000000)).To(Equal(uint64(10000000)))
			Expect(r.String()).To(Equal("10%"))
		})

		It("keeps auto symbolic until resolved", func() {
			r, err := units.ParseRate("auto")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Kind()).To(Equal(units.RateAuto))
			Expect(r.Resolve(1000000000)).To(Equal(uint64(1000000000)))
		})

		DescribeTable("rejects malformed figures",
			func(in string) {
				_, err := units.ParseRate(in)
				Expect(err).To(HaveOccurred())
				var perr *units.ParseError
				Expect(errors.As(err, &perr)).To(BeTrue())
				Expect(perr.Value).To(Equal(in))
			},
			Entry("empty", ""),
			Entry("unknown suffix", "10furlongs"),
			Entry("no number", "mbit"),
			Entry("percentage over 100", "150%"),
			Entry("negative", "-5mbit"),
		)
	})

	Describe("ParseSize()", func() {
		DescribeTable("sizes resolve to bytes",
			func(in string, expected uint32) {
				Expect(units.ParseSize(in)).To(Equal(expected))
			},
			Entry("bare bytes", "100", uint32(100)),
			Entry("b suffix", "125000000b", uint32(125000000)),
			Entry("k suffix", "15k", uint32(15360)),
			Entry("kb suffix", "100Kb", uint32(102400)),
			Entry("mb suffix", "1mb", uint32(1048576)),
		)

		It("rejects unknown suffix", func() {
			_, err := units.ParseSize("10kbit")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseTime()", func() {
		DescribeTable("times resolve to microseconds",
			func(in string, expected uint32) {
				Expect(units.ParseTime(in)).To(Equal(expected))
			},
			Entry("bare milliseconds", "200", uint32(200000)),
			Entry("ms suffix", "100ms", uint32(100000)),
			Entry("us suffix", "77us", uint32(77)),
			Entry("seconds", "1s", uint32(1000000)),
		)

		It("rtt in milliseconds is stored in microseconds", func() {
			for rtt := uint32(200); rtt < 300; rtt += 20 {
				Expect(units.ParseTime(units.FormatTime(rtt * 1000))).To(Equal(rtt * 1000))
			}
		})
	})

	Describe("codel time figures", func() {
		It("reproduces kernel target quantization", func() {
			for target := uint32(5); target < 10; target++ {
				Expect(units.TargetMicros(target)).To(Equal(target*1000 - 1))
			}
		})
		It("configures the figure the kernel quantizes to the target", func() {
			Expect(units.TargetFigure(units.TargetMicros(5))).To(Equal(uint32(5000)))
			Expect(units.TargetFigure(0)).To(Equal(uint32(0)))
		})
		It("keeps intervals exact", func() {
			for interval := uint32(100); interval < 150; interval += 10 {
				Expect(units.IntervalMicros(interval)).To(Equal(interval * 1000))
			}
		})
	})

	Describe("ParseUint()", func() {
		It("accepts hex", func() {
			Expect(units.ParseUint("mark", "0x10")).To(Equal(uint32(16)))
		})
		It("fails with kind in error", func() {
			_, err := units.ParseUint("mark", "abc")
			Expect(err).To(MatchError(ContainSubstring("invalid mark value")))
		})
	})
})
