package types_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

var _ = Describe("Handle tests", func() {
	DescribeTable("FormatHandle", func(major, minor uint16, expected string) {
		h := types.MakeHandle(major, minor)
		Expect(types.HandleMajor(h)).To(Equal(major))
		Expect(types.HandleMinor(h)).To(Equal(minor))
		Expect(types.FormatHandle(h)).To(Equal(expected))
	},
		Entry("root qdisc", uint16(1), uint16(0), "1:"),
		Entry("class", uint16(1), uint16(0x1e), "1:1e"),
		Entry("ingress", uint16(0xffff), uint16(0), "ffff:"),
		Entry("leaf qdisc", uint16(0x100a), uint16(0), "100a:"),
	)
})
