package cmdline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	klog "k8s.io/klog/v2"
	"k8s.io/utils/exec"

	testingexec "k8s.io/utils/exec/testing"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	driver "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/driver/cmdline"
	tctypes "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

const (
	fakeNetDev = "fake"
)

// fakeExecHelper is a wrapper around testingexec.FakeExec which provides some
// utility functionality to aid in testing
type fakeExecHelper struct {
	testingexec.FakeExec
}

// AddFakeCmd adds a new testingexec.FakeCommandAction to fakeExecHelper.CommandScript
// that creates a new *testingexec.FakeCmd with the called arguments to Command()
func (feh *fakeExecHelper) AddFakeCmd() *testingexec.FakeCmd {
	fakeCmd := &testingexec.FakeCmd{}
	var action testingexec.FakeCommandAction = func(cmd string, args ...string) exec.Cmd {
		return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
	}
	feh.CommandScript = append(feh.CommandScript, action)
	return fakeCmd
}

func newFakeAction(stdout, stderr []byte, err error) testingexec.FakeAction {
	return func() ([]byte, []byte, error) {
		return stdout, stderr, err
	}
}

func args(a ...[]string) []string {
	out := []string{"tc", "-json"}
	for _, x := range a {
		out = append(out, x...)
	}
	return out
}

var _ = Describe("TC Cmdline driver tests", func() {
	var fakeExec *fakeExecHelper
	var tcCmdLine tc.TC
	var log = klog.NewKlogr().WithName("tc-driver-cmdline-test")
	var testError = errors.New("test error!")

	htbRoot := &tctypes.HTBQDisc{
		QDiscAttrs: *tctypes.NewQDiscAttrsBuilder().WithRoot().WithHandle(0x10000).Build(), Default: 0x15}
	ingressQdisc := tctypes.NewIngressQDiscBuilder().Build()

	BeforeEach(func() {
		fakeExec = &fakeExecHelper{testingexec.FakeExec{}}
		tcCmdLine = driver.NewTcCmdLineImpl(fakeNetDev, log, fakeExec)
	})

	// execCases checks a call running a tc command without output
	execCases := func(call func() error, expectedCmdArgs func() []string) {
		var fakeCmd *testingexec.FakeCmd

		BeforeEach(func() {
			fakeCmd = fakeExec.AddFakeCmd()
		})

		It("returns no error when underlying command passes", func() {
			fakeCmd.RunScript = append(fakeCmd.RunScript, newFakeAction(nil, nil, nil))

			Expect(call()).To(Succeed())
			Expect(fakeCmd.Argv).To(BeEquivalentTo(expectedCmdArgs()))
		})

		It("returns error with tc stderr when underlying command errors", func() {
			fakeCmd.RunScript = append(fakeCmd.RunScript, newFakeAction(
				nil, []byte("Error: Exclusivity flag on, cannot modify.\n"), testError))

			err := call()

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, testError)).To(BeTrue())
			Expect(err.Error()).To(Equal("Error: Exclusivity flag on, cannot modify.: test error!"))
		})
	}

	Context("QDiscAdd", func() {
		execCases(func() error { return tcCmdLine.QDiscAdd(htbRoot) }, func() []string {
			return args([]string{"qdisc", "add", "dev", fakeNetDev, "root", "handle", "1:", "htb", "default", "15"})
		})
	})

	Context("QDiscChange", func() {
		gred := &tctypes.GREDQDisc{QDiscAttrs: htbRoot.QDiscAttrs, DPs: make([]tctypes.REDParams, 1)}
		vq := gred.VirtualQueues()[0]
		execCases(func() error { return tcCmdLine.QDiscChange(vq) }, func() []string {
			return args([]string{"qdisc", "change", "dev", fakeNetDev}, vq.GenCmdLineArgs())
		})
	})

	Context("QDiscDel", func() {
		execCases(func() error { return tcCmdLine.QDiscDel(htbRoot) }, func() []string {
			return args([]string{"qdisc", "del", "dev", fakeNetDev, "root", "handle", "1:"})
		})
	})

	Context("QDiscDel ingress", func() {
		execCases(func() error { return tcCmdLine.QDiscDel(ingressQdisc) }, func() []string {
			return args([]string{"qdisc", "del", "dev", fakeNetDev, "handle", "ffff:", "ingress"})
		})
	})

	Context("ClassAdd", func() {
		class := tctypes.NewHTBClassBuilder().WithParent(0x10000).WithClassID(0x10001).WithRate(1000, 1000).Build()
		execCases(func() error { return tcCmdLine.ClassAdd(class) }, func() []string {
			return args([]string{"class", "add", "dev", fakeNetDev,
				"parent", "1:", "classid", "1:1", "htb", "rate", "1000bit", "ceil", "1000bit"})
		})
	})

	Context("FilterAdd", func() {
		filter := tctypes.NewFilterBuilder(tctypes.FilterKindU32).
			WithProtocol(tctypes.FilterProtocolAll).
			WithPriority(10).
			WithKey(22, 0xffff, 20).
			WithFlowID(0x1000a).
			Build()
		execCases(func() error { return tcCmdLine.FilterAdd(htbRoot, filter) }, func() []string {
			return args([]string{"filter", "add", "dev", fakeNetDev, "parent", "1:",
				"protocol", "all", "pref", "10", "u32", "match", "u32", "0x00000016", "0x0000ffff", "at", "20",
				"flowid", "1:a"})
		})
	})

	Context("FilterDel", func() {
		filterToDel := tctypes.NewFilterAttrsBuilder().
			WithProtocol(tctypes.FilterProtocolIPv4).
			WithPriority(200).
			WithKind(tctypes.FilterKindBasic).
			Build()
		execCases(func() error { return tcCmdLine.FilterDel(ingressQdisc, filterToDel) }, func() []string {
			return args([]string{"filter", "del", "dev", fakeNetDev, "parent", "ffff:",
				"protocol", "ip", "pref", "200", "basic"})
		})
	})

	Context("ChainDel", func() {
		chainToDel := tctypes.NewChainBuilder().WithParent(0x10000).WithChain(0).Build()
		execCases(func() error { return tcCmdLine.ChainDel(htbRoot, chainToDel) }, func() []string {
			return args([]string{"chain", "del", "dev", fakeNetDev, "parent", "1:", "chain", "0"})
		})
	})

	Context("QDiscList", func() {
		var fakeCmd *testingexec.FakeCmd
		expectedCmdArgs := args([]string{"qdisc", "list", "dev", fakeNetDev})
		qdiscListOut := `[
		{"kind":"htb","handle":"1:","root":true,"refcnt":2,"options":{"r2q":10,"default":"0x15"}},
		{"kind":"sfq","handle":"100a:","parent":"1:a","options":{"limit":127,"quantum":1514}},
		{"kind":"ingress","handle":"ffff:","parent":"ffff:fff1","options":{}}
	]`

		BeforeEach(func() {
			fakeCmd = fakeExec.AddFakeCmd()
		})

		It("returns all qdiscs without error when underlying command passes", func() {
			fakeCmd.OutputScript = append(fakeCmd.OutputScript, newFakeAction([]byte(qdiscListOut), nil, nil))
			expected := []tctypes.QDisc{
				tctypes.NewGenericQdisc(tctypes.NewQDiscAttrsBuilder().WithRoot().WithHandle(0x10000).Build(),
					tctypes.QDiscHTBType),
				tctypes.NewGenericQdisc(tctypes.NewQDiscAttrsBuilder().WithParent(0x1000a).WithHandle(0x100a0000).Build(),
					tctypes.QDiscSFQType),
				tctypes.NewIngressQDiscBuilder().WithParent(0xfffffff1).WithHandle(0xffff0000).Build(),
			}

			qdiscs, err := tcCmdLine.QDiscList()

			Expect(err).ToNot(HaveOccurred())
			Expect(fakeCmd.Argv).To(BeEquivalentTo(expectedCmdArgs))
			Expect(qdiscs).To(BeEquivalentTo(expected))
			Expect(qdiscs[0].Attrs().IsRoot()).To(BeTrue())
		})

		It("returns error on an invalid handle", func() {
			fakeCmd.OutputScript = append(fakeCmd.OutputScript, newFakeAction(
				[]byte(`[{"kind":"htb","handle":"x:","root":true}]`), nil, nil))

			qdiscs, err := tcCmdLine.QDiscList()

			Expect(err).To(HaveOccurred())
			Expect(qdiscs).To(BeNil())
		})

		It("returns error when underlying command errors", func() {
			fakeCmd.OutputScript = append(fakeCmd.OutputScript, newFakeAction(
				nil, nil, testError))

			qdiscs, err := tcCmdLine.QDiscList()

			Expect(err).To(HaveOccurred())
			Expect(qdiscs).To(BeNil())
		})
	})

	Context("ChainList", func() {
		var fakeCmd *testingexec.FakeCmd
		expectedCmdArgs := args([]string{"chain", "list", "dev", fakeNetDev, "parent", "ffff:"})
		chainListOut := `[{"parent": "ffff:", "chain": 0}]`

		BeforeEach(func() {
			fakeCmd = fakeExec.AddFakeCmd()
		})

		It("returns chain without error when underlying command passes", func() {
			fakeCmd.OutputScript = append(fakeCmd.OutputScript, newFakeAction([]byte(chainListOut), nil, nil))
			expectedChain := tctypes.NewChainBuilder().
				WithParent(0xffff0000).
				WithChain(0).
				Build()

			chains, err := tcCmdLine.ChainList(ingressQdisc)

			Expect(err).ToNot(HaveOccurred())
			Expect(fakeCmd.Argv).To(BeEquivalentTo(expectedCmdArgs))
			Expect(chains).To(HaveLen(1))
			Expect(chains[0]).To(BeEquivalentTo(expectedChain))
		})

		It("returns error when underlying command errors", func() {
			fakeCmd.OutputScript = append(fakeCmd.OutputScript, newFakeAction(
				nil, nil, testError))

			chains, err := tcCmdLine.ChainList(ingressQdisc)

			Expect(err).To(HaveOccurred())
			Expect(chains).To(BeNil())
		})
	})
})
