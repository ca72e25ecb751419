package tc_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	klog "k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	tcmocks "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/mocks"
	tctypes "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

const rootHandle = 0x10000

func qdiscMatch(t tctypes.QDiscType) func(q tctypes.QDisc) bool {
	return func(q tctypes.QDisc) bool {
		return q.Type() == t
	}
}

func classMatch(class tctypes.Class) func(c tctypes.Class) bool {
	return func(c tctypes.Class) bool {
		return class.Equals(c)
	}
}

func filterMatch(filter tctypes.Filter) func(f tctypes.Filter) bool {
	return func(f tctypes.Filter) bool {
		return filter.Equals(f)
	}
}

func filterAttrMatch(filterAttr *tctypes.FilterAttrs) func(f *tctypes.FilterAttrs) bool {
	return func(f *tctypes.FilterAttrs) bool {
		return filterAttr.Equals(f)
	}
}

func chainMatch(chain uint16) func(c tctypes.Chain) bool {
	return func(c tctypes.Chain) bool {
		return chain == *c.Attrs().Chain
	}
}

func rootAttrs(handle uint32) *tctypes.QDiscAttrs {
	return tctypes.NewQDiscAttrsBuilder().WithRoot().WithHandle(handle).Build()
}

// shaperObjects returns the objects of an htb tree on eth0 with a single class of the given rate
func shaperObjects(rate uint64, filters ...tctypes.Filter) *generator.Objects {
	return &generator.Objects{
		Interface: "eth0",
		Direction: policy.DirectionEgress,
		Policy:    "P",
		QDiscs:    []tctypes.QDisc{&tctypes.HTBQDisc{QDiscAttrs: *rootAttrs(rootHandle), Default: 2}},
		Classes: []tctypes.Class{tctypes.NewHTBClassBuilder().
			WithParent(rootHandle).WithClassID(rootHandle + 1).WithRate(rate, rate).Build()},
		Filters: filters,
	}
}

var _ = Describe("Actuator TC tests", func() {
	var actuator tc.Actuator
	var tcMock *tcmocks.TC
	var logger klog.Logger
	testErr := errors.New("test error!")
	listedRoot := tctypes.NewGenericQdisc(rootAttrs(rootHandle), tctypes.QDiscHTBType)
	defaultRoot := tctypes.NewGenericQdisc(rootAttrs(0), "noqueue")
	ssh := portFilter(10, 22, rootHandle+1)
	web := portFilter(10, 80, rootHandle+1)
	marked := markFilter(20, 7, rootHandle+1)

	expectAdds := func(objs *generator.Objects) {
		for _, q := range objs.QDiscs {
			tcMock.On("QDiscAdd", mock.MatchedBy(qdiscMatch(q.Type()))).Return(nil).Once()
		}
		for _, c := range objs.Classes {
			tcMock.On("ClassAdd", mock.MatchedBy(classMatch(c))).Return(nil).Once()
		}
		for _, f := range objs.Filters {
			tcMock.On("FilterAdd", mock.Anything, mock.MatchedBy(filterMatch(f))).Return(nil).Once()
		}
	}

	BeforeEach(func() {
		logger = klog.NewKlogr().WithName("actuator-tc-test")
		tcMock = tcmocks.NewTC(GinkgoT())
		actuator = tc.NewActuatorTCImpl(func(netDev string) (tc.TC, error) {
			if netDev != "eth0" {
				return nil, errors.Errorf("unknown netdev %s", netDev)
			}
			return tcMock, nil
		}, logger)
	})

	Context("Actuate failures", func() {
		It("fails if objects have no root qdisc", func() {
			err := actuator.Actuate(&generator.Objects{Interface: "eth0"}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("fails if the tc of the interface can not be created", func() {
			objs := shaperObjects(1000)
			objs.Interface = "eth9"
			err := actuator.Actuate(objs, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("eth9"))
		})

		It("fails if listing qdisc fails", func() {
			tcMock.On("QDiscList").Return(nil, testErr)
			err := actuator.Actuate(shaperObjects(1000), nil)
			Expect(err).To(HaveOccurred())
		})

		It("returns an ApplyError naming the failed command and restores the previous objects", func() {
			previous := shaperObjects(1000, ssh)
			desired := shaperObjects(2000, ssh)
			tcMock.On("QDiscList").Return([]tctypes.QDisc{listedRoot}, nil)
			tcMock.On("QDiscDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType))).Return(nil).Twice()
			tcMock.On("QDiscAdd", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType))).Return(nil).Twice()
			tcMock.On("ClassAdd", mock.MatchedBy(classMatch(desired.Classes[0]))).Return(testErr).Once()
			tcMock.On("ClassAdd", mock.MatchedBy(classMatch(previous.Classes[0]))).Return(nil).Once()
			tcMock.On("FilterAdd", mock.Anything, mock.MatchedBy(filterMatch(ssh))).Return(nil).Once()

			err := actuator.Actuate(desired, previous)
			Expect(err).To(HaveOccurred())
			var applyErr *tc.ApplyError
			Expect(errors.As(err, &applyErr)).To(BeTrue())
			Expect(applyErr.Interface).To(Equal("eth0"))
			Expect(applyErr.Direction).To(Equal(policy.DirectionEgress))
			Expect(applyErr.Op).To(Equal("tc class add dev eth0 parent 1: classid 1:1 htb rate 2000bit ceil 2000bit"))
			Expect(errors.Is(err, testErr)).To(BeTrue())
		})
	})

	Context("Actuate full replace", func() {
		It("adds all objects in order when there is no previous root", func() {
			objs := shaperObjects(1000, ssh, marked)
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot}, nil)
			expectAdds(objs)

			Expect(actuator.Actuate(objs, nil)).To(Succeed())
			calls := []string{}
			for _, c := range tcMock.Calls {
				calls = append(calls, c.Method)
			}
			Expect(strings.Join(calls, ",")).To(Equal("QDiscList,QDiscAdd,ClassAdd,FilterAdd,FilterAdd"))
		})

		It("adds leaf qdiscs after the classes they attach to", func() {
			objs := shaperObjects(1000, ssh)
			leafAttrs := tctypes.NewQDiscAttrsBuilder().WithParent(rootHandle + 1).WithHandle(0x10010000).Build()
			objs.QDiscs = append(objs.QDiscs, &tctypes.SFQQDisc{QDiscAttrs: *leafAttrs})
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot}, nil)
			expectAdds(objs)

			Expect(actuator.Actuate(objs, nil)).To(Succeed())
			calls := []string{}
			for _, c := range tcMock.Calls {
				calls = append(calls, c.Method)
			}
			Expect(strings.Join(calls, ",")).To(Equal("QDiscList,QDiscAdd,ClassAdd,QDiscAdd,FilterAdd"))
			Expect(tcMock.Calls[3].Arguments.Get(0)).To(BeIdenticalTo(objs.QDiscs[1]))
		})

		It("deletes an existing root qdisc first", func() {
			objs := shaperObjects(1000)
			tcMock.On("QDiscList").Return([]tctypes.QDisc{listedRoot}, nil)
			tcMock.On("QDiscDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType))).Return(nil).Once()
			expectAdds(objs)

			Expect(actuator.Actuate(objs, nil)).To(Succeed())
		})

		It("recreates unchanged objects if the root qdisc is gone", func() {
			objs := shaperObjects(1000, ssh)
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot}, nil)
			expectAdds(objs)

			Expect(actuator.Actuate(objs, shaperObjects(1000, ssh))).To(Succeed())
		})

		It("issues change operations for gred virtual queues", func() {
			gred := &tctypes.GREDQDisc{QDiscAttrs: *rootAttrs(rootHandle), DPs: make([]tctypes.REDParams, 2)}
			objs := &generator.Objects{Interface: "eth0", Direction: policy.DirectionEgress,
				QDiscs: []tctypes.QDisc{gred}}
			tcMock.On("QDiscList").Return([]tctypes.QDisc{}, nil)
			tcMock.On("QDiscAdd", mock.Anything).Return(nil).Once()
			tcMock.On("QDiscChange", mock.Anything).Return(nil).Twice()

			Expect(actuator.Actuate(objs, nil)).To(Succeed())
		})
	})

	Context("Actuate incremental", func() {
		BeforeEach(func() {
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot, listedRoot}, nil)
		})

		It("does nothing if objects are unchanged", func() {
			Expect(actuator.Actuate(shaperObjects(1000, ssh), shaperObjects(1000, ssh))).To(Succeed())
		})

		It("replaces only the changed filter priorities", func() {
			prio := uint16(10)
			tcMock.On("FilterDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType)),
				mock.MatchedBy(filterAttrMatch(tctypes.NewFilterAttrs(
					tctypes.FilterKindU32, tctypes.FilterProtocolAll, nil, nil, &prio)))).Return(nil).Once()
			tcMock.On("FilterAdd", mock.Anything, mock.MatchedBy(filterMatch(web))).Return(nil).Once()

			Expect(actuator.Actuate(shaperObjects(1000, web, marked), shaperObjects(1000, ssh, marked))).To(Succeed())
		})

		It("adds the filters of a new priority", func() {
			tcMock.On("FilterAdd", mock.Anything, mock.MatchedBy(filterMatch(marked))).Return(nil).Once()

			Expect(actuator.Actuate(shaperObjects(1000, ssh, marked), shaperObjects(1000, ssh))).To(Succeed())
		})

		It("deletes chain 0 when no filter remains", func() {
			tcMock.On("ChainList", mock.Anything).Return([]tctypes.Chain{
				tctypes.NewChainBuilder().WithParent(rootHandle).WithChain(0).Build()}, nil)
			tcMock.On("ChainDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType)),
				mock.MatchedBy(chainMatch(0))).Return(nil).Once()

			Expect(actuator.Actuate(shaperObjects(1000), shaperObjects(1000, ssh))).To(Succeed())
		})

		It("does nothing if chain 0 does not exist", func() {
			tcMock.On("ChainList", mock.Anything).Return([]tctypes.Chain{}, nil)

			Expect(actuator.Actuate(shaperObjects(1000), shaperObjects(1000, ssh))).To(Succeed())
		})
	})

	Context("Teardown", func() {
		It("deletes the root qdisc if present", func() {
			tcMock.On("QDiscList").Return([]tctypes.QDisc{listedRoot}, nil)
			tcMock.On("QDiscDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscHTBType))).Return(nil).Once()

			Expect(actuator.Teardown(shaperObjects(1000))).To(Succeed())
		})

		It("deletes the ingress qdisc of a limiter", func() {
			ingress := tctypes.NewIngressQDiscBuilder().Build()
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot, ingress}, nil)
			tcMock.On("QDiscDel", mock.MatchedBy(qdiscMatch(tctypes.QDiscIngressType))).Return(nil).Once()

			objs := limiterObjects(1)
			objs.Interface = "eth0"
			Expect(actuator.Teardown(objs)).To(Succeed())
		})

		It("does nothing if the root qdisc is not present", func() {
			tcMock.On("QDiscList").Return([]tctypes.QDisc{defaultRoot}, nil)

			Expect(actuator.Teardown(shaperObjects(1000))).To(Succeed())
		})
	})
})
