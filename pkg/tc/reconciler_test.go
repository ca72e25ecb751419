package tc_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	klog "k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	tcmocks "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/mocks"
)

var _ = Describe("Reconciler tests", func() {
	var actuatorMock *tcmocks.Actuator
	var reconciler *tc.Reconciler
	var logger klog.Logger
	var ingress, egress *generator.Objects
	var noObjects *generator.Objects
	testErr := errors.New("test error!")
	ingressKey := tc.Key{Interface: "eth0", Direction: policy.DirectionIngress}
	egressKey := tc.Key{Interface: "eth0", Direction: policy.DirectionEgress}

	BeforeEach(func() {
		logger = klog.NewKlogr().WithName("reconciler-test")
		actuatorMock = tcmocks.NewActuator(GinkgoT())
		reconciler = tc.NewReconciler(actuatorMock, nil, logger)
		ingress = limiterObjects(1, 2)
		egress = shaperObjects(1000, portFilter(10, 22, 0x10001))
	})

	It("has the key of its objects", func() {
		Expect(tc.KeyOf(ingress)).To(Equal(ingressKey))
		Expect(egressKey.String()).To(Equal("eth0/egress"))
	})

	It("applies every binding", func() {
		actuatorMock.On("Actuate", ingress, noObjects).Return(nil).Once()
		actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()

		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{ingress, egress})).To(Succeed())
		Expect(reconciler.Applied(ingressKey)).To(BeIdenticalTo(ingress))
		Expect(reconciler.Applied(egressKey)).To(BeIdenticalTo(egress))
	})

	It("passes the applied objects as previous", func() {
		actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()
		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())

		updated := shaperObjects(2000)
		actuatorMock.On("Actuate", updated, egress).Return(nil).Once()
		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{updated})).To(Succeed())
		Expect(reconciler.Applied(egressKey)).To(BeIdenticalTo(updated))
	})

	It("tears down bindings which are no longer desired", func() {
		actuatorMock.On("Actuate", ingress, noObjects).Return(nil).Once()
		actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()
		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{ingress, egress})).To(Succeed())

		actuatorMock.On("Actuate", egress, egress).Return(nil).Once()
		actuatorMock.On("Teardown", ingress).Return(nil).Once()
		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())
		Expect(reconciler.Applied(ingressKey)).To(BeNil())
	})

	It("keeps a binding whose teardown failed", func() {
		actuatorMock.On("Actuate", ingress, noObjects).Return(nil).Once()
		Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{ingress})).To(Succeed())

		actuatorMock.On("Teardown", ingress).Return(testErr).Once()
		Expect(reconciler.Reconcile(context.Background(), nil)).ToNot(Succeed())
		Expect(reconciler.Applied(ingressKey)).To(BeIdenticalTo(ingress))
	})

	It("aggregates the errors of all bindings and forgets failed bindings", func() {
		other := shaperObjects(1000)
		other.Interface = "eth1"
		actuatorMock.On("Actuate", ingress, noObjects).Return(testErr).Once()
		actuatorMock.On("Actuate", egress, noObjects).Return(
			&tc.ApplyError{Interface: "eth0", Direction: policy.DirectionEgress, Op: "tc qdisc add", Err: testErr}).Once()
		actuatorMock.On("Actuate", other, noObjects).Return(nil).Once()

		err := reconciler.Reconcile(context.Background(), []*generator.Objects{ingress, egress, other})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("interface eth0 ingress: actuate: test error!"))
		Expect(err.Error()).To(ContainSubstring("interface eth0 egress: tc qdisc add: test error!"))
		Expect(reconciler.Applied(ingressKey)).To(BeNil())
		Expect(reconciler.Applied(egressKey)).To(BeNil())
		Expect(reconciler.Applied(tc.KeyOf(other))).To(BeIdenticalTo(other))
	})

	It("fails on duplicate bindings", func() {
		err := reconciler.Reconcile(context.Background(), []*generator.Objects{egress, shaperObjects(2000)})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("duplicate binding eth0/egress"))
	})

	It("does not actuate once the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(reconciler.Reconcile(ctx, []*generator.Objects{egress})).ToNot(Succeed())
		Expect(reconciler.Applied(egressKey)).To(BeNil())
	})

	Context("with a state store", func() {
		var storeMock *tcmocks.StateStore

		BeforeEach(func() {
			storeMock = tcmocks.NewStateStore(GinkgoT())
			reconciler = tc.NewReconciler(actuatorMock, storeMock, logger)
		})

		It("uses matching stored state as previous objects", func() {
			storeMock.On("Load", egressKey).Return(egress.Render(), nil).Once()
			actuatorMock.On("Actuate", egress, egress).Return(nil).Once()
			storeMock.On("Actuate", egress, egress).Return(nil).Once()

			Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())
		})

		It("ignores stored state of other objects", func() {
			storeMock.On("Load", egressKey).Return([]string{"tc qdisc add dev eth0 root handle 1: sfq"}, nil).Once()
			actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()
			storeMock.On("Actuate", egress, noObjects).Return(nil).Once()

			Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())
		})

		It("does not fail on store errors", func() {
			storeMock.On("Load", egressKey).Return(nil, testErr).Once()
			actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()
			storeMock.On("Actuate", egress, noObjects).Return(testErr).Once()

			Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())
			Expect(reconciler.Applied(egressKey)).To(BeIdenticalTo(egress))
		})

		It("removes the stored state of torn down bindings", func() {
			storeMock.On("Load", egressKey).Return(nil, nil).Once()
			actuatorMock.On("Actuate", egress, noObjects).Return(nil).Once()
			storeMock.On("Actuate", egress, noObjects).Return(nil).Once()
			Expect(reconciler.Reconcile(context.Background(), []*generator.Objects{egress})).To(Succeed())

			actuatorMock.On("Teardown", egress).Return(nil).Once()
			storeMock.On("Teardown", egress).Return(nil).Once()
			Expect(reconciler.Reconcile(context.Background(), nil)).To(Succeed())
		})
	})
})
