package tc_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	klog "k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/utils"
)

func getLastModifiedTime(path string) time.Time {
	fInfo, err := os.Lstat(path)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return fInfo.ModTime()
}

func limiterObjects(prefs ...uint16) *generator.Objects {
	objs := &generator.Objects{
		Interface: "eth0",
		Direction: policy.DirectionIngress,
		Policy:    "L",
		Pass:      "p1",
		QDiscs:    []types.QDisc{types.NewIngressQDiscBuilder().Build()},
	}
	for _, p := range prefs {
		objs.Filters = append(objs.Filters, types.NewFilterBuilder(types.FilterKindBasic).
			WithProtocol(types.FilterProtocolAll).WithPriority(p).WithFlowID(types.MakeHandle(0xffff, p)).Build())
	}
	return objs
}

var _ = Describe("Actuator file writer tests", Ordered, func() {
	var tempDir string
	var logger klog.Logger
	var actuator *tc.ActuatorFileWriterImpl

	BeforeAll(func() {
		logger = klog.NewKlogr().WithName("actuator-file-writer-test")
		tempDir = GinkgoT().TempDir()
		By(fmt.Sprintf("Generated temp dir for test: %s", tempDir))
	})

	Context("Actuator file writer with bad path", func() {
		It("fails to actuate on non existent path", func() {
			nonExistentPath := filepath.Join(tempDir, "does", "not", "exist")
			actuator = tc.NewActuatorFileWriterImpl(nonExistentPath, logger)
			err := actuator.Actuate(limiterObjects(1), nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Actuator file writer with valid path", func() {
		var key tc.Key

		BeforeEach(func() {
			actuator = tc.NewActuatorFileWriterImpl(tempDir, logger)
			key = tc.KeyOf(limiterObjects())
			exist, err := utils.PathExists(actuator.Path(key))
			Expect(err).ToNot(HaveOccurred())
			Expect(exist).To(BeFalse())
		})

		AfterEach(func() {
			Expect(actuator.Teardown(limiterObjects())).To(Succeed())
		})

		It("names the file after the binding", func() {
			Expect(actuator.Path(key)).To(Equal(filepath.Join(tempDir, "eth0.ingress.yaml")))
		})

		It("loads nothing when there is no file", func() {
			commands, err := actuator.Load(key)
			Expect(err).ToNot(HaveOccurred())
			Expect(commands).To(BeNil())
		})

		It("Writes objects to file when file does not exist", func() {
			objs := limiterObjects(1)
			Expect(actuator.Actuate(objs, nil)).To(Succeed())

			content, err := os.ReadFile(actuator.Path(key))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("policy: L\n"))
			Expect(string(content)).To(ContainSubstring("pass: p1\n"))

			commands, err := actuator.Load(key)
			Expect(err).ToNot(HaveOccurred())
			Expect(commands).To(Equal(objs.Render()))
		})

		It("updates objects in file when file exist", func() {
			Expect(actuator.Actuate(limiterObjects(1), nil)).To(Succeed())
			objs := limiterObjects(1, 2)
			Expect(actuator.Actuate(objs, nil)).To(Succeed())

			commands, err := actuator.Load(key)
			Expect(err).ToNot(HaveOccurred())
			Expect(commands).To(HaveLen(3))
			Expect(commands).To(Equal(objs.Render()))
		})

		It("does not update file if same objects provided", func() {
			Expect(actuator.Actuate(limiterObjects(1), nil)).To(Succeed())
			firstModified := getLastModifiedTime(actuator.Path(key))

			objs := limiterObjects(1)
			objs.Pass = "p2"
			Expect(actuator.Actuate(objs, nil)).To(Succeed())
			lastModified := getLastModifiedTime(actuator.Path(key))

			Expect(firstModified.Equal(lastModified)).To(BeTrue())
		})

		It("removes the file on teardown", func() {
			Expect(actuator.Actuate(limiterObjects(1), nil)).To(Succeed())
			Expect(actuator.Teardown(limiterObjects())).To(Succeed())
			exist, err := utils.PathExists(actuator.Path(key))
			Expect(err).ToNot(HaveOccurred())
			Expect(exist).To(BeFalse())
		})
	})
})
