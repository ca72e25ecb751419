package matchgroup_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/matchgroup"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
)

func markMatch(name string, mark uint32) policy.Match {
	return policy.Match{Name: name, Mark: &mark}
}

func group(name string, matches []policy.Match, includes ...string) *policy.MatchGroup {
	return &policy.MatchGroup{Name: name, Matches: matches, MatchGroups: includes}
}

func keys(matches []policy.Match) []string {
	out := []string{}
	for i := range matches {
		out = append(out, matches[i].Key())
	}
	return out
}

var _ = Describe("Resolver tests", func() {
	log := klog.NewKlogr().WithName("matchgroup-test")

	It("returns local matches followed by group matches", func() {
		groups := map[string]*policy.MatchGroup{
			"g": group("g", []policy.Match{markMatch("g1", 10), markMatch("g2", 11)}),
		}
		r := matchgroup.NewResolverImpl(groups, log)
		matches, warnings := r.Resolve("class 10", []policy.Match{markMatch("l", 1)}, []string{"g"})
		Expect(warnings).To(BeEmpty())
		Expect(keys(matches)).To(Equal([]string{"mark=1", "mark=10", "mark=11"}))
	})

	It("deduplicates predicates keeping the first occurrence", func() {
		groups := map[string]*policy.MatchGroup{
			"a": group("a", []policy.Match{markMatch("x", 1), markMatch("y", 2)}),
			"b": group("b", []policy.Match{markMatch("z", 2), markMatch("w", 3)}),
		}
		r := matchgroup.NewResolverImpl(groups, log)
		matches, _ := r.Resolve("class 10", []policy.Match{markMatch("l", 2)}, []string{"a", "b"})
		Expect(keys(matches)).To(Equal([]string{"mark=2", "mark=1", "mark=3"}))
		Expect(matches[0].Name).To(Equal("l"))
	})

	It("skips matches without predicates", func() {
		groups := map[string]*policy.MatchGroup{
			"a": group("a", []policy.Match{{Name: "empty", Description: "nothing"}}),
		}
		r := matchgroup.NewResolverImpl(groups, log)
		matches, warnings := r.Resolve("class 10", nil, []string{"a"})
		Expect(matches).To(BeEmpty())
		Expect(warnings).To(BeEmpty())
	})

	It("tolerates self references", func() {
		groups := map[string]*policy.MatchGroup{
			"1": group("1", []policy.Match{markMatch("m", 7)}, "1"),
		}
		r := matchgroup.NewResolverImpl(groups, log)
		matches, warnings := r.Resolve("shaper S class 10", nil, []string{"1"})
		Expect(keys(matches)).To(Equal([]string{"mark=7"}))
		Expect(warnings).To(ConsistOf(matchgroup.Warning{
			Kind: matchgroup.WarningCycle, Group: "1", Owner: "shaper S class 10"}))
	})

	It("reports dangling references with an empty contribution", func() {
		r := matchgroup.NewResolverImpl(map[string]*policy.MatchGroup{}, log)
		matches, warnings := r.Resolve("class 10", []policy.Match{markMatch("l", 1)}, []string{"missing"})
		Expect(keys(matches)).To(Equal([]string{"mark=1"}))
		Expect(warnings).To(HaveLen(1))
		Expect(warnings[0].Kind).To(Equal(matchgroup.WarningDangling))
		Expect(warnings[0].String()).To(Equal("class 10: traffic-match-group missing does not exist"))
	})

	Context("with a three node cycle", func() {
		groups := map[string]*policy.MatchGroup{
			"A": group("A", []policy.Match{markMatch("a", 1)}, "B"),
			"B": group("B", []policy.Match{markMatch("b", 2)}, "C"),
			"C": group("C", []policy.Match{markMatch("c", 3)}, "A"),
		}

		It("resolves the same predicate set from every node", func() {
			r := matchgroup.NewResolverImpl(groups, log)
			fromA, warnA := r.ResolveGroup("A")
			fromB, warnB := r.ResolveGroup("B")
			fromC, warnC := r.ResolveGroup("C")
			Expect(keys(fromA)).To(ConsistOf(keys(fromB)))
			Expect(keys(fromB)).To(ConsistOf(keys(fromC)))
			Expect(keys(fromA)).To(ConsistOf("mark=1", "mark=2", "mark=3"))
			Expect(warnA).To(HaveLen(1))
			Expect(warnB).To(HaveLen(1))
			Expect(warnC).To(HaveLen(1))
		})

		It("is stable across calls", func() {
			r := matchgroup.NewResolverImpl(groups, log)
			first, _ := r.ResolveGroup("B")
			second, _ := r.ResolveGroup("B")
			Expect(keys(first)).To(Equal(keys(second)))
			Expect(keys(first)).To(Equal([]string{"mark=2", "mark=3", "mark=1"}))
		})

		It("reports the group closing the cycle", func() {
			r := matchgroup.NewResolverImpl(groups, log)
			_, warnings := r.Resolve("shaper S class 10", nil, []string{"B"})
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].String()).To(Equal("shaper S class 10: traffic-match-group B is already on " +
				"the inclusion path, ignoring the cyclic reference"))
		})
	})

	It("does not treat diamonds as cycles", func() {
		groups := map[string]*policy.MatchGroup{
			"top":    group("top", nil, "left", "right"),
			"left":   group("left", []policy.Match{markMatch("l", 1)}, "common"),
			"right":  group("right", []policy.Match{markMatch("r", 2)}, "common"),
			"common": group("common", []policy.Match{markMatch("c", 3)}),
		}
		r := matchgroup.NewResolverImpl(groups, log)
		matches, warnings := r.ResolveGroup("top")
		Expect(warnings).To(BeEmpty())
		Expect(keys(matches)).To(Equal([]string{"mark=1", "mark=3", "mark=2"}))
	})
})
