package tc

import (
	"slices"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// FilterGroups holds filters grouped by priority. The filters of a priority keep their order,
// the kernel tries them in that order.
type FilterGroups map[uint16][]types.Filter

// GroupFiltersByPref returns the FilterGroups of filters
func GroupFiltersByPref(filters []types.Filter) FilterGroups {
	groups := FilterGroups{}
	for _, f := range filters {
		pref := *f.Attrs().Priority
		groups[pref] = append(groups[pref], f)
	}
	return groups
}

// Prefs returns the priorities of g in ascending order
func (g FilterGroups) Prefs() []uint16 {
	prefs := make([]uint16, 0, len(g))
	for pref := range g {
		prefs = append(prefs, pref)
	}
	slices.Sort(prefs)
	return prefs
}

// Changed returns, in ascending order, the priorities present in g or other whose filters differ
func (g FilterGroups) Changed(other FilterGroups) []uint16 {
	changed := []uint16{}
	for _, pref := range g.Prefs() {
		if !generator.FiltersEqual(g[pref], other[pref]) {
			changed = append(changed, pref)
		}
	}
	for _, pref := range other.Prefs() {
		if _, ok := g[pref]; !ok {
			changed = append(changed, pref)
		}
	}
	slices.Sort(changed)
	return changed
}
