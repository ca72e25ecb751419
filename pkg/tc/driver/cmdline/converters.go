package cmdline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// toQDisc converts a listed qdisc to a types.GenericQDisc, options are not kept
func toQDisc(q cQDisc) (types.QDisc, error) {
	handle, err := parseMajorMinor(q.Handle)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse qdisc Handle")
	}
	parent := types.HandleRoot
	if !q.Root {
		parent, err = parseMajorMinor(q.Parent)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to parse qdisc Parent")
		}
	}
	attrs := types.NewQDiscAttrsBuilder().WithParent(parent).WithHandle(handle).Build()
	return types.NewGenericQdisc(attrs, types.QDiscType(q.Kind)), nil
}

func toChain(c cChain) (types.Chain, error) {
	parent, err := parseMajorMinor(c.Parent)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse Chain Parent")
	}
	return types.NewChainBuilder().WithChain(c.Chain).WithParent(parent).Build(), nil
}

// parseMajorMinor parses TC string Handle and Parent. for a given format the following output is expected as depicted
// below.
//
//	"abcd" -> int32(0xabcd)
//	"abcdef01" -> int32(0xabcdef01)
//	"abcd:" -> int32(0xabcd0000)
//	"abcd:ef01" -> int32(0xabcdef01)
func parseMajorMinor(mm string) (uint32, error) {
	parsedMm := strings.Split(mm, ":")

	switch len(parsedMm) {
	case 1:
		p, err := strconv.ParseUint(parsedMm[0], 16, 32)
		return uint32(p), err
	case 2:
		major, err := strconv.ParseUint(parsedMm[0], 16, 16)
		if err != nil {
			return 0, err
		}
		var minor uint64
		if len(parsedMm[1]) > 0 {
			minor, err = strconv.ParseUint(parsedMm[1], 16, 16)
			if err != nil {
				return 0, err
			}
		}
		return types.MakeHandle(uint16(major), uint16(minor)), nil
	default:
		return 0, fmt.Errorf("failed to parse MajorMinor string: %s", mm)
	}
}
