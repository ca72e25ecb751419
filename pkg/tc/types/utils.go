package types

import (
	"strconv"
)

// compare first with second. They are equal if:
//  1. first and second point to the same address (nil or otherwise)
//  2. first and second contain the same value
//  3. if nilVal != nil
//     3.1 first is not nil and *nilVal equals to *first
//     3.2 second is not nil and *nilVal equals to *second
func compare[C comparable](first *C, second *C, nilVal *C) bool {
	if first == second {
		return true
	}

	if first != nil && second != nil {
		return *first == *second
	}

	if nilVal != nil {
		if first != nil && *first == *nilVal {
			return true
		}
		if second != nil && *second == *nilVal {
			return true
		}
	}
	return false
}

// appendUint appends key and the value of v to args if v is set
func appendUint(args []string, key string, v *uint32) []string {
	if v == nil {
		return args
	}
	return append(args, key, strconv.FormatUint(uint64(*v), 10))
}

func formatUint[U uint8 | uint16 | uint32 | uint64](v U) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatHex(v uint16) string {
	return strconv.FormatUint(uint64(v), 16)
}
