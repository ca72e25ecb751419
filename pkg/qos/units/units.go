// Package units converts the human readable quantities used in QoS policies
// (rates, sizes and times) into the integer units expected by the kernel.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RateKind tells whether a Rate is absolute or still has to be resolved
type RateKind int

const (
	// RateAbsolute is a rate in bits per second
	RateAbsolute RateKind = iota
	// RatePercent is a rate relative to the parent bandwidth
	RatePercent
	// RateAuto is the speed of the link the policy is bound to
	RateAuto
)

// rate suffixes and their multiplier to bits per second
var rateSuffixes = map[string]float64{
	"bit":   1,
	"kbit":  1e3,
	"mbit":  1e6,
	"gbit":  1e9,
	"tbit":  1e12,
	"kibit": 1 << 10,
	"mibit": 1 << 20,
	"gibit": 1 << 30,
	"tibit": 1 << 40,
	"bps":   8,
	"kbps":  8e3,
	"mbps":  8e6,
	"gbps":  8e9,
	"tbps":  8e12,
}

// size suffixes and their multiplier to bytes
var sizeSuffixes = map[string]float64{
	"b":  1,
	"k":  1 << 10,
	"kb": 1 << 10,
	"m":  1 << 20,
	"mb": 1 << 20,
	"g":  1 << 30,
	"gb": 1 << 30,
}

// time suffixes and their multiplier to microseconds
var timeSuffixes = map[string]float64{
	"us":   1,
	"usec": 1,
	"ms":   1e3,
	"msec": 1e3,
	"s":    1e6,
	"sec":  1e6,
}

// ParseError is returned when a quantity cannot be parsed
type ParseError struct {
	Kind  string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Kind, e.Value)
}

// Rate is a parsed bandwidth figure
type Rate struct {
	kind    RateKind
	bits    uint64
	percent float64
}

// ParseRate parses a bandwidth figure. Unsuffixed values are kbit/s, "%" values are relative
// to the parent bandwidth and "auto" is the link speed.
func ParseRate(s string) (Rate, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return Rate{}, &ParseError{Kind: "rate", Value: s}
	}
	if v == "auto" {
		return Rate{kind: RateAuto}, nil
	}
	if strings.HasSuffix(v, "%") {
		p, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil || p <= 0 || p > 100 {
			return Rate{}, &ParseError{Kind: "rate", Value: s}
		}
		return Rate{kind: RatePercent, percent: p}, nil
	}

	num, suffix := splitNumber(v)
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return Rate{}, &ParseError{Kind: "rate", Value: s}
	}
	mult := 1e3
	if suffix != "" {
		var ok bool
		if mult, ok = rateSuffixes[suffix]; !ok {
			return Rate{}, &ParseError{Kind: "rate", Value: s}
		}
	}
	return Rate{kind: RateAbsolute, bits: uint64(math.Round(n * mult))}, nil
}

// Kind returns the RateKind of r
func (r Rate) Kind() RateKind {
	return r.kind
}

// IsZero returns true for the zero Rate (an unset figure)
func (r Rate) IsZero() bool {
	return r == Rate{}
}

// Resolve returns r in bits per second. reference is the parent bandwidth for percentage
// figures or the link speed for auto figures.
func (r Rate) Resolve(reference uint64) uint64 {
	switch r.kind {
	case RatePercent:
		return uint64(math.Round(float64(reference) * r.percent / 100))
	case RateAuto:
		return reference
	default:
		return r.bits
	}
}

func (r Rate) String() string {
	switch r.kind {
	case RatePercent:
		return strconv.FormatFloat(r.percent, 'f', -1, 64) + "%"
	case RateAuto:
		return "auto"
	default:
		return FormatRate(r.bits)
	}
}

// BytesPerSecond converts bits per second to the byte rate stored by the kernel
func BytesPerSecond(bits uint64) uint64 {
	return bits / 8
}

// FormatRate renders bits per second as a tc rate argument
func FormatRate(bits uint64) string {
	return strconv.FormatUint(bits, 10) + "bit"
}

// ParseSize parses a byte figure. Unsuffixed values are bytes, k/m/g suffixes are 1024 based.
func ParseSize(s string) (uint32, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	num, suffix := splitNumber(v)
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return 0, &ParseError{Kind: "size", Value: s}
	}
	mult := 1.0
	if suffix != "" {
		var ok bool
		if mult, ok = sizeSuffixes[suffix]; !ok {
			return 0, &ParseError{Kind: "size", Value: s}
		}
	}
	b := math.Round(n * mult)
	if b > math.MaxUint32 {
		return 0, &ParseError{Kind: "size", Value: s}
	}
	return uint32(b), nil
}

// ParseTime parses a time figure into microseconds. Unsuffixed values are milliseconds.
func ParseTime(s string) (uint32, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	num, suffix := splitNumber(v)
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return 0, &ParseError{Kind: "time", Value: s}
	}
	mult := 1e3
	if suffix != "" {
		var ok bool
		if mult, ok = timeSuffixes[suffix]; !ok {
			return 0, &ParseError{Kind: "time", Value: s}
		}
	}
	us := math.Round(n * mult)
	if us > math.MaxUint32 {
		return 0, &ParseError{Kind: "time", Value: s}
	}
	return uint32(us), nil
}

// FormatTime renders microseconds as a tc time argument
func FormatTime(us uint32) string {
	return strconv.FormatUint(uint64(us), 10) + "us"
}

// TargetMicros converts a target style figure in milliseconds to the microsecond value
// the kernel holds after its tick quantization.
func TargetMicros(ms uint32) uint32 {
	if ms == 0 {
		return 0
	}
	return ms*1000 - 1
}

// TargetFigure is the inverse of TargetMicros: it returns the microsecond figure to
// configure for the kernel to hold us.
func TargetFigure(us uint32) uint32 {
	if us == 0 {
		return 0
	}
	return us + 1
}

// IntervalMicros converts an interval style figure in milliseconds to microseconds.
func IntervalMicros(ms uint32) uint32 {
	return ms * 1000
}

// ParseUint parses a plain unsigned integer, kind names the quantity for the error.
func ParseUint(kind, s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, &ParseError{Kind: kind, Value: s}
	}
	return uint32(n), nil
}

// ParsePercent parses a percentage figure in the range 0-100, a trailing "%" is optional.
func ParsePercent(s string) (float64, error) {
	v := strings.TrimSuffix(strings.TrimSpace(s), "%")
	p, err := strconv.ParseFloat(v, 64)
	if err != nil || p < 0 || p > 100 {
		return 0, &ParseError{Kind: "percentage", Value: s}
	}
	return p, nil
}

// splitNumber splits v into its leading number and the remaining suffix
func splitNumber(v string) (num, suffix string) {
	i := 0
	for i < len(v) && (v[i] >= '0' && v[i] <= '9' || v[i] == '.') {
		i++
	}
	return v[:i], strings.TrimSpace(v[i:])
}
