package types

import (
	"fmt"
)

const (
	// HandleRoot is the parent of a root qdisc
	HandleRoot uint32 = 0xffffffff
	// HandleIngress is the parent of the ingress qdisc
	HandleIngress uint32 = 0xfffffff1
)

// CmdLineGenerator is an interface for generating tc command line args for a tc object
type CmdLineGenerator interface {
	// GenCmdLineArgs returns tc command line arguments which can be incorporated
	// when invoking tc command via shell
	GenCmdLineArgs() []string
}

// MakeHandle returns the tc handle major:minor
func MakeHandle(major, minor uint16) uint32 {
	return uint32(major)<<16 | uint32(minor)
}

// HandleMajor returns the major part of handle
func HandleMajor(handle uint32) uint16 {
	return uint16(handle >> 16)
}

// HandleMinor returns the minor part of handle
func HandleMinor(handle uint32) uint16 {
	return uint16(handle)
}

// FormatHandle formats handle the way tc does: "1:" for qdisc handles and "1:a" for class ids
func FormatHandle(handle uint32) string {
	if HandleMinor(handle) == 0 {
		return fmt.Sprintf("%x:", HandleMajor(handle))
	}
	return fmt.Sprintf("%x:%x", HandleMajor(handle), HandleMinor(handle))
}
