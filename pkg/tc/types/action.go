package types

import (
	"fmt"
	"strconv"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
)

const (
	// Action type
	ActionTypePolice ActionType = "police"

	// Police control actions
	PoliceControlDrop       PoliceControl = "drop"
	PoliceControlPipe       PoliceControl = "pipe"
	PoliceControlContinue   PoliceControl = "continue"
	PoliceControlOK         PoliceControl = "ok"
	PoliceControlReclassify PoliceControl = "reclassify"
)

// ActionType is the TC Action type
type ActionType string

// PoliceControl is the control action taken by a police action
type PoliceControl string

// Action is an interface which represents a TC action
type Action interface {
	// Type returns the action type
	Type() ActionType
	// Equals compares this Action with other, returns true if they are equal or false otherwise
	Equals(other Action) bool

	// Driver Specific related Interfaces
	CmdLineGenerator
}

// PoliceAction is a struct representing TC police action. Rate is in bits/s, Burst and MTU
// in bytes. A zero MTU is left to the kernel.
type PoliceAction struct {
	Rate      uint64
	Burst     uint32
	MTU       uint32
	Exceed    PoliceControl
	NotExceed PoliceControl
}

// Type implements Action interface, it returns the type of the action
func (a *PoliceAction) Type() ActionType {
	return ActionTypePolice
}

// Equals implements Action interface, it returns true if this and other Action are equal
func (a *PoliceAction) Equals(other Action) bool {
	otherPolice, ok := other.(*PoliceAction)
	if !ok {
		return false
	}
	return *a == *otherPolice
}

// GenCmdLineArgs implements CmdLineGenerator interface
func (a *PoliceAction) GenCmdLineArgs() []string {
	args := []string{"action", string(ActionTypePolice),
		"rate", units.FormatRate(a.Rate),
		"burst", strconv.FormatUint(uint64(a.Burst), 10)}
	if a.MTU != 0 {
		args = append(args, "mtu", strconv.FormatUint(uint64(a.MTU), 10))
	}
	return append(args, "conform-exceed", fmt.Sprintf("%s/%s", a.Exceed, a.NotExceed))
}

// Builder

// NewPoliceActionBuilder creates a new PoliceActionBuilder
func NewPoliceActionBuilder() *PoliceActionBuilder {
	return &PoliceActionBuilder{policeAction: PoliceAction{Exceed: PoliceControlDrop, NotExceed: PoliceControlOK}}
}

// PoliceActionBuilder is a PoliceAction builder, the control actions default to drop/ok
type PoliceActionBuilder struct {
	policeAction PoliceAction
}

// WithRate adds Rate and Burst to PoliceActionBuilder
func (pb *PoliceActionBuilder) WithRate(rate uint64, burst uint32) *PoliceActionBuilder {
	pb.policeAction.Rate = rate
	pb.policeAction.Burst = burst
	return pb
}

// WithMTU adds MTU to PoliceActionBuilder
func (pb *PoliceActionBuilder) WithMTU(mtu uint32) *PoliceActionBuilder {
	pb.policeAction.MTU = mtu
	return pb
}

// WithConformExceed adds the exceed and not exceed control actions to PoliceActionBuilder
func (pb *PoliceActionBuilder) WithConformExceed(exceed, notExceed PoliceControl) *PoliceActionBuilder {
	pb.policeAction.Exceed = exceed
	pb.policeAction.NotExceed = notExceed
	return pb
}

// Build builds and returns a new PoliceAction instance
func (pb *PoliceActionBuilder) Build() *PoliceAction {
	a := pb.policeAction
	return &a
}
