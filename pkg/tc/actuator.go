package tc

import (
	"fmt"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
)

// Key identifies an interface binding
type Key struct {
	Interface string
	Direction policy.Direction
}

func (k Key) String() string {
	return k.Interface + "/" + string(k.Direction)
}

// KeyOf returns the binding key of objects
func KeyOf(objects *generator.Objects) Key {
	return Key{Interface: objects.Interface, Direction: objects.Direction}
}

// Actuator is an interface that applies specified TC Objects on netdev
type Actuator interface {
	// Actuate applies TC object in desired on NetDev provided in desired. previous holds the
	// objects last applied on the same binding, nil if unknown.
	Actuate(desired, previous *generator.Objects) error
	// Teardown removes the objects applied on a binding
	Teardown(previous *generator.Objects) error
}

// StateStore is an Actuator keeping the rendered objects of every binding
type StateStore interface {
	Actuator
	// Load returns the stored command lines of key, nil if there are none
	Load(key Key) ([]string, error)
}

// ApplyError is the failure of a single operation on a binding
type ApplyError struct {
	Interface string
	Direction policy.Direction
	// Op is the failed tc command line
	Op  string
	Err error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("interface %s %s: %s: %v", e.Interface, e.Direction, e.Op, e.Err)
}

// Unwrap returns the driver error
func (e *ApplyError) Unwrap() error {
	return e.Err
}
