package net

import (
	"github.com/pkg/errors"
	"github.com/safchain/ethtool"
)

const speedUnknown = 0xffffffff

// LinkSpeedProvider returns the speed of a link
type LinkSpeedProvider interface {
	// LinkSpeed returns the speed of netdev in bits/s, 0 if the link does not report one
	LinkSpeed(netDev string) (uint64, error)
}

// NewEthtoolLinkSpeedProvider creates a new EthtoolLinkSpeedProvider
func NewEthtoolLinkSpeedProvider() *EthtoolLinkSpeedProvider {
	return &EthtoolLinkSpeedProvider{}
}

// EthtoolLinkSpeedProvider is a LinkSpeedProvider querying the link settings with ethtool
type EthtoolLinkSpeedProvider struct{}

// LinkSpeed implements LinkSpeedProvider interface
func (e *EthtoolLinkSpeedProvider) LinkSpeed(netDev string) (uint64, error) {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return 0, errors.Wrap(err, "failed to create ethtool handle")
	}
	defer et.Close()

	// speed is in Mbit/s
	speed, err := et.CmdGet(&ethtool.EthtoolCmd{}, netDev)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get link settings of %s", netDev)
	}
	if speed == 0 || speed == speedUnknown {
		return 0, nil
	}
	return uint64(speed) * 1000 * 1000, nil
}
