package server

import (
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/compiler"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/units"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
)

const (
	TCDriverCmdline = "cmdline"
	TCDriverNetlink = "netlink"
)

// Options stores option for the command
type Options struct {
	// ConfigPath is the path of the qos configuration file
	ConfigPath string
	// Format of the configuration file, detected from its extension if empty
	Format string
	// TCDriver selects how tc objects are applied, cmdline or netlink
	TCDriver string
	// StateDir, if non-empty, keeps the rendered tc commands of every binding
	StateDir string
	// MetricsAddress, if non-empty, is the listen address of the metrics endpoint
	MetricsAddress string
	// DefaultLinkSpeed is used for auto bandwidths when the link speed is unknown
	DefaultLinkSpeed string
	// ResyncPeriod is the maximum interval between two syncs
	ResyncPeriod time.Duration
	// MinSyncPeriod is the minimum interval between two syncs
	MinSyncPeriod time.Duration

	// overrides used by tests
	tcFactory   tc.Factory
	linkSpeedFn compiler.LinkSpeedFunc
	ifIndexFn   generator.IfIndexFunc
	stateStore  tc.StateStore
}

// AddFlags adds command line flags into command
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.SortFlags = false
	o.AddConfigFlags(fs)
	fs.StringVar(&o.TCDriver, "tc-driver", o.TCDriver, "The driver used to apply tc objects, one of cmdline or netlink.")
	fs.StringVar(&o.StateDir, "state-dir", o.StateDir, "If non-empty, will use this directory to store the tc commands of every interface binding.")
	fs.StringVar(&o.MetricsAddress, "metrics-address", o.MetricsAddress, "If non-empty, the address to serve prometheus metrics on, e.g :9100.")
	fs.DurationVar(&o.ResyncPeriod, "resync-period", o.ResyncPeriod, "The maximum interval between two syncs of the tc state.")
	fs.DurationVar(&o.MinSyncPeriod, "min-sync-period", o.MinSyncPeriod, "The minimum interval between two syncs of the tc state.")
}

// AddLogFlags adds the klog flags into fs
func AddLogFlags(fs *pflag.FlagSet) {
	klog.InitFlags(nil)
	fs.AddGoFlagSet(flag.CommandLine)
}

// AddConfigFlags adds the flags needed to compile a configuration file
func (o *Options) AddConfigFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", o.ConfigPath, "Path to the qos configuration file.")
	fs.StringVar(&o.Format, "format", o.Format, "Format of the configuration file, one of yaml or set. Detected from the file extension if empty.")
	fs.StringVar(&o.DefaultLinkSpeed, "default-link-speed", o.DefaultLinkSpeed, "The bandwidth used for auto when the link speed can not be read.")
}

// Validate checks the options, it returns the configuration format to use
func (o *Options) Validate() (config.Format, error) {
	if o.ConfigPath == "" {
		return "", errors.New("config path is required")
	}
	if o.TCDriver != TCDriverCmdline && o.TCDriver != TCDriverNetlink {
		return "", fmt.Errorf("unknown TC driver: %s", o.TCDriver)
	}
	if _, err := o.defaultSpeed(); err != nil {
		return "", err
	}
	if o.Format == "" {
		return config.DetectFormat(o.ConfigPath), nil
	}
	return config.ParseFormat(o.Format)
}

func (o *Options) defaultSpeed() (uint64, error) {
	r, err := units.ParseRate(o.DefaultLinkSpeed)
	if err != nil {
		return 0, errors.Wrap(err, "invalid default link speed")
	}
	if r.Kind() != units.RateAbsolute || r.Resolve(0) == 0 {
		return 0, errors.Errorf("invalid default link speed %q: an absolute rate is required", o.DefaultLinkSpeed)
	}
	return r.Resolve(0), nil
}

// NewOptions initializes Options
func NewOptions() *Options {
	return &Options{
		TCDriver:         TCDriverCmdline,
		DefaultLinkSpeed: "1000mbit",
		ResyncPeriod:     30 * time.Second,
		MinSyncPeriod:    time.Second,
	}
}
