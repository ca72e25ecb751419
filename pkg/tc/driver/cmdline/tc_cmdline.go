//nolint:prealloc
package cmdline

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"k8s.io/utils/exec"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// NewTcCmdLineImpl creates a new instance of TcCmdLineImpl
func NewTcCmdLineImpl(dev string, log klog.Logger, executor exec.Interface) *TcCmdLineImpl {
	return &TcCmdLineImpl{
		netDev:   dev,
		log:      log,
		executor: executor,
		cmdline:  "tc",
		options:  []string{"-json"},
	}
}

// TcCmdLineImpl is a concrete implementation of TC interface utilizing TC command line
type TcCmdLineImpl struct {
	netDev   string
	log      klog.Logger
	executor exec.Interface

	cmdline string
	options []string
}

// execTcCmdNoOutput executes tc command with args, returning error if occurred. the error
// carries what tc wrote to stderr.
func (t *TcCmdLineImpl) execTcCmdNoOutput(args []string) error {
	finalArgs := append(t.options, args...)
	t.log.V(10).Info("executing", "cmd", t.cmdline, "args", finalArgs)
	cmd := t.executor.Command(t.cmdline, finalArgs...)
	stderr := &bytes.Buffer{}
	cmd.SetStderr(stderr)
	err := cmd.Run()
	t.log.V(10).Info("exec result", "err", err)
	if err != nil && stderr.Len() > 0 {
		return errors.Wrap(err, strings.TrimSpace(stderr.String()))
	}
	return err
}

// execTcCmd executes tc command with args, returning stdout output and error
func (t *TcCmdLineImpl) execTcCmd(args []string) ([]byte, error) {
	finalArgs := append(t.options, args...)
	t.log.V(10).Info("executing", "cmd", t.cmdline, "args", finalArgs)
	cmd := t.executor.Command(t.cmdline, finalArgs...)
	out, err := cmd.Output()
	t.log.V(10).Info("exec result", "err", err, "out", out)
	return out, err
}

// parentArgs returns the args attaching filters and chains to qdisc
func parentArgs(qdisc types.QDisc) []string {
	return []string{"parent", types.FormatHandle(*qdisc.Attrs().Handle)}
}

// QDiscAdd implements TC interface
func (t *TcCmdLineImpl) QDiscAdd(qdisc types.QDisc) error {
	args := []string{"qdisc", "add", "dev", t.netDev}
	args = append(args, qdisc.GenCmdLineArgs()...)
	return t.execTcCmdNoOutput(args)
}

// QDiscChange implements TC interface
func (t *TcCmdLineImpl) QDiscChange(qdisc types.QDisc) error {
	args := []string{"qdisc", "change", "dev", t.netDev}
	args = append(args, qdisc.GenCmdLineArgs()...)
	return t.execTcCmdNoOutput(args)
}

// QDiscDel implements TC interface, the qdisc is identified by its parent and handle
func (t *TcCmdLineImpl) QDiscDel(qdisc types.QDisc) error {
	args := []string{"qdisc", "del", "dev", t.netDev}
	args = append(args, qdisc.Attrs().GenCmdLineArgs()...)
	if qdisc.Type() == types.QDiscIngressType {
		args = append(args, string(types.QDiscIngressType))
	}
	return t.execTcCmdNoOutput(args)
}

// QDiscList implements TC interface
func (t *TcCmdLineImpl) QDiscList() ([]types.QDisc, error) {
	args := []string{"qdisc", "list", "dev", t.netDev}
	out, err := t.execTcCmd(args)
	if err != nil {
		return nil, err
	}
	// parse output and return objects
	var cQdiscs []cQDisc
	err = json.Unmarshal(out, &cQdiscs)
	if err != nil {
		return nil, err
	}

	var objs []types.QDisc
	for _, q := range cQdiscs {
		qdisc, err := toQDisc(q)
		if err != nil {
			return nil, err
		}
		objs = append(objs, qdisc)
	}
	return objs, nil
}

// ClassAdd implements TC interface
func (t *TcCmdLineImpl) ClassAdd(class types.Class) error {
	args := []string{"class", "add", "dev", t.netDev}
	args = append(args, class.GenCmdLineArgs()...)
	return t.execTcCmdNoOutput(args)
}

// FilterAdd implements TC interface
func (t *TcCmdLineImpl) FilterAdd(qdisc types.QDisc, filter types.Filter) error {
	args := []string{"filter", "add", "dev", t.netDev}
	args = append(args, parentArgs(qdisc)...)
	args = append(args, filter.GenCmdLineArgs()...)
	return t.execTcCmdNoOutput(args)
}

// FilterDel implements TC interface
func (t *TcCmdLineImpl) FilterDel(qdisc types.QDisc, filterAttr *types.FilterAttrs) error {
	args := []string{"filter", "del", "dev", t.netDev}
	args = append(args, parentArgs(qdisc)...)
	args = append(args, filterAttr.GenCmdLineArgs()...)
	return t.execTcCmdNoOutput(args)
}

// ChainDel implements TC interface
func (t *TcCmdLineImpl) ChainDel(qdisc types.QDisc, chain types.Chain) error {
	args := []string{"chain", "del", "dev", t.netDev}
	args = append(args, parentArgs(qdisc)...)
	if c := chain.Attrs().Chain; c != nil {
		args = append(args, "chain", strconv.FormatUint(uint64(*c), 10))
	}
	return t.execTcCmdNoOutput(args)
}

// ChainList implements TC interface
func (t *TcCmdLineImpl) ChainList(qdisc types.QDisc) ([]types.Chain, error) {
	args := []string{"chain", "list", "dev", t.netDev}
	args = append(args, parentArgs(qdisc)...)
	out, err := t.execTcCmd(args)
	if err != nil {
		return nil, err
	}
	// parse output and return objects
	var cChains []cChain
	err = json.Unmarshal(out, &cChains)
	if err != nil {
		return nil, err
	}

	var objs []types.Chain
	for _, c := range cChains {
		chain, err := toChain(c)
		if err != nil {
			return nil, err
		}
		objs = append(objs, chain)
	}
	return objs, nil
}
