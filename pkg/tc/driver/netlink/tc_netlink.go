//nolint:prealloc
package netlink

import (
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	klog "k8s.io/klog/v2"

	qosnet "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/net"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/types"
)

// NewTcNetlinkImpl creates a new instance of TcNetlinkImpl
func NewTcNetlinkImpl(linkDev netlink.Link, log klog.Logger, netlinkIfc qosnet.NetlinkProvider) *TcNetlinkImpl {
	return &TcNetlinkImpl{
		link:       linkDev,
		netlinkIfc: netlinkIfc,
		log:        log,
	}
}

// TcNetlinkImpl is a concrete implementation of TC interface utilizing netlink lib.
// red, gred, cake and basic filters are not supported.
type TcNetlinkImpl struct {
	link       netlink.Link
	netlinkIfc qosnet.NetlinkProvider
	log        klog.Logger
}

// QDiscAdd implements TC interface
func (t *TcNetlinkImpl) QDiscAdd(qdisc types.QDisc) error {
	t.log.V(10).Info("QDiscAdd()", "qdisc", types.FormatQDisc(qdisc))

	nlQdisc, err := qdiscToNlQdisc(qdisc, t.link.Attrs().Index)
	if err != nil {
		return err
	}
	return t.netlinkIfc.QdiscAdd(nlQdisc)
}

// QDiscChange implements TC interface
func (t *TcNetlinkImpl) QDiscChange(qdisc types.QDisc) error {
	t.log.V(10).Info("QDiscChange()", "qdisc", types.FormatQDisc(qdisc))

	nlQdisc, err := qdiscToNlQdisc(qdisc, t.link.Attrs().Index)
	if err != nil {
		return err
	}
	return t.netlinkIfc.QdiscChange(nlQdisc)
}

// QDiscDel implements TC interface
func (t *TcNetlinkImpl) QDiscDel(qdisc types.QDisc) error {
	t.log.V(10).Info("QDiscDel()", "qdisc", types.FormatQDisc(qdisc))

	// the kernel identifies the qdisc by its parent and handle
	attrs := nlQdiscAttrs(qdisc, t.link.Attrs().Index)
	if qdisc.Type() == types.QDiscIngressType {
		return t.netlinkIfc.QdiscDel(&netlink.Ingress{QdiscAttrs: attrs})
	}
	return t.netlinkIfc.QdiscDel(&netlink.GenericQdisc{QdiscAttrs: attrs, QdiscType: string(qdisc.Type())})
}

// QDiscList implements TC interface
func (t *TcNetlinkImpl) QDiscList() ([]types.QDisc, error) {
	t.log.V(10).Info("QDiscList()")

	nlQdiscs, err := t.netlinkIfc.QdiscList(t.link)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list qdiscs")
	}

	qdiscs := []types.QDisc{}
	for _, nlQdisc := range nlQdiscs {
		qdiscs = append(qdiscs, nlQdiscToQdisc(nlQdisc))
	}
	return qdiscs, nil
}

// ClassAdd implements TC interface
func (t *TcNetlinkImpl) ClassAdd(class types.Class) error {
	t.log.V(10).Info("ClassAdd()", "classid", types.FormatHandle(class.Attrs().ClassID))

	nlClass, err := classToNlClass(class, t.link.Attrs().Index)
	if err != nil {
		return err
	}
	return t.netlinkIfc.ClassAdd(nlClass)
}

// FilterAdd implements TC interface
func (t *TcNetlinkImpl) FilterAdd(qdisc types.QDisc, filter types.Filter) error {
	t.log.V(10).Info("FilterAdd()")

	nlFilter, err := filterToNlFilter(filter, u32ValFromPtr(qdisc.Attrs().Handle, 0), t.link.Attrs().Index)
	if err != nil {
		return err
	}
	return t.netlinkIfc.FilterAdd(nlFilter)
}

// FilterDel implements TC interface
func (t *TcNetlinkImpl) FilterDel(qdisc types.QDisc, filterAttr *types.FilterAttrs) error {
	t.log.V(10).Info("FilterDel()")

	nlFilter, err := filterAttrsToNlFilter(filterAttr, u32ValFromPtr(qdisc.Attrs().Handle, 0), t.link.Attrs().Index)
	if err != nil {
		return err
	}
	return t.netlinkIfc.FilterDel(nlFilter)
}

// ChainDel implements TC interface
func (t *TcNetlinkImpl) ChainDel(qdisc types.QDisc, chain types.Chain) error {
	t.log.V(10).Info("ChainDel()")

	return t.netlinkIfc.ChainDel(t.link, chainToNlChain(chain, u32ValFromPtr(qdisc.Attrs().Handle, 0)))
}

// ChainList implements TC interface
func (t *TcNetlinkImpl) ChainList(qdisc types.QDisc) ([]types.Chain, error) {
	t.log.V(10).Info("ChainList()")

	nlChains, err := t.netlinkIfc.ChainList(t.link, u32ValFromPtr(qdisc.Attrs().Handle, 0))

	if err != nil {
		return nil, errors.Wrap(err, "failed to list chains")
	}

	var chains []types.Chain
	for idx := range nlChains {
		chains = append(chains, nlChainToChain(&nlChains[idx]))
	}

	return chains, nil
}
