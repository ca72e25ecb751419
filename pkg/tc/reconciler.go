package tc

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
)

// NewReconciler creates a new Reconciler applying objects through actuator. store is optional,
// when set the rendered objects of each binding are kept there.
func NewReconciler(actuator Actuator, store StateStore, log klog.Logger) *Reconciler {
	return &Reconciler{
		actuator: actuator,
		store:    store,
		log:      log,
		applied:  map[Key]*generator.Objects{},
		locks:    map[Key]*sync.Mutex{},
	}
}

// Reconciler keeps the tc objects of every interface binding in sync with the desired objects
type Reconciler struct {
	actuator Actuator
	store    StateStore
	log      klog.Logger

	// mu guards applied and locks
	mu      sync.Mutex
	applied map[Key]*generator.Objects
	locks   map[Key]*sync.Mutex
}

// Reconcile applies every binding of desired and tears down the bindings applied before
// but absent from desired. Bindings are processed in parallel, the errors of all bindings
// are aggregated.
func (r *Reconciler) Reconcile(ctx context.Context, desired []*generator.Objects) error {
	byKey := make(map[Key]*generator.Objects, len(desired))
	for _, objs := range desired {
		k := KeyOf(objs)
		if _, ok := byKey[k]; ok {
			return errors.Errorf("duplicate binding %s", k)
		}
		byKey[k] = objs
	}

	r.mu.Lock()
	stale := sets.KeySet(r.applied).Difference(sets.KeySet(byKey))
	r.mu.Unlock()

	var (
		wg   wait.Group
		emu  sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err != nil {
			emu.Lock()
			errs = append(errs, err)
			emu.Unlock()
		}
	}
	for k, objs := range byKey {
		k, objs := k, objs
		wg.Start(func() { record(r.reconcileKey(ctx, k, objs)) })
	}
	for _, k := range stale.UnsortedList() {
		k := k
		wg.Start(func() { record(r.teardownKey(ctx, k)) })
	}
	wg.Wait()

	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return utilerrors.NewAggregate(errs)
}

// Applied returns the objects last applied on key, nil if none
func (r *Reconciler) Applied(key Key) *generator.Objects {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied[key]
}

func (r *Reconciler) lock(key Key) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *Reconciler) reconcileKey(ctx context.Context, key Key, desired *generator.Objects) error {
	l := r.lock(key)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "binding %s not reconciled", key)
	}

	previous := r.Applied(key)
	if previous == nil && r.store != nil {
		stored, err := r.store.Load(key)
		if err != nil {
			r.log.Error(err, "failed to load stored state", "binding", key)
		} else if stored != nil && slices.Equal(stored, desired.Render()) {
			// the render describes all objects, the actuator still checks the root qdisc
			r.log.V(4).Info("stored state matches desired objects", "binding", key)
			previous = desired
		}
	}

	r.log.V(4).Info("reconciling binding", "binding", key, "policy", desired.Policy)
	if err := r.actuator.Actuate(desired, previous); err != nil {
		var applyErr *ApplyError
		if !errors.As(err, &applyErr) {
			err = &ApplyError{Interface: key.Interface, Direction: key.Direction, Op: "actuate", Err: err}
		}
		// the applied objects are unknown after a failure
		r.mu.Lock()
		delete(r.applied, key)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.applied[key] = desired
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Actuate(desired, previous); err != nil {
			r.log.Error(err, "failed to store state", "binding", key)
		}
	}
	return nil
}

func (r *Reconciler) teardownKey(ctx context.Context, key Key) error {
	l := r.lock(key)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "binding %s not torn down", key)
	}

	previous := r.Applied(key)
	if previous == nil {
		return nil
	}
	r.log.V(4).Info("tearing down binding", "binding", key, "policy", previous.Policy)
	if err := r.actuator.Teardown(previous); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.applied, key)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Teardown(previous); err != nil {
			r.log.Error(err, "failed to remove stored state", "binding", key)
		}
	}
	return nil
}
