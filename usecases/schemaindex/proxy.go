//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import (
	"sync"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// FlippableProxy holds a single mutable slot, the current Delegate, and
// multiplexes every committer's write through whichever delegate is
// current. It is created once per index at declaration and outlives the
// PopulationJob; it is destroyed only when the index is dropped.
//
// The flip lock doubles as the flip barrier: a committer calling
// ApplyUpdates blocks for the (brief) duration of a flip, so no update
// can land between "the populating delegate stopped accepting writes"
// and "the online delegate started accepting writes".
// State() and DelegateForUpdates() take the read side of the same lock,
// so read queries always observe a consistent delegate and are never
// blocked by one another, only by an in-flight flip.
type FlippableProxy struct {
	mu         sync.RWMutex
	delegate   Delegate
	flipTarget Delegate
	closed     bool
}

// NewFlippableProxy creates a proxy starting in the populating state,
// piping writes into queue until a flip occurs.
func NewFlippableProxy(queue *UpdateQueue) *FlippableProxy {
	return &FlippableProxy{delegate: newPopulatingDelegate(queue)}
}

// SetFlipTarget records the delegate Flip installs on success. Manager
// sets this once, to an onlineDelegate wrapping the job's Writer, before
// it starts the PopulationJob.
func (p *FlippableProxy) SetFlipTarget(d Delegate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flipTarget = d
}

// DelegateForUpdates returns a snapshot of the current delegate. It is
// safe for read-only inspection (e.g. State queries) at any time. A
// caller that wants to *apply* an update must go through ApplyUpdates
// instead, so the read and the write happen under the same flip-barrier
// acquisition and can never straddle a flip.
func (p *FlippableProxy) DelegateForUpdates() Delegate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delegate
}

// ApplyUpdates routes updates to whatever delegate is current, under the
// flip barrier's read side. It is the method committers actually call.
func (p *FlippableProxy) ApplyUpdates(updates []schemaindex.NodePropertyUpdate) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrIndexProxyAlreadyClosed
	}
	return p.delegate.ApplyUpdates(updates)
}

// State returns the current delegate's state.
func (p *FlippableProxy) State() schemaindex.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delegate.State()
}

// Flip acquires the flip barrier exclusively, runs action (which must
// durably commit the new state, e.g. draining the residual queue and
// closing the writer), then replaces the delegate with the previously
// registered flip target. If action fails, the delegate produced by
// onFailure(cause) is installed instead and the error is returned.
func (p *FlippableProxy) Flip(action func() error, onFailure func(cause error) Delegate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrIndexProxyAlreadyClosed
	}

	if err := action(); err != nil {
		p.delegate = onFailure(err)
		return err
	}

	p.delegate = p.flipTarget
	return nil
}

// FlipTo unconditionally installs delegate under the barrier. The
// PopulationJob uses it to install the cause-carrying failed delegate,
// which refines the generic one a failed Flip's onFailure installed.
func (p *FlippableProxy) FlipTo(delegate Delegate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrIndexProxyAlreadyClosed
	}

	p.delegate = delegate
	return nil
}

// Drop marks the proxy closed; every subsequent operation returns
// ErrIndexProxyAlreadyClosed. Per the state machine, dropping a
// POPULATING proxy in place is not legal: Drop returns an error and
// leaves the proxy open. A cancelled job leaves its proxy POPULATING, so
// this also holds after cancellation.
func (p *FlippableProxy) Drop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.delegate.State()
	if _, err := Transition(state, schemaindex.Event{Kind: schemaindex.Drop}); err != nil {
		return err
	}

	p.closed = true
	return nil
}
