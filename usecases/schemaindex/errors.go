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
	"errors"
	"fmt"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// ErrAlreadyIndexed is returned when a second index is declared over a
// descriptor that already has one in the active schema.
var ErrAlreadyIndexed = errors.New("an index already exists for this label/property pair")

// ErrIndexProxyAlreadyClosed is returned by a FlippableProxy operation
// invoked after the proxy's owning index has been dropped. It is expected
// during shutdown races and is never logged at error severity.
var ErrIndexProxyAlreadyClosed = errors.New("index proxy already closed")

// ErrConstraintIndexDropRejected is returned by the bean-level drop
// handle of a constraint-backing index.
var ErrConstraintIndexDropRejected = errors.New(
	"constraint indexes cannot be dropped directly, instead drop the owning uniqueness constraint")

// AlreadyConstrainedError carries the descriptor so the exact user-facing
// message can be rendered.
type AlreadyConstrainedError struct {
	Descriptor schemaindex.Descriptor
}

func (e *AlreadyConstrainedError) Error() string {
	return fmt.Sprintf(
		"Unable to add index :label[%d](property[%d]) : Already constrained CONSTRAINT ON ( n:label[%d] ) ASSERT n.property[%d] IS UNIQUE.",
		e.Descriptor.LabelID, e.Descriptor.PropertyKeyID, e.Descriptor.LabelID, e.Descriptor.PropertyKeyID)
}

// NoSuchIndexError carries the descriptor so the exact user-facing message
// can be rendered.
type NoSuchIndexError struct {
	Descriptor schemaindex.Descriptor
}

func (e *NoSuchIndexError) Error() string {
	return fmt.Sprintf(
		"Unable to drop index on :label[%d](property[%d]): No such INDEX ON :label[%d](property[%d]).",
		e.Descriptor.LabelID, e.Descriptor.PropertyKeyID, e.Descriptor.LabelID, e.Descriptor.PropertyKeyID)
}

// IndexEntryConflictError is raised by a Writer when an add/update would
// violate a uniqueness constraint. It is expected on unique indexes and is
// never logged at error severity.
type IndexEntryConflictError struct {
	Value   any
	NodeIDs []uint64
}

func (e *IndexEntryConflictError) Error() string {
	return fmt.Sprintf("multiple nodes %v have the value %v, which violates a uniqueness constraint", e.NodeIDs, e.Value)
}

// IndexPopulationFailedError wraps the cause of a failed population run.
// A conflict-caused failure unwraps through it, so the conflict's own
// suppressed-logging rule still applies after it is persisted and
// logged.
type IndexPopulationFailedError struct {
	Descriptor schemaindex.Descriptor
	Cause      error
}

func (e *IndexPopulationFailedError) Error() string {
	return fmt.Sprintf("Failed to populate index %s: %v", e.Descriptor, e.Cause)
}

func (e *IndexPopulationFailedError) Unwrap() error {
	return e.Cause
}

// conflict unwraps err to an *IndexEntryConflictError if that is, or
// wraps, its root cause.
func conflict(err error) (*IndexEntryConflictError, bool) {
	var c *IndexEntryConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
