//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import "github.com/vertexdb/vertexdb/entities/schemaindex"

// RuleKind distinguishes a plain index rule from one created solely to
// back a uniqueness constraint.
type RuleKind uint8

const (
	Regular RuleKind = iota
	ConstraintBacking
)

// IndexRule is the persisted record backing one index: its descriptor,
// whether it is constraint-backing, the constraint that owns it (if any),
// and its current state. Layout and on-disk encoding are out of scope;
// this is the in-memory shape SchemaStatement operates over.
type IndexRule struct {
	Descriptor        schemaindex.Descriptor
	Kind              RuleKind
	OwnerConstraintID *uint64
	State             schemaindex.State
}

// SchemaStatement is the external collaborator this package consumes for
// schema mutation and lookup. It is specified here only by contract: its
// own persistence, replication, and consensus are out of scope (see
// ravenstore_statement.go for this repo's raft-backed implementation).
type SchemaStatement interface {
	// IndexCreate registers a new regular index rule. Fails with
	// *AlreadyConstrainedError if a uniqueness constraint already exists
	// on descriptor, and with ErrAlreadyIndexed if a regular index
	// already exists on descriptor.
	IndexCreate(descriptor schemaindex.Descriptor) (IndexRule, error)

	// IndexDrop removes the rule for descriptor. Fails with
	// *NoSuchIndexError if absent.
	IndexDrop(descriptor schemaindex.Descriptor) error

	// CreateConstraintBackingIndex registers a constraint-backing index
	// rule with no owner yet, the state a uniqueness-constraint creation
	// passes through before its owning constraint commits.
	CreateConstraintBackingIndex(descriptor schemaindex.Descriptor) (IndexRule, error)

	// SetOwner attaches a committed uniqueness constraint id to a
	// constraint-backing index rule, taking it out of orphan risk.
	SetOwner(descriptor schemaindex.Descriptor, constraintID uint64) error

	SetState(descriptor schemaindex.Descriptor, state schemaindex.State) error

	IndexesGetForLabel(labelID uint64) []IndexRule
	IndexesGetForLabelAndPropertyKey(labelID, propertyKeyID uint64) (IndexRule, bool)
	IndexesGetAll() []IndexRule
	UniqueIndexesGetAll() []IndexRule
	UniqueIndexesGetForLabel(labelID uint64) []IndexRule
}

// IndexHandle is the bean-level handle exposed to callers that want to
// manipulate one index. Drop rejects constraint-backing indexes; their
// owning uniqueness constraint must be dropped instead.
type IndexHandle struct {
	rule      IndexRule
	statement SchemaStatement
}

func NewIndexHandle(rule IndexRule, statement SchemaStatement) IndexHandle {
	return IndexHandle{rule: rule, statement: statement}
}

func (h IndexHandle) Descriptor() schemaindex.Descriptor { return h.rule.Descriptor }

func (h IndexHandle) State() schemaindex.State { return h.rule.State }

// Drop drops the index directly. Constraint-backing indexes cannot be
// dropped this way; their owning uniqueness constraint must be dropped
// instead.
func (h IndexHandle) Drop() error {
	if h.rule.Kind == ConstraintBacking {
		return ErrConstraintIndexDropRejected
	}
	return h.statement.IndexDrop(h.rule.Descriptor)
}
