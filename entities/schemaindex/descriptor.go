//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

// Package schemaindex holds the value types shared between the schema
// index population engine and its proxy lifecycle: descriptors, updates,
// and states. It has no behavior of its own, only identity and equality.
package schemaindex

import "fmt"

// Descriptor identifies an index by the label and property key it is
// built over. Two indexes never share a Descriptor within one database.
type Descriptor struct {
	LabelID       uint64
	PropertyKeyID uint64
}

// NewDescriptor returns the Descriptor for the given label/property pair.
func NewDescriptor(labelID, propertyKeyID uint64) Descriptor {
	return Descriptor{LabelID: labelID, PropertyKeyID: propertyKeyID}
}

// Equal reports structural equality. Descriptor is comparable via == as
// well; Equal exists for readability at call sites.
func (d Descriptor) Equal(other Descriptor) bool {
	return d == other
}

func (d Descriptor) String() string {
	return fmt.Sprintf("label[%d](property[%d])", d.LabelID, d.PropertyKeyID)
}

// UpdateKind classifies a NodePropertyUpdate.
type UpdateKind uint8

const (
	Added UpdateKind = iota
	Changed
	Removed
)

func (k UpdateKind) String() string {
	switch k {
	case Added:
		return "ADDED"
	case Changed:
		return "CHANGED"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// NodePropertyUpdate is a single committed change to a node's indexed
// property. ValueBefore/ValueAfter are nil where not applicable to Kind.
type NodePropertyUpdate struct {
	NodeID      uint64
	Kind        UpdateKind
	ValueBefore any
	ValueAfter  any
}
