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

// Writer is the pluggable, persistent sink a PopulationJob drives.
// Implementations live outside this package (format-level persistence is
// out of scope here); this is the contract the job programs against.
//
// Contract:
//   - Create must be called exactly once before any Add/Update.
//   - Add is used during the initial store scan, in ascending nodeId order.
//   - Update is used after the scan frontier has passed a node, applying
//     live updates that arrived for it.
//   - Add/Update return *IndexEntryConflictError on a uniqueness violation.
//   - Close(true) makes the index durable and queryable; Close(false)
//     discards partial state. Close is called exactly once.
//   - MarkFailed persists a human-readable failure record so restart
//     observes a FAILED index with cause.
type Writer interface {
	Create() error
	Add(nodeID uint64, value any) error
	Update(batch []schemaindex.NodePropertyUpdate) error
	MarkFailed(reason string) error
	Close(success bool) error
}
