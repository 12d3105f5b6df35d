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

// Visitor receives updates from a StoreScan in ascending nodeId order.
// Returning a non-nil error aborts the scan with that error.
type Visitor func(update schemaindex.NodePropertyUpdate) error

// StoreScan is a single-pass forward scan over all nodes currently
// matching a Descriptor. Run is synchronous and invoked on the populator
// goroutine; Stop is cooperative and callable from any goroutine. After
// Stop, Run returns promptly without guaranteeing completion.
type StoreScan interface {
	Run(visitor Visitor) error
	Stop()
}

// ScanSource produces a StoreScan bound to a descriptor. This is the
// "store-scan source" the core consumes from the surrounding engine; its
// own implementation (walking store files) is out of scope here.
type ScanSource interface {
	VisitNodesMatching(descriptor schemaindex.Descriptor) StoreScan
}
