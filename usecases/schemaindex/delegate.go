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

// Delegate is what a FlippableProxy's single mutable slot holds: one of a
// populating, online, or failed implementation. All three answer State
// and accept live updates; what happens to those updates differs.
type Delegate interface {
	State() schemaindex.State
	ApplyUpdates(updates []schemaindex.NodePropertyUpdate) error
}

// populatingDelegate pipes every update into the job's UpdateQueue. It
// never fails: enqueue never blocks and never errors, by design (see
// UpdateQueue).
type populatingDelegate struct {
	queue *UpdateQueue
}

func newPopulatingDelegate(queue *UpdateQueue) *populatingDelegate {
	return &populatingDelegate{queue: queue}
}

func (d *populatingDelegate) State() schemaindex.State {
	return schemaindex.State{Phase: schemaindex.Populating}
}

func (d *populatingDelegate) ApplyUpdates(updates []schemaindex.NodePropertyUpdate) error {
	d.queue.EnqueueAll(updates)
	return nil
}

// onlineDelegate pipes updates straight into the persistent Writer.
type onlineDelegate struct {
	writer Writer
}

func newOnlineDelegate(writer Writer) *onlineDelegate {
	return &onlineDelegate{writer: writer}
}

func (d *onlineDelegate) State() schemaindex.State {
	return schemaindex.State{Phase: schemaindex.Online}
}

func (d *onlineDelegate) ApplyUpdates(updates []schemaindex.NodePropertyUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return d.writer.Update(updates)
}

// failedDelegate rejects further writes; callers must drop and recreate
// the index.
type failedDelegate struct {
	cause string
}

func newFailedDelegate(cause string) *failedDelegate {
	return &failedDelegate{cause: cause}
}

func (d *failedDelegate) State() schemaindex.State {
	return schemaindex.State{Phase: schemaindex.Failed, Cause: d.cause}
}

func (d *failedDelegate) ApplyUpdates(updates []schemaindex.NodePropertyUpdate) error {
	// A failed index silently drops further writes rather than erroring
	// on every committer: the index is already dead and will be dropped
	// and recreated, there is nothing useful to do with the update.
	return nil
}
