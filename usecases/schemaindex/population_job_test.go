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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

type fakeStoreScan struct {
	updates []schemaindex.NodePropertyUpdate
	stopped chan struct{}
}

func newFakeStoreScan(updates ...schemaindex.NodePropertyUpdate) *fakeStoreScan {
	return &fakeStoreScan{updates: updates, stopped: make(chan struct{})}
}

func (s *fakeStoreScan) Run(visitor Visitor) error {
	for _, u := range s.updates {
		select {
		case <-s.stopped:
			return nil
		default:
		}
		if err := visitor(u); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStoreScan) Stop() {
	close(s.stopped)
}

type fakeScanSource struct {
	scan StoreScan
}

func (s *fakeScanSource) VisitNodesMatching(schemaindex.Descriptor) StoreScan {
	return s.scan
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func nodeUpdate(nodeID uint64, value any) schemaindex.NodePropertyUpdate {
	return schemaindex.NodePropertyUpdate{NodeID: nodeID, Kind: schemaindex.Added, ValueAfter: value}
}

func TestPopulationJobHappyPathFlipsToOnline(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(1, 1)
	writer := &fakeWriter{}
	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	scan := newFakeStoreScan(nodeUpdate(1, "a"), nodeUpdate(2, "b"))
	source := &fakeScanSource{scan: scan}

	var cleared bool
	job := NewPopulationJob(descriptor, writer, proxy, queue, source,
		func() { cleared = true }, testLogger(), NewConfig(), nil)

	job.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, job.AwaitCompletion(ctx))

	require.True(t, writer.created)
	require.True(t, writer.closed)
	require.True(t, writer.success)
	require.Equal(t, []uint64{1, 2}, writer.added)
	require.Equal(t, schemaindex.Online, proxy.State().Phase)
	require.True(t, cleared)
}

func TestPopulationJobDrainsLiveUpdatesArrivedDuringScan(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(1, 1)
	writer := &fakeWriter{}
	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	// A live update for node 1 arrives before the scan gets there; it must
	// still be applied, either opportunistically during scan or in the
	// terminal drain at flip.
	queue.Enqueue(nodeUpdate(1, "live-value"))

	scan := newFakeStoreScan(nodeUpdate(1, "scanned-value"), nodeUpdate(2, "b"))
	source := &fakeScanSource{scan: scan}

	job := NewPopulationJob(descriptor, writer, proxy, queue, source,
		func() {}, testLogger(), NewConfig(), nil)

	job.Run()

	var totalUpdated int
	for _, batch := range writer.updated {
		totalUpdated += len(batch)
	}
	require.Equal(t, 1, totalUpdated)
	require.Zero(t, queue.Len())
}

func TestPopulationJobScanFailureFlipsToFailed(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(1, 1)
	writer := &fakeWriter{}
	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	boom := errors.New("scan blew up")
	scan := newFakeStoreScan(nodeUpdate(1, "a"))
	// force the visitor to fail via the writer's Add
	writer.addErr = boom

	source := &fakeScanSource{scan: scan}

	job := NewPopulationJob(descriptor, writer, proxy, queue, source,
		func() {}, testLogger(), NewConfig(), nil)

	job.Run()

	require.Equal(t, schemaindex.Failed, proxy.State().Phase)
	require.Contains(t, proxy.State().Cause, "scan blew up")
	require.True(t, writer.closed)
	require.False(t, writer.success)
	require.NotEmpty(t, writer.failedAs)
}

func TestPopulationJobCancelBeforeRunStaysPopulating(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(1, 1)
	writer := &fakeWriter{}
	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	scan := newFakeStoreScan(nodeUpdate(1, "a"), nodeUpdate(2, "b"), nodeUpdate(3, "c"))
	source := &fakeScanSource{scan: scan}

	job := NewPopulationJob(descriptor, writer, proxy, queue, source,
		func() {}, testLogger(), NewConfig(), nil)

	done := job.Cancel()
	job.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("job did not signal completion after cancel")
	}

	require.Equal(t, schemaindex.Populating, proxy.State().Phase)
	require.False(t, writer.closed)
}

func TestIsTransientDetectsOutOfMemory(t *testing.T) {
	require.True(t, isTransient(errOutOfMemory))
	require.True(t, isTransient(newOutOfMemoryError("allocate write buffer")))
	require.False(t, isTransient(errors.New("scan blew up")))
}

func TestPopulationJobOutOfMemoryFailureStillFlipsToFailed(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(1, 1)
	writer := &fakeWriter{}
	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	writer.addErr = newOutOfMemoryError("allocate write buffer")
	scan := newFakeStoreScan(nodeUpdate(1, "a"))
	source := &fakeScanSource{scan: scan}

	job := NewPopulationJob(descriptor, writer, proxy, queue, source,
		func() {}, testLogger(), NewConfig(), nil)

	job.Run()

	require.Equal(t, schemaindex.Failed, proxy.State().Phase)
	require.True(t, writer.closed)
	require.False(t, writer.success)
}

func TestPopulationJobStringIncludesDescriptor(t *testing.T) {
	descriptor := schemaindex.NewDescriptor(4, 5)
	job := NewPopulationJob(descriptor, &fakeWriter{}, NewFlippableProxy(NewUpdateQueue()),
		NewUpdateQueue(), &fakeScanSource{scan: newFakeStoreScan()}, nil, testLogger(), NewConfig(), nil)

	require.Contains(t, job.String(), descriptor.String())
}
