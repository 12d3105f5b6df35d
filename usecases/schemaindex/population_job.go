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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	enterrors "github.com/vertexdb/vertexdb/entities/errors"
	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// PopulationJob orchestrates create -> scan -> drain -> flip for a single
// index, handling cancellation and failure. One job runs per descriptor
// at a time (see Manager / at-most-one-populator invariant);
// nothing in this type enforces that itself, it is the caller's
// responsibility not to start two jobs for the same descriptor.
type PopulationJob struct {
	id              uuid.UUID
	descriptor      schemaindex.Descriptor
	userDescription string

	writer     Writer
	flipper    *FlippableProxy
	queue      *UpdateQueue
	scanSource ScanSource

	// schemaStateClear invalidates cached schema-derived state after a
	// successful flip, so derived state is rebuilt on next access.
	schemaStateClear func()

	logger  logrus.FieldLogger
	config  Config
	metrics *Metrics

	mu        sync.Mutex
	storeScan StoreScan

	cancelled atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
}

// NewPopulationJob builds a job ready to Run on a dedicated goroutine.
// queue must be the same UpdateQueue the flipper's populating delegate
// enqueues into, so that committer writes arriving via the proxy are
// visible to the job's drains.
func NewPopulationJob(
	descriptor schemaindex.Descriptor,
	writer Writer,
	flipper *FlippableProxy,
	queue *UpdateQueue,
	scanSource ScanSource,
	schemaStateClear func(),
	logger logrus.FieldLogger,
	config Config,
	metrics *Metrics,
) *PopulationJob {
	return &PopulationJob{
		id:               uuid.New(),
		descriptor:       descriptor,
		userDescription:  descriptor.String(),
		writer:           writer,
		flipper:          flipper,
		queue:            queue,
		scanSource:       scanSource,
		schemaStateClear: schemaStateClear,
		logger:           logger,
		config:           config,
		metrics:          metrics,
		done:             make(chan struct{}),
	}
}

// Start launches Run on a dedicated, panic-recovering goroutine, the way
// the rest of this codebase starts long-running background work.
func (j *PopulationJob) Start() {
	enterrors.GoWrapper(j.Run, j.logger)
}

// Run executes the full create -> scan -> drain -> flip lifecycle. It is
// meant to be called once, on its own goroutine (see Start); calling it
// again after it has already run is not supported.
func (j *PopulationJob) Run() {
	defer j.signalDone()

	logger := j.logger.WithFields(logrus.Fields{
		"job":           j.userDescription,
		"population_id": j.id.String(),
	})

	start := time.Now()
	defer func() {
		j.metrics.ObservePopulationDuration(time.Since(start))
	}()

	var writerClosed bool

	logger.Info("index population started")

	if err := j.writer.Create(); err != nil {
		j.failAndClose(logger, err, &writerClosed)
		return
	}

	if err := j.scanAllNodes(logger); err != nil {
		j.failAndClose(logger, err, &writerClosed)
		return
	}

	if j.cancelled.Load() {
		// We remain in POPULATING state; on restart this index will be
		// re-detected and re-populated from scratch.
		logger.Info("index population cancelled, remaining populating for retry on restart")
		return
	}

	flipErr := j.flipper.Flip(
		func() error { return j.drainAndClose(logger, &writerClosed) },
		func(cause error) Delegate {
			// Preemptive flip: close the race where live updates keep
			// reaching the now-dead populating delegate before the real
			// cause is known. Refined to the cause-carrying delegate
			// immediately below, once Flip has returned.
			return newFailedDelegate("")
		},
	)
	if flipErr != nil {
		j.failAndClose(logger, flipErr, &writerClosed)
		return
	}

	j.schemaStateClear()
	j.metrics.IncFlip("success")
	logger.Info("index population completed, index is now online")
}

// scanAllNodes drives the store scan, feeding every visited node to the
// writer and opportunistically draining any update already queued for a
// node the scan has passed. This interleaving bounds queue size and
// preserves per-node ordering: an update that arrives for a node after it
// was scanned but before its opportunistic drain is still eventually
// applied, at the terminal drain during flip.
func (j *PopulationJob) scanAllNodes(logger logrus.FieldLogger) error {
	scan := j.scanSource.VisitNodesMatching(j.descriptor)

	j.mu.Lock()
	j.storeScan = scan
	j.mu.Unlock()

	return scan.Run(func(update schemaindex.NodePropertyUpdate) error {
		if err := j.writer.Add(update.NodeID, update.ValueAfter); err != nil {
			return err
		}

		if err := j.drainQueueUpTo(update.NodeID); err != nil {
			return err
		}

		j.metrics.SetQueueDepth(j.queue.Len())
		return nil
	})
}

// drainQueueUpTo applies already-queued updates whose target node was
// already indexed by the scan (nodeId <= frontier), bounded by
// config.DrainBatchSize so a long run of matching updates can't starve
// the scan.
func (j *PopulationJob) drainQueueUpTo(frontier uint64) error {
	drained := j.queue.DrainWhileLimited(func(u schemaindex.NodePropertyUpdate) bool {
		return u.NodeID <= frontier
	}, j.config.DrainBatchSize)

	j.metrics.ObserveDrainBatch(len(drained))
	if len(drained) == 0 {
		return nil
	}
	return j.writer.Update(drained)
}

// drainAndClose runs under the proxy's flip barrier: it drains whatever
// remains in the queue unconditionally (frontier = infinity), closes the
// writer as successful, and marks it closed so the failure path below
// never double-closes it.
func (j *PopulationJob) drainAndClose(logger logrus.FieldLogger, writerClosed *bool) error {
	drained := j.queue.DrainAll()
	j.metrics.ObserveDrainBatch(len(drained))
	if len(drained) > 0 {
		if err := j.writer.Update(drained); err != nil {
			return err
		}
	}

	if err := j.writer.Close(true); err != nil {
		return err
	}
	*writerClosed = true
	return nil
}

// errOutOfMemory marks a population failure caused by memory pressure
// rather than a permanent fault, so failAndClose logs it as a transient
// condition instead of an error.
var errOutOfMemory = errors.New("not enough memory")

// newOutOfMemoryError wraps msg around errOutOfMemory so a Writer can
// report the specific allocation that failed while still letting
// failAndClose recognize the condition as transient via errors.Is.
func newOutOfMemoryError(msg string) error {
	return fmt.Errorf("%s: %w", msg, errOutOfMemory)
}

// isTransient reports whether err is (or wraps) a condition expected to
// clear up on its own, such as memory pressure, rather than a permanent
// failure of the population run it occurred in.
func isTransient(err error) bool {
	return errors.Is(err, errOutOfMemory)
}

// failAndClose classifies and logs err — entry conflicts, shutdown-race
// errors, and transient conditions never hit error severity — refines
// the proxy's failed delegate with the real cause, and closes the writer
// exactly once.
func (j *PopulationJob) failAndClose(logger logrus.FieldLogger, err error, writerClosed *bool) {
	wrapped := &IndexPopulationFailedError{Descriptor: j.descriptor, Cause: err}

	switch {
	case errors.Is(err, ErrIndexProxyAlreadyClosed):
		logger.WithError(wrapped).Debug("index proxy already closed during shutdown, not treating as an error")
	case isTransient(err):
		logger.WithError(wrapped).Warn("index population failed due to a transient condition, a retry after drop and recreate may succeed")
	default:
		if _, isConflict := conflict(err); isConflict {
			logger.WithError(wrapped).Debug("index population failed due to an entry conflict, expected for a unique index")
		} else {
			logger.WithError(wrapped).Error("index population failed")
		}
	}

	if flipErr := j.flipper.FlipTo(newFailedDelegate(wrapped.Error())); flipErr != nil {
		logger.WithError(flipErr).Debug("could not install failed delegate, proxy already closed")
	}

	if markErr := j.writer.MarkFailed(wrapped.Error()); markErr != nil {
		logger.WithError(markErr).Error("unable to persist population failure record")
	}

	if !*writerClosed {
		if closeErr := j.writer.Close(false); closeErr != nil {
			logger.WithError(closeErr).Error("unable to close failed populator")
		}
		*writerClosed = true
	}
}

// Cancel requests cancellation and returns a channel that closes once the
// job's done-latch fires. It is idempotent: calling it again, or calling
// it after the job has already flipped, just returns the (possibly
// already closed) same channel.
func (j *PopulationJob) Cancel() <-chan struct{} {
	if j.cancelled.CompareAndSwap(false, true) {
		j.mu.Lock()
		scan := j.storeScan
		j.mu.Unlock()
		if scan != nil {
			scan.Stop()
		}
	}
	return j.done
}

// AwaitCompletion blocks until the job's done-latch fires or ctx is done.
// There is no timeout inside the core; bounding the wait is the host's
// responsibility.
func (j *PopulationJob) AwaitCompletion(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *PopulationJob) signalDone() {
	j.doneOnce.Do(func() { close(j.done) })
}

func (j *PopulationJob) String() string {
	return fmt.Sprintf("PopulationJob[descriptor:%s, id:%s]", j.descriptor, j.id)
}
