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
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Transactor runs action inside a closed transaction and commits it. It
// is the transaction manager's surface this package consumes; its own
// implementation (locking, WAL, 2PC, whatever) is out of scope.
type Transactor interface {
	Execute(action func() error) error
}

// RecoveryCoordinator runs once at startup, before any user transaction
// is admitted, and drops constraint-backing indexes with no owning
// uniqueness constraint. This repairs the crash window between creating
// a constraint-backing index and committing its owning constraint.
type RecoveryCoordinator struct {
	statement SchemaStatement
	logger    logrus.FieldLogger
}

func NewRecoveryCoordinator(statement SchemaStatement, logger logrus.FieldLogger) *RecoveryCoordinator {
	return &RecoveryCoordinator{statement: statement, logger: logger}
}

// Run drops every orphaned constraint-backing index rule. It fans the
// per-rule drop checks out across a bounded errgroup and collects every
// failure into a single *multierror.Error instead of aborting the whole
// pass on the first bad rule — one unrecoverable rule should not block
// recovery of the rest.
func (c *RecoveryCoordinator) Run(transactor Transactor) error {
	rules := c.statement.UniqueIndexesGetAll()

	var (
		mu   sync.Mutex
		merr *multierror.Error
		g    errgroup.Group
	)
	g.SetLimit(8)

	for _, rule := range rules {
		rule := rule
		if rule.OwnerConstraintID != nil {
			continue
		}

		g.Go(func() error {
			if err := c.dropOrphan(transactor, rule); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
			}
			return nil
		})
	}

	// errgroup.Group.Wait's own error return is unused: every worker
	// above already swallows its error into merr so one failing rule
	// can't cancel the group and skip the rest.
	_ = g.Wait()

	if merr != nil {
		return merr.ErrorOrNil()
	}
	return nil
}

func (c *RecoveryCoordinator) dropOrphan(transactor Transactor, rule IndexRule) error {
	c.logger.WithField("descriptor", rule.Descriptor.String()).
		Info("recovering orphaned constraint-backing index with no owning constraint")

	err := transactor.Execute(func() error {
		return c.statement.IndexDrop(rule.Descriptor)
	})

	var notFound *NoSuchIndexError
	if errors.As(err, &notFound) {
		// The orphan was already gone (e.g. a concurrent recovery pass
		// dropped it first) — recovery suppresses this, it is not itself
		// an error.
		return nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("descriptor", rule.Descriptor.String()).
			Error("failed to recover orphaned constraint-backing index")
		return err
	}
	return nil
}
