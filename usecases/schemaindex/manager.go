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

	"github.com/sirupsen/logrus"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// WriterFactory builds the persistent Writer for a newly declared index.
// Supplied by the caller because writer implementations (what on-disk
// format they use) are out of scope for this package.
type WriterFactory func(descriptor schemaindex.Descriptor) Writer

// Manager is the API-facing surface for declaring, dropping, and
// inspecting indexes. It owns the one FlippableProxy per live index and
// enforces that at most one PopulationJob runs per descriptor at a time,
// giving callers one coherent entry point instead of exposing
// SchemaStatement and the proxy/job machinery directly.
type Manager struct {
	statement        SchemaStatement
	scanSource       ScanSource
	writers          WriterFactory
	schemaStateClear func()
	logger           logrus.FieldLogger
	config           Config

	mu   sync.Mutex
	live map[schemaindex.Descriptor]*liveIndex

	recovery *RecoveryCoordinator
}

type liveIndex struct {
	rule  IndexRule
	proxy *FlippableProxy
	job   *PopulationJob
	queue *UpdateQueue
}

// NewManager wires a Manager against its collaborators. schemaStateClear
// is invoked after every successful flip, to clear any cached schema
// state derived from the absence of this index.
func NewManager(
	statement SchemaStatement,
	scanSource ScanSource,
	writers WriterFactory,
	schemaStateClear func(),
	logger logrus.FieldLogger,
	config Config,
) *Manager {
	if schemaStateClear == nil {
		schemaStateClear = func() {}
	}
	return &Manager{
		statement:        statement,
		scanSource:       scanSource,
		writers:          writers,
		schemaStateClear: schemaStateClear,
		logger:           logger,
		config:           config,
		live:             make(map[schemaindex.Descriptor]*liveIndex),
		recovery:         NewRecoveryCoordinator(statement, logger.WithField("component", "schemaindex-recovery")),
	}
}

// RecoverOnStartup drops every orphaned constraint-backing index rule
// before the caller admits any user transaction, using transactor to
// commit each drop. It is a no-op when config.RecoveryEnabled is false,
// which exists only so tests can observe orphaned rules directly
// without recovery clearing them first.
func (m *Manager) RecoverOnStartup(transactor Transactor) error {
	if !m.config.RecoveryEnabled {
		return nil
	}
	return m.recovery.Run(transactor)
}

// CreateIndex creates a new regular index over descriptor and starts its
// PopulationJob. Fails with *AlreadyConstrainedError or ErrAlreadyIndexed
// per SchemaStatement.IndexCreate's contract.
func (m *Manager) CreateIndex(descriptor schemaindex.Descriptor) (IndexHandle, error) {
	rule, err := m.statement.IndexCreate(descriptor)
	if err != nil {
		return IndexHandle{}, err
	}

	m.startPopulation(descriptor, rule)
	return NewIndexHandle(rule, m.statement), nil
}

// startPopulation wires a fresh queue, proxy, and job for descriptor and
// launches the job. Callers must not invoke this twice for the same live
// descriptor; Manager only calls it from CreateIndex, after
// SchemaStatement.IndexCreate has accepted the descriptor, so a second
// CreateIndex for a descriptor whose rule still exists fails with
// ErrAlreadyIndexed before reaching here.
func (m *Manager) startPopulation(descriptor schemaindex.Descriptor, rule IndexRule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := NewUpdateQueue()
	proxy := NewFlippableProxy(queue)

	writer := m.writers(descriptor)
	proxy.SetFlipTarget(newOnlineDelegate(writer))

	metrics := NewMetrics(nil, descriptor.String())

	job := NewPopulationJob(
		descriptor,
		writer,
		proxy,
		queue,
		m.scanSource,
		m.schemaStateClear,
		m.logger.WithField("component", "schemaindex"),
		m.config,
		metrics,
	)

	m.live[descriptor] = &liveIndex{rule: rule, proxy: proxy, job: job, queue: queue}
	job.Start()
}

// ApplyUpdates routes a batch of committed updates to the live index's
// proxy, if one exists for descriptor. Indexes not currently populating
// or online (e.g. already dropped) silently ignore updates.
func (m *Manager) ApplyUpdates(descriptor schemaindex.Descriptor, updates []schemaindex.NodePropertyUpdate) error {
	m.mu.Lock()
	li, ok := m.live[descriptor]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return li.proxy.ApplyUpdates(updates)
}

// CancelPopulation cancels the running job for descriptor, if any, and
// returns a channel that closes once it has stopped. A descriptor with no
// live index gets an already-closed channel. A job stays tracked here
// until DropIndex, so cancelling an already-flipped job returns that
// job's done channel, which is closed once its Run has returned.
func (m *Manager) CancelPopulation(descriptor schemaindex.Descriptor) <-chan struct{} {
	m.mu.Lock()
	li, ok := m.live[descriptor]
	m.mu.Unlock()
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return li.job.Cancel()
}

// DropIndex drops descriptor's rule and removes it from live tracking.
func (m *Manager) DropIndex(descriptor schemaindex.Descriptor) error {
	if err := m.statement.IndexDrop(descriptor); err != nil {
		return err
	}

	m.mu.Lock()
	li, ok := m.live[descriptor]
	if ok {
		delete(m.live, descriptor)
	}
	m.mu.Unlock()

	if ok {
		_ = li.proxy.Drop()
	}
	return nil
}

func (m *Manager) IndexesGetForLabel(labelID uint64) []IndexRule {
	return m.statement.IndexesGetForLabel(labelID)
}

func (m *Manager) IndexesGetForLabelAndPropertyKey(labelID, propertyKeyID uint64) (IndexRule, bool) {
	return m.statement.IndexesGetForLabelAndPropertyKey(labelID, propertyKeyID)
}

func (m *Manager) IndexesGetAll() []IndexRule { return m.statement.IndexesGetAll() }

func (m *Manager) UniqueIndexesGetAll() []IndexRule { return m.statement.UniqueIndexesGetAll() }

func (m *Manager) UniqueIndexesGetForLabel(labelID uint64) []IndexRule {
	return m.statement.UniqueIndexesGetForLabel(labelID)
}
