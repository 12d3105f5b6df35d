//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ V /| |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// RavenStore is a raft-replicated SchemaStatement: the log of index
// commands (create, drop, own, set-state) is committed through raft
// before being applied to the in-memory rule table, so every node that
// has applied up to a given log index agrees on which indexes exist and
// in what state.
//
// RavenStore only replicates the *rule* — existence, kind, owner,
// lifecycle state — never index content; the on-disk index file format
// and store files are out of scope here.
type RavenStore struct {
	raft *raft.Raft
	fsm  *ravenFSM

	applyTimeout time.Duration
}

type ravenFSM struct {
	mu    sync.RWMutex
	rules map[schemaindex.Descriptor]IndexRule
}

func newRavenFSM() *ravenFSM {
	return &ravenFSM{rules: make(map[schemaindex.Descriptor]IndexRule)}
}

type ravenCommandOp string

const (
	opIndexCreate      ravenCommandOp = "index_create"
	opIndexDrop        ravenCommandOp = "index_drop"
	opCreateConstraint ravenCommandOp = "create_constraint_backing"
	opSetOwner         ravenCommandOp = "set_owner"
	opSetState         ravenCommandOp = "set_state"
)

type ravenCommand struct {
	Op           ravenCommandOp
	Descriptor   schemaindex.Descriptor
	ConstraintID uint64
	State        schemaindex.State
}

// RavenStoreConfig configures a single-node-bootstrapped raft instance.
// Joining an existing cluster is out of scope; NewRavenStore always
// bootstraps as the sole voter.
type RavenStoreConfig struct {
	NodeID   string
	DataDir  string
	BindAddr string
	Logger   logrus.FieldLogger
}

// NewRavenStore starts (or reopens) a single-node raft cluster backed by
// bbolt for the log/stable store.
func NewRavenStore(cfg RavenStoreConfig) (*RavenStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create raft data dir")
	}

	fsm := newRavenFSM()

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, errors.Wrap(err, "open raft log store")
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, errors.Wrap(err, "open raft stable store")
	}
	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "open raft snapshot store")
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve raft bind address")
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "create raft transport")
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, errors.Wrap(err, "create raft node")
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		return nil, errors.Wrap(err, "inspect existing raft state")
	}
	if !hasState {
		bootstrapCfg := raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		}
		if err := r.BootstrapCluster(bootstrapCfg).Error(); err != nil {
			return nil, errors.Wrap(err, "bootstrap raft cluster")
		}
	}

	return &RavenStore{raft: r, fsm: fsm, applyTimeout: 10 * time.Second}, nil
}

func (s *RavenStore) apply(cmd ravenCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "marshal raven command")
	}
	future := s.raft.Apply(payload, s.applyTimeout)
	if err := future.Error(); err != nil {
		return errors.Wrap(err, "apply raven command")
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return err
		}
	}
	return nil
}

func (s *RavenStore) IndexCreate(descriptor schemaindex.Descriptor) (IndexRule, error) {
	if err := s.apply(ravenCommand{Op: opIndexCreate, Descriptor: descriptor}); err != nil {
		return IndexRule{}, err
	}
	rule, _ := s.fsm.get(descriptor)
	return rule, nil
}

func (s *RavenStore) IndexDrop(descriptor schemaindex.Descriptor) error {
	return s.apply(ravenCommand{Op: opIndexDrop, Descriptor: descriptor})
}

func (s *RavenStore) CreateConstraintBackingIndex(descriptor schemaindex.Descriptor) (IndexRule, error) {
	if err := s.apply(ravenCommand{Op: opCreateConstraint, Descriptor: descriptor}); err != nil {
		return IndexRule{}, err
	}
	rule, _ := s.fsm.get(descriptor)
	return rule, nil
}

func (s *RavenStore) SetOwner(descriptor schemaindex.Descriptor, constraintID uint64) error {
	return s.apply(ravenCommand{Op: opSetOwner, Descriptor: descriptor, ConstraintID: constraintID})
}

func (s *RavenStore) SetState(descriptor schemaindex.Descriptor, state schemaindex.State) error {
	return s.apply(ravenCommand{Op: opSetState, Descriptor: descriptor, State: state})
}

func (s *RavenStore) IndexesGetForLabel(labelID uint64) []IndexRule {
	return s.fsm.filter(func(r IndexRule) bool {
		return r.Kind == Regular && r.Descriptor.LabelID == labelID
	})
}

func (s *RavenStore) IndexesGetForLabelAndPropertyKey(labelID, propertyKeyID uint64) (IndexRule, bool) {
	return s.fsm.get(schemaindex.NewDescriptor(labelID, propertyKeyID))
}

func (s *RavenStore) IndexesGetAll() []IndexRule {
	return s.fsm.filter(func(r IndexRule) bool { return r.Kind == Regular })
}

func (s *RavenStore) UniqueIndexesGetAll() []IndexRule {
	return s.fsm.filter(func(r IndexRule) bool { return r.Kind == ConstraintBacking })
}

func (s *RavenStore) UniqueIndexesGetForLabel(labelID uint64) []IndexRule {
	return s.fsm.filter(func(r IndexRule) bool {
		return r.Kind == ConstraintBacking && r.Descriptor.LabelID == labelID
	})
}

// Close shuts down the raft node.
func (s *RavenStore) Close() error {
	return s.raft.Shutdown().Error()
}

// --- raft.FSM ---

func (f *ravenFSM) Apply(log *raft.Log) interface{} {
	var cmd ravenCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return errors.Wrap(err, "unmarshal raven command")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opIndexCreate:
		if existing, ok := f.rules[cmd.Descriptor]; ok {
			if existing.Kind == ConstraintBacking {
				return &AlreadyConstrainedError{Descriptor: cmd.Descriptor}
			}
			return ErrAlreadyIndexed
		}
		f.rules[cmd.Descriptor] = IndexRule{
			Descriptor: cmd.Descriptor,
			Kind:       Regular,
			State:      schemaindex.State{Phase: schemaindex.Populating},
		}
		return nil

	case opIndexDrop:
		if _, ok := f.rules[cmd.Descriptor]; !ok {
			return &NoSuchIndexError{Descriptor: cmd.Descriptor}
		}
		delete(f.rules, cmd.Descriptor)
		return nil

	case opCreateConstraint:
		if _, ok := f.rules[cmd.Descriptor]; ok {
			return ErrAlreadyIndexed
		}
		f.rules[cmd.Descriptor] = IndexRule{
			Descriptor: cmd.Descriptor,
			Kind:       ConstraintBacking,
			State:      schemaindex.State{Phase: schemaindex.AwaitingConstraintOwner},
		}
		return nil

	case opSetOwner:
		rule, ok := f.rules[cmd.Descriptor]
		if !ok {
			return &NoSuchIndexError{Descriptor: cmd.Descriptor}
		}
		owner := cmd.ConstraintID
		rule.OwnerConstraintID = &owner
		if rule.State.Phase == schemaindex.AwaitingConstraintOwner {
			rule.State = schemaindex.State{Phase: schemaindex.Populating}
		}
		f.rules[cmd.Descriptor] = rule
		return nil

	case opSetState:
		rule, ok := f.rules[cmd.Descriptor]
		if !ok {
			return &NoSuchIndexError{Descriptor: cmd.Descriptor}
		}
		rule.State = cmd.State
		f.rules[cmd.Descriptor] = rule
		return nil

	default:
		return fmt.Errorf("unknown raven command op %q", cmd.Op)
	}
}

func (f *ravenFSM) get(descriptor schemaindex.Descriptor) (IndexRule, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rule, ok := f.rules[descriptor]
	return rule, ok
}

func (f *ravenFSM) filter(pred func(IndexRule) bool) []IndexRule {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []IndexRule
	for _, rule := range f.rules {
		if pred(rule) {
			out = append(out, rule)
		}
	}
	return out
}

// all returns every rule, used by Snapshot.
func (f *ravenFSM) all() []IndexRule {
	return f.filter(func(IndexRule) bool { return true })
}

func (f *ravenFSM) Snapshot() (raft.FSMSnapshot, error) {
	// map keys are structs, not strings, so the snapshot is a slice:
	// encoding/json can't marshal a map[Descriptor]IndexRule directly.
	return &ravenSnapshot{rules: f.all()}, nil
}

func (f *ravenFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var rules []IndexRule
	if err := json.NewDecoder(rc).Decode(&rules); err != nil {
		return errors.Wrap(err, "decode raven snapshot")
	}

	rebuilt := make(map[schemaindex.Descriptor]IndexRule, len(rules))
	for _, rule := range rules {
		rebuilt[rule.Descriptor] = rule
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = rebuilt
	return nil
}

type ravenSnapshot struct {
	rules []IndexRule
}

func (s *ravenSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		enc := json.NewEncoder(sink)
		return enc.Encode(s.rules)
	}()
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *ravenSnapshot) Release() {}
