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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

func TestTransitionFlipOK(t *testing.T) {
	next, err := Transition(
		schemaindex.State{Phase: schemaindex.Populating},
		schemaindex.Event{Kind: schemaindex.FlipOK},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.Online, next.Phase)
}

func TestTransitionFlipOKRejectsAlreadyOnline(t *testing.T) {
	_, err := Transition(
		schemaindex.State{Phase: schemaindex.Online},
		schemaindex.Event{Kind: schemaindex.FlipOK},
	)
	require.Error(t, err)
}

func TestTransitionFlipFail(t *testing.T) {
	next, err := Transition(
		schemaindex.State{Phase: schemaindex.Populating},
		schemaindex.Event{Kind: schemaindex.FlipFail, Cause: "disk full"},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.Failed, next.Phase)
	require.Equal(t, "disk full", next.Cause)
}

func TestTransitionFlipFailRefinesFailed(t *testing.T) {
	next, err := Transition(
		schemaindex.State{Phase: schemaindex.Failed, Cause: ""},
		schemaindex.Event{Kind: schemaindex.FlipFail, Cause: "real cause"},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.Failed, next.Phase)
	require.Equal(t, "real cause", next.Cause)
}

func TestTransitionFlipFailRejectsOnline(t *testing.T) {
	_, err := Transition(
		schemaindex.State{Phase: schemaindex.Online},
		schemaindex.Event{Kind: schemaindex.FlipFail, Cause: "too late"},
	)
	require.Error(t, err)
}

func TestTransitionDrop(t *testing.T) {
	next, err := Transition(
		schemaindex.State{Phase: schemaindex.Online},
		schemaindex.Event{Kind: schemaindex.Drop},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.State{}, next)

	next, err = Transition(
		schemaindex.State{Phase: schemaindex.Failed},
		schemaindex.Event{Kind: schemaindex.Drop},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.State{}, next)
}

func TestTransitionDropRejectsPopulating(t *testing.T) {
	_, err := Transition(
		schemaindex.State{Phase: schemaindex.Populating},
		schemaindex.Event{Kind: schemaindex.Drop},
	)
	require.Error(t, err)
}

func TestTransitionRecoverOrphan(t *testing.T) {
	next, err := Transition(
		schemaindex.State{Phase: schemaindex.AwaitingConstraintOwner},
		schemaindex.Event{Kind: schemaindex.RecoverOrphan},
	)
	require.NoError(t, err)
	require.Equal(t, schemaindex.State{}, next)
}

func TestTransitionRecoverOrphanRejectsNonAwaiting(t *testing.T) {
	_, err := Transition(
		schemaindex.State{Phase: schemaindex.Populating},
		schemaindex.Event{Kind: schemaindex.RecoverOrphan},
	)
	require.Error(t, err)
}

func TestTransitionScanDoneIsNoOp(t *testing.T) {
	current := schemaindex.State{Phase: schemaindex.Populating}
	next, err := Transition(current, schemaindex.Event{Kind: schemaindex.ScanDone})
	require.NoError(t, err)
	require.Equal(t, current, next)
}

func TestTransitionUnknownEvent(t *testing.T) {
	_, err := Transition(
		schemaindex.State{Phase: schemaindex.Populating},
		schemaindex.Event{Kind: schemaindex.EventKind(99)},
	)
	require.Error(t, err)
}
