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
	"fmt"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// Transition is the pure (current, event) -> next function governing
// legal index-state changes. It holds no state of its own, so the
// transition rules are testable in isolation from any concurrency
// concern. FlippableProxy.Drop calls through it; RecoveryCoordinator does
// not, it selects orphans by their missing owner alone.
//
//	POPULATING --SCAN_DONE--------->  POPULATING (no change)
//	POPULATING --FLIP_OK----------->  ONLINE
//	POPULATING --FLIP_FAIL--------->  FAILED(cause)
//	FAILED     --FLIP_FAIL (refine)-> FAILED(new cause)
//	ONLINE, FAILED --DROP---------->  removed (caller drops the rule)
//	AWAITING_CONSTRAINT_OWNER --RECOVER_ORPHAN--> removed
func Transition(current schemaindex.State, event schemaindex.Event) (schemaindex.State, error) {
	switch event.Kind {
	case schemaindex.ScanDone:
		// Scan completion alone never changes phase; the job still has to
		// drain the residual queue and flip. Modeled as a no-op so callers
		// can route it through the same function uniformly.
		return current, nil

	case schemaindex.FlipOK:
		if current.Phase == schemaindex.Online {
			return current, fmt.Errorf("cannot flip an already-online index to online")
		}
		return schemaindex.State{Phase: schemaindex.Online}, nil

	case schemaindex.FlipFail:
		if current.Phase == schemaindex.Online {
			return current, fmt.Errorf("cannot fail an online index in place, drop and recreate instead")
		}
		// FAILED -> FAILED(refined) is explicitly legal: it is how the
		// preemptive generic-failure flip is later refined with the real
		// cause once it is known.
		return schemaindex.State{Phase: schemaindex.Failed, Cause: event.Cause}, nil

	case schemaindex.Drop:
		if current.Phase == schemaindex.Populating {
			return current, fmt.Errorf("cannot drop a populating index in place")
		}
		return schemaindex.State{}, nil

	case schemaindex.RecoverOrphan:
		if current.Phase != schemaindex.AwaitingConstraintOwner {
			return current, fmt.Errorf("RECOVER_ORPHAN only applies to an index awaiting a constraint owner, got %s", current.Phase)
		}
		return schemaindex.State{}, nil

	default:
		return current, fmt.Errorf("unknown event kind %v", event.Kind)
	}
}
