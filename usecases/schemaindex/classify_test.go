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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

func TestClassifyNil(t *testing.T) {
	require.NoError(t, Classify(nil))
}

func TestClassifyNoSuchIndexAsNotFound(t *testing.T) {
	err := Classify(&NoSuchIndexError{Descriptor: schemaindex.NewDescriptor(1, 1)})
	var notFound ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestClassifyAlreadyConstrainedAsUnprocessable(t *testing.T) {
	err := Classify(&AlreadyConstrainedError{Descriptor: schemaindex.NewDescriptor(1, 1)})
	var unprocessable ErrUnprocessable
	require.ErrorAs(t, err, &unprocessable)
}

func TestClassifyProxyClosedAsContextExpired(t *testing.T) {
	err := Classify(ErrIndexProxyAlreadyClosed)
	var expired ErrContextExpired
	require.ErrorAs(t, err, &expired)
}

func TestClassifyUnknownAsInternal(t *testing.T) {
	err := Classify(errors.New("mystery"))
	var internal ErrInternal
	require.ErrorAs(t, err, &internal)
}
