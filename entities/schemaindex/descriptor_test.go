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
)

func TestDescriptorEqual(t *testing.T) {
	a := NewDescriptor(1, 2)
	b := NewDescriptor(1, 2)
	c := NewDescriptor(1, 3)

	require.True(t, a.Equal(b))
	require.True(t, a == b)
	require.False(t, a.Equal(c))
}

func TestDescriptorString(t *testing.T) {
	d := NewDescriptor(7, 9)
	require.Equal(t, "label[7](property[9])", d.String())
}

func TestDescriptorAsMapKey(t *testing.T) {
	m := map[Descriptor]int{
		NewDescriptor(1, 1): 1,
		NewDescriptor(1, 2): 2,
	}
	require.Equal(t, 1, m[NewDescriptor(1, 1)])
	require.Equal(t, 2, m[NewDescriptor(1, 2)])
	_, ok := m[NewDescriptor(2, 1)]
	require.False(t, ok)
}

func TestUpdateKindString(t *testing.T) {
	require.Equal(t, "ADDED", Added.String())
	require.Equal(t, "CHANGED", Changed.String())
	require.Equal(t, "REMOVED", Removed.String())
	require.Equal(t, "UNKNOWN", UpdateKind(99).String())
}
