package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullBackendCreatesDistinctHandles(t *testing.T) {
	n := NewNull()
	a, err := n.CreateImage("a", ImageDesc{Width: 1, Height: 1})
	require.NoError(t, err)
	b, err := n.CreateImage("b", ImageDesc{Width: 2, Height: 2})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, n.Images, 2)

	n.DestroyImage(a)
	require.Len(t, n.Images, 1)
	require.Contains(t, n.destroyedImages, a)
}

func TestNullBackendRecordsBarriers(t *testing.T) {
	n := NewNull()
	img, _ := n.CreateImage("i", ImageDesc{})
	require.NoError(t, n.RecordBarrier(Barrier{Image: img, SrcAccess: AccessColorAttachmentWrite, DstAccess: AccessSampledRead}))
	require.Len(t, n.Barriers, 1)
	require.Equal(t, img, n.Barriers[0].Image)
}
