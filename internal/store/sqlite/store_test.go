package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/pkg/types"
)

func TestClusterMembers_ResolveFactToAncestorViaCluster(t *testing.T) {
	st, err := New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	member := &types.AtomicFact{ID: "m1", Statement: "Alice visited Paris", Confidence: 0.9, ExtractedAt: now}
	ancestor := &types.AtomicFact{ID: "p1", Statement: "Alice traveled across Europe", Confidence: 0.9, ExtractedAt: now, Level: 1, ParentClusterID: "cluster-1"}
	require.NoError(t, st.PutFacts(ctx, []*types.AtomicFact{member, ancestor}))
	require.NoError(t, st.PutClusterMembers(ctx, "cluster-1", []string{member.ID}))

	clusterID, err := st.GetClusterIDForFact(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "cluster-1", clusterID)

	resolved, err := st.GetFactByParentClusterID(ctx, clusterID)
	require.NoError(t, err)
	assert.Equal(t, ancestor.ID, resolved.ID)

	// The member itself keeps level=0 and an empty ParentClusterID: the
	// relationship lives only in cluster_members, never on the fact row.
	stored, err := st.GetFact(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Level)
	assert.Empty(t, stored.ParentClusterID)
}

func TestGetClusterIDForFact_NotFoundWhenNeverClustered(t *testing.T) {
	st, err := New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetClusterIDForFact(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetFactByParentClusterID_NotFoundWhenNoFactClaimsIt(t *testing.T) {
	st, err := New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetFactByParentClusterID(context.Background(), "cluster-nobody-made")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClear_RemovesClusterMembers(t *testing.T) {
	st, err := New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.PutFacts(ctx, []*types.AtomicFact{{ID: "m1", Statement: "x", ExtractedAt: time.Now()}}))
	require.NoError(t, st.PutClusterMembers(ctx, "cluster-1", []string{"m1"}))

	require.NoError(t, st.Clear(ctx))

	_, err = st.GetClusterIDForFact(ctx, "m1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
