package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStore_AppendAndSnapshot(t *testing.T) {
	store := NewWindowStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Turn{Role: RoleUser, Content: "hello"}))
	require.NoError(t, store.Append(ctx, "s1", Turn{Role: RoleAssistant, Content: "hi there"}))

	turns, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestWindowStore_EvictsOldestBeyondBound(t *testing.T) {
	store := NewWindowStore(10)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		turn := Turn{Role: RoleUser, Content: fmt.Sprintf("turn-%d", i)}
		require.NoError(t, store.Append(ctx, "s1", turn))
	}

	turns, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 10)
	assert.Equal(t, "turn-1", turns[0].Content, "oldest turn evicted")
	assert.Equal(t, "turn-10", turns[9].Content)
}

func TestWindowStore_SnapshotIsDefensiveCopy(t *testing.T) {
	store := NewWindowStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Turn{Role: RoleUser, Content: "first"}))
	snap, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "s1", Turn{Role: RoleAssistant, Content: "second"}))
	snap[0].Content = "mutated"

	turns, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Content, "stored log unaffected by snapshot mutation")
}

func TestWindowStore_SessionsAreIsolated(t *testing.T) {
	store := NewWindowStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", Turn{Role: RoleUser, Content: "for a"}))
	require.NoError(t, store.Append(ctx, "b", Turn{Role: RoleUser, Content: "for b"}))

	turnsA, err := store.Snapshot(ctx, "a")
	require.NoError(t, err)
	turnsB, err := store.Snapshot(ctx, "b")
	require.NoError(t, err)

	require.Len(t, turnsA, 1)
	require.Len(t, turnsB, 1)
	assert.Equal(t, "for a", turnsA[0].Content)
	assert.Equal(t, "for b", turnsB[0].Content)
}

func TestWindowStore_Clear(t *testing.T) {
	store := NewWindowStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Turn{Role: RoleUser, Content: "hello"}))
	require.NoError(t, store.Clear(ctx, "s1"))

	turns, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
