package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

func TestStore_InsertExistsRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	known, err := store.Exists(ctx, "abc")
	require.NoError(t, err)
	require.False(t, known)

	require.NoError(t, store.Insert(ctx, crawler.Record{ID: "abc", Title: "First"}))

	known, err = store.Exists(ctx, "abc")
	require.NoError(t, err)
	require.True(t, known)
	require.Len(t, store.Records(), 1)
}

func TestStore_DuplicateInsertKeepsOriginal(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, crawler.Record{ID: "abc", Title: "First"}))
	require.NoError(t, store.Insert(ctx, crawler.Record{ID: "abc", Title: "Second"}))

	records := store.Records()
	require.Len(t, records, 1)
	require.Equal(t, "First", records[0].Title)
}

func TestStore_MarkSynced(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, crawler.Record{ID: "abc"}))
	require.False(t, store.Synced("abc"))

	require.NoError(t, store.MarkSynced(ctx, []string{"abc"}))
	require.True(t, store.Synced("abc"))
}
