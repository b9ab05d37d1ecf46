package notification

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "kissan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestListSeedsOnce(t *testing.T) {
	svc := NewService(newRepo(t), nil)
	ctx := context.Background()

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Weather Alert", items[0].Title)
	assert.Equal(t, domain.NotifyWarning, items[0].Type)
	assert.Equal(t, "Crop Price Update", items[1].Title)
	assert.True(t, items[2].Read)

	again, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, items[0].ID, again[0].ID)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMarkReadAndMarkAll(t *testing.T) {
	svc := NewService(newRepo(t), nil)
	ctx := context.Background()

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "u1", items[0].ID))
	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, svc.MarkRead(ctx, "u1", "missing"), ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", items[1].ID), ErrNotFound)

	_, err = svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	count, err = svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDisabledNotificationsAreEmpty(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	prefs := domain.DefaultPreferences()
	prefs.NotificationsEnabled = false
	require.NoError(t, repo.UpsertPreferences(ctx, "u1", prefs))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSeedTitlesFollowLanguage(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	prefs := domain.DefaultPreferences()
	prefs.Language = domain.LangHindi
	require.NoError(t, repo.UpsertPreferences(ctx, "u1", prefs))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "मौसम अलर्ट", items[0].Title)
}
