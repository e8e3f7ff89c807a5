package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

type mockQueryStore struct {
	lastFilters []models.Filter
	results     []models.SnapshotMetadata

	softDeletes int
	hardDeletes int
	restores    int
}

func (m *mockQueryStore) RunSearch(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	return m.results, nil
}

func (m *mockQueryStore) RunSoftDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	m.softDeletes++
	return m.results, nil
}

func (m *mockQueryStore) RunRestore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	m.restores++
	return m.results, nil
}

func (m *mockQueryStore) RunHardDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	m.hardDeletes++
	return m.results, nil
}

type mockConfirmer struct {
	armed map[string]bool
}

func newMockConfirmer() *mockConfirmer {
	return &mockConfirmer{armed: make(map[string]bool)}
}

func (m *mockConfirmer) Arm(ctx context.Context, sessionID string) error {
	m.armed[sessionID] = true
	return nil
}

func (m *mockConfirmer) Consume(ctx context.Context, sessionID string) (bool, error) {
	was := m.armed[sessionID]
	delete(m.armed, sessionID)
	return was, nil
}

func TestQueryServiceSearchExcludesDeletedByDefault(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewQueryService(store, newMockConfirmer(), nil)

	_, err := svc.Search(context.Background(), []models.Filter{
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
	}, false)
	require.NoError(t, err)

	require.Len(t, store.lastFilters, 2)
	assert.Equal(t, "study", store.lastFilters[0].Field)
	assert.Equal(t, models.Filter{Field: "deleted", Operator: "eq", Operand: "0"}, store.lastFilters[1])
}

func TestQueryServiceSearchIncludeDeletedKeepsFiltersIntact(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewQueryService(store, newMockConfirmer(), nil)

	_, err := svc.Search(context.Background(), []models.Filter{
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
	}, true)
	require.NoError(t, err)
	require.Len(t, store.lastFilters, 1)
}

func TestQueryServiceDeleteRequiresConfirmation(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewQueryService(store, newMockConfirmer(), nil)

	_, err := svc.Delete(context.Background(), "session-1", nil, false)
	assert.ErrorIs(t, err, ErrDeleteNotConfirmed)
	assert.Zero(t, store.softDeletes)
	assert.Zero(t, store.hardDeletes)
}

func TestQueryServiceDeleteConsumesConfirmation(t *testing.T) {
	store := &mockQueryStore{results: []models.SnapshotMetadata{{DatabaseID: 1}}}
	confirmer := newMockConfirmer()
	svc := NewQueryService(store, confirmer, nil)

	require.NoError(t, svc.ConfirmDestructive(context.Background(), "session-1"))

	affected, err := svc.Delete(context.Background(), "session-1", []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C1"},
	}, false)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, 1, store.softDeletes)

	// The flag is one-shot.
	_, err = svc.Delete(context.Background(), "session-1", nil, false)
	assert.ErrorIs(t, err, ErrDeleteNotConfirmed)
}

func TestQueryServiceSoftDeleteMatchesAlreadyDeletedRows(t *testing.T) {
	store := &mockQueryStore{}
	confirmer := newMockConfirmer()
	svc := NewQueryService(store, confirmer, nil)

	require.NoError(t, svc.ConfirmDestructive(context.Background(), "session-1"))
	_, err := svc.Delete(context.Background(), "session-1", []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C1"},
	}, false)
	require.NoError(t, err)

	// No implicit deleted filter is appended for destructive queries.
	require.Len(t, store.lastFilters, 1)
	assert.Equal(t, "child_id", store.lastFilters[0].Field)
}

func TestQueryServiceHardDelete(t *testing.T) {
	store := &mockQueryStore{results: []models.SnapshotMetadata{{DatabaseID: 1}}}
	confirmer := newMockConfirmer()
	svc := NewQueryService(store, confirmer, nil)

	require.NoError(t, svc.ConfirmDestructive(context.Background(), "session-1"))
	affected, err := svc.Delete(context.Background(), "session-1", nil, true)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, 1, store.hardDeletes)
	assert.Zero(t, store.softDeletes)
}

func TestQueryServiceRestoreNeedsNoConfirmation(t *testing.T) {
	store := &mockQueryStore{results: []models.SnapshotMetadata{{DatabaseID: 1}}}
	svc := NewQueryService(store, newMockConfirmer(), nil)

	affected, err := svc.Restore(context.Background(), []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C1"},
	})
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, 1, store.restores)
}
