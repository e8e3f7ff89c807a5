package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/dto"
	"github.com/childlang-lab/cdi-api/internal/middleware"
	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/service"
)

type snapshotQueryServiceMock struct {
	searchResp  []models.SnapshotMetadata
	deleteResp  []models.SnapshotMetadata
	deleteErr   error
	confirmed   []string
	lastFilters []models.Filter
	lastHard    bool
}

func (m *snapshotQueryServiceMock) Search(ctx context.Context, filters []models.Filter, includeDeleted bool) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	return m.searchResp, nil
}

func (m *snapshotQueryServiceMock) ConfirmDestructive(ctx context.Context, sessionID string) error {
	m.confirmed = append(m.confirmed, sessionID)
	return nil
}

func (m *snapshotQueryServiceMock) Delete(ctx context.Context, sessionID string, filters []models.Filter, hard bool) ([]models.SnapshotMetadata, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.lastFilters = filters
	m.lastHard = hard
	return m.deleteResp, nil
}

func (m *snapshotQueryServiceMock) Restore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	m.lastFilters = filters
	return m.deleteResp, nil
}

type childPatchServiceMock struct {
	lastPatch service.ChildMetadataPatch
	resp      []models.SnapshotMetadata
}

func (m *childPatchServiceMock) ApplyChildPatch(ctx context.Context, patch service.ChildMetadataPatch) ([]models.SnapshotMetadata, error) {
	m.lastPatch = patch
	return m.resp, nil
}

func postJSON(t *testing.T, path string, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestSnapshotHandlerSearch(t *testing.T) {
	queries := &snapshotQueryServiceMock{searchResp: []models.SnapshotMetadata{{DatabaseID: 1}}}
	h := NewSnapshotHandler(queries, &childPatchServiceMock{})

	w, c := postJSON(t, "/snapshots/search", dto.SearchRequest{
		Filters: []models.Filter{{Field: "study", Operator: "eq", Operand: "wordspurt"}},
	})
	h.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, queries.lastFilters, 1)
}

func TestSnapshotHandlerSearchRejectsMalformedBody(t *testing.T) {
	h := NewSnapshotHandler(&snapshotQueryServiceMock{}, &childPatchServiceMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/snapshots/search", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Search(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshotHandlerDeleteWithoutClaims(t *testing.T) {
	h := NewSnapshotHandler(&snapshotQueryServiceMock{}, &childPatchServiceMock{})

	w, c := postJSON(t, "/snapshots/delete", dto.DeleteRequest{})
	h.Delete(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSnapshotHandlerDeleteUnconfirmed(t *testing.T) {
	queries := &snapshotQueryServiceMock{deleteErr: service.ErrDeleteNotConfirmed}
	h := NewSnapshotHandler(queries, &childPatchServiceMock{})

	w, c := postJSON(t, "/snapshots/delete", dto.DeleteRequest{
		Filters: []models.Filter{{Field: "child_id", Operator: "eq", Operand: "C1"}},
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleResearcher})

	h.Delete(c)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
}

func TestSnapshotHandlerDeleteConfirmedFlow(t *testing.T) {
	queries := &snapshotQueryServiceMock{deleteResp: []models.SnapshotMetadata{{DatabaseID: 1}}}
	h := NewSnapshotHandler(queries, &childPatchServiceMock{})

	w, c := postJSON(t, "/snapshots/delete/confirm", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleResearcher})
	h.ConfirmDelete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-1"}, queries.confirmed)

	w, c = postJSON(t, "/snapshots/delete", dto.DeleteRequest{
		Filters: []models.Filter{{Field: "child_id", Operator: "eq", Operand: "C1"}},
		Hard:    true,
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleResearcher})
	h.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, queries.lastHard)

	var envelope struct {
		Data dto.AffectedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.Affected)
}

func TestSnapshotHandlerUpdateChildBuildsPatch(t *testing.T) {
	recalc := &childPatchServiceMock{resp: []models.SnapshotMetadata{{DatabaseID: 1}}}
	h := NewSnapshotHandler(&snapshotQueryServiceMock{}, recalc)

	gender := models.Male
	w, c := postJSON(t, "/children/C1", dto.ChildPatchRequest{Gender: &gender})
	c.Params = gin.Params{{Key: "childId", Value: "C1"}}

	h.UpdateChild(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "C1", recalc.lastPatch.ChildID)
	require.NotNil(t, recalc.lastPatch.Gender)
	assert.Equal(t, models.Male, *recalc.lastPatch.Gender)
	assert.Nil(t, recalc.lastPatch.Birthday)
}
