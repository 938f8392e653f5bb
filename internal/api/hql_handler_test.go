package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/model"
	"HQLPreview/internal/repository"
	"HQLPreview/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
games:
  - gid: 10000147
    name: demo
    events:
      - id: 1
        name: role.login
        params:
          - name: zone_id
            type: int
`

const singleBody = `{"mode":"single","events":[{"game_gid":10000147,"event_id":1}],"fields":[{"fieldName":"role_id","fieldType":"base"},{"fieldName":"zone_id","fieldType":"param"}]}`

// failingRepo 模拟元数据库不可用
type failingRepo struct{}

func (failingRepo) GetGame(context.Context, int64) (*hql.Game, error) {
	return nil, errors.New("connection refused")
}
func (failingRepo) GetEvent(context.Context, int64) (*hql.Event, error) {
	return nil, errors.New("connection refused")
}
func (failingRepo) ListParameters(context.Context, int64) ([]hql.Parameter, error) {
	return nil, errors.New("connection refused")
}

// eventsRepo 在生成用的元数据之上提供固定的事件列表
type eventsRepo struct {
	hql.Repository
	events  []*model.Event
	listErr error
}

func (r *eventsRepo) ListEvents(_ context.Context, gameGID int64, page, pageSize int) ([]*model.Event, int64, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var out []*model.Event
	for _, e := range r.events {
		if gameGID == 0 || e.GameGID == gameGID {
			out = append(out, e)
		}
	}
	from := (page - 1) * pageSize
	if from >= len(out) {
		return nil, int64(len(out)), nil
	}
	return out[from:min(from+pageSize, len(out))], int64(len(out)), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func newRouter(t *testing.T, repo hql.Repository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if repo == nil {
		catalog, err := repository.LoadCatalog(strings.NewReader(catalogYAML))
		require.NoError(t, err)
		repo = catalog
	}
	metadata, isMetadata := repo.(repository.MetadataRepository)
	if !isMetadata {
		metadata = &eventsRepo{
			Repository: repo,
			events: []*model.Event{
				{ID: 1, GameGID: 10000147, EventName: "role.login"},
				{ID: 7, GameGID: 200, EventName: "shop.buy"},
			},
		}
	}
	logger, _ := test.NewNullLogger()
	svc := service.NewHQLService(hql.NewEngine(repo, hql.DefaultGeneratorConfig(), logger), metadata, nil, nil, nil, logger)

	r := gin.New()
	NewHQLHandler(svc, logger).Register(r.Group("/hql-preview-v2/api"))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestGenerateEndpoint(t *testing.T) {
	r := newRouter(t, nil)

	code, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", singleBody)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var res hql.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Contains(t, res.HQL, "WHERE e.ds = '${bizdate}'")
	assert.Len(t, res.Fingerprint, 64)
	assert.False(t, res.Cached)

	_, env = do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", singleBody)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Cached)
}

func TestGenerateEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		repo     hql.Repository
		body     string
		wantCode int
		wantKind string
	}{
		{
			name:     "malformed json",
			body:     `{"mode":`,
			wantCode: http.StatusBadRequest,
			wantKind: "InvalidRequest",
		},
		{
			name:     "unknown mode",
			body:     `{"mode":"cross","events":[{"game_gid":10000147,"event_id":1}],"fields":[{"fieldName":"ds","fieldType":"base"}]}`,
			wantCode: http.StatusBadRequest,
			wantKind: "InvalidRequest",
		},
		{
			name:     "unknown event",
			body:     `{"mode":"single","events":[{"game_gid":10000147,"event_id":42}],"fields":[{"fieldName":"ds","fieldType":"base"}]}`,
			wantCode: http.StatusBadRequest,
			wantKind: "EventNotFound",
		},
		{
			name:     "empty fields",
			body:     `{"mode":"single","events":[{"game_gid":10000147,"event_id":1}],"fields":[]}`,
			wantCode: http.StatusBadRequest,
			wantKind: "EmptyFieldList",
		},
		{
			name:     "repository down",
			repo:     failingRepo{},
			body:     singleBody,
			wantCode: http.StatusInternalServerError,
			wantKind: "RepositoryError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, tt.repo)
			code, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantKind, env.Kind)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestGenerateIncrementalEndpoint(t *testing.T) {
	r := newRouter(t, nil)

	_, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", singleBody)
	var first hql.Result
	require.NoError(t, json.Unmarshal(env.Data, &first))

	body := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(singleBody), &body))
	body["previous_hql"] = first.HQL
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	code, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/generate-incremental", string(raw))
	require.Equal(t, http.StatusOK, code)

	var res hql.IncrementalResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, hql.OutcomeCacheHit, res.Outcome)
	assert.Equal(t, first.HQL, res.HQL)
	assert.True(t, res.Cached)
}

func TestValidateAndAnalyzeEndpoints(t *testing.T) {
	r := newRouter(t, nil)

	code, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/validate", `{"hql":"SELECT a, FROM t"}`)
	require.Equal(t, http.StatusOK, code)
	var v struct {
		IsValid      bool              `json:"is_valid"`
		SyntaxErrors []json.RawMessage `json:"syntax_errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.False(t, v.IsValid)
	assert.NotEmpty(t, v.SyntaxErrors)

	code, env = do(t, r, http.MethodPost, "/hql-preview-v2/api/analyze", `{"hql":"SELECT * FROM t"}`)
	require.Equal(t, http.StatusOK, code)
	var p struct {
		Score int    `json:"score"`
		Level string `json:"level"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Less(t, p.Score, 100)
	assert.NotEmpty(t, p.Level)

	code, env = do(t, r, http.MethodPost, "/hql-preview-v2/api/validate", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidRequest", env.Kind)
}

func TestCacheEndpoints(t *testing.T) {
	r := newRouter(t, nil)
	do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", singleBody)

	code, env := do(t, r, http.MethodGet, "/hql-preview-v2/api/cache-stats", "")
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		Size   int   `json:"size"`
		Misses int64 `json:"misses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Size)

	code, _ = do(t, r, http.MethodPost, "/hql-preview-v2/api/cache-clear", "")
	require.Equal(t, http.StatusOK, code)

	_, env = do(t, r, http.MethodGet, "/hql-preview-v2/api/cache-stats", "")
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 0, stats.Size)
}

func TestGetHQLEndpoint(t *testing.T) {
	r := newRouter(t, nil)

	_, env := do(t, r, http.MethodPost, "/hql-preview-v2/api/generate", singleBody)
	var res hql.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))

	code, env := do(t, r, http.MethodGet, "/hql-preview-v2/api/hql/"+res.Fingerprint, "")
	require.Equal(t, http.StatusOK, code)
	var got service.HQLLookup
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, res.HQL, got.HQL)
	assert.Equal(t, "memory", got.Source)

	code, env = do(t, r, http.MethodGet, "/hql-preview-v2/api/hql/unknown", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestHistoryEndpointWithoutStore(t *testing.T) {
	r := newRouter(t, nil)

	code, env := do(t, r, http.MethodGet, "/hql-preview-v2/api/history?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, code)
	var list service.HistoryListResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 10, list.PageSize)
	assert.Empty(t, list.Items)
}

func TestEventsEndpoint(t *testing.T) {
	r := newRouter(t, nil)

	code, env := do(t, r, http.MethodGet, "/hql-preview-v2/api/events?game_gid=10000147&page=0", "")
	require.Equal(t, http.StatusOK, code)
	var list service.EventListResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.PageSize)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "role.login", list.Items[0].EventName)

	_, env = do(t, r, http.MethodGet, "/hql-preview-v2/api/events?page_size=1000", "")
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 20, list.PageSize)
	assert.Equal(t, int64(2), list.Total)
}

func TestEventsEndpointRepositoryError(t *testing.T) {
	r := newRouter(t, &eventsRepo{Repository: failingRepo{}, listErr: errors.New("connection refused")})

	code, env := do(t, r, http.MethodGet, "/hql-preview-v2/api/events?game_gid=10000147", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, env.Success)
	assert.Equal(t, "RepositoryError", env.Kind)
}
