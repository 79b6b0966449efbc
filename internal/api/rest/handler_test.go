package rest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sunset-protocol/sunset-indexer/internal/api/middleware"
	"github.com/sunset-protocol/sunset-indexer/internal/api/rest"
	"github.com/sunset-protocol/sunset-indexer/internal/api/shared/dto"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
)

const (
	testToken  = "0x1111111111111111111111111111111111111111"
	testHolder = "0x3333333333333333333333333333333333333333"
	testAPIKey = "test-api-key"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}
	gin.SetMode(gin.TestMode)

	code := m.Run()
	os.Exit(code)
}

// fakeExecutor returns canned responses or a shared error
type fakeExecutor struct {
	err     error
	score   *dto.ScoreResponse
	project *dto.ProjectResponse
	list    *dto.ProjectListResponse

	listLimit  int
	listOffset int
	reindexed  bool
}

func (e *fakeExecutor) GetProject(_ context.Context, token string) (*dto.ProjectResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.project != nil {
		return e.project, nil
	}
	return &dto.ProjectResponse{Token: token, Registered: false}, nil
}

func (e *fakeExecutor) ListProjects(_ context.Context, limit, offset int) (*dto.ProjectListResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.listLimit = limit
	e.listOffset = offset
	if e.list != nil {
		return e.list, nil
	}
	return &dto.ProjectListResponse{Projects: []*dto.ProjectResponse{}, Limit: limit, Offset: offset}, nil
}

func (e *fakeExecutor) GetScore(_ context.Context, token string) (*dto.ScoreResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.score != nil {
		return e.score, nil
	}
	return &dto.ScoreResponse{Token: token, Registered: false}, nil
}

func (e *fakeExecutor) GetCoverage(_ context.Context, token string) (*dto.CoverageResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &dto.CoverageResponse{Token: token, Registered: false}, nil
}

func (e *fakeExecutor) GetClaimable(_ context.Context, token string, holder string) (*dto.ClaimableResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &dto.ClaimableResponse{Token: token, Holder: holder, Claimable: "0"}, nil
}

func (e *fakeExecutor) GetProtocolStats(_ context.Context) (*dto.ProtocolResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &dto.ProtocolResponse{TotalProjects: 1, TotalDeposited: "0", TotalClaimed: "0"}, nil
}

func (e *fakeExecutor) ReindexProject(_ context.Context, token string, fromBlock uint64) (*dto.ReindexResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.reindexed = true
	return &dto.ReindexResponse{Token: token, FromBlock: fromBlock}, nil
}

func setupRouter(exec *fakeExecutor) *gin.Engine {
	router := gin.New()
	handler := rest.NewHandler(false, exec)
	rest.SetupRoutes(router, handler, middleware.AuthConfig{
		APIKeys: []string{testAPIKey},
	})
	return router
}

func doRequest(router *gin.Engine, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(&fakeExecutor{})

	recorder := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "healthy")
}

func TestGetScore(t *testing.T) {
	t.Run("registered token", func(t *testing.T) {
		score := 85
		exec := &fakeExecutor{score: &dto.ScoreResponse{
			Token:      testToken,
			Registered: true,
			Score:      &score,
			Status:     "healthy",
		}}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects/"+testToken+"/score", "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"score":85`)
		assert.Contains(t, recorder.Body.String(), `"status":"healthy"`)
	})

	t.Run("unregistered token is still a 200", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects/"+testToken+"/score", "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"registered":false`)
	})

	t.Run("invalid address", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects/not-an-address/score", "", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "validation_failed")
	})

	t.Run("upstream outage maps to 503", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{err: domain.ErrUpstreamUnavailable})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects/"+testToken+"/score", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "upstream_unavailable")
	})

	t.Run("unexpected error maps to 500", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{err: errors.New("boom")})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects/"+testToken+"/score", "", nil)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestListProjects(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects", "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, 50, exec.listLimit)
		assert.Equal(t, 0, exec.listOffset)
	})

	t.Run("explicit pagination", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects?limit=10&offset=20", "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, 10, exec.listLimit)
		assert.Equal(t, 20, exec.listOffset)
	})

	t.Run("limit is capped", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects?limit=9999", "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, 200, exec.listLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects?limit=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("negative offset", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet, "/api/v1/projects?offset=-1", "", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestGetClaimable(t *testing.T) {
	t.Run("valid addresses", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet,
			"/api/v1/projects/"+testToken+"/claimable/"+testHolder, "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("invalid holder", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodGet,
			"/api/v1/projects/"+testToken+"/claimable/bogus", "", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestGetProtocolStats(t *testing.T) {
	router := setupRouter(&fakeExecutor{})

	recorder := doRequest(router, http.MethodGet, "/api/v1/protocol", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"totalProjects":1`)
}

func TestReindexProject(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodPost,
			"/api/v1/projects/"+testToken+"/reindex", "", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.False(t, exec.reindexed)
	})

	t.Run("api key grants access", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodPost,
			"/api/v1/projects/"+testToken+"/reindex", `{"fromBlock":123}`,
			map[string]string{"Authorization": "ApiKey " + testAPIKey})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, exec.reindexed)
		assert.Contains(t, recorder.Body.String(), `"fromBlock":123`)
	})

	t.Run("empty body defaults to block zero", func(t *testing.T) {
		exec := &fakeExecutor{}
		router := setupRouter(exec)

		recorder := doRequest(router, http.MethodPost,
			"/api/v1/projects/"+testToken+"/reindex", "",
			map[string]string{"Authorization": "ApiKey " + testAPIKey})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"fromBlock":0`)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := setupRouter(&fakeExecutor{})

		recorder := doRequest(router, http.MethodPost,
			"/api/v1/projects/"+testToken+"/reindex", `{"fromBlock":`,
			map[string]string{"Authorization": "ApiKey " + testAPIKey})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
