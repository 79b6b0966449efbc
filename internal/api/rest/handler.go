package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sunset-protocol/sunset-indexer/internal/api/shared/executor"
)


// Handler defines the REST API handler interface
type Handler interface {
	// HealthCheck handles GET /health
	HealthCheck(c *gin.Context)

	// ListProjects handles GET /api/v1/projects
	ListProjects(c *gin.Context)

	// GetProject handles GET /api/v1/projects/:token
	GetProject(c *gin.Context)

	// GetScore handles GET /api/v1/projects/:token/score
	GetScore(c *gin.Context)

	// GetCoverage handles GET /api/v1/projects/:token/coverage
	GetCoverage(c *gin.Context)

	// GetClaimable handles GET /api/v1/projects/:token/claimable/:holder
	GetClaimable(c *gin.Context)

	// GetProtocolStats handles GET /api/v1/protocol
	GetProtocolStats(c *gin.Context)

	// ReindexProject handles POST /api/v1/projects/:token/reindex
	ReindexProject(c *gin.Context)
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// handler is the concrete implementation of the Handler interface
type handler struct {
	debug    bool
	executor executor.Executor
}

// NewHandler creates a new REST API handler
func NewHandler(debug bool, exec executor.Executor) Handler {
	return &handler{
		debug:    debug,
		executor: exec,
	}
}

// HealthCheck returns the service health status
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *handler) ListProjects(c *gin.Context) {
	limit, offset, ok := paginationParams(c)
	if !ok {
		return
	}

	response, err := h.executor.ListProjects(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list projects")
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetProject(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}

	response, err := h.executor.GetProject(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "Failed to get project", zap.String("token", token))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetScore(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}

	response, err := h.executor.GetScore(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "Failed to compute score", zap.String("token", token))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetCoverage(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}

	response, err := h.executor.GetCoverage(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "Failed to get coverage", zap.String("token", token))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetClaimable(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	holder, ok := addressParam(c, "holder")
	if !ok {
		return
	}

	response, err := h.executor.GetClaimable(c.Request.Context(), token, holder)
	if err != nil {
		respondError(c, err, "Failed to get claimable amount",
			zap.String("token", token), zap.String("holder", holder))
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetProtocolStats(c *gin.Context) {
	response, err := h.executor.GetProtocolStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get protocol stats")
		return
	}
	c.JSON(http.StatusOK, response)
}

// reindexRequest is the optional body of a reindex call
type reindexRequest struct {
	FromBlock uint64 `json:"fromBlock"`
}

func (h *handler) ReindexProject(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}

	var req reindexRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	response, err := h.executor.ReindexProject(c.Request.Context(), token, req.FromBlock)
	if err != nil {
		respondError(c, err, "Failed to reindex project", zap.String("token", token))
		return
	}
	c.JSON(http.StatusOK, response)
}

// addressParam validates a path parameter as a hex address, responding with a
// validation error when it is not one
func addressParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if !common.IsHexAddress(value) {
		respondValidationError(c, name+" must be a valid hex address")
		return "", false
	}
	return value, true
}

// paginationParams parses limit/offset query parameters with bounds
func paginationParams(c *gin.Context) (int, int, bool) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondValidationError(c, "limit must be a positive integer")
			return 0, 0, false
		}
		if parsed > maxPageLimit {
			parsed = maxPageLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondValidationError(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = parsed
	}

	return limit, offset, true
}
