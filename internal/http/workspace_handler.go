package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"console-gw/internal/domain"
	"console-gw/internal/repository"
	"console-gw/internal/service"
)

// WorkspaceHandler mantiene dependencias para endpoints de workspaces,
// solutions, datasources y contexto del workspace.
type WorkspaceHandler struct {
	logger        *zap.Logger
	workspaces    repository.WorkspaceRepository
	solutions     repository.SolutionRepository
	datasources   repository.DatasourceRepository
	assistantServ *service.AssistantService
}

func NewWorkspaceHandler(
	logger *zap.Logger,
	workspaces repository.WorkspaceRepository,
	solutions repository.SolutionRepository,
	datasources repository.DatasourceRepository,
	assistantServ *service.AssistantService,
) *WorkspaceHandler {
	return &WorkspaceHandler{
		logger:        logger,
		workspaces:    workspaces,
		solutions:     solutions,
		datasources:   datasources,
		assistantServ: assistantServ,
	}
}

// ListWorkspaces maneja GET /workspaces.
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaces.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list workspaces failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list workspaces"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

// GetWorkspace maneja GET /workspaces/:id.
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	ws, err := h.workspaces.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
			return
		}
		h.logger.Error("get workspace failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get workspace"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": ws})
}

// CreateWorkspace maneja POST /workspaces.
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ws := domain.Workspace{
		ID:        uuid.NewString(),
		Name:      req.Name,
		OwnerID:   claims.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.workspaces.Create(c.Request.Context(), ws); err != nil {
		h.logger.Error("create workspace failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create workspace"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"workspace": ws})
}

// ListSolutions maneja GET /workspaces/:id/solutions.
func (h *WorkspaceHandler) ListSolutions(c *gin.Context) {
	solutions, err := h.solutions.ListByWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list solutions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list solutions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"solutions": solutions})
}

// CreateSolution maneja POST /workspaces/:id/solutions.
func (h *WorkspaceHandler) CreateSolution(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sol := domain.Solution{
		ID:          uuid.NewString(),
		WorkspaceID: c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Status:      "draft",
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.solutions.Create(c.Request.Context(), sol); err != nil {
		h.logger.Error("create solution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create solution"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"solution": sol})
}

// ListDatasources maneja GET /workspaces/:id/datasources.
func (h *WorkspaceHandler) ListDatasources(c *gin.Context) {
	datasources, err := h.datasources.ListByWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list datasources failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list datasources"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasources": datasources})
}

// CreateDatasource maneja POST /workspaces/:id/datasources.
func (h *WorkspaceHandler) CreateDatasource(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Kind string `json:"kind" binding:"required"`
		URI  string `json:"uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ds := domain.Datasource{
		ID:          uuid.NewString(),
		WorkspaceID: c.Param("id"),
		Name:        req.Name,
		Kind:        req.Kind,
		URI:         req.URI,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.datasources.Create(c.Request.Context(), ds); err != nil {
		h.logger.Error("create datasource failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create datasource"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"datasource": ds})
}

// CreateContextSnippet maneja POST /workspaces/:id/context. Embebe el
// contenido y lo guarda para la búsqueda de contexto del asistente.
func (h *WorkspaceHandler) CreateContextSnippet(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	snippet, err := h.assistantServ.AddContextSnippet(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		if errors.Is(err, service.ErrEmbedderUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "context ingestion unavailable"})
			return
		}
		h.logger.Error("create context snippet failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create context snippet"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"snippet": snippet})
}
