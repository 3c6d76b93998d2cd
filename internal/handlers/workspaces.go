package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adboard/internal/services"
	appErrors "github.com/charlesng35/adboard/pkg/errors"
	"github.com/charlesng35/adboard/pkg/response"
)

type WorkspaceHandler struct {
	svc *services.WorkspaceService
}

type createWorkspaceRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

type switchWorkspaceRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

func NewWorkspaceHandler(svc *services.WorkspaceService) (*WorkspaceHandler, error) {
	if svc == nil {
		return nil, errors.New("workspace handler: service is required")
	}
	return &WorkspaceHandler{svc: svc}, nil
}

// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.svc.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspaces)
}

// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.svc.Get(requestContext(c), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// PATCH /api/workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req services.UpdateWorkspaceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}

	workspace, err := h.svc.Update(requestContext(c), c.Param("id"), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, nil)
}

// POST /api/workspaces/switch
func (h *WorkspaceHandler) Switch(c *gin.Context) {
	var req switchWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	current, err := h.svc.Switch(requestContext(c), currentUserID(c), req.WorkspaceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, current)
}

// POST /api/workspaces/:id/default
func (h *WorkspaceHandler) SetDefault(c *gin.Context) {
	membership, err := h.svc.SetDefault(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}
