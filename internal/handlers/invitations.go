package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/response"
)

type InvitationHandler struct {
	svc *services.InvitationService
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func NewInvitationHandler(svc *services.InvitationService) (*InvitationHandler, error) {
	if svc == nil {
		return nil, errors.New("invitation handler: service is required")
	}
	return &InvitationHandler{svc: svc}, nil
}

// GET /api/workspaces/:id/invitations?status=
func (h *InvitationHandler) List(c *gin.Context) {
	invitations, err := h.svc.List(requestContext(c), c.Param("id"), currentUserID(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// DELETE /api/workspaces/:id/invitations/:invitationId
func (h *InvitationHandler) Revoke(c *gin.Context) {
	invitation, err := h.svc.Revoke(requestContext(c), c.Param("id"), c.Param("invitationId"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitation)
}

// POST /api/invitations/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req acceptInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.svc.Accept(requestContext(c), req.Token, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}
