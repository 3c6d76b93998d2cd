package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/response"
)

type MemberHandler struct {
	members     *services.MemberService
	invitations *services.InvitationService
}

// Email and role are checked by the services so that authorization is
// decided before input is judged.
type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func NewMemberHandler(members *services.MemberService, invitations *services.InvitationService) (*MemberHandler, error) {
	if members == nil || invitations == nil {
		return nil, errors.New("member handler: member and invitation services are required")
	}
	return &MemberHandler{members: members, invitations: invitations}, nil
}

// GET /api/workspaces/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.members.List(requestContext(c), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// POST /api/workspaces/:id/members
func (h *MemberHandler) Invite(c *gin.Context) {
	var req inviteMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.Invite(requestContext(c), c.Param("id"), currentUserID(c), req.Email, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// PATCH /api/workspaces/:id/members/:memberId
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	var req updateMemberRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.members.UpdateRole(requestContext(c), c.Param("id"), c.Param("memberId"), currentUserID(c), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/workspaces/:id/members/:memberId
func (h *MemberHandler) Remove(c *gin.Context) {
	if err := h.members.Remove(requestContext(c), c.Param("id"), c.Param("memberId"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, nil)
}
