package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/handlers"
	"github.com/charlesng35/adboard/internal/services"
)

func registerWorkspaceRoutes(api *gin.RouterGroup, db *gorm.DB, invitationOpts []services.InvitationOption) error {
	workspaceSvc, err := services.NewWorkspaceService(db)
	if err != nil {
		return err
	}
	memberSvc, err := services.NewMemberService(db)
	if err != nil {
		return err
	}
	invitationSvc, err := services.NewInvitationService(db, invitationOpts...)
	if err != nil {
		return err
	}

	workspaceHandler, err := handlers.NewWorkspaceHandler(workspaceSvc)
	if err != nil {
		return err
	}
	memberHandler, err := handlers.NewMemberHandler(memberSvc, invitationSvc)
	if err != nil {
		return err
	}
	invitationHandler, err := handlers.NewInvitationHandler(invitationSvc)
	if err != nil {
		return err
	}

	workspaces := api.Group("/workspaces")
	{
		workspaces.GET("", workspaceHandler.List)
		workspaces.POST("", workspaceHandler.Create)
		workspaces.POST("/switch", workspaceHandler.Switch)
		workspaces.GET("/:id", workspaceHandler.Get)
		workspaces.PATCH("/:id", workspaceHandler.Update)
		workspaces.DELETE("/:id", workspaceHandler.Delete)
		workspaces.POST("/:id/default", workspaceHandler.SetDefault)

		workspaces.GET("/:id/members", memberHandler.List)
		workspaces.POST("/:id/members", memberHandler.Invite)
		workspaces.PATCH("/:id/members/:memberId", memberHandler.UpdateRole)
		workspaces.DELETE("/:id/members/:memberId", memberHandler.Remove)

		workspaces.GET("/:id/invitations", invitationHandler.List)
		workspaces.DELETE("/:id/invitations/:invitationId", invitationHandler.Revoke)
	}

	api.POST("/invitations/accept", invitationHandler.Accept)
	return nil
}
