package permissions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charlesng35/adboard/internal/models"
)

// Action names a privileged operation inside one workspace.
type Action string

const (
	ActionViewWorkspace   Action = "workspace.view"
	ActionUpdateWorkspace Action = "workspace.update"
	ActionDeleteWorkspace Action = "workspace.delete"
	ActionListMembers     Action = "member.list"
	ActionInvite          Action = "member.invite"
	ActionChangeRole      Action = "member.update_role"
	ActionRemoveMember    Action = "member.remove"
	ActionListInvitations Action = "invitation.list"
	ActionRevokeInvite    Action = "invitation.revoke"
)

// Definition describes the minimum role an action requires before any
// action-specific rule is evaluated.
type Definition struct {
	Action      Action
	MinRole     models.WorkspaceRole
	Description string
}

type registry struct {
	mu      sync.RWMutex
	actions map[Action]Definition
}

var globalRegistry = &registry{actions: make(map[Action]Definition)}

func init() {
	defs := []Definition{
		{Action: ActionViewWorkspace, MinRole: models.RoleViewer, Description: "View a workspace and own membership"},
		{Action: ActionUpdateWorkspace, MinRole: models.RoleAdmin, Description: "Update workspace settings"},
		{Action: ActionDeleteWorkspace, MinRole: models.RoleOwner, Description: "Delete a workspace"},
		{Action: ActionListMembers, MinRole: models.RoleAdmin, Description: "List workspace members"},
		{Action: ActionInvite, MinRole: models.RoleAdmin, Description: "Invite users to a workspace"},
		{Action: ActionChangeRole, MinRole: models.RoleAdmin, Description: "Change another member's role"},
		{Action: ActionRemoveMember, MinRole: models.RoleViewer, Description: "Remove a member or leave a workspace"},
		{Action: ActionListInvitations, MinRole: models.RoleAdmin, Description: "List workspace invitations"},
		{Action: ActionRevokeInvite, MinRole: models.RoleAdmin, Description: "Revoke a pending invitation"},
	}
	for _, def := range defs {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}

// Register adds an action definition. Registering the same action twice fails.
func Register(def Definition) error {
	if def.Action == "" {
		return fmt.Errorf("permissions: action is required")
	}
	if !def.MinRole.Valid() {
		return fmt.Errorf("permissions: action %q: %w", def.Action, models.ErrInvalidWorkspaceRole)
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.actions[def.Action]; exists {
		return fmt.Errorf("permissions: action %q already registered", def.Action)
	}
	globalRegistry.actions[def.Action] = def
	return nil
}

// Get returns the definition registered for action.
func Get(action Action) (Definition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	def, ok := globalRegistry.actions[action]
	return def, ok
}

// All returns every registered definition ordered by action name.
func All() []Definition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	defs := make([]Definition, 0, len(globalRegistry.actions))
	for _, def := range globalRegistry.actions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Action < defs[j].Action })
	return defs
}

func unregister(action Action) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	delete(globalRegistry.actions, action)
}
