package workspacectx

import "github.com/charlesng35/adboard/internal/services"

// Source records which rule picked the current workspace.
type Source string

const (
	SourceNone    Source = "none"
	SourceCached  Source = "cached"
	SourceDefault Source = "default"
	SourceFirst   Source = "first"
)

// Resolution is the outcome of reconciling the loaded memberships with the
// locally cached workspace id.
type Resolution struct {
	CurrentID string
	Source    Source
	// DropCache is set when the cached id no longer names a membership.
	DropCache bool
}

// Resolve picks the current workspace: the cached id while it is still a
// membership, else the default membership, else the first entry, else none.
// It performs no I/O.
func Resolve(memberships []services.WorkspaceMembership, cachedID string) Resolution {
	res := Resolution{Source: SourceNone}

	if cachedID != "" {
		if contains(memberships, cachedID) {
			res.CurrentID = cachedID
			res.Source = SourceCached
			return res
		}
		res.DropCache = true
	}

	for _, m := range memberships {
		if m.Membership.IsDefault {
			res.CurrentID = m.Workspace.ID
			res.Source = SourceDefault
			return res
		}
	}

	if len(memberships) > 0 {
		res.CurrentID = memberships[0].Workspace.ID
		res.Source = SourceFirst
	}
	return res
}

func contains(memberships []services.WorkspaceMembership, workspaceID string) bool {
	return find(memberships, workspaceID) != nil
}

func find(memberships []services.WorkspaceMembership, workspaceID string) *services.WorkspaceMembership {
	for i := range memberships {
		if memberships[i].Workspace.ID == workspaceID {
			return &memberships[i]
		}
	}
	return nil
}
