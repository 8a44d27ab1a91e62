package domain

// AccessibleView is a ServerRecord as seen by a particular caller, joined with its live client state.
type AccessibleView struct {
	ID         string
	Name       string
	Config     ServerConfig
	Visibility Visibility
	Status     ClientStatus
	Error      string
	ToolInfo   []ToolInfo
	IsOwner    bool

	// OwnerID is the owner's id when the record is shared with the caller.
	// It is nil when the caller owns the record or the record has no owner.
	OwnerID *string
}

// Project builds the caller's view of a record.
// A nil live client means no connection has been attempted yet, so the status is reported as loading.
func Project(r ServerRecord, live *LiveClient, callerID string) AccessibleView {
	view := AccessibleView{
		ID:         r.ID,
		Name:       r.Name,
		Config:     r.Config,
		Visibility: r.Visibility,
		Status:     ClientStatusLoading,
		ToolInfo:   []ToolInfo{},
		IsOwner:    r.IsOwnedBy(callerID),
	}

	if live != nil {
		view.Status = live.Status
		view.Error = live.Error
		if live.ToolInfo != nil {
			view.ToolInfo = live.ToolInfo
		}
	}

	if !view.IsOwner && r.UserID != "" {
		owner := r.UserID
		view.OwnerID = &owner
	}

	return view
}
