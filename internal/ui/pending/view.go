package pending

import (
	"time"
)

// Mode tells a front-end which single block to render.
type Mode int

const (
	// Hidden renders nothing at all, not even a header.
	Hidden Mode = iota
	Loading
	Failed
	Table
)

// View is a render-ready snapshot of the workflow.
type View struct {
	Mode        Mode
	Message     string
	Title       string
	Description string
	Columns     []string
	Rows        []Row
	Dialog      *Dialog
}

// Row is one invitation line.
type Row struct {
	ID      string
	Email   string
	Role    string
	Expires string
	Action  string
}

// Dialog is the confirmation prompt for the selected invitation.
type Dialog struct {
	InvitationID string
	Title        string
	Body         string
	Confirm      string
	Cancel       string
	Busy         bool
}

// View renders the current state. Loading and failure pre-empt everything else.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.loading:
		return View{Mode: Loading, Message: w.t("loading")}
	case w.loadErr != nil:
		return View{Mode: Failed, Message: ErrorMessage(w.loadErr)}
	case len(w.invitations) == 0:
		return View{Mode: Hidden}
	}
	view := View{
		Mode:        Table,
		Title:       w.t("pending-invitations"),
		Description: w.t("description-invitations"),
		Columns:     []string{w.t("email"), w.t("role"), w.t("expires-at"), w.t("action")},
		Rows:        make([]Row, 0, len(w.invitations)),
	}
	remove := w.t("remove")
	for _, inv := range w.invitations {
		email := ""
		if inv.Email != nil {
			email = *inv.Email
		}
		view.Rows = append(view.Rows, Row{
			ID:      inv.ID,
			Email:   email,
			Role:    inv.Role,
			Expires: formatExpiry(inv.Expires),
			Action:  remove,
		})
	}
	if w.selected != nil && w.state != Idle {
		email := ""
		if w.selected.Email != nil {
			email = *w.selected.Email
		}
		view.Dialog = &Dialog{
			InvitationID: w.selected.ID,
			Title:        w.t("confirm-delete-member-invitation"),
			Body:         w.t("delete-member-invitation-warning", email),
			Confirm:      remove,
			Cancel:       w.t("cancel"),
			Busy:         w.state == Deleting,
		}
	}
	return view
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Mon Jan 02 2006")
}
