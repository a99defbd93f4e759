// Package pending drives the pending-invitations panel: listing email invitations
// for a team and cancelling one behind a confirmation step. It holds no rendering
// code; the dashboard and the CLI both render its View.
package pending

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/splax/teamhub/pkg/api/client"
)

// ErrBusy is returned by Confirm while a delete request is already in flight.
var ErrBusy = errors.New("pending: delete already in progress")

// Source is the authoritative invitation store, normally the API client.
type Source interface {
	Invitations(ctx context.Context, token, slug string, sentViaEmail *bool) ([]client.Invitation, error)
	DeleteInvitation(ctx context.Context, token, slug, invitationID string) error
}

// Notifier surfaces transient feedback to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Translator maps message keys to localised text.
type Translator interface {
	T(key string, args ...any) string
}

// State is the removal dialog state.
type State int

const (
	Idle State = iota
	Confirming
	Deleting
)

func (s State) String() string {
	switch s {
	case Confirming:
		return "confirming"
	case Deleting:
		return "deleting"
	default:
		return "idle"
	}
}

// Config wires a Workflow to its collaborators and the team it operates on.
type Config struct {
	Source     Source
	Notifier   Notifier
	Translator Translator
	Token      string
	Team       string
}

// Workflow is safe for concurrent use. At most one delete runs at a time.
type Workflow struct {
	cfg Config

	mu          sync.Mutex
	state       State
	selected    *client.Invitation
	invitations []client.Invitation
	loading     bool
	loadErr     error
}

// New constructs a workflow for one team.
func New(cfg Config) *Workflow {
	return &Workflow{cfg: cfg}
}

// Load fetches email invitations from the source, replacing the local list.
func (w *Workflow) Load(ctx context.Context) error {
	w.mu.Lock()
	w.loading = true
	w.mu.Unlock()

	sentViaEmail := true
	invitations, err := w.cfg.Source.Invitations(ctx, w.cfg.Token, w.cfg.Team, &sentViaEmail)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if err != nil {
		w.loadErr = err
		return err
	}
	w.loadErr = nil
	w.invitations = invitations
	return nil
}

// Invitations returns a copy of the current list.
func (w *Workflow) Invitations() []client.Invitation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]client.Invitation(nil), w.invitations...)
}

// State reports the dialog state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Selected returns the invitation held by the confirmation dialog, if any.
func (w *Workflow) Selected() *client.Invitation {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected == nil {
		return nil
	}
	inv := *w.selected
	return &inv
}

// Select opens the confirmation dialog for inv. It is ignored while a delete is in flight.
func (w *Workflow) Select(inv client.Invitation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Deleting {
		return
	}
	w.selected = &inv
	w.state = Confirming
}

// SelectID opens the dialog for the listed invitation with the given id.
// It reports false when the id is not in the current list.
func (w *Workflow) SelectID(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Deleting {
		return false
	}
	for _, inv := range w.invitations {
		if inv.ID == id {
			selected := inv
			w.selected = &selected
			w.state = Confirming
			return true
		}
	}
	return false
}

// Cancel closes the dialog without contacting the source.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Confirming {
		return
	}
	w.selected = nil
	w.state = Idle
}

// Confirm deletes the selected invitation. With nothing selected it does nothing.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case Deleting:
		w.mu.Unlock()
		return ErrBusy
	case Idle:
		w.mu.Unlock()
		return nil
	}
	inv := w.selected
	w.state = Deleting
	w.mu.Unlock()

	return w.remove(ctx, inv)
}

// Delete removes inv directly, skipping the dialog. A nil inv is a no-op.
func (w *Workflow) Delete(ctx context.Context, inv *client.Invitation) error {
	if inv == nil {
		return nil
	}
	w.mu.Lock()
	if w.state == Deleting {
		w.mu.Unlock()
		return ErrBusy
	}
	selected := *inv
	w.selected = &selected
	w.state = Deleting
	w.mu.Unlock()

	return w.remove(ctx, &selected)
}

func (w *Workflow) remove(ctx context.Context, inv *client.Invitation) error {
	err := w.cfg.Source.DeleteInvitation(ctx, w.cfg.Token, w.cfg.Team, inv.ID)

	w.mu.Lock()
	w.selected = nil
	w.state = Idle
	w.mu.Unlock()

	if err != nil {
		w.notifyError(err)
		return err
	}
	// The source is authoritative; other admins may have changed the list too.
	if loadErr := w.Load(ctx); loadErr != nil {
		w.notifyError(loadErr)
	}
	w.notifySuccess(w.t("invitation-deleted"))
	return nil
}

func (w *Workflow) notifySuccess(msg string) {
	if w.cfg.Notifier != nil {
		w.cfg.Notifier.Success(msg)
	}
}

func (w *Workflow) notifyError(err error) {
	if w.cfg.Notifier != nil {
		w.cfg.Notifier.Error(ErrorMessage(err))
	}
}

func (w *Workflow) t(key string, args ...any) string {
	if w.cfg.Translator == nil {
		return key
	}
	return w.cfg.Translator.T(key, args...)
}

// ErrorMessage extracts the server-reported message from err when there is one.
func ErrorMessage(err error) string {
	var apiErr client.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return err.Error()
}
