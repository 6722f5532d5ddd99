package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/google/uuid"
)

type emptyStore struct{}

func (emptyStore) ListDeliveryJobs(context.Context, domain.DeliveryStatus, int) ([]domain.DeliveryJob, error) {
	return nil, nil
}
func (emptyStore) RetryDeliveryJob(context.Context, uuid.UUID) error        { return nil }
func (emptyStore) DropDeliveryJob(context.Context, uuid.UUID) error         { return nil }
func (emptyStore) ListInstances(context.Context) ([]domain.Instance, error) { return nil, nil }
func (emptyStore) ListLocalActors(context.Context) ([]domain.Actor, error)  { return nil, nil }

func noCreate(context.Context, string, string, bool) (*domain.Actor, error) {
	return nil, nil
}

func update(t *testing.T, m MainModel, msg tea.Msg) MainModel {
	next, _ := m.Update(msg)
	mm, ok := next.(MainModel)
	if !ok {
		t.Fatalf("Expected MainModel, got %T", next)
	}
	return mm
}

func TestTabCycling(t *testing.T) {
	m := NewModel(emptyStore{}, noCreate, "local.example", "SHA256:abc", 120, 40)
	if m.state != common.DeliveriesView {
		t.Fatalf("Expected the delivery queue first, got %d", m.state)
	}

	tab := tea.KeyMsg{Type: tea.KeyTab}
	want := []common.SessionState{common.InstancesView, common.LocalUsersView, common.DeliveriesView}
	for _, s := range want {
		m = update(t, m, tab)
		if m.state != s {
			t.Errorf("Expected state %d, got %d", s, m.state)
		}
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.state != common.LocalUsersView {
		t.Errorf("Expected shift+tab to go back to local users, got %d", m.state)
	}
}

func TestCreateUserViewHoldsFocus(t *testing.T) {
	m := NewModel(emptyStore{}, noCreate, "local.example", "SHA256:abc", 120, 40)

	m = update(t, m, common.CreateUserView)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.state != common.CreateUserView {
		t.Errorf("Expected tab to stay in the form, got %d", m.state)
	}

	m = update(t, m, common.UserCreatedMsg{Actor: &domain.Actor{Username: "alice"}})
	if m.state != common.LocalUsersView {
		t.Errorf("Expected local users after creation, got %d", m.state)
	}
}

func TestViewShowsFocusedScreen(t *testing.T) {
	m := NewModel(emptyStore{}, noCreate, "local.example", "SHA256:abc", 120, 40)

	if v := m.View(); !strings.Contains(v, "focused > delivery queue") {
		t.Errorf("Expected the delivery queue to be focused, got:\n%s", v)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if v := m.View(); !strings.Contains(v, "focused > instances") {
		t.Errorf("Expected instances to be focused, got:\n%s", v)
	}
}
