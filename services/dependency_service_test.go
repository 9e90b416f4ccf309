package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"tickyai/internal/types/dependency"
	"tickyai/internal/types/user"
)

type fakeDependencyStore struct {
	sessions []*dependency.Session
	// statuses overrides the freshness re-check per session id.
	statuses    map[string]dependency.Status
	markMatched bool
	marked      []string
}

func (f *fakeDependencyStore) ListActiveSessions(_ context.Context) ([]*dependency.Session, error) {
	return f.sessions, nil
}

func (f *fakeDependencyStore) ListMorningCandidates(_ context.Context, dayStart time.Time) ([]*dependency.Session, error) {
	var out []*dependency.Session
	for _, sess := range f.sessions {
		if sess.LastMorningSent == nil || sess.LastMorningSent.Before(dayStart) {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (f *fakeDependencyStore) GetSessionStatus(_ context.Context, sessionID string) (dependency.Status, error) {
	if status, ok := f.statuses[sessionID]; ok {
		return status, nil
	}
	for _, sess := range f.sessions {
		if sess.ID == sessionID {
			return sess.Status, nil
		}
	}
	return "", ErrSessionNotFound
}

func (f *fakeDependencyStore) MarkMorningSent(_ context.Context, sessionID string, _ time.Time) (bool, error) {
	f.marked = append(f.marked, sessionID)
	return f.markMatched, nil
}

func (f *fakeDependencyStore) CreateSession(_ context.Context, userID string, t dependency.Type) (*dependency.Session, error) {
	sess := &dependency.Session{ID: "new", UserID: userID, Type: t, Status: dependency.StatusActive}
	f.sessions = append(f.sessions, sess)
	return sess, nil
}

func (f *fakeDependencyStore) StopSession(_ context.Context, sessionID string, _ string) error {
	for _, sess := range f.sessions {
		if sess.ID == sessionID && sess.Status == dependency.StatusActive {
			sess.Status = dependency.StatusStopped
			return nil
		}
	}
	return ErrSessionNotFound
}

func (f *fakeDependencyStore) GetSessionsForUser(_ context.Context, userID string) ([]*dependency.Session, error) {
	var out []*dependency.Session
	for _, sess := range f.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

type fakeSupportUserStore struct {
	user *user.User
}

func (f *fakeSupportUserStore) GetUserByID(_ context.Context, _ string) (*user.User, error) {
	if f.user == nil {
		return nil, ErrUserNotFound
	}
	return f.user, nil
}

func activeSession(id string, t dependency.Type) *dependency.Session {
	return &dependency.Session{ID: id, UserID: "u1", Type: t, Status: dependency.StatusActive}
}

func newSupportFixture(now time.Time, sessions ...*dependency.Session) (*fakeDependencyStore, *fakeSender, *DependencyService) {
	store := &fakeDependencyStore{
		sessions:    sessions,
		statuses:    map[string]dependency.Status{},
		markMatched: true,
	}
	sender := &fakeSender{}
	svc := NewDependencyService(store, &fakeSupportUserStore{user: &user.User{ID: "u1", TelegramID: 7}}, sender)
	svc.now = func() time.Time { return now }
	return store, sender, svc
}

func TestRunMorningSupportSendsAndMarks(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store, sender, svc := newSupportFixture(now, activeSession("s1", dependency.TypeAlcohol))

	svc.RunMorningSupport(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "no alcohol") {
		t.Errorf("message %q does not match the session type", sender.sent[0].text)
	}
	if len(store.marked) != 1 || store.marked[0] != "s1" {
		t.Errorf("marked = %v, want [s1]", store.marked)
	}
}

func TestRunMorningSupportOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sentEarlier := time.Date(2026, 3, 10, 9, 0, 5, 0, time.UTC)

	fresh := activeSession("s1", dependency.TypeSmoking)
	fresh.LastMorningSent = &sentEarlier
	stale := activeSession("s2", dependency.TypeSmoking)
	yesterday := now.Add(-24 * time.Hour)
	stale.LastMorningSent = &yesterday

	store, sender, svc := newSupportFixture(now, fresh, stale)

	svc.RunMorningSupport(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want only the stale session contacted", len(sender.sent))
	}
	if len(store.marked) != 1 || store.marked[0] != "s2" {
		t.Errorf("marked = %v, want [s2]", store.marked)
	}
}

func TestStoppedMidSweepStaysSilent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store, sender, svc := newSupportFixture(now, activeSession("s1", dependency.TypeGaming))
	// The batch read saw the session ACTIVE, the re-check sees it stopped.
	store.statuses["s1"] = dependency.StatusStopped

	svc.RunMorningSupport(context.Background())

	if len(sender.sent) != 0 {
		t.Error("session stopped mid-sweep must receive nothing")
	}
	if len(store.marked) != 0 {
		t.Error("session stopped mid-sweep must not be marked")
	}
}

func TestMarkMorningSentRaceIsNotAnError(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store, sender, svc := newSupportFixture(now, activeSession("s1", dependency.TypeDrugs))
	// Stop raced in after the re-check: the conditional update matches zero rows.
	store.markMatched = false

	svc.RunMorningSupport(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if len(store.marked) != 1 {
		t.Fatalf("marked attempts = %d, want 1", len(store.marked))
	}
}

func TestRunEveningSupportDoesNotMark(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	store, sender, svc := newSupportFixture(now, activeSession("s1", dependency.TypeSocialMedia))

	svc.RunEveningSupport(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "feeds") {
		t.Errorf("message %q does not match the session type", sender.sent[0].text)
	}
	if len(store.marked) != 0 {
		t.Error("evening check-in must not write the morning marker")
	}
}

func TestSupportLineFallsBackToSmoking(t *testing.T) {
	got := supportLine(morningSupportLines, dependency.Type("JUGGLING"))
	if got != morningSupportLines[dependency.TypeSmoking] {
		t.Errorf("supportLine for unknown type = %q, want the smoking line", got)
	}
}

func TestStartSessionValidatesType(t *testing.T) {
	store, _, svc := newSupportFixture(time.Now())

	if _, err := svc.StartSession(context.Background(), "u1", &dependency.StartSessionRequest{Type: "JUGGLING"}); err == nil {
		t.Error("unknown dependency type must be rejected")
	}
	if len(store.sessions) != 0 {
		t.Error("rejected session must not be stored")
	}

	sess, err := svc.StartSession(context.Background(), "u1", &dependency.StartSessionRequest{Type: dependency.TypeSmoking})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.Status != dependency.StatusActive {
		t.Errorf("Status = %s, want ACTIVE", sess.Status)
	}
}
