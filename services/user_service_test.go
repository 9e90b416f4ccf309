package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestStartTrialMissingUser(t *testing.T) {
	// Both the conditional update and the follow-up lookup find no row.
	db := &fakeDB{}
	svc := &UserService{db: db}

	_, err := svc.StartTrial(context.Background(), "ghost", 7)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("StartTrial for a missing user = %v, want ErrUserNotFound", err)
	}
	if len(db.queries) != 2 {
		t.Fatalf("recorded %d queries, want the update then the lookup", len(db.queries))
	}
}

func TestStartTrialAlreadyActive(t *testing.T) {
	// The conditional update matches zero rows but the user exists.
	db := &fakeDB{rows: []pgx.Row{errRow{pgx.ErrNoRows}, stubUserRow{}}}
	svc := &UserService{db: db}

	_, err := svc.StartTrial(context.Background(), "u1", 7)
	if err == nil {
		t.Fatal("StartTrial during a running trial must fail")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatal("existing user must not surface as not found")
	}
	if !strings.Contains(err.Error(), "already active") {
		t.Errorf("err = %v, want the already-active message", err)
	}
}
