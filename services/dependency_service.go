package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/metrics"
	"tickyai/internal/telegram"
	"tickyai/internal/types/dependency"
	"tickyai/internal/types/user"
)

var ErrSessionNotFound = errors.New("support session not found")

// dependencyStore is the storage slice the support sweeps run against.
// The pgx implementation is pgDependencyStore below; tests use a fake.
type dependencyStore interface {
	ListActiveSessions(ctx context.Context) ([]*dependency.Session, error)
	ListMorningCandidates(ctx context.Context, dayStart time.Time) ([]*dependency.Session, error)
	GetSessionStatus(ctx context.Context, sessionID string) (dependency.Status, error)
	// MarkMorningSent applies the conditional update: total_promises+1 and
	// last_morning_sent, only while the row is still ACTIVE. Returns false
	// when zero rows matched.
	MarkMorningSent(ctx context.Context, sessionID string, now time.Time) (bool, error)
	CreateSession(ctx context.Context, userID string, t dependency.Type) (*dependency.Session, error)
	StopSession(ctx context.Context, sessionID string, userID string) error
	GetSessionsForUser(ctx context.Context, userID string) ([]*dependency.Session, error)
}

type supportUserStore interface {
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
}

// DependencyService owns support-session CRUD and the two fixed-time
// daily sweeps. Sweeps run on server-local 09:00/21:00, not user-local.
type DependencyService struct {
	store  dependencyStore
	users  supportUserStore
	sender MessageSender
	now    func() time.Time
}

func NewDependencyService(store dependencyStore, users supportUserStore, sender MessageSender) *DependencyService {
	return &DependencyService{
		store:  store,
		users:  users,
		sender: sender,
		now:    time.Now,
	}
}

var morningSupportLines = map[dependency.Type]string{
	dependency.TypeSmoking:     "🚭 New day, clean lungs. Promise yourself: no cigarettes today. You've got this!",
	dependency.TypeAlcohol:     "🥤 A clear morning is the best one. Promise yourself: no alcohol today.",
	dependency.TypeDrugs:       "💪 One day at a time. Promise yourself a clean day today.",
	dependency.TypeGaming:      "🎮 Real life has better quests. Promise yourself: games stay off today.",
	dependency.TypeSocialMedia: "📵 Your attention is yours. Promise yourself: no doomscrolling today.",
}

var eveningSupportQuestions = map[dependency.Type]string{
	dependency.TypeSmoking:     "🌙 How did it go — did you make it through today without smoking?",
	dependency.TypeAlcohol:     "🌙 Checking in — did today stay alcohol-free?",
	dependency.TypeDrugs:       "🌙 Checking in — did you hold your promise today?",
	dependency.TypeGaming:      "🌙 Checking in — did the games stay off today?",
	dependency.TypeSocialMedia: "🌙 Checking in — did you stay off the feeds today?",
}

// supportLine falls back to the SMOKING entry for unknown types.
func supportLine(table map[dependency.Type]string, t dependency.Type) string {
	if line, ok := table[t]; ok {
		return line
	}
	return table[dependency.TypeSmoking]
}

var supportKeyboard = [][]telegram.Button{
	{
		{Text: "🤝 I promise", Data: "support_promise"},
		{Text: "🛑 Stop support", Data: "support_stop"},
	},
}

// StartSession opts a user into support for one dependency type.
func (s *DependencyService) StartSession(ctx context.Context, userID string, req *dependency.StartSessionRequest) (*dependency.Session, error) {
	switch req.Type {
	case dependency.TypeSmoking, dependency.TypeAlcohol, dependency.TypeDrugs, dependency.TypeGaming, dependency.TypeSocialMedia:
	default:
		return nil, fmt.Errorf("invalid dependency type %q", req.Type)
	}
	return s.store.CreateSession(ctx, userID, req.Type)
}

// StopSession flips a session to STOPPED. In-flight sweeps notice through
// the freshness re-check and the conditional update.
func (s *DependencyService) StopSession(ctx context.Context, sessionID string, userID string) error {
	return s.store.StopSession(ctx, sessionID, userID)
}

func (s *DependencyService) GetSessionsForUser(ctx context.Context, userID string) ([]*dependency.Session, error) {
	return s.store.GetSessionsForUser(ctx, userID)
}

// RunMorningSupport sends one motivational line per ACTIVE session that
// has not been contacted yet today. The lastMorningSent filter caps it at
// one morning message per calendar day per session.
func (s *DependencyService) RunMorningSupport(ctx context.Context) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sessions, err := s.store.ListMorningCandidates(ctx, dayStart)
	if err != nil {
		log.Printf("Morning support sweep: failed to list candidates: %v", err)
		return
	}

	for _, sess := range sessions {
		s.sendSupportMessage(ctx, "support_morning", sess, supportLine(morningSupportLines, sess.Type), true)
	}
}

// RunEveningSupport sends the check-in question to every ACTIVE session.
// No marker is written on the evening path.
func (s *DependencyService) RunEveningSupport(ctx context.Context) {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		log.Printf("Evening support sweep: failed to list sessions: %v", err)
		return
	}

	for _, sess := range sessions {
		s.sendSupportMessage(ctx, "support_evening", sess, supportLine(eveningSupportQuestions, sess.Type), false)
	}
}

func (s *DependencyService) sendSupportMessage(ctx context.Context, job string, sess *dependency.Session, text string, markSent bool) {
	// Freshness re-check right before sending: a session stopped between
	// the batch read and this row must stay silent.
	status, err := s.store.GetSessionStatus(ctx, sess.ID)
	if err != nil {
		log.Printf("Support sweep %s: session %s status re-check failed: %v", job, sess.ID, err)
		metrics.RecordSweepItem(job, metrics.OutcomeError)
		return
	}
	if status != dependency.StatusActive {
		metrics.RecordSweepItem(job, metrics.OutcomeSkip)
		return
	}

	u, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		log.Printf("Support sweep %s: owner of session %s not found: %v", job, sess.ID, err)
		metrics.RecordSweepItem(job, metrics.OutcomeError)
		return
	}

	if err := s.sender.SendMessage(u.TelegramID, text, &telegram.SendOptions{Keyboard: supportKeyboard}); err != nil {
		log.Printf("Support sweep %s: delivery to session %s failed: %v", job, sess.ID, err)
		metrics.RecordSweepItem(job, metrics.OutcomeError)
		return
	}

	if markSent {
		// Conditional update in place of a lock: a stop racing in after
		// the re-check makes this a zero-row no-op, which is the correct
		// outcome, not an error.
		matched, err := s.store.MarkMorningSent(ctx, sess.ID, s.now())
		if err != nil {
			log.Printf("Support sweep %s: failed to mark session %s: %v", job, sess.ID, err)
			metrics.RecordSweepItem(job, metrics.OutcomeError)
			return
		}
		if !matched {
			metrics.RecordSweepItem(job, metrics.OutcomeSkip)
			return
		}
	}

	metrics.RecordSweepItem(job, metrics.OutcomeSuccess)
}

// pgDependencyStore is the pgx-backed dependencyStore.
type pgDependencyStore struct {
	db *pgxpool.Pool
}

func NewDependencyStore(db *pgxpool.Pool) *pgDependencyStore {
	return &pgDependencyStore{db: db}
}

const sessionColumns = `id, user_id, type, status, last_morning_sent, total_promises, started_at, stopped_at`

func scanSession(row pgx.Row) (*dependency.Session, error) {
	sess := &dependency.Session{}
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Type, &sess.Status,
		&sess.LastMorningSent, &sess.TotalPromises, &sess.StartedAt, &sess.StoppedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan support session: %w", err)
	}
	return sess, nil
}

func (s *pgDependencyStore) listSessions(ctx context.Context, query string, args ...any) ([]*dependency.Session, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list support sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*dependency.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *pgDependencyStore) ListActiveSessions(ctx context.Context) ([]*dependency.Session, error) {
	return s.listSessions(ctx, `SELECT `+sessionColumns+` FROM dependency_support WHERE status = 'ACTIVE'`)
}

func (s *pgDependencyStore) ListMorningCandidates(ctx context.Context, dayStart time.Time) ([]*dependency.Session, error) {
	query := `
	SELECT ` + sessionColumns + `
	FROM dependency_support
	WHERE status = 'ACTIVE' AND (last_morning_sent IS NULL OR last_morning_sent < $1)
	`
	return s.listSessions(ctx, query, dayStart)
}

func (s *pgDependencyStore) GetSessionStatus(ctx context.Context, sessionID string) (dependency.Status, error) {
	var status dependency.Status
	err := s.db.QueryRow(ctx, `SELECT status FROM dependency_support WHERE id = $1`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to get session status: %w", err)
	}
	return status, nil
}

func (s *pgDependencyStore) MarkMorningSent(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	query := `
	UPDATE dependency_support
	SET total_promises = total_promises + 1, last_morning_sent = $2
	WHERE id = $1 AND status = 'ACTIVE'
	`
	tag, err := s.db.Exec(ctx, query, sessionID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark morning sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgDependencyStore) CreateSession(ctx context.Context, userID string, t dependency.Type) (*dependency.Session, error) {
	query := `
	INSERT INTO dependency_support (id, user_id, type, status, total_promises, started_at)
	VALUES ($1, $2, $3, 'ACTIVE', 0, NOW())
	RETURNING ` + sessionColumns

	sess, err := scanSession(s.db.QueryRow(ctx, query, uuid.New().String(), userID, t))
	if err != nil {
		return nil, fmt.Errorf("failed to start support session: %w", err)
	}
	return sess, nil
}

// GetSessionsForUser lists a user's sessions, newest first.
func (s *pgDependencyStore) GetSessionsForUser(ctx context.Context, userID string) ([]*dependency.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM dependency_support WHERE user_id = $1 ORDER BY started_at DESC`
	return s.listSessions(ctx, query, userID)
}

func (s *pgDependencyStore) StopSession(ctx context.Context, sessionID string, userID string) error {
	query := `
	UPDATE dependency_support
	SET status = 'STOPPED', stopped_at = NOW()
	WHERE id = $1 AND user_id = $2 AND status = 'ACTIVE'
	`
	tag, err := s.db.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to stop support session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
