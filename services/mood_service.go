package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/types/mood"
)

type MoodService struct {
	db *pgxpool.Pool
}

func NewMoodService(db *pgxpool.Pool) *MoodService {
	return &MoodService{db: db}
}

func (s *MoodService) AddEntry(ctx context.Context, userID string, req *mood.CreateEntryRequest) (*mood.Entry, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("mood rating must be between 1 and 5")
	}

	query := `
	INSERT INTO moods (id, user_id, rating, note, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING id, user_id, rating, note, created_at
	`

	entry := &mood.Entry{}
	err := s.db.QueryRow(ctx, query, uuid.New().String(), userID, req.Rating, req.Note).Scan(
		&entry.ID, &entry.UserID, &entry.Rating, &entry.Note, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add mood entry: %w", err)
	}
	return entry, nil
}

func (s *MoodService) ListEntries(ctx context.Context, userID string, limit int) ([]*mood.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	query := `SELECT id, user_id, rating, note, created_at FROM moods WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mood entries: %w", err)
	}
	defer rows.Close()

	var entries []*mood.Entry
	for rows.Next() {
		entry := &mood.Entry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Rating, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
