package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamlify/internal/idea/model"
	"streamlify/pkg/logger"

	"github.com/lib/pq"
)

// IdeaStore owns the persisted idea list. Every operation returns the full,
// updated sequence in insertion order.
type IdeaStore interface {
	List(ctx context.Context) ([]model.Idea, error)
	Create(ctx context.Context, text string) ([]model.Idea, error)
	// Vote increments the votes of the matching idea. An unknown id is not an
	// error; the current list is returned unchanged.
	Vote(ctx context.Context, id int64) ([]model.Idea, error)
	// Flush clears every idea together with the vote ledger.
	Flush(ctx context.Context) ([]model.Idea, error)
}

// VoteLedger records which ideas each user has voted for.
type VoteLedger interface {
	VotedBy(ctx context.Context, userID string) ([]int64, error)
	// RecordVote returns false when the pair was already recorded.
	RecordVote(ctx context.Context, userID string, ideaID int64) (bool, error)
}

var (
	_ IdeaStore  = (*FileStore)(nil)
	_ VoteLedger = (*FileStore)(nil)
	_ IdeaStore  = (*PostgresStore)(nil)
	_ VoteLedger = (*PostgresStore)(nil)
)

// nextIdeaID keeps ids creation-time derived while guaranteeing they never
// collide with an existing id, even for creates within the same millisecond.
func nextIdeaID(now time.Time, ideas []model.Idea) int64 {
	id := now.UnixMilli()
	for _, idea := range ideas {
		if idea.ID >= id {
			id = idea.ID + 1
		}
	}
	return id
}

const (
	schemaQuery = `
CREATE TABLE IF NOT EXISTS ideas (
    id BIGINT PRIMARY KEY,
    text TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS idea_votes (
    idea_id BIGINT NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (idea_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_idea_votes_user_id ON idea_votes(user_id);
`
	listIdeasQuery  = `SELECT id, text, votes FROM ideas ORDER BY id ASC`
	createIdeaQuery = `INSERT INTO ideas (id, text, votes, created_at) VALUES (GREATEST($1, COALESCE((SELECT MAX(id) FROM ideas), 0) + 1), $2, 0, NOW())`
	voteIdeaQuery   = `UPDATE ideas SET votes = votes + 1 WHERE id = $1`
	flushVotesQuery = `DELETE FROM idea_votes`
	flushIdeasQuery = `DELETE FROM ideas`
	votedByQuery    = `SELECT idea_id FROM idea_votes WHERE user_id = $1 ORDER BY idea_id ASC`
	recordVoteQuery = `INSERT INTO idea_votes (idea_id, user_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (idea_id, user_id) DO NOTHING`
)

// PostgresStore keeps ideas and the vote ledger in postgres.
type PostgresStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, now: time.Now}
}

// Migrate creates the tables. Safe to call multiple times.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schemaQuery); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *PostgresStore) List(ctx context.Context) ([]model.Idea, error) {
	rows, err := r.DB.QueryContext(ctx, listIdeasQuery)
	if err != nil {
		logger.Sugar.Errorf("Failed to list ideas: %v", err)
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	ideas := []model.Idea{}
	for rows.Next() {
		var idea model.Idea
		if err := rows.Scan(&idea.ID, &idea.Text, &idea.Votes); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, nil
}

// createAttempts bounds how often Create recomputes the id after another
// writer claimed the same one.
const createAttempts = 3

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation pq.ErrorCode = "23505"

func (r *PostgresStore) Create(ctx context.Context, text string) ([]model.Idea, error) {
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		_, err = r.DB.ExecContext(ctx, createIdeaQuery, r.now().UnixMilli(), text)
		if err == nil {
			return r.List(ctx)
		}
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
			break
		}
		logger.Sugar.Warnf("Idea id taken by a concurrent create, retrying (attempt %d/%d)", attempt, createAttempts)
	}
	logger.Sugar.Errorf("Failed to create idea: %v", err)
	return nil, fmt.Errorf("create idea: %w", err)
}

func (r *PostgresStore) Vote(ctx context.Context, id int64) ([]model.Idea, error) {
	if _, err := r.DB.ExecContext(ctx, voteIdeaQuery, id); err != nil {
		logger.Sugar.Errorf("Failed to vote for idea %d: %v", id, err)
		return nil, fmt.Errorf("vote idea %d: %w", id, err)
	}
	return r.List(ctx)
}

func (r *PostgresStore) Flush(ctx context.Context) ([]model.Idea, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, flushVotesQuery); err != nil {
		logger.Sugar.Errorf("Failed to clear vote ledger: %v", err)
		return nil, fmt.Errorf("clear votes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, flushIdeasQuery); err != nil {
		logger.Sugar.Errorf("Failed to clear ideas: %v", err)
		return nil, fmt.Errorf("clear ideas: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flush: %w", err)
	}
	return []model.Idea{}, nil
}

func (r *PostgresStore) VotedBy(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, votedByQuery, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to load votes for user %s: %v", userID, err)
		return nil, fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresStore) RecordVote(ctx context.Context, userID string, ideaID int64) (bool, error) {
	result, err := r.DB.ExecContext(ctx, recordVoteQuery, ideaID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to record vote by %s on idea %d: %v", userID, ideaID, err)
		return false, fmt.Errorf("record vote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record vote: %w", err)
	}
	return n == 1, nil
}
