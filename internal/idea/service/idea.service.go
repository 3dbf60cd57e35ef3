package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"streamlify/internal/idea/model"
	"streamlify/internal/idea/repository"
	"streamlify/pkg/logger"
)

var (
	ErrEmptyText    = errors.New("text is required")
	ErrMissingID    = errors.New("id is required")
	ErrIdeaNotFound = errors.New("idea not found")
	ErrAlreadyVoted = errors.New("already voted for this idea")
	ErrForbidden    = errors.New("admin role required")
)

// Notifier receives the full idea list after every successful mutation.
type Notifier interface {
	Publish(actorID string, ideas []model.Idea)
}

// AdminPolicy decides whether a caller may run destructive operations.
type AdminPolicy func(userID, role string) bool

type IdeaService struct {
	Store    repository.IdeaStore
	Ledger   repository.VoteLedger
	Notifier Notifier
	IsAdmin  AdminPolicy

	// mu serializes every write together with its publish, so subscribers
	// receive lists in the order they were written. It also makes the ledger
	// check, the increment and the ledger record one step.
	mu sync.Mutex
}

func NewIdeaService(store repository.IdeaStore, ledger repository.VoteLedger, notifier Notifier, isAdmin AdminPolicy) *IdeaService {
	return &IdeaService{Store: store, Ledger: ledger, Notifier: notifier, IsAdmin: isAdmin}
}

func (s *IdeaService) List(ctx context.Context) ([]model.Idea, error) {
	return s.Store.List(ctx)
}

func (s *IdeaService) Create(ctx context.Context, actor model.Actor, text string) ([]model.Idea, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ideas, err := s.Store.Create(ctx, text)
	if err != nil {
		return nil, err
	}
	logger.Sugar.Infow("Idea created", "user_id", actor.UserID, "count", len(ideas))
	s.publish(actor, ideas)
	return ideas, nil
}

func (s *IdeaService) Vote(ctx context.Context, actor model.Actor, id int64) ([]model.Idea, error) {
	if id == 0 {
		return nil, ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	voted, err := s.Ledger.VotedBy(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	for _, v := range voted {
		if v == id {
			return nil, ErrAlreadyVoted
		}
	}

	ideas, err := s.Store.Vote(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := model.FindIdea(ideas, id); !ok {
		return nil, ErrIdeaNotFound
	}

	if _, err := s.Ledger.RecordVote(ctx, actor.UserID, id); err != nil {
		// The increment is already persisted; only the ledger entry is lost.
		logger.Sugar.Errorf("Vote on idea %d by %s counted but not recorded: %v", id, actor.UserID, err)
		return nil, err
	}

	logger.Sugar.Infow("Vote recorded", "user_id", actor.UserID, "idea_id", id)
	s.publish(actor, ideas)
	return ideas, nil
}

func (s *IdeaService) Flush(ctx context.Context, actor model.Actor) ([]model.Idea, error) {
	if s.IsAdmin == nil || !s.IsAdmin(actor.UserID, actor.Role) {
		logger.Sugar.Warnf("Permission Denied: User %s (Role: %s) tried to flush the board", actor.UserID, actor.Role)
		return nil, ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ideas, err := s.Store.Flush(ctx)
	if err != nil {
		return nil, err
	}
	logger.Sugar.Infow("Board flushed", "user_id", actor.UserID)
	s.publish(actor, ideas)
	return ideas, nil
}

// VotedBy returns the ids of the ideas the actor has voted for.
func (s *IdeaService) VotedBy(ctx context.Context, actor model.Actor) ([]int64, error) {
	return s.Ledger.VotedBy(ctx, actor.UserID)
}

func (s *IdeaService) publish(actor model.Actor, ideas []model.Idea) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(actor.UserID, ideas)
}
