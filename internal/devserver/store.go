package devserver

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/discuss/internal/errors"
	"github.com/vango-dev/discuss/pkg/comments"
)

// Store holds comments in memory, ordered by creation within a discussion.
type Store struct {
	mu          sync.RWMutex
	discussions map[string][]comments.Comment
	owner       map[string]string // comment ID -> discussion ID
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		discussions: make(map[string][]comments.Comment),
		owner:       make(map[string]string),
		now:         time.Now,
	}
}

// List returns a copy of the comments of a discussion. Unknown discussions
// have no comments.
func (s *Store) List(discussionID string) []comments.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]comments.Comment, len(s.discussions[discussionID]))
	copy(out, s.discussions[discussionID])
	return out
}

// Create appends a comment to a discussion and returns it.
func (s *Store) Create(discussionID string, in comments.CreateCommentInput) (comments.Comment, error) {
	if strings.TrimSpace(in.Body) == "" {
		return comments.Comment{}, errors.New("E400").WithDetail("body")
	}

	c := comments.Comment{
		ID:           uuid.NewString(),
		Body:         in.Body,
		AuthorID:     in.AuthorID,
		DiscussionID: discussionID,
		CreatedAt:    s.now().UTC(),
	}
	s.add(c)
	return c, nil
}

// Seed inserts comments as-is. Missing IDs are generated.
func (s *Store) Seed(list ...comments.Comment) {
	for _, c := range list {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now().UTC()
		}
		s.add(c)
	}
}

func (s *Store) add(c comments.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.owner[c.ID]; ok {
		s.discussions[prev] = comments.Without(s.discussions[prev], c.ID)
	}
	s.discussions[c.DiscussionID] = append(s.discussions[c.DiscussionID], c)
	s.owner[c.ID] = c.DiscussionID
}

// Delete removes a comment and returns it. The bool is false when no comment
// has that ID.
func (s *Store) Delete(commentID string) (comments.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	discussionID, ok := s.owner[commentID]
	if !ok {
		return comments.Comment{}, false
	}

	var removed comments.Comment
	for _, c := range s.discussions[discussionID] {
		if c.ID == commentID {
			removed = c
			break
		}
	}
	s.discussions[discussionID] = comments.Without(s.discussions[discussionID], commentID)
	delete(s.owner, commentID)
	return removed, true
}

// Len returns the number of stored comments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owner)
}
