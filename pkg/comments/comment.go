package comments

import (
	"context"
	"net/url"
	"time"

	"github.com/vango-dev/discuss/pkg/features/query"
)

// Resource is the first part of every comment query key.
const Resource = "comments"

// Comment is one comment in a discussion.
type Comment struct {
	ID           string    `json:"id"`
	Body         string    `json:"body"`
	AuthorID     string    `json:"authorId"`
	DiscussionID string    `json:"discussionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Key returns the cache key of the comment list of a discussion.
func Key(discussionID string) query.Key {
	return query.NewKey(Resource, discussionID)
}

// Without returns a copy of list minus every comment with the given id.
// list itself is never modified, and a nil list stays nil.
func Without(list []Comment, id string) []Comment {
	if list == nil {
		return nil
	}
	out := make([]Comment, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Getter reads JSON resources. *api.Client implements it.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

// Poster creates JSON resources. *api.Client implements it.
type Poster interface {
	Post(ctx context.Context, path string, in, out any) error
}

// GetComments loads the comments of a discussion from the server.
func GetComments(ctx context.Context, remote Getter, discussionID string) ([]Comment, error) {
	var list []Comment
	if err := remote.Get(ctx, "/discussions/"+url.PathEscape(discussionID)+"/comments", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Comment{}
	}
	return list, nil
}

// FetchComments returns the cached comment list of a discussion, loading it
// from the server when it is missing or stale.
func FetchComments(ctx context.Context, qc *query.Client, remote Getter, discussionID string) ([]Comment, error) {
	return query.FetchAs(ctx, qc, Key(discussionID), func(ctx context.Context) ([]Comment, error) {
		return GetComments(ctx, remote, discussionID)
	})
}

// CreateCommentInput is the body of a create request.
type CreateCommentInput struct {
	Body     string `json:"body"`
	AuthorID string `json:"authorId,omitempty"`
}

// CreateComment adds a comment to a discussion and returns it as stored.
func CreateComment(ctx context.Context, remote Poster, discussionID string, in CreateCommentInput) (Comment, error) {
	var c Comment
	err := remote.Post(ctx, "/discussions/"+url.PathEscape(discussionID)+"/comments", in, &c)
	return c, err
}
