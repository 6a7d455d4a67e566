package comments

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/vango-dev/discuss/internal/errors"
	"github.com/vango-dev/discuss/pkg/features/query"
	"github.com/vango-dev/discuss/pkg/toast"
)

// DeletedTitle is the title of the toast shown after a confirmed delete.
const DeletedTitle = "Comment Deleted"

// ErrRemoteDelete matches, with errors.Is, every failure of the delete
// request. The transport or *api.HTTPError cause stays reachable through
// errors.As.
const ErrRemoteDelete = errors.Code("E301")

// Remote issues delete requests. *api.Client implements it.
type Remote interface {
	Delete(ctx context.Context, path string) error
}

// Cache is the part of the query cache the delete mutation uses.
// *query.Client implements it.
type Cache interface {
	CancelQueries(prefix query.Key) int
	GetQueryData(key query.Key) (any, bool)
	SetQueryData(key query.Key, data any)
	InvalidateQueries(prefix query.Key) int
}

// Deps are the collaborators of the delete mutation.
type Deps struct {
	Remote   Remote
	Cache    Cache
	Notifier toast.Notifier // Optional

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Middleware wraps every attempt, e.g. metrics or tracing.
	Middleware []query.Middleware

	// Locker serializes attempts when UseDeleteCommentOptions.Serialize is
	// set. When nil, Cache is used if it implements query.KeyLocker.
	Locker query.KeyLocker
}

// DeleteCommentVars are the variables of one delete attempt.
type DeleteCommentVars struct {
	CommentID string
}

// DeleteContext is the rollback snapshot taken before the remote call.
// HasPrevious is false when the discussion had no cached list.
type DeleteContext struct {
	Previous    []Comment
	HasPrevious bool
}

// UseDeleteCommentOptions configures UseDeleteComment.
type UseDeleteCommentOptions struct {
	// DiscussionID owns the comments being deleted. Required.
	DiscussionID string

	// Config overrides lifecycle hooks. Its MutationFn is ignored.
	Config query.MutationConfig[DeleteCommentVars, DeleteContext]

	// Serialize runs attempts on the same discussion one after another
	// instead of letting their optimistic writes interleave.
	Serialize bool
}

// DeleteComment asks the server to delete a comment.
func DeleteComment(ctx context.Context, remote Remote, commentID string) error {
	if err := remote.Delete(ctx, "/comments/"+url.PathEscape(commentID)); err != nil {
		return errors.New("E301").WithDetail("comment " + commentID).Wrap(err)
	}
	return nil
}

// UseDeleteComment builds the optimistic delete mutation for the comments of
// one discussion. It panics if deps.Remote or deps.Cache is nil.
func UseDeleteComment(deps Deps, opts UseDeleteCommentOptions) *query.Mutation[DeleteCommentVars, DeleteContext] {
	if deps.Remote == nil || deps.Cache == nil {
		panic("comments: UseDeleteComment requires Remote and Cache")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := Key(opts.DiscussionID)
	cache := deps.Cache

	defaults := query.MutationConfig[DeleteCommentVars, DeleteContext]{
		MutationFn: func(ctx context.Context, vars DeleteCommentVars) error {
			return DeleteComment(ctx, deps.Remote, vars.CommentID)
		},

		OnMutate: func(ctx context.Context, vars DeleteCommentVars) (DeleteContext, error) {
			cache.CancelQueries(key)

			data, ok := cache.GetQueryData(key)
			if !ok {
				return DeleteContext{}, nil
			}
			previous, typed := data.([]Comment)
			if !typed {
				logger.Warn("comments: cached list has unexpected type, skipping optimistic update",
					"key", key.String(),
					"type", fmt.Sprintf("%T", data),
				)
				return DeleteContext{}, nil
			}

			cache.SetQueryData(key, Without(previous, vars.CommentID))
			return DeleteContext{Previous: previous, HasPrevious: true}, nil
		},

		OnError: func(ctx context.Context, err error, vars DeleteCommentVars, mctx DeleteContext) {
			if !mctx.HasPrevious {
				logger.Debug("comments: delete failed, nothing cached to restore",
					"discussion", opts.DiscussionID,
					"comment", vars.CommentID,
					"error", err,
				)
				return
			}
			cache.SetQueryData(key, mctx.Previous)
			logger.Info("comments: delete failed, restored cached list",
				"discussion", opts.DiscussionID,
				"comment", vars.CommentID,
				"error", err,
			)
		},

		OnSuccess: func(ctx context.Context, vars DeleteCommentVars, mctx DeleteContext) {
			cache.InvalidateQueries(key)
			if deps.Notifier != nil {
				toast.Success(deps.Notifier, DeletedTitle)
			}
		},
	}

	mutOpts := []query.MutationOption{
		query.WithKey(key),
		query.WithMutationLogger(logger),
		query.WithMiddleware(deps.Middleware...),
	}
	if opts.Serialize {
		locker := deps.Locker
		if locker == nil {
			locker, _ = deps.Cache.(query.KeyLocker)
		}
		if locker != nil {
			mutOpts = append(mutOpts, query.WithSerialExecution(locker))
		} else {
			logger.Warn("comments: Serialize requested but no key locker available", "discussion", opts.DiscussionID)
		}
	}

	return query.NewMutation("delete-comment", query.MergeConfig(defaults, opts.Config), mutOpts...)
}
