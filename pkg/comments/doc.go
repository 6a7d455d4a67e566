// Package comments holds the comment resource of a discussion: its type, the
// REST calls for it, the cached list query and the optimistic delete
// mutation.
//
// Comment lists are cached per discussion under Key(discussionID), i.e.
// query.Key{"comments", discussionID}. UseDeleteComment removes a comment
// from that list before the server answers:
//
//	del := comments.UseDeleteComment(comments.Deps{
//	    Remote:   apiClient,
//	    Cache:    queryClient,
//	    Notifier: toasts,
//	}, comments.UseDeleteCommentOptions{DiscussionID: "d1"})
//
//	outcome := del.Execute(ctx, comments.DeleteCommentVars{CommentID: "42"})
//
// On failure the cached list is put back exactly as it was; on success the
// entry is invalidated so the next read refetches it, and a "Comment Deleted"
// success toast is shown.
package comments
