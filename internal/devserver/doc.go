// Package devserver is an in-memory comments API for local development.
//
// It serves the routes the comments client talks to:
//
//	GET    /discussions/{discussionID}/comments
//	POST   /discussions/{discussionID}/comments
//	DELETE /comments/{commentID}
//	GET    /health
//
// Activity notifications are pushed to websocket clients on
// /ws/notifications and Prometheus metrics are exposed on /metrics when a
// gatherer is configured. FailDeletes makes every delete fail, which is the
// quickest way to watch an optimistic delete roll back.
package devserver
