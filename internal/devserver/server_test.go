package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	discusserrors "github.com/vango-dev/discuss/internal/errors"
	"github.com/vango-dev/discuss/pkg/api"
	"github.com/vango-dev/discuss/pkg/comments"
	"github.com/vango-dev/discuss/pkg/features/query"
	"github.com/vango-dev/discuss/pkg/middleware"
	"github.com/vango-dev/discuss/pkg/toast"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ServerOptions) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s := NewServer(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func seed(s *Server) {
	s.Store().Seed(
		comments.Comment{ID: "1", Body: "a", DiscussionID: "d1"},
		comments.Comment{ID: "2", Body: "b", DiscussionID: "d1"},
		comments.Comment{ID: "3", Body: "c", DiscussionID: "d1"},
	)
}

func ids(list []comments.Comment) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestCommentRoutes(t *testing.T) {
	s, ts := newTestServer(t, ServerOptions{})
	seed(s)
	c := api.New(ts.URL)
	ctx := context.Background()

	list, err := comments.GetComments(ctx, c, "d1")
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids(list)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	created, err := comments.CreateComment(ctx, c, "d1", comments.CreateCommentInput{Body: "d", AuthorID: "u9"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if created.ID == "" || created.DiscussionID != "d1" || created.AuthorID != "u9" {
		t.Errorf("created = %+v", created)
	}

	if err := comments.DeleteComment(ctx, c, "2"); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	list, _ = comments.GetComments(ctx, c, "d1")
	if diff := cmp.Diff([]string{"1", "3", created.ID}, ids(list)); diff != "" {
		t.Errorf("ids after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteUnknownComment(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{})

	err := api.New(ts.URL).Delete(context.Background(), "/comments/missing")
	var herr *api.HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
	if !strings.Contains(herr.Body, `"code":"E404"`) {
		t.Errorf("body = %s", herr.Body)
	}
}

func TestCreateValidation(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"body":`, "E401"},
		{"empty body", `{"body":""}`, "E400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/discussions/d1/comments", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var body errorBody
			json.NewDecoder(resp.Body).Decode(&body)
			if resp.StatusCode != http.StatusBadRequest || body.Code != tt.code {
				t.Errorf("response = %d %+v, want 400 %s", resp.StatusCode, body, tt.code)
			}
		})
	}
}

func TestFailDeletesKeepsComment(t *testing.T) {
	s, ts := newTestServer(t, ServerOptions{FailDeletes: true})
	seed(s)

	err := api.New(ts.URL).Delete(context.Background(), "/comments/2")
	var herr *api.HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500", err)
	}
	if s.Store().Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Store().Len())
	}
}

func TestLatencyHonoursClientCancel(t *testing.T) {
	_, ts := newTestServer(t, ServerOptions{Latency: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := comments.GetComments(ctx, api.New(ts.URL), "d1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("request waited for the full latency")
	}
}

func TestNotificationsOverWebsocket(t *testing.T) {
	hub := toast.NewHub(quietLogger())
	s, ts := newTestServer(t, ServerOptions{Hub: hub})
	seed(s)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/notifications", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := api.New(ts.URL).Delete(context.Background(), "/comments/1"); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Event string     `json:"event"`
		Type  toast.Type `json:"type"`
		Title string     `json:"title"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Event != toast.EventName || msg.Title != "Comment Removed" || msg.Type != toast.TypeWarning {
		t.Errorf("message = %s", data)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(middleware.WithRegistry(reg))
	_, ts := newTestServer(t, ServerOptions{Gatherer: reg})

	m.Middleware().Handle(context.Background(), query.MutationInfo{Name: "delete-comment"},
		func(context.Context) error { return nil })

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `discuss_mutations_total{mutation="delete-comment",status="success"} 1`) {
		t.Errorf("metrics output missing mutation counter:\n%s", body)
	}
}

// End to end: the optimistic delete against a real server.

type deleteHarness struct {
	server *Server
	qc     *query.Client
	toasts *toast.Store
	del    *query.Mutation[comments.DeleteCommentVars, comments.DeleteContext]
}

func newDeleteHarness(t *testing.T, opts ServerOptions) *deleteHarness {
	t.Helper()
	s, ts := newTestServer(t, opts)
	seed(s)

	remote := api.New(ts.URL)
	qc := query.NewClient(query.WithStaleTime(time.Hour))
	toasts := toast.NewStore()

	if _, err := comments.FetchComments(context.Background(), qc, remote, "d1"); err != nil {
		t.Fatalf("FetchComments: %v", err)
	}

	del := comments.UseDeleteComment(comments.Deps{
		Remote:   remote,
		Cache:    qc,
		Notifier: toasts,
		Logger:   quietLogger(),
	}, comments.UseDeleteCommentOptions{DiscussionID: "d1"})

	return &deleteHarness{server: s, qc: qc, toasts: toasts, del: del}
}

func (h *deleteHarness) cachedIDs(t *testing.T) []string {
	t.Helper()
	data, ok := h.qc.GetQueryData(comments.Key("d1"))
	if !ok {
		t.Fatal("no cached list")
	}
	return ids(data.([]comments.Comment))
}

func TestOptimisticDeleteEndToEnd(t *testing.T) {
	h := newDeleteHarness(t, ServerOptions{})

	out := h.del.Execute(context.Background(), comments.DeleteCommentVars{CommentID: "2"})
	if !out.OK() {
		t.Fatalf("Outcome = %+v", out)
	}

	if diff := cmp.Diff([]string{"1", "3"}, h.cachedIDs(t)); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
	if !h.qc.IsInvalidated(comments.Key("d1")) {
		t.Error("list not invalidated after success")
	}
	if h.server.Store().Len() != 2 {
		t.Errorf("server Len = %d, want 2", h.server.Store().Len())
	}
	toasts := h.toasts.List()
	if len(toasts) != 1 || toasts[0].Type != toast.TypeSuccess || toasts[0].Title != comments.DeletedTitle {
		t.Errorf("toasts = %+v", toasts)
	}
}

func TestOptimisticDeleteRollbackEndToEnd(t *testing.T) {
	h := newDeleteHarness(t, ServerOptions{FailDeletes: true})

	out := h.del.Execute(context.Background(), comments.DeleteCommentVars{CommentID: "2"})
	if out.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(out.Err, comments.ErrRemoteDelete) || !discusserrors.HasCode(out.Err, "E301") {
		t.Errorf("err = %v, want E301", out.Err)
	}
	var herr *api.HTTPError
	if !errors.As(out.Err, &herr) || herr.StatusCode != http.StatusInternalServerError {
		t.Errorf("cause = %v, want 500", out.Err)
	}

	if diff := cmp.Diff([]string{"1", "2", "3"}, h.cachedIDs(t)); diff != "" {
		t.Errorf("cache not restored (-want +got):\n%s", diff)
	}
	if h.toasts.Len() != 0 {
		t.Errorf("toasts = %+v, want none", h.toasts.List())
	}
}
