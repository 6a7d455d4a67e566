package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventName tags notifications on the wire.
const EventName = "discuss:toast"

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Notification is one message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier accepts notifications. Implementations must not block for long;
// there is no acknowledgment.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Show sends a notification of the given type with a title only.
func Show(n Notifier, level Type, title string) {
	n.Notify(Notification{Type: level, Title: title})
}

// Success shows a success toast.
//
//	toast.Success(store, "Comment Deleted")
func Success(n Notifier, title string) {
	Show(n, TypeSuccess, title)
}

// Error shows an error toast.
//
//	toast.Error(store, "Failed to delete comment")
func Error(n Notifier, title string) {
	Show(n, TypeError, title)
}

// Warning shows a warning toast.
func Warning(n Notifier, title string) {
	Show(n, TypeWarning, title)
}

// Info shows an info toast.
func Info(n Notifier, title string) {
	Show(n, TypeInfo, title)
}

// WithTitle shows a toast with a title and message.
//
//	toast.WithTitle(store, toast.TypeSuccess, "Settings", "Your changes have been saved.")
func WithTitle(n Notifier, level Type, title, message string) {
	n.Notify(Notification{Type: level, Title: title, Message: message})
}

// Store keeps notifications until they are dismissed. It is safe for
// concurrent use.
type Store struct {
	mu            sync.Mutex
	notifications []Notification
	sinks         []Notifier
	now           func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSink forwards every added notification to sink.
func WithSink(sink Notifier) StoreOption {
	return func(s *Store) {
		s.sinks = append(s.sinks, sink)
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify implements Notifier by adding n to the store.
func (s *Store) Notify(n Notification) {
	s.Add(n)
}

// Add stores n, filling in ID and CreatedAt when empty, and returns the ID.
func (s *Store) Add(n Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	sinks := append([]Notifier(nil), s.sinks...)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Notify(n)
	}
	return n.ID
}

// Dismiss removes the notification with id. It reports whether one was found.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the stored notifications, oldest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

// Clear removes every notification.
func (s *Store) Clear() {
	s.mu.Lock()
	s.notifications = nil
	s.mu.Unlock()
}
