package shell

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultNotificationTTL is how long a banner stays active.
const DefaultNotificationTTL = 5 * time.Second

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient banner.
type Notification struct {
	Kind    Kind
	Message string
}

// Notifier prints banners and keeps the latest one active until its TTL
// expires or a newer banner replaces it.
type Notifier struct {
	out io.Writer
	ttl time.Duration

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
}

func NewNotifier(out io.Writer, ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{out: out, ttl: ttl}
}

func (n *Notifier) Success(msg string) { n.show(KindSuccess, msg) }

func (n *Notifier) Error(msg string) { n.show(KindError, msg) }

func (n *Notifier) show(kind Kind, msg string) {
	note := &Notification{Kind: kind, Message: msg}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = note
	n.timer = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.current == note {
			n.current = nil
		}
	})

	mark := "+"
	if kind == KindError {
		mark = "!"
	}
	fmt.Fprintf(n.out, "[%s] %s\n", mark, msg)
}

// Current returns the active notification, if any.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Close dismisses the active notification.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = nil
}
