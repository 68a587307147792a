package model

import (
	"sync"

	"atui/chat"
)

// toastBacklog caps queued notices; past it the oldest is dropped.
const toastBacklog = 8

// ToastQueue buffers notices between the goroutines that raise them and
// the update loop that displays them. Notify never blocks, which the
// chat controller requires of its notifier.
type ToastQueue struct {
	mu     sync.Mutex
	toasts []chat.Toast
}

func NewToastQueue() *ToastQueue {
	return &ToastQueue{}
}

// Notify implements chat.Notifier.
func (q *ToastQueue) Notify(t chat.Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) >= toastBacklog {
		q.toasts = q.toasts[1:]
	}
	q.toasts = append(q.toasts, t)
}

// Info queues an informational notice raised by the ui itself.
func (q *ToastQueue) Info(message string) {
	q.Notify(chat.Toast{Message: message, Variant: chat.ToastInfo})
}

// Success queues a success notice.
func (q *ToastQueue) Success(message string) {
	q.Notify(chat.Toast{Message: message, Variant: chat.ToastSuccess})
}

// Error queues an error notice.
func (q *ToastQueue) Error(message string) {
	q.Notify(chat.Toast{Message: message, Variant: chat.ToastError})
}

// Pop removes and returns the oldest queued notice.
func (q *ToastQueue) Pop() (chat.Toast, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) == 0 {
		return chat.Toast{}, false
	}
	t := q.toasts[0]
	q.toasts = q.toasts[1:]
	return t, true
}

// Pending reports whether any notices wait to be shown.
func (q *ToastQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts) > 0
}
