package chathub

import "marketchat/backend/internal/models"

// Client is one live connection of an authenticated user. A user may hold
// several at once (tabs, devices).
type Client interface {
	// GetUserID returns the user pinned to the connection at handshake.
	GetUserID() int64

	// Send queues a frame without blocking. It returns false when the
	// connection is closed or its buffer is full.
	Send(models.Event) bool

	// Run starts the read and write pumps.
	Run()
	// Close releases the connection. Calling it more than once is safe.
	Close()
}
