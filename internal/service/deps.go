package service

import "context"

// Generator is the content-generation collaborator (Gemini). Generate
// analyses a photo with a text prompt; GenerateText runs a plain text
// prompt (place resolution, search-filter extraction).
type Generator interface {
	Generate(ctx context.Context, image []byte, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// PhotoStorage stores an image and returns its public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Notifier delivers a text notification to a single user.
type Notifier interface {
	Notify(userID int64, text string) error
}

// TaskSubmitter queues a unit of work onto the worker pool. Submit
// reports false when the pool is already shut down.
type TaskSubmitter interface {
	Submit(task func()) bool
}

// NotificationFanout matches a published listing against keyword
// subscriptions and delivers to the matched subscribers.
type NotificationFanout interface {
	Fanout(ctx context.Context, listingID string) (int, error)
}
