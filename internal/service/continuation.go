package service

import "sync"

type AwaitKind int

const (
	AwaitPrice AwaitKind = iota + 1
	AwaitDescription
	AwaitLocation
)

// PendingEdit binds the next free-text reply in a chat to an in-progress
// listing edit, together with the preview message that must be refreshed
// in place afterwards.
type PendingEdit struct {
	Kind      AwaitKind
	ListingID string
	MessageID int
}

// ContinuationTable holds at most one pending edit per chat. Installing
// a new one silently supersedes the previous; taking consumes it, so a
// stale continuation can never fire twice or against the wrong listing.
type ContinuationTable struct {
	mu     sync.Mutex
	byChat map[int64]PendingEdit
}

func NewContinuationTable() *ContinuationTable {
	return &ContinuationTable{byChat: make(map[int64]PendingEdit)}
}

func (t *ContinuationTable) Set(chatID int64, pe PendingEdit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byChat[chatID] = pe
}

func (t *ContinuationTable) Take(chatID int64) (PendingEdit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pe, ok := t.byChat[chatID]
	if ok {
		delete(t.byChat, chatID)
	}
	return pe, ok
}

func (t *ContinuationTable) Clear(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byChat, chatID)
}
