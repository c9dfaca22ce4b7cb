package entity

import "sync"

// DefaultErrorLimit bounds the error entries a job exposes.
const DefaultErrorLimit = 100

// ErrorEntry foydalanuvchiga ko'rinadigan xato
type ErrorEntry struct {
	Type       string `json:"type"`
	Entity     string `json:"entity,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message"`
}

// ErrorLog keeps the first Limit entries and counts every error.
type ErrorLog struct {
	mu      sync.Mutex
	limit   int
	entries []ErrorEntry
	total   int
}

// NewErrorLog yangi ErrorLog
func NewErrorLog(limit int) *ErrorLog {
	if limit <= 0 {
		limit = DefaultErrorLimit
	}
	return &ErrorLog{limit: limit}
}

// Add xatoni qo'shish
func (l *ErrorLog) Add(entry ErrorEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if len(l.entries) < l.limit {
		l.entries = append(l.entries, entry)
	}
}

// Snapshot returns a copy of the kept entries and the total count.
func (l *ErrorLog) Snapshot() ([]ErrorEntry, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out, l.total
}

// Total xatolar soni
func (l *ErrorLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
