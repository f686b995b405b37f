package models

import "time"

// Draft is unsent composer text saved per thread. Drafts are restored into
// the composer on open and are never sent automatically.
type Draft struct {
	ThreadID  string
	Text      string
	UpdatedAt time.Time
}
