package domain

import (
	"errors"
	"time"
)

var ErrSessionIncomplete = errors.New("session has no complete date/time selection")

// Session holds one owner's in-progress scheduling selections before a Post
// exists. A session converts to at most one post and is cleared as soon as
// that post is created.
type Session struct {
	OwnerID      string     `json:"owner_id"`
	SelectedDate *time.Time `json:"selected_date,omitempty"`
	SelectedHour *int       `json:"selected_hour,omitempty"`
	SelectedMin  *int       `json:"selected_minute,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DueTime combines the selected date, hour and minute into the instant the
// resulting post should fire at.
func (s *Session) DueTime() (time.Time, error) {
	if s.SelectedDate == nil || s.SelectedHour == nil || s.SelectedMin == nil {
		return time.Time{}, ErrSessionIncomplete
	}
	d := *s.SelectedDate
	return time.Date(d.Year(), d.Month(), d.Day(), *s.SelectedHour, *s.SelectedMin, 0, 0, d.Location()), nil
}
