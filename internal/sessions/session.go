package sessions

import "time"

// Session is the cached login state of one admin, stored as
// {"username": ..., "expiry": <epoch ms>}.
type Session struct {
	ID       string `json:"-"`
	Username string `json:"username"`
	Expiry   int64  `json:"expiry"`
}

func (s *Session) ExpiresAt() time.Time { return time.UnixMilli(s.Expiry) }

// Expired is judged on the stored expiry, not on cache TTL.
func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt()) }
