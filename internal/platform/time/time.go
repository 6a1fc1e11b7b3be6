// Package time holds helpers for nullable timestamp columns
package time

import "time"

// Ptr returns t in UTC as a pointer, or nil when t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// Value returns *p in UTC, or the zero time for nil
func Value(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.UTC()
}
