package model

import (
	"time"

	"tutorbook/pkg/calendar"
)

// LockRecord is one live claim on a tutor's time. It exists only between a
// claim and its commit, release or expiry.
type LockRecord struct {
	TutorID   string    `json:"tutor_id" bson:"tutor_id"`
	SlotKey   string    `json:"slot_key" bson:"slot_key"`
	HolderID  string    `json:"holder_id" bson:"holder_id"`
	Start     time.Time `json:"start" bson:"start"`
	End       time.Time `json:"end" bson:"end"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (l *LockRecord) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

func (l *LockRecord) Interval() calendar.Interval {
	return calendar.Interval{Start: l.Start, End: l.End}
}
