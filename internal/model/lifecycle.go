package model

import (
	"math"
	"time"
)

// Lifecycle carries the timestamps shared by every stored entity. Nothing is
// ever removed from the store: deletion sets DeletedEpoch and every read path
// filters on its absence.
type Lifecycle struct {
	CreatedEpoch int64  `bson:"createdEpoch" json:"createdEpoch"`
	UpdatedEpoch int64  `bson:"updatedEpoch,omitempty" json:"updatedEpoch,omitempty"`
	DeletedEpoch *int64 `bson:"deletedEpoch,omitempty" json:"deletedEpoch,omitempty"`
}

// IsDeleted reports whether the entity carries a soft-delete marker.
func (l Lifecycle) IsDeleted() bool {
	return l.DeletedEpoch != nil
}

// MarkDeleted sets the soft-delete marker once; later calls keep the first value.
func (l *Lifecycle) MarkDeleted(at int64) {
	if l.DeletedEpoch != nil {
		return
	}
	l.DeletedEpoch = &at
}

// NowEpoch returns the current time in Unix milliseconds.
func NowEpoch() int64 {
	return time.Now().UnixMilli()
}

// NextStamp returns a version stamp strictly greater than prev, preferring now.
// It saturates at math.MaxInt64 instead of wrapping.
func NextStamp(now, prev int64) int64 {
	if now > prev {
		return now
	}
	if prev == math.MaxInt64 {
		return prev
	}
	return prev + 1
}
