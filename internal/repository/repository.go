// Package repository holds the persistence interfaces of the service and
// their MongoDB implementations. Every finder takes an explicit
// includeDeleted flag; soft-deleted documents are never returned by default.
package repository

import (
	"sensorhub/internal/model"
	"sensorhub/pkg/generic"
)

// Collection names.
const (
	OrganisationsCollection     = "organisations"
	UsersCollection             = "users"
	MeasurementPointsCollection = "measurementPoints"
)

// OrganisationUpdate lists the fields to change; nil fields are left as is.
type OrganisationUpdate struct {
	Name         *string
	Description  *string
	Users        *[]model.OrgUser
	BucketToken  *string
	UpdatedEpoch int64
}

// MeasurementPointUpdate lists the fields to change; nil fields are left as is.
// Sensors replaces the whole embedded array.
type MeasurementPointUpdate struct {
	Name            *string
	Description     *string
	Sensors         []model.Sensor
	DeviceTokenHash *string
	UpdatedEpoch    int64
	// IfUpdatedEpoch, when set, applies the update only while the stored
	// updatedEpoch still equals it.
	IfUpdatedEpoch *int64
}

func toPage[T any](res *generic.PageResult[T], pi model.PageInfo) *model.Page[T] {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	return &model.Page[T]{Items: items, Total: res.Total, PageInfo: pi}
}
