package auth

import (
	"sensorhub/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is the authenticated identity attached to a request. It is
// either a *UserPrincipal or a *DevicePrincipal.
type Principal interface {
	principal()
}

// UserPrincipal is a human caller.
type UserPrincipal struct {
	ID       primitive.ObjectID
	Role     model.Role
	Policies map[string]model.Policy
}

func (*UserPrincipal) principal() {}

// DevicePrincipal is field hardware bound to a single measurement point.
type DevicePrincipal struct {
	MeasurementPointID primitive.ObjectID
}

func (*DevicePrincipal) principal() {}

// Owns reports whether the device is bound to mpID.
func (d *DevicePrincipal) Owns(mpID primitive.ObjectID) bool {
	return d != nil && d.MeasurementPointID == mpID
}
