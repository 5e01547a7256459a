package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Policy is a user's standing within a single organisation.
type Policy string

const (
	PolicyAdmin  Policy = "Admin"
	PolicyMember Policy = "Member"
)

// OrgUser is one entry of an organisation's membership list.
type OrgUser struct {
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Policy Policy             `bson:"policy" json:"policy" binding:"required,oneof=Admin Member"`
}

type Organisation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Users       []OrgUser          `bson:"users" json:"users"`
	BucketToken string             `bson:"bucketToken,omitempty" json:"bucketToken,omitempty"`

	Lifecycle `bson:",inline"`
}

func (o *Organisation) GetID() primitive.ObjectID   { return o.ID }
func (o *Organisation) SetID(id primitive.ObjectID) { o.ID = id }

// PolicyOf returns the caller's policy in the organisation, if any.
func (o *Organisation) PolicyOf(userID primitive.ObjectID) (Policy, bool) {
	for _, u := range o.Users {
		if u.UserID == userID {
			return u.Policy, true
		}
	}
	return "", false
}

// IsAdmin reports whether userID holds the Admin policy.
func (o *Organisation) IsAdmin(userID primitive.ObjectID) bool {
	p, ok := o.PolicyOf(userID)
	return ok && p == PolicyAdmin
}

// IsMember reports whether userID holds any policy.
func (o *Organisation) IsMember(userID primitive.ObjectID) bool {
	_, ok := o.PolicyOf(userID)
	return ok
}

// CreateOrganisationRequest is the body of POST /organisations.
type CreateOrganisationRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

// UpdateOrganisationRequest carries the optional fields of PATCH /organisations/:orgId.
type UpdateOrganisationRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string    `json:"description" binding:"omitempty,max=1000"`
	Users       *[]OrgUser `json:"users" binding:"omitempty,dive"`
}
