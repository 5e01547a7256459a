package repository

import (
	"context"

	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// IOrgRepository defines organisation persistence
type IOrgRepository interface {
	Create(ctx context.Context, org *model.Organisation) (*model.Organisation, error)
	FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.Organisation, error)
	// FindAdministered returns the live organisation only if userID holds the
	// Admin policy in it.
	FindAdministered(ctx context.Context, id, userID primitive.ObjectID) (*model.Organisation, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.Organisation], error)
	Update(ctx context.Context, id primitive.ObjectID, upd OrganisationUpdate) (bool, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error)
	// PullUser removes userID from the membership list of every organisation.
	PullUser(ctx context.Context, userID primitive.ObjectID, at int64) (int64, error)
}

// OrgRepository implements org persistence
type OrgRepository struct {
	base *generic.MongoBaseRepository[*model.Organisation]
}

// NewOrgRepository creates a new Mongo-backed organisation repository.
func NewOrgRepository(db *mongo.Database, log *logging.Logger) IOrgRepository {
	return &OrgRepository{base: generic.NewBaseRepository[*model.Organisation](db.Collection(OrganisationsCollection), log)}
}

func (r *OrgRepository) Create(ctx context.Context, org *model.Organisation) (*model.Organisation, error) {
	if org.Users == nil {
		org.Users = []model.OrgUser{}
	}
	return r.base.Insert(ctx, org)
}

func (r *OrgRepository) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.Organisation, error) {
	return r.base.FindByID(ctx, id, includeDeleted)
}

func (r *OrgRepository) FindAdministered(ctx context.Context, id, userID primitive.ObjectID) (*model.Organisation, error) {
	return r.base.FindOne(ctx, bson.M{
		"_id": id,
		"users": bson.M{"$elemMatch": bson.M{
			"userId": userID,
			"policy": model.PolicyAdmin,
		}},
	}, false)
}

func (r *OrgRepository) ListByMember(ctx context.Context, userID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.Organisation], error) {
	res, err := r.base.Paginate(ctx, bson.M{"users.userId": userID}, false, "name", order.Direction(), pi.Skip(), int64(pi.PageSize))
	if err != nil {
		return nil, err
	}
	return toPage(res, pi), nil
}

func (r *OrgRepository) Update(ctx context.Context, id primitive.ObjectID, upd OrganisationUpdate) (bool, error) {
	set := bson.M{"updatedEpoch": upd.UpdatedEpoch}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Users != nil {
		set["users"] = *upd.Users
	}
	if upd.BucketToken != nil {
		set["bucketToken"] = *upd.BucketToken
	}
	return r.base.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (r *OrgRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error) {
	return r.base.SoftDelete(ctx, id, at)
}

func (r *OrgRepository) PullUser(ctx context.Context, userID primitive.ObjectID, at int64) (int64, error) {
	return r.base.UpdateMany(ctx, bson.M{"users.userId": userID}, bson.M{
		"$pull": bson.M{"users": bson.M{"userId": userID}},
		"$set":  bson.M{"updatedEpoch": at},
	})
}
