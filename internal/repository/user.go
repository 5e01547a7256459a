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

// IUserRepository defines user persistence
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.User, error)
	FindByEmail(ctx context.Context, email string, includeDeleted bool) (*model.User, error)
	// FindAppAdmin returns the live user only if it holds the global Admin role.
	FindAppAdmin(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	CountAppAdmins(ctx context.Context) (int64, error)
	CountByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error)
}

type UserRepository struct {
	base *generic.MongoBaseRepository[*model.User]
}

// NewUserRepository creates a new Mongo-backed user repository.
func NewUserRepository(db *mongo.Database, log *logging.Logger) IUserRepository {
	return &UserRepository{base: generic.NewBaseRepository[*model.User](db.Collection(UsersCollection), log)}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	return r.base.Insert(ctx, user)
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*model.User, error) {
	return r.base.FindByID(ctx, id, includeDeleted)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string, includeDeleted bool) (*model.User, error) {
	return r.base.FindOne(ctx, bson.M{"email": email}, includeDeleted)
}

func (r *UserRepository) FindAppAdmin(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return r.base.FindOne(ctx, bson.M{"_id": id, "role": model.RoleAdmin}, false)
}

func (r *UserRepository) CountAppAdmins(ctx context.Context) (int64, error) {
	return r.base.Count(ctx, bson.M{"role": model.RoleAdmin}, false)
}

func (r *UserRepository) CountByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	return r.base.Count(ctx, bson.M{"_id": bson.M{"$in": ids}}, false)
}

func (r *UserRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at int64) (bool, error) {
	return r.base.SoftDelete(ctx, id, at)
}
