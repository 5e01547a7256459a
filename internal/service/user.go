package service

import (
	"context"
	"errors"
	"time"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/repository"
	"sensorhub/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrAdminEmailTaken is returned when the seed admin email belongs to a
// user without the Admin role.
var ErrAdminEmailTaken = errors.New("admin email is registered to a non-admin user")

// UserService handles accounts and sessions
type UserService struct {
	cfg      *config.Config
	users    repository.IUserRepository
	orgs     repository.IOrgRepository
	resolver *auth.Resolver
	log      *logging.Logger
	now      func() int64
}

// NewUserService creates a new user service
func NewUserService(cfg *config.Config, users repository.IUserRepository, orgs repository.IOrgRepository, resolver *auth.Resolver, log *logging.Logger) *UserService {
	return &UserService{
		cfg:      cfg,
		users:    users,
		orgs:     orgs,
		resolver: resolver,
		log:      log.With("component", "users"),
		now:      model.NowEpoch,
	}
}

// Register creates a Member account. Emails are unique among live users.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	return s.create(ctx, req, model.RoleMember)
}

// CreateAdmin creates an application admin account.
func (s *UserService) CreateAdmin(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	return s.create(ctx, req, model.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, req model.RegisterRequest, role model.Role) (*model.User, error) {
	email := util.NormalizeEmail(req.Email)
	existing, err := s.users.FindByEmail(ctx, email, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading user")
	}
	if existing != nil {
		return nil, apperr.InvalidFields("invalid registration", map[string]string{"email": "already registered"})
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hashing password")
	}

	now := s.now()
	user := &model.User{
		FirstName:    util.CleanName(req.FirstName),
		LastName:     util.CleanName(req.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Lifecycle:    model.Lifecycle{CreatedEpoch: now},
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, apperr.Wrap(err, "creating user")
	}

	s.log.Info("user created", "id", user.ID.Hex(), "role", role)
	return user, nil
}

// Login checks credentials and issues an access token carrying the user's
// organisation policies.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(req.Email), false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading user")
	}
	if user == nil || !util.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, apperr.Unauthenticatedf("invalid email or password")
	}

	policies, err := s.policiesOf(ctx, user)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(s.cfg.Auth.TokenTTLMinutes) * time.Minute
	token, err := auth.NewAccessToken(user, policies, s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer, ttl)
	if err != nil {
		return nil, apperr.Wrap(err, "issuing token")
	}
	return &model.LoginResponse{Token: token, User: user}, nil
}

func (s *UserService) policiesOf(ctx context.Context, user *model.User) (map[string]model.Policy, error) {
	policies := map[string]model.Policy{}
	pi := model.PageInfo{PageSize: config.MaxPageSize}
	for {
		page, err := s.orgs.ListByMember(ctx, user.ID, pi, model.SortAsc)
		if err != nil {
			return nil, apperr.Wrap(err, "listing organisations")
		}
		for _, org := range page.Items {
			if p, ok := org.PolicyOf(user.ID); ok {
				policies[org.ID.Hex()] = p
			}
		}
		if len(page.Items) == 0 || pi.Skip()+int64(len(page.Items)) >= page.Total {
			return policies, nil
		}
		pi.PageIndex++
	}
}

// Get returns a user to itself or to an application admin.
func (s *UserService) Get(ctx context.Context, caller *auth.UserPrincipal, id string) (*model.User, error) {
	userID, err := parseID(id, "id")
	if err != nil {
		return nil, err
	}
	if err := s.requireSelfOrAdmin(ctx, caller, userID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading user")
	}
	if user == nil {
		return nil, apperr.NotFoundf("user not found")
	}
	return user, nil
}

// Delete soft-deletes a user and removes it from every organisation. The
// last application admin cannot be deleted.
func (s *UserService) Delete(ctx context.Context, caller *auth.UserPrincipal, id string) error {
	userID, err := parseID(id, "id")
	if err != nil {
		return err
	}
	if err := s.requireSelfOrAdmin(ctx, caller, userID); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID, false)
	if err != nil {
		return apperr.Wrap(err, "loading user")
	}
	if user == nil {
		return apperr.NotFoundf("user not found")
	}
	if user.Role == model.RoleAdmin {
		n, err := s.users.CountAppAdmins(ctx)
		if err != nil {
			return apperr.Wrap(err, "counting admins")
		}
		if n <= 1 {
			return apperr.Invalidf("cannot delete the last application admin")
		}
	}

	now := s.now()
	ok, err := s.users.SoftDelete(ctx, userID, now)
	if err != nil {
		return apperr.Wrap(err, "deleting user")
	}
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	pulled, err := s.orgs.PullUser(ctx, userID, now)
	if err != nil {
		return apperr.Wrap(err, "removing user from organisations")
	}

	s.log.Info("user deleted", "id", userID.Hex(), "organisations", pulled, "by", caller.ID.Hex())
	return nil
}

func (s *UserService) requireSelfOrAdmin(ctx context.Context, caller *auth.UserPrincipal, userID primitive.ObjectID) error {
	if caller.ID == userID {
		return nil
	}
	isAdmin, err := s.resolver.IsAppAdmin(ctx, caller.ID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperr.NotFoundf("user not found")
	}
	return nil
}

// EnsureAdmin creates the configured application admin when no admin exists
// yet. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) (bool, error) {
	if admin.Email == "" || admin.Password == "" {
		return false, nil
	}
	n, err := s.users.CountAppAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	existing, err := s.users.FindByEmail(ctx, util.NormalizeEmail(admin.Email), false)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, ErrAdminEmailTaken
	}

	_, err = s.CreateAdmin(ctx, model.RegisterRequest{
		FirstName: admin.FirstName,
		LastName:  admin.LastName,
		Email:     admin.Email,
		Password:  admin.Password,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
