package auth

import (
	"context"
	"strings"

	"sensorhub/internal/apperr"
	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/repository"
	"sensorhub/pkg/timer"
	"sensorhub/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolver turns credentials into principals and decides organisation rights.
type Resolver struct {
	orgs   repository.IOrgRepository
	users  repository.IUserRepository
	points repository.IMeasurementPointRepository
	secret string
	issuer string
	log    *logging.Logger
}

// NewResolver creates a new Resolver signing and verifying tokens with cfg.
func NewResolver(cfg config.AuthConfig, orgs repository.IOrgRepository, users repository.IUserRepository, points repository.IMeasurementPointRepository, log *logging.Logger) *Resolver {
	return &Resolver{
		orgs:   orgs,
		users:  users,
		points: points,
		secret: cfg.JWTSecret,
		issuer: cfg.JWTIssuer,
		log:    log.With("component", "auth"),
	}
}

// VerifyUser validates a bearer token. A missing token is Unauthenticated;
// any verification or shape failure is Forbidden.
func (r *Resolver) VerifyUser(token string) (*UserPrincipal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Unauthenticatedf("missing credentials")
	}

	claims, err := ParseToken(token, r.secret, r.issuer)
	if err != nil {
		r.log.Debug("token rejected", "error", err)
		return nil, apperr.New(apperr.Forbidden, "invalid token")
	}
	p, err := principalFromClaims(claims)
	if err != nil {
		r.log.Debug("token rejected", "error", err)
		return nil, apperr.New(apperr.Forbidden, "invalid token")
	}
	return p, nil
}

// HasAdminAccessToOrg returns the organisation when userID administers it
// directly or is an application admin. A missing organisation is NotFound
// for everyone; an existing one without rights is Forbidden.
func (r *Resolver) HasAdminAccessToOrg(ctx context.Context, userID, orgID primitive.ObjectID) (*model.Organisation, error) {
	defer timer.Track(r.log, "HasAdminAccessToOrg")()

	org, err := r.orgs.FindAdministered(ctx, orgID, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "loading organisation")
	}
	if org != nil {
		return org, nil
	}

	org, err = r.orgs.FindByID(ctx, orgID, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading organisation")
	}
	if org == nil {
		return nil, apperr.NotFoundf("organisation not found")
	}

	isAppAdmin, err := r.IsAppAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if isAppAdmin {
		r.log.Info("app admin override", "user_id", userID.Hex(), "organisation_id", orgID.Hex())
		return org, nil
	}
	return nil, apperr.ForbiddenOn("organisation "+orgID.Hex(), "user is not an admin of the organisation")
}

// RequireMember returns the organisation when userID holds any policy in it
// or is an application admin. Non-members get NotFound so the existence of
// the organisation is not confirmed.
func (r *Resolver) RequireMember(ctx context.Context, userID, orgID primitive.ObjectID) (*model.Organisation, error) {
	org, err := r.orgs.FindByID(ctx, orgID, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading organisation")
	}
	if org == nil {
		return nil, apperr.NotFoundf("organisation not found")
	}
	if org.IsMember(userID) {
		return org, nil
	}

	isAppAdmin, err := r.IsAppAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if isAppAdmin {
		return org, nil
	}
	return nil, apperr.NotFoundf("organisation not found")
}

// IsAppAdmin reports whether userID is a live user with the Admin role.
func (r *Resolver) IsAppAdmin(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	u, err := r.users.FindAppAdmin(ctx, userID)
	if err != nil {
		return false, apperr.Wrap(err, "loading user")
	}
	return u != nil, nil
}

// VerifyDevice checks token against the measurement point it addresses. An
// unknown measurement point and a token issued for a different one both
// report NotFound, so a device learns nothing about other measurement points.
func (r *Resolver) VerifyDevice(ctx context.Context, mpID primitive.ObjectID, token string) (*DevicePrincipal, error) {
	defer timer.Track(r.log, "VerifyDevice")()

	if strings.TrimSpace(token) == "" {
		return nil, apperr.Unauthenticatedf("missing device token")
	}

	mp, err := r.points.FindByID(ctx, mpID, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading measurement point")
	}
	if mp == nil || !util.VerifyDeviceToken(token, mp.DeviceTokenHash) {
		return nil, apperr.NotFoundf("measurement point not found")
	}
	return &DevicePrincipal{MeasurementPointID: mp.ID}, nil
}
