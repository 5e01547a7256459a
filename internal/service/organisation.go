package service

import (
	"context"
	"fmt"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/bucket"
	"sensorhub/internal/logging"
	"sensorhub/internal/model"
	"sensorhub/internal/repository"
	"sensorhub/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrgService manages organisations and their membership
type OrgService struct {
	orgs        repository.IOrgRepository
	users       repository.IUserRepository
	resolver    *auth.Resolver
	provisioner bucket.Provisioner
	log         *logging.Logger
	now         func() int64
}

// NewOrgService creates a new organisation service
func NewOrgService(orgs repository.IOrgRepository, users repository.IUserRepository, resolver *auth.Resolver, provisioner bucket.Provisioner, log *logging.Logger) *OrgService {
	return &OrgService{
		orgs:        orgs,
		users:       users,
		resolver:    resolver,
		provisioner: provisioner,
		log:         log.With("component", "organisations"),
		now:         model.NowEpoch,
	}
}

// Create makes a new organisation with the caller as its only Admin and
// provisions its bucket. A provisioning failure leaves the organisation
// without a bucket token.
func (s *OrgService) Create(ctx context.Context, caller *auth.UserPrincipal, req model.CreateOrganisationRequest) (*model.Organisation, error) {
	name := util.CleanName(req.Name)
	if name == "" {
		return nil, apperr.InvalidFields("invalid organisation", map[string]string{"name": "is required"})
	}

	now := s.now()
	org := &model.Organisation{
		Name:        name,
		Description: req.Description,
		Users:       []model.OrgUser{{UserID: caller.ID, Policy: model.PolicyAdmin}},
		Lifecycle:   model.Lifecycle{CreatedEpoch: now, UpdatedEpoch: now},
	}
	if _, err := s.orgs.Create(ctx, org); err != nil {
		return nil, apperr.Wrap(err, "creating organisation")
	}

	token, err := s.provisioner.Provision(ctx, org.ID)
	switch {
	case err != nil:
		s.log.Warn("bucket provisioning failed", "organisation_id", org.ID.Hex(), "error", err)
	case token != "":
		if _, err := s.orgs.Update(ctx, org.ID, repository.OrganisationUpdate{BucketToken: &token, UpdatedEpoch: now}); err != nil {
			s.log.Warn("storing bucket token failed", "organisation_id", org.ID.Hex(), "error", err)
		} else {
			org.BucketToken = token
		}
	}

	s.log.Info("organisation created", "id", org.ID.Hex(), "user_id", caller.ID.Hex())
	return org, nil
}

// Get returns an organisation to a member. The bucket token is only shown
// to callers with admin rights on it.
func (s *OrgService) Get(ctx context.Context, caller *auth.UserPrincipal, id string) (*model.Organisation, error) {
	orgID, err := parseID(id, "orgId")
	if err != nil {
		return nil, err
	}
	org, err := s.resolver.RequireMember(ctx, caller.ID, orgID)
	if err != nil {
		return nil, err
	}
	if !org.IsAdmin(caller.ID) {
		isAppAdmin, err := s.resolver.IsAppAdmin(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		if !isAppAdmin {
			org.BucketToken = ""
		}
	}
	return org, nil
}

// ListMine returns one page of the organisations the caller belongs to.
func (s *OrgService) ListMine(ctx context.Context, caller *auth.UserPrincipal, q model.ListQuery) (*model.Page[*model.Organisation], error) {
	pi, order := normalizePage(q)
	page, err := s.orgs.ListByMember(ctx, caller.ID, pi, order)
	if err != nil {
		return nil, apperr.Wrap(err, "listing organisations")
	}
	for _, org := range page.Items {
		if !org.IsAdmin(caller.ID) {
			org.BucketToken = ""
		}
	}
	return page, nil
}

// Update changes name, description or the membership list. A new
// membership list must name distinct live users and keep at least one Admin.
func (s *OrgService) Update(ctx context.Context, caller *auth.UserPrincipal, id string, req model.UpdateOrganisationRequest) (*model.Organisation, error) {
	orgID, err := parseID(id, "orgId")
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.HasAdminAccessToOrg(ctx, caller.ID, orgID); err != nil {
		return nil, err
	}

	upd := repository.OrganisationUpdate{
		Name:         util.CleanNamePtr(req.Name),
		Description:  req.Description,
		UpdatedEpoch: s.now(),
	}
	if upd.Name != nil && *upd.Name == "" {
		return nil, apperr.InvalidFields("invalid organisation", map[string]string{"name": "is required"})
	}
	if req.Users != nil {
		if err := s.validateMembers(ctx, *req.Users); err != nil {
			return nil, err
		}
		upd.Users = req.Users
	}

	ok, err := s.orgs.Update(ctx, orgID, upd)
	if err != nil {
		return nil, apperr.Wrap(err, "updating organisation")
	}
	if !ok {
		return nil, apperr.NotFoundf("organisation not found")
	}

	org, err := s.orgs.FindByID(ctx, orgID, false)
	if err != nil {
		return nil, apperr.Wrap(err, "loading organisation")
	}
	if org == nil {
		return nil, apperr.NotFoundf("organisation not found")
	}
	s.log.Info("organisation updated", "id", orgID.Hex(), "user_id", caller.ID.Hex())
	return org, nil
}

func (s *OrgService) validateMembers(ctx context.Context, members []model.OrgUser) error {
	fields := map[string]string{}
	seen := make(map[primitive.ObjectID]bool, len(members))
	ids := make([]primitive.ObjectID, 0, len(members))
	admins := 0
	for i, m := range members {
		key := fmt.Sprintf("users[%d]", i)
		switch {
		case m.UserID.IsZero():
			fields[key+".userId"] = "is required"
		case seen[m.UserID]:
			fields[key+".userId"] = "duplicate user"
		default:
			seen[m.UserID] = true
			ids = append(ids, m.UserID)
		}
		switch m.Policy {
		case model.PolicyAdmin:
			admins++
		case model.PolicyMember:
		default:
			fields[key+".policy"] = "must be Admin or Member"
		}
	}
	if admins == 0 {
		fields["users"] = "must contain at least one Admin"
	}
	if len(fields) > 0 {
		return apperr.InvalidFields("invalid members", fields)
	}

	n, err := s.users.CountByIDs(ctx, ids)
	if err != nil {
		return apperr.Wrap(err, "checking members")
	}
	if n != int64(len(ids)) {
		return apperr.InvalidFields("invalid members", map[string]string{"users": "contains unknown users"})
	}
	return nil
}

// Delete soft-deletes an organisation.
func (s *OrgService) Delete(ctx context.Context, caller *auth.UserPrincipal, id string) error {
	orgID, err := parseID(id, "orgId")
	if err != nil {
		return err
	}
	if _, err := s.resolver.HasAdminAccessToOrg(ctx, caller.ID, orgID); err != nil {
		return err
	}

	ok, err := s.orgs.SoftDelete(ctx, orgID, s.now())
	if err != nil {
		return apperr.Wrap(err, "deleting organisation")
	}
	if !ok {
		return apperr.NotFoundf("organisation not found")
	}
	s.log.Info("organisation deleted", "id", orgID.Hex(), "user_id", caller.ID.Hex())
	return nil
}
