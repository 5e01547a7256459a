// Package memory provides an in-memory implementation of the repository
// interfaces for tests and ephemeral environments. Documents are copied on
// every read and write so callers never share state with the store, matching
// the isolation a document database gives.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"sensorhub/internal/model"
	"sensorhub/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Compile-time contract assertions.
var (
	_ repository.IOrgRepository              = (*OrgRepository)(nil)
	_ repository.IUserRepository             = (*UserRepository)(nil)
	_ repository.IMeasurementPointRepository = (*MeasurementPointRepository)(nil)
)

// Store holds the three collections behind one lock.
type Store struct {
	mu     sync.RWMutex
	orgs   map[primitive.ObjectID]*model.Organisation
	users  map[primitive.ObjectID]*model.User
	points map[primitive.ObjectID]*model.MeasurementPoint
	// failWith, when set, is returned by every operation.
	failWith error
}

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		orgs:   map[primitive.ObjectID]*model.Organisation{},
		users:  map[primitive.ObjectID]*model.User{},
		points: map[primitive.ObjectID]*model.MeasurementPoint{},
	}
}

// FailWith makes every subsequent operation return err; nil restores normal
// behaviour. Used to exercise store-unavailable paths.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Orgs() *OrgRepository { return &OrgRepository{s: s} }

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (s *Store) Points() *MeasurementPointRepository { return &MeasurementPointRepository{s: s} }

func visible(l model.Lifecycle, includeDeleted bool) bool {
	return includeDeleted || !l.IsDeleted()
}

func cloneEpoch(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneLifecycle(l model.Lifecycle) model.Lifecycle {
	l.DeletedEpoch = cloneEpoch(l.DeletedEpoch)
	return l
}

func cloneOrg(o *model.Organisation) *model.Organisation {
	c := *o
	c.Users = append([]model.OrgUser{}, o.Users...)
	c.Lifecycle = cloneLifecycle(o.Lifecycle)
	return &c
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Lifecycle = cloneLifecycle(u.Lifecycle)
	return &c
}

func cloneSensors(in []model.Sensor) []model.Sensor {
	out := make([]model.Sensor, len(in))
	for i, s := range in {
		s.Lifecycle = cloneLifecycle(s.Lifecycle)
		out[i] = s
	}
	return out
}

func clonePoint(m *model.MeasurementPoint) *model.MeasurementPoint {
	c := *m
	c.Sensors = cloneSensors(m.Sensors)
	c.Lifecycle = cloneLifecycle(m.Lifecycle)
	return &c
}

// paginate sorts by name (then id) and slices the requested page.
func paginate[T any](items []T, name func(T) string, id func(T) primitive.ObjectID, pi model.PageInfo, order model.SortOrder) *model.Page[T] {
	sort.Slice(items, func(i, j int) bool {
		ni, nj := name(items[i]), name(items[j])
		if ni == nj {
			ni, nj = id(items[i]).Hex(), id(items[j]).Hex()
		}
		if order == model.SortDesc {
			return strings.Compare(ni, nj) > 0
		}
		return strings.Compare(ni, nj) < 0
	})

	total := int64(len(items))
	start := pi.Skip()
	if start > total {
		start = total
	}
	end := start + int64(pi.PageSize)
	if end > total {
		end = total
	}
	page := make([]T, 0, end-start)
	page = append(page, items[start:end]...)
	return &model.Page[T]{Items: page, Total: total, PageInfo: pi}
}

// OrgRepository is the in-memory organisation repository.
type OrgRepository struct{ s *Store }

func (r *OrgRepository) Create(_ context.Context, org *model.Organisation) (*model.Organisation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	if org.Users == nil {
		org.Users = []model.OrgUser{}
	}
	r.s.orgs[org.ID] = cloneOrg(org)
	return org, nil
}

func (r *OrgRepository) FindByID(_ context.Context, id primitive.ObjectID, includeDeleted bool) (*model.Organisation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	o, ok := r.s.orgs[id]
	if !ok || !visible(o.Lifecycle, includeDeleted) {
		return nil, nil
	}
	return cloneOrg(o), nil
}

func (r *OrgRepository) FindAdministered(ctx context.Context, id, userID primitive.ObjectID) (*model.Organisation, error) {
	o, err := r.FindByID(ctx, id, false)
	if err != nil || o == nil {
		return nil, err
	}
	if !o.IsAdmin(userID) {
		return nil, nil
	}
	return o, nil
}

func (r *OrgRepository) ListByMember(_ context.Context, userID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.Organisation], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var items []*model.Organisation
	for _, o := range r.s.orgs {
		if o.IsDeleted() || !o.IsMember(userID) {
			continue
		}
		items = append(items, cloneOrg(o))
	}
	return paginate(items,
		func(o *model.Organisation) string { return o.Name },
		func(o *model.Organisation) primitive.ObjectID { return o.ID },
		pi, order), nil
}

func (r *OrgRepository) Update(_ context.Context, id primitive.ObjectID, upd repository.OrganisationUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	o, ok := r.s.orgs[id]
	if !ok || o.IsDeleted() {
		return false, nil
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Description != nil {
		o.Description = *upd.Description
	}
	if upd.Users != nil {
		o.Users = append([]model.OrgUser{}, (*upd.Users)...)
	}
	if upd.BucketToken != nil {
		o.BucketToken = *upd.BucketToken
	}
	o.UpdatedEpoch = upd.UpdatedEpoch
	return true, nil
}

func (r *OrgRepository) SoftDelete(_ context.Context, id primitive.ObjectID, at int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	o, ok := r.s.orgs[id]
	if !ok || o.IsDeleted() {
		return false, nil
	}
	o.MarkDeleted(at)
	o.UpdatedEpoch = at
	return true, nil
}

func (r *OrgRepository) PullUser(_ context.Context, userID primitive.ObjectID, at int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for _, o := range r.s.orgs {
		if o.IsDeleted() || !o.IsMember(userID) {
			continue
		}
		kept := o.Users[:0]
		for _, u := range o.Users {
			if u.UserID != userID {
				kept = append(kept, u)
			}
		}
		o.Users = kept
		o.UpdatedEpoch = at
		n++
	}
	return n, nil
}

// UserRepository is the in-memory user repository.
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *model.User) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.s.users[user.ID] = cloneUser(user)
	return user, nil
}

func (r *UserRepository) find(match func(*model.User) bool, includeDeleted bool) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, u := range r.s.users {
		if visible(u.Lifecycle, includeDeleted) && match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepository) FindByID(_ context.Context, id primitive.ObjectID, includeDeleted bool) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id }, includeDeleted)
}

func (r *UserRepository) FindByEmail(_ context.Context, email string, includeDeleted bool) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email }, includeDeleted)
}

func (r *UserRepository) FindAppAdmin(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id && u.Role == model.RoleAdmin }, false)
}

func (r *UserRepository) count(match func(*model.User) bool) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	var n int64
	for _, u := range r.s.users {
		if !u.IsDeleted() && match(u) {
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) CountAppAdmins(_ context.Context) (int64, error) {
	return r.count(func(u *model.User) bool { return u.Role == model.RoleAdmin })
}

func (r *UserRepository) CountByIDs(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	set := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return r.count(func(u *model.User) bool { return set[u.ID] })
}

func (r *UserRepository) SoftDelete(_ context.Context, id primitive.ObjectID, at int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	u, ok := r.s.users[id]
	if !ok || u.IsDeleted() {
		return false, nil
	}
	u.MarkDeleted(at)
	u.UpdatedEpoch = at
	return true, nil
}

// MeasurementPointRepository is the in-memory measurement point repository.
type MeasurementPointRepository struct{ s *Store }

func (r *MeasurementPointRepository) Create(_ context.Context, mp *model.MeasurementPoint) (*model.MeasurementPoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	if mp.ID.IsZero() {
		mp.ID = primitive.NewObjectID()
	}
	if mp.Sensors == nil {
		mp.Sensors = []model.Sensor{}
	}
	r.s.points[mp.ID] = clonePoint(mp)
	return mp, nil
}

func (r *MeasurementPointRepository) FindByID(_ context.Context, id primitive.ObjectID, includeDeleted bool) (*model.MeasurementPoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	m, ok := r.s.points[id]
	if !ok || !visible(m.Lifecycle, includeDeleted) {
		return nil, nil
	}
	return clonePoint(m), nil
}

func (r *MeasurementPointRepository) FindBySensorID(_ context.Context, sensorID string) (*model.MeasurementPoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, m := range r.s.points {
		if m.IsDeleted() {
			continue
		}
		if m.FindSensor(sensorID) >= 0 {
			return clonePoint(m), nil
		}
	}
	return nil, nil
}

func (r *MeasurementPointRepository) ListByOrganisation(_ context.Context, orgID primitive.ObjectID, pi model.PageInfo, order model.SortOrder) (*model.Page[*model.MeasurementPoint], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var items []*model.MeasurementPoint
	for _, m := range r.s.points {
		if m.IsDeleted() || m.OrganisationID != orgID {
			continue
		}
		items = append(items, clonePoint(m))
	}
	return paginate(items,
		func(m *model.MeasurementPoint) string { return m.Name },
		func(m *model.MeasurementPoint) primitive.ObjectID { return m.ID },
		pi, order), nil
}

func (r *MeasurementPointRepository) Update(_ context.Context, id primitive.ObjectID, upd repository.MeasurementPointUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	m, ok := r.s.points[id]
	if !ok || m.IsDeleted() {
		return false, nil
	}
	if upd.IfUpdatedEpoch != nil && m.UpdatedEpoch != *upd.IfUpdatedEpoch {
		return false, nil
	}
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.Description != nil {
		m.Description = *upd.Description
	}
	if upd.Sensors != nil {
		m.Sensors = cloneSensors(upd.Sensors)
	}
	if upd.DeviceTokenHash != nil {
		m.DeviceTokenHash = *upd.DeviceTokenHash
	}
	m.UpdatedEpoch = upd.UpdatedEpoch
	return true, nil
}

func (r *MeasurementPointRepository) SoftDelete(_ context.Context, id primitive.ObjectID, at int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}
	m, ok := r.s.points[id]
	if !ok || m.IsDeleted() {
		return false, nil
	}
	m.MarkDeleted(at)
	m.UpdatedEpoch = at
	return true, nil
}
