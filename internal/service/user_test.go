package service

import (
	"errors"
	"testing"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/config"
	"sensorhub/internal/model"
)

func registerRequest(email string) model.RegisterRequest {
	return model.RegisterRequest{FirstName: " Ada ", LastName: "Lovelace", Email: email, Password: "correct horse"}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	u, err := f.users.Register(f.ctx, registerRequest(" Ada@Example.COM "))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Email != "ada@example.com" || u.FirstName != "Ada" || u.Role != model.RoleMember {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Error("password stored in plain text")
	}

	caller := &auth.UserPrincipal{ID: u.ID, Role: u.Role}
	org, err := f.orgs.Create(f.ctx, caller, model.CreateOrganisationRequest{Name: "Ada Labs"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := f.users.Login(f.ctx, model.LoginRequest{Email: "ADA@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := auth.ParseToken(res.Token, testSecret, "sensorhub")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != u.ID.Hex() || claims.Role != model.RoleMember {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Policies[org.ID.Hex()] != model.PolicyAdmin {
		t.Errorf("policies = %v", claims.Policies)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	if _, err := f.users.Register(f.ctx, registerRequest("dup@x.io")); err != nil {
		t.Fatal(err)
	}
	_, err := f.users.Register(f.ctx, registerRequest("DUP@x.io"))
	e, ok := apperr.As(err)
	if !ok || e.Code != apperr.InvalidInput || e.Fields["email"] == "" {
		t.Errorf("error = %v, want InvalidInput on email", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	if _, err := f.users.Register(f.ctx, registerRequest("a@x.io")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  model.LoginRequest
	}{
		{"wrong password", model.LoginRequest{Email: "a@x.io", Password: "wrong"}},
		{"unknown email", model.LoginRequest{Email: "b@x.io", Password: "correct horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.users.Login(f.ctx, tt.req); !apperr.Is(err, apperr.Unauthenticated) {
				t.Errorf("Login() error = %v, want Unauthenticated", err)
			}
		})
	}
}

func TestGetUserSelfOrAdmin(t *testing.T) {
	f := newFixture(t)

	if _, err := f.users.Get(f.ctx, f.member, f.member.ID.Hex()); err != nil {
		t.Errorf("self: %v", err)
	}
	if _, err := f.users.Get(f.ctx, f.appAdmin, f.member.ID.Hex()); err != nil {
		t.Errorf("app admin: %v", err)
	}
	if _, err := f.users.Get(f.ctx, f.outsider, f.member.ID.Hex()); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("other user: %v", err)
	}
	if _, err := f.users.Get(f.ctx, f.member, "zzz"); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("bad id: %v", err)
	}
}

func TestDeleteUserLeavesOrganisations(t *testing.T) {
	f := newFixture(t)

	if err := f.users.Delete(f.ctx, f.outsider, f.member.ID.Hex()); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("other user: %v", err)
	}

	f.clock.t = 5_000
	if err := f.users.Delete(f.ctx, f.member, f.member.ID.Hex()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	org, err := f.store.Orgs().FindByID(f.ctx, f.org.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if org.IsMember(f.member.ID) || !org.IsAdmin(f.orgAdmin.ID) {
		t.Errorf("users = %+v", org.Users)
	}
	if u, _ := f.store.Users().FindByID(f.ctx, f.member.ID, true); u == nil || u.DeletedEpoch == nil || *u.DeletedEpoch != 5_000 {
		t.Errorf("stored user = %+v", u)
	}
	if err := f.users.Delete(f.ctx, f.appAdmin, f.member.ID.Hex()); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestDeleteLastAppAdmin(t *testing.T) {
	f := newFixture(t)

	if err := f.users.Delete(f.ctx, f.appAdmin, f.appAdmin.ID.Hex()); !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("last admin: %v", err)
	}

	second := f.addUser(t, "root2@x.io", model.RoleAdmin)
	if err := f.users.Delete(f.ctx, second, f.appAdmin.ID.Hex()); err != nil {
		t.Errorf("with a second admin: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	seed := config.AdminConfig{Email: "seed@x.io", Password: "seed-password", FirstName: "S", LastName: "A"}

	created, err := f.users.EnsureAdmin(f.ctx, seed)
	if err != nil || created {
		t.Errorf("existing admin: created = %v, err = %v", created, err)
	}

	empty := newFixtureWithoutAdmin(t)
	created, err = empty.users.EnsureAdmin(empty.ctx, seed)
	if err != nil || !created {
		t.Fatalf("first run: created = %v, err = %v", created, err)
	}
	u, _ := empty.store.Users().FindByEmail(empty.ctx, "seed@x.io", false)
	if u == nil || u.Role != model.RoleAdmin {
		t.Errorf("seeded user = %+v", u)
	}

	created, err = empty.users.EnsureAdmin(empty.ctx, seed)
	if err != nil || created {
		t.Errorf("second run: created = %v, err = %v", created, err)
	}

	taken := newFixtureWithoutAdmin(t)
	taken.addUser(t, "seed@x.io", model.RoleMember)
	if _, err := taken.users.EnsureAdmin(taken.ctx, seed); !errors.Is(err, ErrAdminEmailTaken) {
		t.Errorf("taken email: %v", err)
	}

	if created, err := taken.users.EnsureAdmin(taken.ctx, config.AdminConfig{}); err != nil || created {
		t.Errorf("unset seed: created = %v, err = %v", created, err)
	}
}

// newFixtureWithoutAdmin returns a fixture whose application admin has been
// deleted.
func newFixtureWithoutAdmin(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	if _, err := f.store.Users().SoftDelete(f.ctx, f.appAdmin.ID, 1); err != nil {
		t.Fatal(err)
	}
	return f
}
