package bucket

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sensorhub/internal/logging"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }

type fakeOrgs struct{ api.OrganizationsAPI }

func (fakeOrgs) FindOrganizationByName(_ context.Context, name string) (*domain.Organization, error) {
	return &domain.Organization{Id: strPtr("influx-org"), Name: name}, nil
}

type fakeBuckets struct {
	api.BucketsAPI
	existing map[string]bool
	created  []string
	rules    []domain.RetentionRule
}

func (f *fakeBuckets) FindBucketByName(_ context.Context, name string) (*domain.Bucket, error) {
	if f.existing[name] {
		return &domain.Bucket{Id: strPtr("existing-" + name), Name: name}, nil
	}
	return nil, errors.New("bucket not found")
}

func (f *fakeBuckets) CreateBucketWithName(_ context.Context, _ *domain.Organization, name string, rules ...domain.RetentionRule) (*domain.Bucket, error) {
	f.created = append(f.created, name)
	f.rules = rules
	return &domain.Bucket{Id: strPtr("new-" + name), Name: name}, nil
}

type fakeAuths struct {
	api.AuthorizationsAPI
	permissions []domain.Permission
}

func (f *fakeAuths) CreateAuthorizationWithOrgID(_ context.Context, orgID string, permissions []domain.Permission) (*domain.Authorization, error) {
	f.permissions = permissions
	return &domain.Authorization{Token: strPtr("token-for-" + orgID)}, nil
}

func newTestProvisioner(b *fakeBuckets, a *fakeAuths) *InfluxProvisioner {
	return &InfluxProvisioner{
		orgs:      fakeOrgs{},
		buckets:   b,
		auths:     a,
		orgName:   "sensorhub",
		retention: 30 * 24 * time.Hour,
		log:       logging.Discard(),
	}
}

func TestProvisionCreatesBucketAndWriteToken(t *testing.T) {
	b := &fakeBuckets{}
	a := &fakeAuths{}
	p := newTestProvisioner(b, a)
	orgID := primitive.NewObjectID()

	token, err := p.Provision(context.Background(), orgID)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if token != "token-for-influx-org" {
		t.Errorf("token = %q", token)
	}
	if len(b.created) != 1 || b.created[0] != Name(orgID) {
		t.Errorf("created = %v", b.created)
	}
	if len(b.rules) != 1 || b.rules[0].EverySeconds != 30*secondsPerDay {
		t.Errorf("rules = %+v", b.rules)
	}
	if len(a.permissions) != 1 || a.permissions[0].Action != domain.PermissionActionWrite {
		t.Fatalf("permissions = %+v", a.permissions)
	}
	if id := a.permissions[0].Resource.Id; id == nil || *id != "new-"+Name(orgID) {
		t.Errorf("permission not scoped to the bucket: %v", id)
	}
}

func TestProvisionReusesExistingBucket(t *testing.T) {
	orgID := primitive.NewObjectID()
	b := &fakeBuckets{existing: map[string]bool{Name(orgID): true}}
	p := newTestProvisioner(b, &fakeAuths{})

	if _, err := p.Provision(context.Background(), orgID); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(b.created) != 0 {
		t.Errorf("bucket recreated: %v", b.created)
	}
}

func TestName(t *testing.T) {
	id := primitive.NewObjectID()
	if got := Name(id); !strings.HasPrefix(got, "org-") || !strings.HasSuffix(got, id.Hex()) {
		t.Errorf("Name() = %q", got)
	}
}
