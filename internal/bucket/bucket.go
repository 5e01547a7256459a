// Package bucket provisions the per-organisation time-series bucket that
// devices write measurements to, and the write token stored as the
// organisation's bucketToken.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensorhub/internal/config"
	"sensorhub/internal/logging"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultConnectTimeout = 10 * time.Second
	secondsPerDay         = 24 * 60 * 60
)

var ErrConnectionFailed = errors.New("influxdb: connection failed")

// Provisioner creates the bucket of an organisation and returns a token
// allowed to write to it.
type Provisioner interface {
	Provision(ctx context.Context, orgID primitive.ObjectID) (string, error)
	Close()
}

// Name returns the bucket name of an organisation.
func Name(orgID primitive.ObjectID) string {
	return "org-" + orgID.Hex()
}

// Noop provisions nothing and returns an empty token.
type Noop struct{}

func (Noop) Provision(context.Context, primitive.ObjectID) (string, error) { return "", nil }

func (Noop) Close() {}

// InfluxProvisioner provisions buckets on an InfluxDB 2 server.
type InfluxProvisioner struct {
	client    influxdb2.Client
	orgs      api.OrganizationsAPI
	buckets   api.BucketsAPI
	auths     api.AuthorizationsAPI
	orgName   string
	retention time.Duration
	log       *logging.Logger
}

// NewInfluxProvisioner connects and pings the server.
func NewInfluxProvisioner(cfg config.InfluxDBConfig, log *logging.Logger) (*InfluxProvisioner, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &InfluxProvisioner{
		client:    client,
		orgs:      client.OrganizationsAPI(),
		buckets:   client.BucketsAPI(),
		auths:     client.AuthorizationsAPI(),
		orgName:   cfg.Org,
		retention: time.Duration(cfg.RetentionDays) * secondsPerDay * time.Second,
		log:       log.With("component", "influxdb"),
	}, nil
}

// Provision creates the bucket (reusing an existing one) and a write-only
// authorization scoped to it.
func (p *InfluxProvisioner) Provision(ctx context.Context, orgID primitive.ObjectID) (string, error) {
	org, err := p.orgs.FindOrganizationByName(ctx, p.orgName)
	if err != nil {
		return "", fmt.Errorf("finding influx organisation %q: %w", p.orgName, err)
	}

	name := Name(orgID)
	b, err := p.buckets.FindBucketByName(ctx, name)
	if err != nil || b == nil {
		var rules []domain.RetentionRule
		if p.retention > 0 {
			rules = append(rules, domain.RetentionRule{EverySeconds: int64(p.retention / time.Second)})
		}
		b, err = p.buckets.CreateBucketWithName(ctx, org, name, rules...)
		if err != nil {
			return "", fmt.Errorf("creating bucket %s: %w", name, err)
		}
	}

	permissions := []domain.Permission{{
		Action: domain.PermissionActionWrite,
		Resource: domain.Resource{
			Type:  domain.ResourceTypeBuckets,
			Id:    b.Id,
			OrgID: org.Id,
		},
	}}
	auth, err := p.auths.CreateAuthorizationWithOrgID(ctx, *org.Id, permissions)
	if err != nil {
		return "", fmt.Errorf("creating write token for %s: %w", name, err)
	}
	if auth.Token == nil {
		return "", fmt.Errorf("creating write token for %s: empty token", name)
	}

	p.log.Info("bucket provisioned", "bucket", name)
	return *auth.Token, nil
}

func (p *InfluxProvisioner) Close() {
	p.client.Close()
}
