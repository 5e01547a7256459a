package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sensorhub/internal/apperr"
	"sensorhub/internal/model"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	ConfigureValidator()
}

func bindBody(t *testing.T, body string, dst any) error {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(dst)
}

func TestBindErrorFieldPaths(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		dst    any
		fields []string
	}{
		{
			name:   "nested config",
			body:   `{"name":"S","quantity":"temperature","config":{"sendIntervalSeconds":60,"measureIntervalSeconds":60,"temperatureLimits":{"heating":20,"cooling":10}}}`,
			dst:    &model.AddSensorRequest{},
			fields: []string{"config.sendIntervalSeconds", "config.temperatureLimits.cooling"},
		},
		{
			name:   "bulk sensors",
			body:   `{"sensors":[{"name":"","quantity":"humidity","config":{"sendIntervalSeconds":60,"measureIntervalSeconds":30}}]}`,
			dst:    &model.UpdateMeasurementPointRequest{},
			fields: []string{"sensors[0].name", "sensors[0].quantity"},
		},
		{
			name:   "organisation id",
			body:   `{"organisationId":"xyz","name":"M"}`,
			dst:    &model.CreateMeasurementPointRequest{},
			fields: []string{"organisationId"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bindBody(t, tt.body, tt.dst)
			if err == nil {
				t.Fatal("binding succeeded")
			}
			e, ok := apperr.As(bindError(err))
			if !ok || e.Code != apperr.InvalidInput {
				t.Fatalf("bindError() = %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := e.Fields[f]; !ok {
					t.Errorf("Fields = %v, missing %q", e.Fields, f)
				}
			}
		})
	}
}

func TestBindErrorMalformedBody(t *testing.T) {
	err := bindBody(t, `{"name":`, &model.CreateOrganisationRequest{})
	e, ok := apperr.As(bindError(err))
	if !ok || e.Code != apperr.InvalidInput || len(e.Fields) != 0 {
		t.Errorf("bindError() = %+v", e)
	}
}

func TestRespondErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		key    string
	}{
		{apperr.NotFoundf("x"), http.StatusNotFound, "404"},
		{apperr.ForbiddenOn("organisation 1", "no"), http.StatusForbidden, "403"},
		{apperr.Invalidf("bad"), http.StatusBadRequest, "invalidDtoIn"},
		{apperr.Unauthenticatedf("who"), http.StatusUnauthorized, "401"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tt.err)
		if w.Code != tt.status || !strings.Contains(w.Body.String(), `"`+tt.key+`"`) {
			t.Errorf("%v: %d %s", tt.err, w.Code, w.Body.String())
		}
	}
}
