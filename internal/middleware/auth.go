package middleware

import (
	"net/http"
	"strings"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/model"
	"sensorhub/pkg/util"

	"github.com/gin-gonic/gin"
)

const (
	// DeviceTokenHeader carries a measurement point's device token.
	DeviceTokenHeader = "X-Device-Token"

	userKey   = "sensorhub.user"
	deviceKey = "sensorhub.device"
)

// abort writes the error envelope for err and stops the chain.
func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.CodeOf(err)), model.NewErrorResponse(err))
}

// UserAuth requires a bearer access token and stores the resolved
// UserPrincipal on the context.
func UserAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.Unauthenticatedf("missing bearer token"))
			return
		}
		principal, err := resolver.VerifyUser(token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(userKey, principal)
		c.Next()
	}
}

// DeviceAuth requires the device token of the measurement point named by
// the :id path parameter and stores the resolved DevicePrincipal.
func DeviceAuth(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(DeviceTokenHeader))
		if token == "" {
			abort(c, apperr.Unauthenticatedf("missing device token"))
			return
		}
		mpID, err := util.ParseObjectID(c.Param("id"))
		if err != nil {
			abort(c, apperr.NotFoundf("measurement point not found"))
			return
		}
		principal, err := resolver.VerifyDevice(c.Request.Context(), mpID, token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(deviceKey, principal)
		c.Next()
	}
}

// User returns the principal stored by UserAuth.
func User(c *gin.Context) (*auth.UserPrincipal, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.UserPrincipal)
	return p, ok
}

// Device returns the principal stored by DeviceAuth.
func Device(c *gin.Context) (*auth.DevicePrincipal, bool) {
	v, ok := c.Get(deviceKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.DevicePrincipal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// NoRoute answers unknown paths with the error envelope.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, model.NewErrorResponse(apperr.NotFoundf("route not found")))
}
