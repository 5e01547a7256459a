// Package handler adapts the services to gin. Handlers bind and validate the
// request DTO, call one service operation and wrap the result in the
// response envelope.
package handler

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"sensorhub/internal/apperr"
	"sensorhub/internal/auth"
	"sensorhub/internal/middleware"
	"sensorhub/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

// ConfigureValidator makes gin's validator report fields by their JSON (or
// query) name so field errors match the request payload.
func ConfigureValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// respondError writes the error envelope with the status of err's code.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.Internal {
		_ = c.Error(err)
	}
	c.JSON(apperr.HTTPStatus(code), model.NewErrorResponse(err))
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, model.NewSuccessResponse(message, data))
}

// bindJSON decodes and validates the request body into dst.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// bindQuery decodes and validates the query string into dst.
func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		respondError(c, bindError(err))
		return false
	}
	return true
}

// bindError converts a binding failure to InvalidInput with one entry per
// failing field, keyed by its path in the payload.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Invalidf("malformed request: %v", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fieldMessage(fe)
	}
	return apperr.InvalidFields("invalid request", fields)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtfield":
		return "must be greater than " + lowerFirst(fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "len", "hexadecimal":
		return "must be a 24 character hex id"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// userFrom returns the caller set by middleware.UserAuth. Routes using it are
// always behind that middleware.
func userFrom(c *gin.Context) (*auth.UserPrincipal, bool) {
	p, ok := middleware.User(c)
	if !ok {
		respondError(c, apperr.Unauthenticatedf("authentication required"))
	}
	return p, ok
}

func deviceFrom(c *gin.Context) (*auth.DevicePrincipal, bool) {
	p, ok := middleware.Device(c)
	if !ok {
		respondError(c, apperr.Unauthenticatedf("device authentication required"))
	}
	return p, ok
}
