package httpserver

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

var resourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		_ = vld.RegisterValidation("resource_id", func(fl validator.FieldLevel) bool {
			return resourceIDPattern.MatchString(fl.Field().String())
		})
	})
	return vld
}

// idParam is the path parameter shared by every /v1 route.
type idParam struct {
	ID string `validate:"required,max=100,resource_id"`
}

// ValidateResourceID checks a round or candidate id taken from the path.
// The returned details map a field to the failed rule.
func ValidateResourceID(field, id string) (map[string]string, error) {
	err := getValidator().Struct(idParam{ID: id})
	if err == nil {
		return nil, nil
	}
	details := map[string]string{}
	var ve validator.ValidationErrors
	if ok := asValidationErrors(err, &ve); ok {
		for _, fe := range ve {
			details[field] = fe.Tag()
		}
	}
	return details, fmt.Errorf("%w: invalid %s", domain.ErrInvalidArgument, strings.ReplaceAll(field, "_", " "))
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*out = ve
	}
	return ok
}
