package v1

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/timetable/server/internal/errors"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validatePayload runs struct validation and turns failures into INVALID_ARGUMENT.
func (s *APIV1Service) validatePayload(payload any) error {
	err := s.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !pkgerrors.As(err, &fieldErrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidArgument, "invalid request")
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return errors.InvalidArgument(strings.Join(messages, "; ")).
		WithDetail("fields", len(fieldErrs))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.SplitN(fe.Namespace(), ".", 2)
	path := fe.Field()
	if len(field) == 2 {
		path = field[1]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", path, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", path, fe.Tag())
	}
}
