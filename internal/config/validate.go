package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gauthierbraillon/feedlab/internal/post"
)

// ConfigurationError lists every problem found in a configuration document.
type ConfigurationError struct {
	// Missing holds required sections absent from the document.
	Missing []string
	// Invalid holds fields whose values were rejected.
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required sections: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, "; "))
	}
	if len(parts) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// registration only fails on an empty tag or nil func
		_ = validate.RegisterValidation("postpath", func(fl validator.FieldLevel) bool {
			_, ok := post.Lookup(fl.Field().String())
			return ok
		})
	})
	return validate
}

// Validate checks value constraints: non-negative counts, min <= max in
// every range, known post paths and transform types.
func Validate(cfg *Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate configuration: %w", err)
	}

	cerr := &ConfigurationError{}
	for _, fe := range verrs {
		cerr.Invalid = append(cerr.Invalid, describe(fe))
	}
	return cerr
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, strings.ToLower(fe.Param()))
	case "postpath":
		return fmt.Sprintf("%s %q is not a known post path (known: %s)", field, fe.Value(), strings.Join(post.Paths(), ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "required":
		return field + " is required"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
