package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/resumiro/internal/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json names, the names callers see.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

type userInput struct {
	Principal string `json:"principal" validate:"required,max=256"`
}

type companyInput struct {
	Name     string `json:"name"     validate:"required,max=200"`
	Website  string `json:"website"  validate:"max=2048"`
	Location string `json:"location" validate:"max=200"`
	Extra    string `json:"extra"    validate:"max=4096"`
}

// companyPatch allows empty fields: they keep the stored value.
type companyPatch struct {
	Name     string `json:"name"     validate:"max=200"`
	Website  string `json:"website"  validate:"max=2048"`
	Location string `json:"location" validate:"max=200"`
	Extra    string `json:"extra"    validate:"max=4096"`
}

type certificateInput struct {
	Name           string `json:"name"           validate:"required,max=200"`
	URL            string `json:"url"            validate:"required,max=2048"`
	VerifyingAdmin string `json:"verifyingAdmin" validate:"required"`
}

type certificatePatch struct {
	Name           string `json:"name"           validate:"max=200"`
	URL            string `json:"url"            validate:"max=2048"`
	VerifyingAdmin string `json:"verifyingAdmin" validate:"required"`
}

// check validates s and converts the first failure into an
// apperror.ValidationFailed naming the field.
func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(fe.Field(), fe.Field()+" is required")
	case "max":
		return apperror.ValidationFailed(fe.Field(),
			fmt.Sprintf("%s must be %s characters or less", fe.Field(), fe.Param()))
	default:
		return apperror.ValidationFailed(fe.Field(), fe.Field()+" is invalid")
	}
}
