package customer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"go-bankledger/models"
)

// emailPattern accepts local@domain.tld where the local part is word
// characters, '.', '-' and the final domain segment has 2 to 4 characters.
var emailPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

var validate = newValidator()

// Details holds the mutable and identifying fields supplied by a caller.
type Details struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	DNI       string `validate:"required"`
	Email     string `validate:"required,bankemail"`
}

var fieldLabels = map[string]string{
	"FirstName": "first name",
	"LastName":  "last name",
	"DNI":       "DNI",
	"Email":     "email",
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("bankemail", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Validate checks d and returns an error wrapping models.ErrValidation that
// names every offending field.
func Validate(d Details) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "bankemail":
		return "invalid email format"
	default:
		return "invalid " + label
	}
}
