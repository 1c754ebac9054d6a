package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/pkg/errors"
)

// NowTimeFunc is the clock used by the card expiry rule. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	validate *validator.Validate
	once     sync.Once

	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		mustRegister("cardnumber", cardNumber)
		mustRegister("cardexpiry", cardExpiry)
		mustRegister("cvv", cvv)
		mustRegister("letters", letters)
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation %q: %v", tag, err))
	}
}

// Struct validates every field of v. Failures are returned as a
// *ValidationError keyed by the json field name.
func Struct(v any) error {
	err := instance().Struct(v)
	return toValidationError(err)
}

// Field validates a single field of v, addressed by its json name.
// Used for inline validation while a form is being filled in.
func Field(v any, name string) error {
	goName, ok := goFieldName(v, name)
	if !ok {
		return errors.Errorf("[validation.Field] unknown field %q", name)
	}
	err := instance().StructPartial(v, goName)
	return toValidationError(err)
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "[validation] failed to validate")
	}

	ve := &apperrors.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, exists := ve.Fields[fe.Field()]; exists {
			continue
		}
		ve.Fields[fe.Field()] = message(fe)
	}
	return ve
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "cardnumber":
		return "must be 16 digits"
	case "cardexpiry":
		return "must be a MM/YY date that has not passed"
	case "cvv":
		return "must be 3 or 4 digits"
	case "letters":
		return "must contain letters only"
	}
	return "is invalid"
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func goFieldName(v any, name string) (string, bool) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return "", false
	}
	for i := 0; i < t.NumField(); i++ {
		fld := t.Field(i)
		if jsonName(fld) == name || fld.Name == name {
			return fld.Name, true
		}
	}
	return "", false
}

// NormalizeCardNumber strips the spaces and dashes users type between groups
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

func cardNumber(fl validator.FieldLevel) bool {
	number := NormalizeCardNumber(fl.Field().String())
	return len(number) == 16 && digitsPattern.MatchString(number)
}

// cardExpiry accepts MM/YY; a card is valid through the last day of its month
func cardExpiry(fl validator.FieldLevel) bool {
	m := expiryPattern.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	var month, year int
	fmt.Sscanf(m[1], "%d", &month)
	fmt.Sscanf(m[2], "%d", &year)

	now := NowTimeFunc()
	expiresAt := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	return now.Before(expiresAt)
}

func cvv(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return (len(s) == 3 || len(s) == 4) && digitsPattern.MatchString(s)
}

func letters(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
