package validation

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// MaxPasswordBytes: bcrypt не принимает пароли длиннее 72 байт.
const MaxPasswordBytes = 72

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		// В ошибках показываем имена полей как в JSON.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// max считает руны, а bcrypt ограничивает байты.
		_ = v.RegisterValidation("bcrypt_len", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= MaxPasswordBytes
		})
	})
	return v
}

// Struct validates s by its `validate` tags and reports every offending field
// as a *models.ValidationError.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	out := &models.ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe.Namespace()), message(fe))
	}
	return out
}

// fieldPath отрезает имя корневой структуры: "CreateOrderInput.sender.name" -> "sender.name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "bcrypt_len":
		return "must be at most " + strconv.Itoa(MaxPasswordBytes) + " bytes"
	case "email":
		return "must be a valid email address"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
