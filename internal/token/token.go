package token

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Pattern is the shape of a well-formed access token
var Pattern = regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`)

var (
	ErrEmpty     = errors.New("token is empty")
	ErrMalformed = errors.New("token does not match sk-<48 alphanumerics>")
)

type input struct {
	Loose  string `validate:"required"`
	Strict string `validate:"required,apitoken"`
}

// Validator checks token shape before any network call is made
type Validator struct {
	strict   bool
	validate *validator.Validate
}

// NewValidator creates a Validator. With strict enabled, tokens must match Pattern.
func NewValidator(strict bool) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("apitoken", func(fl validator.FieldLevel) bool {
		return Pattern.MatchString(fl.Field().String())
	})
	return &Validator{strict: strict, validate: v}
}

// Validate returns ErrEmpty or ErrMalformed, or nil when raw is acceptable.
func (v *Validator) Validate(raw string) error {
	tok := Normalize(raw)

	field := "Loose"
	if v.strict {
		field = "Strict"
	}
	err := v.validate.StructPartial(input{Loose: tok, Strict: tok}, field)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Tag() == "required" {
			return ErrEmpty
		}
		return ErrMalformed
	}
	return err
}

// Normalize trims surrounding whitespace, which terminals and clipboards
// tend to add when a token is pasted.
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

// Mask hides the middle of a token so it can be written to logs.
func Mask(tok string) string {
	tok = Normalize(tok)
	if len(tok) <= 12 {
		return strings.Repeat("*", len(tok))
	}
	return tok[:7] + "…" + tok[len(tok)-4:]
}
