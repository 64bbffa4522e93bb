package middlewares

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field names by their json tag so validation errors line up with
	// what the client actually sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// BindAndValidate parses the request body into dst and validates it.
// Returns a 400 fiber error for parse failures and validator.ValidationErrors
// (handled centrally as 422) for validation issues.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return validate.Struct(dst)
}

// ValidateStruct validates any struct value using the shared validator.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
