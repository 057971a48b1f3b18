package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/medistore/backend/internal/interfaces/http/dto"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// fixed messages per validator tag; tags with a parameter are handled in
// fieldMessage
var tagMessages = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"phone":    "Must be an E.164 phone number",
	"uuid":     "Invalid UUID format",
	"url":      "Invalid URL format",
	"dive":     "Invalid list entry",
}

// SetupValidator makes gin's validator report JSON (or form) field names
// and registers the "phone" tag for E.164 numbers.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return e164.MatchString(fl.Field().String())
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

func fieldMessage(e validator.FieldError) string {
	if msg, ok := tagMessages[e.Tag()]; ok {
		return msg
	}
	unit := ""
	if e.Kind() == reflect.String {
		unit = " characters"
	}
	switch e.Tag() {
	case "min":
		return "Must be at least " + e.Param() + unit
	case "max":
		return "Must be at most " + e.Param() + unit
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	}
	return "Invalid value"
}

// HandleValidationError aborts with 400 for a binding error, listing every
// invalid field, or 413 when the body hit the size limit mid-read.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortTooLarge(c)
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeBadRequest, "Malformed request body", requestID))
		return
	}
	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewErrorResponse(dto.ErrCodeValidation, "Request validation failed", requestID, details...))
}
