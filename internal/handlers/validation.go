package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/services"
	appErrors "github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/response"
	appValidator "github.com/charlesng35/skybook/pkg/validator"
)

// bindJSON binds the JSON payload into dest. Field rules are enforced by the
// services so the same checks apply to every caller.
// When binding fails, an error response is automatically written and false is returned.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

// bindQuery binds query parameters into dest, writing a 400 on malformed input.
func bindQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid query parameters"))
		return false
	}
	return true
}

// serviceError maps service failures onto API errors.
func serviceError(err error) error {
	var appErr *appErrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, services.ErrInvalidInput):
		var ve appValidator.ValidationErrors
		if errors.As(err, &ve) {
			return appErrors.NewBadRequest(formatValidationError(ve)).WithDetails(ve.Fields())
		}
		return appErrors.NewBadRequest(strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": "))
	case errors.Is(err, services.ErrUnknownRoute):
		return appErrors.ErrNotFound.WithDetails(strings.TrimPrefix(err.Error(), services.ErrUnknownRoute.Error()+": "))
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	var ve appValidator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "iata":
			messages = append(messages, fmt.Sprintf("%s must be a three-letter airport code", field))
		case "airline":
			messages = append(messages, fmt.Sprintf("%s must be two-character airline codes", field))
		case "datetime":
			messages = append(messages, fmt.Sprintf("%s must be a date formatted %s", field, failure.Param))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(failure.Param, " ", ", ")))
		case "nefield":
			messages = append(messages, fmt.Sprintf("%s must differ from %s", field, prettifyFieldName(failure.Param)))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, failure.Param))
		case "max", "lte", "ltefield":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, prettifyFieldName(failure.Param)))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, appErrors.NewBadRequest(fmt.Sprintf("%s must be an integer", key))
	}
	return parsed, nil
}
