package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"orgstock/internal/common"
	"orgstock/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo's Validate hook.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate returns a VALIDATION_ERROR whose details map each failing field to the rule it broke.
func (v *RequestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return common.NewValidation("body", err.Error())
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return &common.DomainError{Kind: common.KindValidation, Message: "Validation failed", Details: details}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return common.NewValidation("body", "malformed request body")
	}
	return c.Validate(req)
}

func tenant(c echo.Context) (orgID, userID uuid.UUID, err error) {
	orgID, userID, ok := middleware.TenantFrom(c)
	if !ok {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}
	return orgID, userID, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := common.ParseUUIDParam(c.Param("id"), "id")
	if err != nil {
		return uuid.Nil, common.NewValidation("id", err.Error())
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := common.ParseUUIDParam(raw, name)
	if err != nil {
		return nil, common.NewValidation(name, err.Error())
	}
	return &id, nil
}

// dateRange reads optional RFC3339 start_date and end_date query parameters.
func dateRange(c echo.Context) (start, end *time.Time, err error) {
	var s, e time.Time
	if bindErr := echo.QueryParamsBinder(c).
		Time("start_date", &s, time.RFC3339).
		Time("end_date", &e, time.RFC3339).
		BindError(); bindErr != nil {
		var be *echo.BindingError
		field := "start_date"
		if errors.As(bindErr, &be) && len(be.Field) > 0 {
			field = be.Field
		}
		return nil, nil, common.NewValidation(field, "must be an RFC3339 timestamp")
	}
	if !s.IsZero() {
		start = &s
	}
	if !e.IsZero() {
		end = &e
	}
	return start, end, nil
}

func pagination(c echo.Context) (limit, offset int, err error) {
	if bindErr := echo.QueryParamsBinder(c).Int("limit", &limit).Int("offset", &offset).BindError(); bindErr != nil {
		return 0, 0, common.NewValidation("pagination", "limit and offset must be integers")
	}
	limit, offset, err = common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return 0, 0, common.NewValidation("offset", err.Error())
	}
	return limit, offset, nil
}

// respondError renders domain failures with their mapped status and lets echo handle its own HTTP errors.
func respondError(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	return common.SendDomainError(c, err)
}
