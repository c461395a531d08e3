package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/repair/entity"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Engine 共享的校验器实例
func Engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		v.RegisterCustomTypeFunc(optionalValue, Optional[string]{})
		_ = v.RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
			return entity.JobStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
			_, err := ParseDateTime(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return entity.Role(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Struct 校验请求结构体，失败时返回 ValidationError
func Struct(req interface{}) error {
	err := Engine().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidField("body", err.Error())
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apperr.Validation(fields...)
}

// FromBindError 将 JSON 解析错误转换为 ValidationError
func FromBindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.InvalidField(typeErr.Field, "must be a "+typeErr.Type.String())
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return apperr.InvalidField("body", "invalid datetime: "+timeErr.Value)
	}
	return apperr.InvalidField("body", "malformed JSON: "+err.Error())
}

// ParseDateTime 接受 RFC 3339 时间或 YYYY-MM-DD 日期
func ParseDateTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("not an ISO-8601 datetime: %q", v)
	}
	return t, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid identifier"
	case "email":
		return "must be a valid email address"
	case "jobstatus":
		names := make([]string, 0, len(entity.AllJobStatuses))
		for _, s := range entity.AllJobStatuses {
			names = append(names, string(s))
		}
		return fmt.Sprintf("must be one of [%s]", strings.Join(names, " "))
	case "role":
		return "must be one of [ADMIN MANAGER TECHNICIAN RECEPTIONIST]"
	case "iso8601":
		return "must be an ISO-8601 datetime"
	}
	return fmt.Sprintf("failed the %q check", fe.Tag())
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
