package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// registerValidation 让 gin 的校验器认识 decimal.Decimal，并用 json tag 作为字段名
func registerValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	})
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "required_if":
		return fmt.Sprintf("The %s field is required for this payment method.", field)
	case "gte", "min":
		return fmt.Sprintf("The %s must be at least %s.", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("The %s may not be greater than %s.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}

// bind 解析并校验请求体；失败时已写回响应，调用方直接 return
func bind(c *gin.Context, req interface{}, b binding.Binding) bool {
	err := c.ShouldBindWith(req, b)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if _, exists := fields[fe.Field()]; !exists {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
		response.ValidationError(c, fields)
		return false
	}
	response.ParamError(c, "Malformed request")
	return false
}

func bindJSON(c *gin.Context, req interface{}) bool {
	return bind(c, req, binding.JSON)
}

func bindQuery(c *gin.Context, req interface{}) bool {
	return bind(c, req, binding.Query)
}
