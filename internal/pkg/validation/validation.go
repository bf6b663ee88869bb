package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/structgen/backend/internal/model"
)

// BoundaryCodeTag 节点边界条件必须是 f/p/r/x
const BoundaryCodeTag = "boundarycode"

var (
	validate *validator.Validate
	once     sync.Once
)

// RegisterCustom 在给定引擎上注册自定义规则
func RegisterCustom(v *validator.Validate) error {
	return v.RegisterValidation(BoundaryCodeTag, boundaryCode)
}

// RegisterGin 注册到 gin 的默认 binding 引擎
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground validator")
	}
	return RegisterCustom(v)
}

func boundaryCode(fl validator.FieldLevel) bool {
	return model.BoundaryCode(fl.Field().String()).Valid()
}

// Validator 与 gin 共用 binding 标签的独立实例，供非 HTTP 入口使用
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		if err := RegisterCustom(validate); err != nil {
			panic(err)
		}
	})
	return validate
}

// ValidateStruct validates a struct based on its binding tags
func ValidateStruct(s any) error {
	if err := Validator().Struct(s); err != nil {
		return FormatError(err)
	}
	return nil
}

// FormatError formats validation errors into readable messages
func FormatError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	field = strings.ToLower(field)

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case BoundaryCodeTag:
		return fmt.Sprintf("%s must be one of f, p, r, x (got %q)", field, e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
