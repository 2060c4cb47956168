package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultLimit 默认分页大小
	DefaultLimit = 100
)

var (
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
	// ErrValidation 参数校验失败
	ErrValidation = errors.New("validation failed")
)

// ValidationError 参数校验错误，Field 为查询参数名
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MovieFilter 电影列表筛选条件，所有条件为 AND 关系
type MovieFilter struct {
	Genre       string `form:"genre"`
	Actor       string `form:"actor"`
	Director    string `form:"director"`
	ReleaseYear *int   `form:"release_year"`
	Search      string `form:"search"`
}

// ActorFilter 演员列表筛选条件
type ActorFilter struct {
	MovieID *uint  `form:"movie_id" validate:"omitempty,gt=0"`
	Genre   string `form:"genre"`
	Search  string `form:"search"`
}

// Page 分页参数
type Page struct {
	Skip  int `form:"skip,default=0" validate:"gte=0"`
	Limit int `form:"limit" validate:"gt=0"` // 缺省值由调用方给出
}

// DefaultPage 返回默认分页
func DefaultPage() Page {
	return Page{Skip: 0, Limit: DefaultLimit}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用查询参数名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate 校验分页参数
func (p Page) Validate() error {
	return validateStruct(p)
}

// Validate 校验电影筛选条件
func (f MovieFilter) Validate() error {
	return validateStruct(f)
}

// Validate 校验演员筛选条件
func (f ActorFilter) Validate() error {
	return validateStruct(f)
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}

// IsEmpty 是否没有任何筛选条件
func (f MovieFilter) IsEmpty() bool {
	return f.Genre == "" && f.Actor == "" && f.Director == "" && f.ReleaseYear == nil && f.Search == ""
}

// Trim 去掉首尾空白
func (f MovieFilter) Trim() MovieFilter {
	f.Genre = strings.TrimSpace(f.Genre)
	f.Actor = strings.TrimSpace(f.Actor)
	f.Director = strings.TrimSpace(f.Director)
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Trim 去掉首尾空白
func (f ActorFilter) Trim() ActorFilter {
	f.Genre = strings.TrimSpace(f.Genre)
	f.Search = strings.TrimSpace(f.Search)
	return f
}
