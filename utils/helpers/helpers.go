package helpers

import (
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/types"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

// IsEmpty checks if the given value represents an empty or zero value.
// Strings containing only whitespace count as empty.
func IsEmpty[T any](value T) bool {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return IsEmpty(v.Elem().Interface())
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Map, reflect.Slice, reflect.Chan:
		return v.IsNil() || v.Len() == 0
	case reflect.Func:
		return v.IsNil()
	}
	return v.IsZero()
}

// FetchErrorStrings returns a slice of strings containing the error messages
func FetchErrorStrings(errs []error) []string {
	errStrings := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			errStrings = append(errStrings, err.Error())
		}
	}
	return errStrings
}

// FetchErrorStack returns a string containing the error messages separated by semicolons
func FetchErrorStack(errs []error) string {
	return strings.Join(FetchErrorStrings(errs), "; ")
}

// FetchHTTPStatusCode returns the HTTP status code associated with the response type
func FetchHTTPStatusCode(response types.ResponseErrorType) int {
	switch response {
	case constant.BadRequest:
		return http.StatusBadRequest
	case constant.NotFound:
		return http.StatusNotFound
	case constant.AlreadyExists:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// IsProdEnvironment returns true if Environment is set to "prod" or "production"
func IsProdEnvironment() bool {
	switch GetEnvironment() {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// GetEnvironment reads the environment from the process env first, then the loaded config.
func GetEnvironment() string {
	if env := os.Getenv(constant.Environment); env != "" {
		return env
	}
	if mode := os.Getenv(constant.RunMode); mode != "" {
		return mode
	}
	return viper.GetString("service.environment")
}

// GetServiceName returns the service name from the loaded config.
func GetServiceName() string {
	return viper.GetString(constant.Service)
}

// GetDefaultLanguageTag returns the default language tag
func GetDefaultLanguageTag() types.LanguageTag {
	return types.LanguageTag(language.English)
}

// ParseLanguageTag parses a string into a language.Tag and returns a LanguageTag
func ParseLanguageTag(tagString string) types.LanguageTag {
	if tagString == "" {
		return GetDefaultLanguageTag()
	}
	parsedTag, err := language.Parse(tagString)
	if err != nil {
		return GetDefaultLanguageTag()
	}
	return types.LanguageTag(parsedTag)
}

// NewBundle creates a new i18n.Bundle
func NewBundle(tag types.LanguageTag) *i18n.Bundle {
	if types.ToLanguageTag(tag) == language.Und {
		tag = GetDefaultLanguageTag()
	}
	return i18n.NewBundle(types.ToLanguageTag(tag))
}

// GenerateReasonCode generates a namespaced reason code as a string
func GenerateReasonCode(namespace string, code int) string {
	if IsEmpty(namespace) {
		return strconv.Itoa(code)
	}
	return strings.ToUpper(namespace) + "-" + strconv.Itoa(code)
}

// GetIsLogRotationEnabled returns true if log rotation is enabled
func GetIsLogRotationEnabled() bool {
	enableRotation, _ := strconv.ParseBool(os.Getenv(constant.LogRotationEnabled))
	return enableRotation
}

func colorFor(mode types.LogMode) string {
	switch mode {
	case constant.INFO:
		return constant.GreenColor
	case constant.WARN:
		return constant.YellowColor
	case constant.ERROR, constant.FATAL:
		return constant.RedColor
	case constant.DEBUG:
		return constant.BlueColor
	default:
		return constant.ResetColor
	}
}

// Println prints a message with the specified log mode and color.
// It is used before a structured logger exists.
func Println(mode types.LogMode, args ...any) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Println(colorFor(mode) + "[" + timestamp + "] [" + mode.String() + "] " + fmt.Sprint(args...) + constant.ResetColor)
	if mode == constant.FATAL {
		os.Exit(1)
	}
}

// TailCallerEncoder encodes the caller as the last n path segments plus line.
func TailCallerEncoder(n int) zapcore.CallerEncoder {
	if n <= 0 {
		return zapcore.ShortCallerEncoder
	}
	return func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		path := caller.File
		sep := 0
		i := len(path) - 1
		for ; i >= 0; i-- {
			if path[i] == '/' || path[i] == '\\' {
				sep++
				if sep == n {
					break
				}
			}
		}
		tail := strings.ReplaceAll(path[i+1:], "\\", "/")
		enc.AppendString(tail + ":" + strconv.Itoa(caller.Line))
	}
}
