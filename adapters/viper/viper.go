// Package viper loads layered configuration: defaults, an optional file
// under <path>/<environment>/, and RELAY_* environment variables. String
// values may carry {{.KEY}} placeholders resolved from a SecretSource.
package viper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var placeholder = regexp.MustCompile(`{{\s*\.[^}]+\s*}}`)

// SecretSource resolves placeholder keys.
type SecretSource interface {
	Fetch(key string) (string, error)
}

// EnvSource resolves placeholders from the process environment.
type EnvSource struct{}

// Fetch implements SecretSource.
func (EnvSource) Fetch(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", key)
	}
	return v, nil
}

// Viper wraps one viper instance.
type Viper struct {
	v          *viper.Viper
	configName string
	configType string
	configPath string // folder holding one sub-folder per environment
}

// NewViper creates the viper configuration using the environment name.
func NewViper(configName, configType, configPath string) *Viper {
	env := helpers.GetEnvironment()
	if helpers.IsEmpty(env) {
		env = "dev" // default environment
	}

	v := viper.New()
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Enable Viper to read environment variables
	v.AutomaticEnv()

	return &Viper{
		v:          v,
		configName: configName,
		configType: configType,
		configPath: filepath.Join(strings.TrimSuffix(configPath, "/"), env),
	}
}

// Instance returns the wrapped viper.
func (v *Viper) Instance() *viper.Viper {
	return v.v
}

// SetDefaults registers defaults; every key that environment variables may
// override must have one.
func (v *Viper) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		v.v.SetDefault(key, value)
	}
}

// InitialiseViper reads the configuration file. A missing file is not an
// error when optional is set.
func (v *Viper) InitialiseViper(optional bool) error {
	v.v.SetConfigName(v.configName)
	v.v.SetConfigType(v.configType)
	v.v.AddConfigPath(v.configPath)

	if err := v.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if optional && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading configuration file: %w", err)
	}
	return nil
}

// LoadDynamicConfig replaces {{.KEY}} placeholders in every string setting.
func (v *Viper) LoadDynamicConfig(source SecretSource) error {
	if source == nil {
		return errors.New("secret source cannot be nil in case of loading the dynamic configuration")
	}

	var errs []error
	for _, key := range v.v.AllKeys() {
		strValue, ok := v.v.Get(key).(string)
		if !ok || !placeholder.MatchString(strValue) {
			continue
		}
		updated, err := resolvePlaceholders(strValue, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		v.v.Set(key, updated)
	}
	return errors.Join(errs...)
}

func resolvePlaceholders(value string, source SecretSource) (string, error) {
	var errs []error
	updated := placeholder.ReplaceAllStringFunc(value, func(match string) string {
		// Trim the {{. and }} from the placeholder to get the key directly
		key := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(match[2:]), "."), "}}"))
		secret, err := source.Fetch(key)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return secret
	})
	return updated, errors.Join(errs...)
}

// UnmarshalConfig decodes the whole configuration into target. Durations
// accept "10s" style strings and string slices accept comma separated values.
func UnmarshalConfig[T any](v *Viper, target *T) error {
	if target == nil {
		return fmt.Errorf("target struct cannot be nil")
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.v.Unmarshal(target, hook); err != nil {
		return fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return nil
}
