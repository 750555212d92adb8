package blame

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/abhissng/relay/utils/types"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

//go:embed error_definition.json
var embeddedBlameData []byte

// BlameDefinition represents a blame definition.
type BlameDefinition struct {
	ReasonCode   string `json:"ReasonCode"`
	Code         string `json:"Code"`
	Message      string `json:"Message"`
	Description  string `json:"Description"`
	Component    string `json:"Component"`
	ResponseType string `json:"ResponseType"`
	Retryable    *bool  `json:"Retryable,omitempty"`
}

// BlameManager holds the error catalogue keyed by error code.
type BlameManager struct {
	BlameDefinitions map[types.ErrorCode]*Error
}

var (
	localBlameManager = &BlameManager{BlameDefinitions: map[types.ErrorCode]*Error{}}
	localBlameOnce    sync.Once
)

// getLocalBlameManager returns the catalogue embedded in the library, loading it on first use.
func getLocalBlameManager() *BlameManager {
	localBlameOnce.Do(func() {
		if err := InitLocalBlameManager(helpers.NewBundle(helpers.GetDefaultLanguageTag())); err != nil {
			helpers.Println(constant.ERROR, "Error initialising local blame definitions: ", err)
		}
	})
	return localBlameManager
}

// InitLocalBlameManager (re)loads the embedded definitions using the given bundle.
func InitLocalBlameManager(bundle *i18n.Bundle) error {
	var definitions []BlameDefinition
	if err := json.Unmarshal(embeddedBlameData, &definitions); err != nil {
		return fmt.Errorf("failed to unmarshal local blame definition file: %w", err)
	}
	localBlameManager.BlameDefinitions = buildDefinitions(definitions, bundle, nil)
	return nil
}

func buildDefinitions(definitions []BlameDefinition, bundle *i18n.Bundle, into map[types.ErrorCode]*Error) map[types.ErrorCode]*Error {
	if into == nil {
		into = make(map[types.ErrorCode]*Error, len(definitions))
	}
	for index, def := range definitions {
		if helpers.IsEmpty(def.ReasonCode) {
			def.ReasonCode = helpers.GenerateReasonCode(ReasonCodeNameSpace, ReasonCodeBase+index)
		}
		e := NewError(def.ReasonCode, types.ErrorCode(def.Code), def.Message, def.Description).
			WithComponent(types.ComponentErrorType(def.Component)).
			WithResponseType(types.ResponseErrorType(def.ResponseType)).
			WithBundle(bundle)
		if def.Retryable != nil {
			e = e.WithRetryable(*def.Retryable)
		}
		into[types.ErrorCode(def.Code)] = e
	}
	return into
}

// RetrieveBlameCache returns a private copy of the definition for errorCode.
func (bw *BlameManager) RetrieveBlameCache(errorCode types.ErrorCode) *Error {
	if cache, ok := bw.BlameDefinitions[errorCode]; ok {
		return cache.clone()
	}
	return NewBasicError(errorCode)
}

// FetchBlameForError fetches a blame definition for the given error code.
func (bw *BlameManager) FetchBlameForError(errorCode types.ErrorCode, opts ...BlameOption) Blame {
	e := bw.RetrieveBlameCache(errorCode)
	options := NewBlameOptions()
	for _, opt := range opts {
		opt(options)
	}
	e.WithFields(options.Fields)
	for _, cause := range options.Causes {
		e.WithCause(cause)
	}
	return e
}

// NewBlameManager creates a catalogue from the embedded definitions plus an optional JSON file.
func NewBlameManager(opt *BlameManagerOption) (*BlameManager, error) {
	if opt.Bundle == nil {
		opt.Bundle = helpers.NewBundle(helpers.ParseLanguageTag(opt.LanguageTag))
	}

	var local []BlameDefinition
	if err := json.Unmarshal(embeddedBlameData, &local); err != nil {
		return nil, fmt.Errorf("failed to unmarshal local blame definition file: %w", err)
	}
	definitions := buildDefinitions(local, opt.Bundle, nil)

	if !helpers.IsEmpty(opt.LocaleDir) {
		file, err := os.Open(filepath.Clean(opt.LocaleDir))
		if err != nil {
			return nil, fmt.Errorf("failed to open error definitions file: %w", err)
		}
		defer func() {
			if err := file.Close(); err != nil {
				helpers.Println(constant.ERROR, "Error closing file: ", err)
			}
		}()

		var extra []BlameDefinition
		if err := json.NewDecoder(file).Decode(&extra); err != nil {
			return nil, fmt.Errorf("failed to decode error definitions: %w", err)
		}
		definitions = buildDefinitions(extra, opt.Bundle, definitions)
	}

	return &BlameManager{BlameDefinitions: definitions}, nil
}

// BlameOption defines an option for modifying Blame creation.
type BlameOption func(*BlameOptions)

// BlameOptions holds options for creating Blame instances.
type BlameOptions struct {
	Fields map[string]any
	Causes []error
}

// NewBlameOptions creates a new BlameOptions instance.
func NewBlameOptions() *BlameOptions {
	return &BlameOptions{
		Fields: make(map[string]any),
		Causes: make([]error, 0),
	}
}

// WithField adds a single field to the Blame.
func WithField(key string, value any) BlameOption {
	return func(opts *BlameOptions) {
		opts.Fields[key] = value
	}
}

// WithFields takes a map[string]any and applies all key-value pairs to BlameOptions.
func WithFields(fields map[string]any) BlameOption {
	return func(opts *BlameOptions) {
		for key, value := range fields {
			opts.Fields[key] = value
		}
	}
}

// WithCauses adds causes to the Blame.
func WithCauses(causes ...error) BlameOption {
	return func(opts *BlameOptions) {
		for _, cause := range causes {
			if cause != nil {
				opts.Causes = append(opts.Causes, cause)
			}
		}
	}
}

// BlameManagerOption holds configuration
type BlameManagerOption struct {
	LocaleDir   string
	LanguageTag string
	Bundle      *i18n.Bundle
}

// Option defines a function that configures BlameManager
type Option func(*BlameManagerOption)

// WithLocaleDir sets the path of an extra definitions file
func WithLocaleDir(dir string) Option {
	return func(bw *BlameManagerOption) {
		bw.LocaleDir = dir
	}
}

// WithLanguageTag sets the language tag
func WithLanguageTag(tag string) Option {
	return func(bw *BlameManagerOption) {
		bw.LanguageTag = tag
	}
}

// WithBundle sets the bundle
func WithBundle(bundle *i18n.Bundle) Option {
	return func(bw *BlameManagerOption) {
		bw.Bundle = bundle
	}
}

// NewBlameManagerOption applies opts over the defaults.
func NewBlameManagerOption(opts ...Option) *BlameManagerOption {
	bw := &BlameManagerOption{
		LanguageTag: helpers.GetDefaultLanguageTag().String(),
	}
	for _, opt := range opts {
		opt(bw)
	}
	return bw
}
