package serializer

import (
	"slices"
	"sync"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/types"
)

type decodeFunc func(data []byte, codecType types.CodecType) (envelope.Message, error)

// Registry maps type tags to the Go types they decode into. It is filled at
// startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: map[string]decodeFunc{}}
}

// Register adds T under the tag returned by its MessageType method.
func Register[T envelope.Message](r *Registry) error {
	var zero T
	tag := zero.MessageType()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[tag]; exists {
		return blame.DuplicateRegistrationError(tag)
	}
	r.decoders[tag] = func(data []byte, codecType types.CodecType) (envelope.Message, error) {
		var v T
		if err := codec.DecodeInto(data, codecType, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil
}

// MustRegister is Register for program initialisation.
func MustRegister[T envelope.Message](r *Registry) {
	if err := Register[T](r); err != nil {
		panic(err)
	}
}

// Known reports whether tag is registered.
func (r *Registry) Known(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[tag]
	return ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

func (r *Registry) decoder(tag string) (decodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.decoders[tag]
	return fn, ok
}
