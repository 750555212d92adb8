package codec

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/abhissng/relay/utils/types"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedCodec is returned for formats this package does not know.
var ErrUnsupportedCodec = errors.New("unsupported encoding format")

// Encode serializes data based on the codec type.
func Encode[T any](data T, codecType types.CodecType) ([]byte, error) {
	switch codecType {
	case JSON:
		return json.Marshal(data)
	case MsgPack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		// field names follow the json tags so every format shares one schema
		enc.SetCustomStructTag("json")
		if err := enc.Encode(data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case YAML:
		return yaml.Marshal(data)
	default:
		return nil, ErrUnsupportedCodec
	}
}

// DecodeInto deserializes data into target, which must be a pointer.
func DecodeInto(data []byte, codecType types.CodecType, target any) error {
	switch codecType {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		return dec.Decode(target)
	case MsgPack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		return dec.Decode(target)
	case YAML:
		return yaml.Unmarshal(data, target)
	default:
		return ErrUnsupportedCodec
	}
}

// Decode deserializes data based on the codec type.
func Decode[T any](data []byte, codecType types.CodecType) (T, error) {
	var result T
	err := DecodeInto(data, codecType, &result)
	return result, err
}
