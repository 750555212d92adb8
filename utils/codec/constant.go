package codec

import "github.com/abhissng/relay/utils/types"

// Supported body formats.
const (
	JSON    types.CodecType = "json"
	MsgPack types.CodecType = "msgpack"
	YAML    types.CodecType = "yaml"
)

// ContentType returns the MIME type carried on the wire for a codec.
func ContentType(codecType types.CodecType) string {
	switch codecType {
	case MsgPack:
		return "application/msgpack"
	case YAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// FromContentType maps a MIME type back to a codec. Unknown values fall back to JSON.
func FromContentType(contentType string) types.CodecType {
	switch contentType {
	case "application/msgpack", "application/x-msgpack":
		return MsgPack
	case "application/yaml", "application/x-yaml":
		return YAML
	default:
		return JSON
	}
}
