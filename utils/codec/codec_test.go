package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/utils/codec"
)

type dish struct {
	Order int    `json:"order" yaml:"order"`
	Food  []int  `json:"food" yaml:"food"`
	Guest string `json:"guest" yaml:"guest"`
}

func TestEncodeDecodeFormats(t *testing.T) {
	in := dish{Order: 3, Food: []int{1, 2}, Guest: "7"}
	for _, format := range []string{"json", "msgpack", "yaml"} {
		t.Run(format, func(t *testing.T) {
			ct := codec.FromContentType(codec.ContentType(codec.JSON))
			switch format {
			case "msgpack":
				ct = codec.MsgPack
			case "yaml":
				ct = codec.YAML
			}
			raw, err := codec.Encode(in, ct)
			require.NoError(t, err)

			out, err := codec.Decode[dish](raw, ct)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestMsgPackUsesJSONNames(t *testing.T) {
	raw, err := codec.Encode(dish{Order: 1}, codec.MsgPack)
	require.NoError(t, err)

	asMap, err := codec.Decode[map[string]any](raw, codec.MsgPack)
	require.NoError(t, err)
	assert.Contains(t, asMap, "order")
}

func TestUnsupportedCodec(t *testing.T) {
	_, err := codec.Encode(1, "xml")
	assert.ErrorIs(t, err, codec.ErrUnsupportedCodec)
	assert.ErrorIs(t, codec.DecodeInto(nil, "xml", new(int)), codec.ErrUnsupportedCodec)
}

func TestContentTypeMapping(t *testing.T) {
	assert.Equal(t, codec.MsgPack, codec.FromContentType(codec.ContentType(codec.MsgPack)))
	assert.Equal(t, codec.YAML, codec.FromContentType(codec.ContentType(codec.YAML)))
	assert.Equal(t, codec.JSON, codec.FromContentType("text/plain"))
}
