package codec_test

import (
	"testing"

	"github.com/sideshow/apns2/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
)

type alert struct {
	Title    string
	SubTitle string
	Body     string `json:"body-text"`
	Internal string `json:"-"`
	Badge    int    `json:",omitempty"`
}

type envelope struct {
	Aps        alert
	CustomData map[string]string
}

func TestMarshal_CamelCase(t *testing.T) {
	t.Run("Untagged fields are camelCased", func(t *testing.T) {
		out, err := codec.Marshal(alert{Title: "Hi", SubTitle: "There", Body: "Body", Internal: "secret"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"Hi","subTitle":"There","body-text":"Body"}`, string(out))
	})

	t.Run("Nested structs and map keys", func(t *testing.T) {
		out, err := codec.Marshal(envelope{
			Aps:        alert{Title: "Hello", Badge: 3},
			CustomData: map[string]string{"MessageID": "42"},
		})
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"aps":{"title":"Hello","subTitle":"","body-text":"","badge":3},"customData":{"MessageID":"42"}}`,
			string(out))
	})

	t.Run("Marshaler types are untouched", func(t *testing.T) {
		p := payload.NewPayload().AlertTitle("Hello").Badge(1)
		want, err := p.MarshalJSON()
		require.NoError(t, err)

		out, err := codec.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(out))
	})

	t.Run("No HTML escaping", func(t *testing.T) {
		out, err := codec.Marshal(map[string]string{"body": "a<b>&c"})
		require.NoError(t, err)
		assert.Equal(t, `{"body":"a<b>&c"}`, string(out))
	})
}

func TestUnmarshal_CamelCase(t *testing.T) {
	var a alert
	err := codec.Unmarshal([]byte(`{"title":"Hi","subTitle":"There","body-text":"B"}`), &a)
	require.NoError(t, err)
	assert.Equal(t, "Hi", a.Title)
	assert.Equal(t, "There", a.SubTitle)
	assert.Equal(t, "B", a.Body)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "deviceToken", codec.CamelCase("DeviceToken"))
	assert.Equal(t, "already", codec.CamelCase("already"))
	assert.Equal(t, "", codec.CamelCase(""))
	assert.Equal(t, "iD", codec.CamelCase("ID"))
}
