// Package codec provides the JSON encoding used for APNs request bodies and
// provider token segments.
//
// Exported struct fields without an explicit json name are written in camelCase
// (first letter lowercased), which is the shape the APNs payload schema expects.
// Explicit tag names, map keys and types implementing json.Marshaler are left
// exactly as they are.
package codec

import (
	"strings"
	"unicode"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var api = newAPI()

func newAPI() jsoniter.API {
	cfg := jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	cfg.RegisterExtension(&camelCaseExtension{})
	return cfg
}

// Marshal encodes v using camelCase property names.
func Marshal(v interface{}) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes data into v, matching camelCase property names.
func Unmarshal(data []byte, v interface{}) error {
	return api.Unmarshal(data, v)
}

type camelCaseExtension struct {
	jsoniter.DummyExtension
}

func (e *camelCaseExtension) UpdateStructDescriptor(desc *jsoniter.StructDescriptor) {
	for _, binding := range desc.Fields {
		name := binding.Field.Name()
		if name == "" || !unicode.IsUpper(rune(name[0])) {
			continue
		}
		if tag, ok := binding.Field.Tag().Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" || tagName != "" {
				continue
			}
		}
		camel := CamelCase(name)
		binding.ToNames = []string{camel}
		binding.FromNames = []string{camel}
	}
}

// CamelCase lowercases the first letter of name.
func CamelCase(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}
