package store

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Codec turns a store value into the human-readable text a Persistent store
// writes, and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSON encodes with encoding/json.
	JSON Codec = jsonCodec{}

	// YAML encodes with gopkg.in/yaml.v3.
	YAML Codec = yamlCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type yamlCodec struct{}

func (yamlCodec) Name() string                       { return "yaml" }
func (yamlCodec) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// CodecByName returns the codec called name ("json" or "yaml").
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "json", "":
		return JSON, true
	case "yaml", "yml":
		return YAML, true
	default:
		return nil, false
	}
}
