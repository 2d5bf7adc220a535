package config

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/smykla-labs/hookd/pkg/config"
)

// GenerateSchema reflects the configuration document into a JSON schema.
// Used by `hookd schema` so editors can validate hand-authored documents.
func GenerateSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}

	schema := reflector.Reflect(&config.Document{})
	schema.Title = "hookd configuration"
	schema.Description = "Configuration document for the hookd policy daemon"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}

	return out, nil
}
