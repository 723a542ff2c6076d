package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names a management API payload shape.
type Schema string

const (
	QueueDetails  Schema = "queue"
	QueueBindings Schema = "bindings"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

var (
	once    sync.Once
	schemas map[Schema]*jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	compiled := map[Schema]*jsonschema.Schema{}
	for _, name := range []Schema{QueueDetails, QueueBindings} {
		file := "schema/" + string(name) + ".schema.json"
		b, err := schemaFS.ReadFile(file)
		if err != nil {
			loadErr = err
			return
		}
		url := "mem://" + file
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			loadErr = err
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			loadErr = err
			return
		}
		compiled[name] = s
	}
	schemas = compiled
}

// Payload validates a raw JSON document against the named schema.
func Payload(name Schema, raw []byte) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("validate: unknown schema %q", name)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return s.Validate(v)
}
