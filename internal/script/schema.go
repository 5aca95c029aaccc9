package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed script.schema.json
var schemaJSON []byte

const schemaURL = "https://keytrack.invalid/schema/script.schema.json"

var (
	compileOnce sync.Once
	compiled    struct {
		script *jsonschema.Schema
		step   *jsonschema.Schema
	}
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add script schema: %v", err))
	}
	compiled.script = compiler.MustCompile(schemaURL)
	compiled.step = compiler.MustCompile(schemaURL + "#/$defs/step")
}

func scriptSchema() *jsonschema.Schema {
	compileOnce.Do(compileSchemas)
	return compiled.script
}

func stepSchema() *jsonschema.Schema {
	compileOnce.Do(compileSchemas)
	return compiled.step
}

// Schema returns the embedded JSON schema for scripts.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
