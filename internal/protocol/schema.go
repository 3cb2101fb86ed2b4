package protocol

import (
	"bytes"
	"embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// CompileSchema compiles one of the embedded message schemas
// (hello.schema.json, req.schema.json, res.schema.json).
func CompileSchema(name string) (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return c.Compile(name)
}

// MustCompileSchema is CompileSchema for package-level initialization.
func MustCompileSchema(name string) *jsonschema.Schema {
	s, err := CompileSchema(name)
	if err != nil {
		panic("protocol: " + name + ": " + err.Error())
	}
	return s
}
