package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"drumcoder/pkg/contract"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// validateSchema 以内嵌 JSON Schema 检查结构与取值范围。
func validateSchema(cfg Config) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("%w: schema: %v", contract.ErrConfiguration, err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(cfg))
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", contract.ErrConfiguration, strings.Join(msgs, "; "))
}
