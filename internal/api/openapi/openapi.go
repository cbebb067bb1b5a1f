// Пакет openapi — встроенный OpenAPI-контракт HTTP API.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

const (
	formatEmail = `^[^@\s]+@[^@\s]+\.[^@\s]+$`
	formatUUID  = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`
)

func init() {
	openapi3.DefineStringFormatValidator("email", openapi3.NewRegexpFormatValidator(formatEmail))
	openapi3.DefineStringFormatValidator("uuid", openapi3.NewRegexpFormatValidator(formatUUID))
}

// Raw возвращает исходный YAML контракта.
func Raw() []byte { return spec }

// Load загружает и валидирует контракт.
func Load(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI: %w", err)
	}
	return doc, nil
}
