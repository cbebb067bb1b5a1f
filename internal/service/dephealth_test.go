// dephealth_test.go — unit-тесты нормализации имён зависимостей и пути проверки Keycloak.
package service

import (
	"testing"
)

func TestNormalizeDepName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"простое имя", "keycloak-acme", "keycloak-acme"},
		{"верхний регистр", "Keycloak-ACME", "keycloak-acme"},
		{"пробелы и спецсимволы", "keycloak acme@prod.1", "keycloak-acme-prod-1"},
		{"множественные дефисы", "keycloak---acme", "keycloak-acme"},
		{"trim дефисов по краям", "--acme--", "acme"},
		{"начинается с цифры", "1st-realm", "dep-1st-realm"},
		{"пустая строка", "", "unknown"},
		{"только спецсимволы", "!!!", "unknown"},
		{"unicode заменяется", "keycloak-реалм", "keycloak"},
		{
			"обрезка до 63 символов без хвостового дефиса",
			"a-bcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-123456789",
			"a-bcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-12345678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDepName(tt.input); got != tt.expected {
				t.Errorf("NormalizeDepName(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestKeycloakHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"JWKS realm", "https://kc.example.com/realms/acme/protocol/openid-connect/certs", "/realms/acme/protocol/openid-connect/certs"},
		{"без path", "https://kc.example.com", "/health"},
		{"некорректный URL", "://bad", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keycloakHealthPath(tt.input); got != tt.expected {
				t.Errorf("keycloakHealthPath(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
			}
		})
	}
}
