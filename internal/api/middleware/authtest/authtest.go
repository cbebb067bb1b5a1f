// Пакет authtest — тестовый издатель JWT с JWKS в памяти.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// KeyID — kid ключа тестового издателя.
const KeyID = "test-key-rb"

// Issuer подписывает токены RS256 и отдаёт keyfunc с их публичным ключом.
type Issuer struct {
	URL string
	key *rsa.PrivateKey
	kf  keyfunc.Keyfunc
}

// New создаёт издателя с новым RSA-ключом.
func New(t testing.TB, issuerURL string) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(JWKSetJSON(&key.PublicKey, KeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return &Issuer{URL: issuerURL, key: key, kf: kf}
}

// Keyfunc возвращает keyfunc с публичным ключом издателя.
func (i *Issuer) Keyfunc() keyfunc.Keyfunc { return i.kf }

// Key возвращает приватный ключ.
func (i *Issuer) Key() *rsa.PrivateKey { return i.key }

// JWKSetJSON строит JWKS JSON из публичного RSA-ключа.
func JWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// Claims — claims пользователя Keycloak.
type Claims struct {
	Subject     string
	Username    string
	Email       string
	Verified    bool
	AZP         string
	ClientRoles map[string][]string
	// Expired — exp в прошлом.
	Expired bool
}

// Token подписывает токен с claims c.
func (i *Issuer) Token(t testing.TB, c Claims) string {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	if c.Expired {
		exp = time.Now().Add(-time.Hour)
	}

	claims := jwt.MapClaims{
		"iss": i.URL,
		"exp": jwt.NewNumericDate(exp),
		"nbf": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Username != "" {
		claims["preferred_username"] = c.Username
	}
	if c.Email != "" {
		claims["email"] = c.Email
		claims["email_verified"] = c.Verified
	}
	if c.AZP != "" {
		claims["azp"] = c.AZP
	}
	if len(c.ClientRoles) > 0 {
		access := make(map[string]any, len(c.ClientRoles))
		for clientID, roles := range c.ClientRoles {
			access[clientID] = map[string]any{"roles": roles}
		}
		claims["resource_access"] = access
	}
	return i.Sign(t, claims)
}

// Sign подписывает произвольные claims ключом издателя.
func (i *Issuer) Sign(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID
	s, err := token.SignedString(i.key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
