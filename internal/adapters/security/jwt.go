package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vaultline/trustengine/internal/ports"
)

type recoveryTokenClaims struct {
	SessionID string `json:"session_id"`
	BurnTxID  string `json:"burn_tx_id"`
	Method    string `json:"method"`
	jwt.RegisteredClaims
}

// JWTSigner issues RS256 recovery session tokens. The token is opaque to
// this service's callers; it only needs to round-trip the recovery
// session identity between the start and complete steps.
type JWTSigner struct {
	keyID      string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewJWTSigner(keyID, privatePEM, publicPEM string) (*JWTSigner, error) {
	if keyID == "" {
		return nil, fmt.Errorf("jwt key id is required")
	}

	privateKey, err := parseRSAPrivateKey([]byte(privatePEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt private key: %w", err)
	}
	publicKey, err := parseRSAPublicKey([]byte(publicPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}

	return &JWTSigner{keyID: keyID, privateKey: privateKey, publicKey: publicKey}, nil
}

// NewEphemeralJWTSigner generates a throwaway RSA key pair. Tokens do not
// survive a restart; intended for local and dev runtimes only.
func NewEphemeralJWTSigner(keyID string) (*JWTSigner, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral jwt key: %w", err)
	}
	if keyID == "" {
		keyID = "ephemeral-" + uuid.NewString()
	}
	return &JWTSigner{
		keyID:      keyID,
		privateKey: key,
		publicKey:  &key.PublicKey,
	}, nil
}

func (s *JWTSigner) Sign(claims ports.RecoveryClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, recoveryTokenClaims{
		SessionID: claims.SessionID.String(),
		BurnTxID:  claims.BurnTxID.String(),
		Method:    claims.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.SessionID.String(),
		},
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign recovery token: %w", err)
	}
	return signed, nil
}

func (s *JWTSigner) ParseAndValidate(tokenString string) (ports.RecoveryClaims, error) {
	var claims recoveryTokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.publicKey, nil
	})
	if err != nil {
		return ports.RecoveryClaims{}, fmt.Errorf("parse recovery token: %w", err)
	}
	if !token.Valid {
		return ports.RecoveryClaims{}, fmt.Errorf("recovery token is invalid")
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.RecoveryClaims{}, fmt.Errorf("recovery token session id: %w", err)
	}
	burnTxID, err := uuid.Parse(claims.BurnTxID)
	if err != nil {
		return ports.RecoveryClaims{}, fmt.Errorf("recovery token burn tx id: %w", err)
	}

	out := ports.RecoveryClaims{
		SessionID: sessionID,
		BurnTxID:  burnTxID,
		UserID:    claims.Subject,
		Method:    claims.Method,
		KeyID:     s.keyID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

func parseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return key, nil
}

var _ ports.RecoveryTokenSigner = (*JWTSigner)(nil)
