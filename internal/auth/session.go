// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey sign and verify session tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	tokenExpire time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Tokens issued before a
// restart stop verifying; clients re-authenticate.
func Init(expire time.Duration) error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	tokenExpire = expire
	return nil
}

// InitFromPath loads an ed25519 key pair from disk so tokens survive
// restarts.
func InitFromPath(privatePath, publicPath string, expire time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenExpire = expire
	return nil
}

// CreateJWT issues a signed session token with "sub" = userID and "name"
// carrying the display name. A zero expire setting omits the exp claim.
func CreateJWT(userID int64, name string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"name": name,
	}
	if tokenExpire > 0 {
		claims["exp"] = time.Now().Add(tokenExpire).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns the user id and display name.
func AuthenticateJWT(tokenString string) (int64, string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return 0, "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, "", fmt.Errorf("missing sub in jwt")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed sub in jwt: %w", err)
	}
	name, _ := claims["name"].(string)
	return userID, name, nil
}
