package keys

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Pair holds the RSA key material used to sign and verify tokens. The
// private key signs, the public key verifies; rotation happens out of
// band by replacing the PEM files and restarting.
type Pair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Load reads a PEM-encoded RSA key pair from disk.
func Load(privateKeyPath, publicKeyPath string) (*Pair, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Pair{Private: privateKey, Public: publicKey}, nil
}
