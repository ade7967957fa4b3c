// Package crypto signs and verifies decisions with ed25519 keys stored as PEM.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"
)

// ErrKeyExists keygen never overwrites an existing key file
var ErrKeyExists = errors.New("key file already exists")

// GenerateKeys writes a new ed25519 keypair. The private key is 0600.
func GenerateKeys(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	if err := writePEM(privateKeyPath, privateKeyType, privateKey, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := writePEM(publicKeyPath, publicKeyType, publicKey, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

// LoadPrivateKey from PEM
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	der, err := readPEM(path, privateKeyType)
	if err != nil {
		return nil, err
	}
	if len(der) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size")
	}
	return ed25519.PrivateKey(der), nil
}

// LoadPublicKey from PEM
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	der, err := readPEM(path, publicKeyType)
	if err != nil {
		return nil, err
	}
	if len(der) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size")
	}
	return ed25519.PublicKey(der), nil
}

func readPEM(path, want string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if block.Type != want {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", want, block.Type)
	}
	return block.Bytes, nil
}

// Sign data with the key at privateKeyPath
func Sign(data []byte, privateKeyPath string) ([]byte, error) {
	key, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, data), nil
}

// Verify data against signature with the key at publicKeyPath
func Verify(data []byte, signature []byte, publicKeyPath string) (bool, error) {
	key, err := LoadPublicKey(publicKeyPath)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(key, data, signature), nil
}
