package federation

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InstanceKey is the key pair this server signs fetches and instance
// level deliveries with.
type InstanceKey struct {
	Private ed25519.PrivateKey
	Public  string // base64 SPKI, as published in the instance metadata
}

// LoadInstanceKey reads the base64 PKCS#8 key stored at path, generating
// and writing a new one when the file does not exist.
func LoadInstanceKey(path string) (*InstanceKey, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return createInstanceKey(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read instance key: %w", err)
	}

	private, err := ParsePrivateKey(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, fmt.Errorf("instance key %s: %w", path, err)
	}
	public, err := EncodePublicKey(private.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &InstanceKey{Private: private, Public: public}, nil
}

func createInstanceKey(path string) (*InstanceKey, error) {
	public, private, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(private+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("failed to write instance key: %w", err)
	}
	key, err := ParsePrivateKey(private)
	if err != nil {
		return nil, err
	}
	return &InstanceKey{Private: key, Public: public}, nil
}
