package federation

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "Versia-Signature"
	HeaderSignedBy  = "Versia-Signed-By"
	HeaderSignedAt  = "Versia-Signed-At"

	// SignatureWindow bounds the clock skew accepted on Versia-Signed-At.
	SignatureWindow = 5 * time.Minute
)

var ErrMissingSignature = errors.New("missing signature headers")

// SignedString builds the string covered by a Versia signature.
func SignedString(method, path string, signedAt int64, body []byte) string {
	digest := sha256.Sum256(body)
	return fmt.Sprintf("%s %s %d %s",
		strings.ToLower(method),
		path,
		signedAt,
		base64.StdEncoding.EncodeToString(digest[:]))
}

// HasSignature reports whether all three signature headers are present.
func HasSignature(header http.Header) bool {
	return header.Get(HeaderSignature) != "" &&
		header.Get(HeaderSignedBy) != "" &&
		header.Get(HeaderSignedAt) != ""
}

// Verify checks the Versia signature of a request against key. A bad
// signature, a wrong key or a timestamp outside SignatureWindow yields
// false with a nil error; only malformed headers produce an error.
func Verify(method, path string, header http.Header, body []byte, key ed25519.PublicKey) (bool, error) {
	return VerifyAt(method, path, header, body, key, time.Now())
}

func VerifyAt(method, path string, header http.Header, body []byte, key ed25519.PublicKey, now time.Time) (bool, error) {
	if !HasSignature(header) {
		return false, ErrMissingSignature
	}

	signature, err := base64.StdEncoding.DecodeString(header.Get(HeaderSignature))
	if err != nil {
		return false, fmt.Errorf("signature is not base64: %w", err)
	}

	signedAt, err := strconv.ParseInt(strings.TrimSpace(header.Get(HeaderSignedAt)), 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", HeaderSignedAt, err)
	}

	if len(key) != ed25519.PublicKeySize {
		return false, nil
	}

	skew := now.Sub(time.Unix(signedAt, 0))
	if skew > SignatureWindow || skew < -SignatureWindow {
		return false, nil
	}

	return ed25519.Verify(key, []byte(SignedString(method, path, signedAt, body)), signature), nil
}

// Sign sets the three Versia signature headers on req.
func Sign(req *http.Request, body []byte, key ed25519.PrivateKey, signedBy string, now time.Time) error {
	if len(key) != ed25519.PrivateKeySize {
		return errors.New("invalid ed25519 private key")
	}
	signedAt := now.Unix()
	signature := ed25519.Sign(key, []byte(SignedString(req.Method, req.URL.RequestURI(), signedAt, body)))

	req.Header.Set(HeaderSignedBy, signedBy)
	req.Header.Set(HeaderSignedAt, strconv.FormatInt(signedAt, 10))
	req.Header.Set(HeaderSignature, base64.StdEncoding.EncodeToString(signature))
	return nil
}

// Signer identifies who signed a request: an actor or a whole instance.
type Signer struct {
	ActorURI string
	Host     string
}

func (s Signer) IsInstance() bool {
	return s.ActorURI == ""
}

// InstanceSigner is the Versia-Signed-By value for instance signatures.
func InstanceSigner(host string) string {
	return "instance " + host
}

// ParseSignedBy decodes a Versia-Signed-By value.
func ParseSignedBy(value string) (Signer, error) {
	value = strings.TrimSpace(value)
	if host, ok := strings.CutPrefix(value, "instance "); ok {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			return Signer{}, errors.New("instance signer without host")
		}
		return Signer{Host: host}, nil
	}

	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return Signer{}, fmt.Errorf("invalid signer %q", value)
	}
	return Signer{ActorURI: value, Host: strings.ToLower(u.Host)}, nil
}

// GenerateKeyPair returns a new key pair in the Versia wire encodings.
func GenerateKeyPair() (public string, private string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	if public, err = EncodePublicKey(pub); err != nil {
		return "", "", err
	}
	if private, err = EncodePrivateKey(priv); err != nil {
		return "", "", err
	}
	return public, private, nil
}

// EncodePublicKey returns the base64 SPKI DER form used in public_key.key.
func EncodePublicKey(key ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("public key is not base64: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	edKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("not an ed25519 public key")
	}
	return edKey, nil
}

// EncodePrivateKey returns the base64 PKCS#8 DER form.
func EncodePrivateKey(key ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("private key is not base64: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("not an ed25519 private key")
	}
	return edKey, nil
}
