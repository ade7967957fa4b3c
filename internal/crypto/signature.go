package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govgate/govgate/internal/canonical"
	"github.com/govgate/govgate/internal/models"
)

const SigTypeEd25519 = "ed25519"

// SignatureHeader first line of a signature file
type SignatureHeader struct {
	CanonVersion string `json:"canon_version"`
	SigType      string `json:"sig_type"`
	// Digest of the signed canonical bytes, lets verify fail fast with a
	// readable message before the key is touched.
	Digest string `json:"digest,omitempty"`
}

// SignatureEnvelope header + signature
type SignatureEnvelope struct {
	Header    SignatureHeader
	Signature []byte
}

// WriteSignature header line, then hex signature
func WriteSignature(sig []byte, digest string) []byte {
	header := SignatureHeader{
		CanonVersion: canonical.Version,
		SigType:      SigTypeEd25519,
		Digest:       digest,
	}
	headerBytes, _ := json.Marshal(header)
	return []byte(string(headerBytes) + "\n" + hex.EncodeToString(sig) + "\n")
}

// ReadSignature parses a signature file
func ReadSignature(data []byte) (*SignatureEnvelope, error) {
	content := strings.TrimSpace(string(data))
	headerLine, payload, ok := strings.Cut(content, "\n")
	if !ok || !strings.HasPrefix(headerLine, "{") {
		return nil, fmt.Errorf("invalid signature format: expected header and payload")
	}

	var header SignatureHeader
	if err := json.Unmarshal([]byte(headerLine), &header); err != nil {
		return nil, fmt.Errorf("invalid signature header: %w", err)
	}
	if header.CanonVersion != canonical.Version {
		return nil, fmt.Errorf("unsupported canon_version %q (want %s)", header.CanonVersion, canonical.Version)
	}
	if header.SigType != SigTypeEd25519 {
		return nil, fmt.Errorf("unsupported sig_type %q", header.SigType)
	}

	sig, err := hex.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	return &SignatureEnvelope{Header: header, Signature: sig}, nil
}

// SignDecision signs the canonical bytes of d and returns the envelope file
func SignDecision(d models.Decision, privateKeyPath string) ([]byte, error) {
	payload, err := d.Canonical()
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize decision: %w", err)
	}
	sig, err := Sign(payload, privateKeyPath)
	if err != nil {
		return nil, err
	}
	return WriteSignature(sig, canonical.HashBytes(payload)), nil
}

// VerifyDecision checks sigData against the canonical bytes of the decision
// JSON in decisionJSON. Any re-encoding of the same decision verifies.
func VerifyDecision(decisionJSON, sigData []byte, publicKeyPath string) (bool, error) {
	var d models.Decision
	if err := json.Unmarshal(decisionJSON, &d); err != nil {
		return false, fmt.Errorf("failed to parse decision: %w", err)
	}
	env, err := ReadSignature(sigData)
	if err != nil {
		return false, err
	}
	payload, err := d.Canonical()
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize decision: %w", err)
	}
	if env.Header.Digest != "" && env.Header.Digest != canonical.HashBytes(payload) {
		return false, nil
	}
	return Verify(payload, env.Signature, publicKeyPath)
}
