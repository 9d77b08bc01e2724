package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest domains. The version suffix allows changing the algorithm later.
const (
	DomainState = "scorelog/state/v1"
	DomainLog   = "scorelog/log/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest hashes the canonical encoding of v under domain.
func Digest(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// LogDigest hashes the ordered action ids and types of a log. Two replicas
// with equal log digests hold the same history.
func LogDigest(actions []Action) string {
	entries := make(List, len(actions))
	for i, a := range actions {
		entries[i] = List{String(a.ID), String(a.Type)}
	}
	// ids and types are strings, so canonical encoding cannot fail
	data, _ := MarshalCanonical(entries)
	return hashWithDomain(DomainLog, data)
}
