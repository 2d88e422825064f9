package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

const signaturePrefix = "sha256="

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Payload is the JSON body delivered to webhook endpoints. The signature
// is an HMAC-SHA256 over the canonical payload bytes with the signature
// field empty, so receivers can verify authenticity with the shared secret.
type Payload struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature,omitempty"`
}

func NewPayload(event domain.Event) Payload {
	return Payload{
		EventID:   event.ID,
		EventType: string(event.Type),
		Timestamp: event.OccurredAt,
		Data:      event.Data,
	}
}

// Sign computes the payload signature and returns the payload bytes with
// the signature embedded, plus the signature itself for the header.
func Sign(payload Payload, secret string) ([]byte, string, error) {
	signature, err := computeSignature(payload, secret)
	if err != nil {
		return nil, "", err
	}
	payload.Signature = signature

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode webhook payload: %w", err)
	}
	return body, signature, nil
}

// Verify checks a received payload body against the shared secret. Any
// mutation of the canonical fields invalidates the signature.
func Verify(body []byte, secret string) error {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	provided := payload.Signature
	if !strings.HasPrefix(provided, signaturePrefix) {
		return ErrInvalidSignature
	}

	payload.Signature = ""
	expected, err := computeSignature(payload, secret)
	if err != nil {
		return err
	}

	providedHex, decodeErr := hex.DecodeString(strings.TrimPrefix(provided, signaturePrefix))
	if decodeErr != nil {
		return ErrInvalidSignature
	}
	expectedHex, _ := hex.DecodeString(strings.TrimPrefix(expected, signaturePrefix))
	if !hmac.Equal(providedHex, expectedHex) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(payload Payload, secret string) (string, error) {
	payload.Signature = ""
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode canonical payload: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(canonical)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil)), nil
}
