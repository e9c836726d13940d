package crypto

import (
	"errors"
	"strings"
	"time"

	"sealtrail/internal/domain"
)

// ZeroHash is the previous-event hash of the first link in an audit chain.
var ZeroHash = strings.Repeat("0", 64)

// AuditPayload canonicalizes an audit payload and returns the bytes with
// their digest.
func AuditPayload(payload any) ([]byte, string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return nil, "", err
	}
	return canonical, SHA256Hex(canonical), nil
}

// PrepareAuditEvent fills the fields that do not depend on the chain
// position: scope, a microsecond UTC timestamp, and the canonical payload
// with its hash. Stores call it before they pick a sequence number.
func PrepareAuditEvent(event *domain.AuditEvent, now time.Time) error {
	if event.EventType == "" {
		return errors.New("event_type is required")
	}
	if event.Scope == "" {
		event.Scope = domain.AuditSystemScope
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)

	canonical, sum, err := AuditPayload(event.Payload)
	if err != nil {
		return err
	}
	event.Payload = canonical
	event.PayloadHash = sum
	return nil
}

// LinkAuditEvent places a prepared event at seq behind prevHash and sets
// its event hash.
func LinkAuditEvent(event *domain.AuditEvent, seq int64, prevHash string) error {
	event.Seq = seq
	event.PrevEventHash = prevHash
	sum, err := AuditEventHash(*event)
	if err != nil {
		return err
	}
	event.EventHash = sum
	return nil
}

// AuditEventHash covers every field that places the event in its chain.
// Target and actor are descriptive and left out.
func AuditEventHash(event domain.AuditEvent) (string, error) {
	switch {
	case event.Scope == "", event.EventType == "":
		return "", errors.New("audit event missing scope or event_type")
	case event.PayloadHash == "", event.PrevEventHash == "":
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	canonical, err := CanonicalizeAny(map[string]any{
		"v":               domain.AuditChainVersion,
		"scope":           event.Scope,
		"seq":             event.Seq,
		"event_type":      string(event.EventType),
		"payload_hash":    event.PayloadHash,
		"prev_event_hash": event.PrevEventHash,
		"created_at":      domain.FormatTimestamp(event.CreatedAt),
	})
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}
