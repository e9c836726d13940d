package usecase

import (
	"context"
	"errors"
	"fmt"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
)

// ChainBreakError locates the first audit event that does not link.
type ChainBreakError struct {
	Scope  string
	Seq    int64
	Reason string
}

func (e *ChainBreakError) Error() string {
	return fmt.Sprintf("audit chain %s broken at seq %d: %s", e.Scope, e.Seq, e.Reason)
}

// VerifyAuditChain replays the chain of scope from the zero hash. A
// structural problem is reported as *ChainBreakError; repository failures
// are returned as they are. An empty chain is valid.
func VerifyAuditChain(ctx context.Context, repo AuditEventRepository, scope string) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	if scope == "" {
		scope = domain.AuditSystemScope
	}
	events, err := repo.ListByScope(ctx, scope)
	if err != nil {
		return err
	}

	prev := cryptoinfra.ZeroHash
	for i, event := range events {
		want := int64(i) + 1
		fail := func(format string, args ...any) error {
			return &ChainBreakError{Scope: scope, Seq: want, Reason: fmt.Sprintf(format, args...)}
		}
		switch {
		case event.Scope != scope:
			return fail("scope mismatch (%s)", event.Scope)
		case event.Seq != want:
			return fail("seq mismatch, found %d", event.Seq)
		case event.PrevEventHash != prev:
			return fail("prev hash mismatch")
		case event.CreatedAt.IsZero():
			return fail("missing created_at")
		}

		payload, ok := canonicalPayload(event.Payload)
		if !ok {
			return fail("payload is %T, want canonical bytes", event.Payload)
		}
		if cryptoinfra.SHA256Hex(payload) != event.PayloadHash {
			return fail("payload hash mismatch")
		}
		sum, err := cryptoinfra.AuditEventHash(event)
		if err != nil {
			return fail("%v", err)
		}
		if sum != event.EventHash {
			return fail("event hash mismatch")
		}
		prev = event.EventHash
	}
	return nil
}

func canonicalPayload(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}
