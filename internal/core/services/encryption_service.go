package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/utils/envelope"
)

type encryptionService struct {
	BaseService
	sealer *envelope.Sealer
}

// NewEncryptionService derives envelope keys from secret. Every device sharing
// a backup must use the same secret and iteration count.
func NewEncryptionService(secret string, iterations int) (portssvc.EncryptionSvc, error) {
	sealer, err := envelope.NewSealer(secret, iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise envelope sealer: %w", err)
	}
	return &encryptionService{sealer: sealer}, nil
}

var _ portssvc.EncryptionSvc = (*encryptionService)(nil)

func (s *encryptionService) EncryptSnapshot(ctx context.Context, snapshot domain.Snapshot) (*domain.EncryptedEnvelope, error) {
	snapshot.Normalize()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise snapshot: %w", err)
	}
	env, err := s.sealer.Seal(raw)
	if err != nil {
		s.LogError(ctx, err, "Failed to seal snapshot")
		return nil, err
	}
	s.LogDebug(ctx, "Snapshot encrypted", slog.Int("plaintext_bytes", len(raw)))
	return &env, nil
}

func (s *encryptionService) DecryptSnapshot(ctx context.Context, env domain.EncryptedEnvelope) (*domain.Snapshot, error) {
	raw, err := s.sealer.Open(env)
	if err != nil {
		s.LogWarn(ctx, "Envelope rejected", slog.String("error", err.Error()))
		return nil, err
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, &apperrors.AuthenticationError{Reason: "payload is not a ledger snapshot"}
	}
	snapshot.Normalize()
	return &snapshot, nil
}

// encodeEnvelope is the byte form stored in the remote blob.
func encodeEnvelope(env *domain.EncryptedEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (*domain.EncryptedEnvelope, error) {
	var env domain.EncryptedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &apperrors.AuthenticationError{Reason: "remote blob is not an envelope"}
	}
	return &env, nil
}
