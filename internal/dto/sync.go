package dto

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
)

// SyncRequest starts a sync cycle.
type SyncRequest struct {
	Strategy domain.SyncStrategy `json:"strategy" binding:"omitempty,oneof=overwrite_local overwrite_cloud merge"`
	Force    bool                `json:"force"`
}

// Options converts the request, defaulting to merge.
func (r SyncRequest) Options() domain.SyncOptions {
	strategy := r.Strategy
	if strategy == "" {
		strategy = domain.StrategyMerge
	}
	return domain.SyncOptions{Strategy: strategy, Force: r.Force}
}

// ConflictResponse is a persisted conflict as shown to the user.
type ConflictResponse struct {
	ConflictID   string              `json:"id"`
	Type         domain.ConflictType `json:"type"`
	Key          string              `json:"key"`
	LocalData    json.RawMessage     `json:"localData" swaggertype:"object"`
	CloudData    json.RawMessage     `json:"cloudData" swaggertype:"object"`
	ConflictDate time.Time           `json:"conflictDate"`
	Resolved     bool                `json:"resolved"`
}

// ToConflictResponse converts a domain.Conflict to its DTO.
func ToConflictResponse(c *domain.Conflict) ConflictResponse {
	return ConflictResponse{
		ConflictID:   c.ConflictID,
		Type:         c.Type,
		Key:          c.Key,
		LocalData:    c.LocalData,
		CloudData:    c.CloudData,
		ConflictDate: c.ConflictDate,
		Resolved:     c.Resolved,
	}
}

// ToConflictResponses converts conflicts to DTOs.
func ToConflictResponses(conflicts []domain.Conflict) []ConflictResponse {
	res := make([]ConflictResponse, len(conflicts))
	for i := range conflicts {
		res[i] = ToConflictResponse(&conflicts[i])
	}
	return res
}

// SyncResponse reports the outcome of one cycle.
type SyncResponse struct {
	Status     domain.SyncStatus   `json:"status"`
	Strategy   domain.SyncStrategy `json:"strategy"`
	Uploaded   bool                `json:"uploaded"`
	Downloaded bool                `json:"downloaded"`
	Conflicts  []ConflictResponse  `json:"conflicts"`
	Merge      domain.MergeStats   `json:"merge"`
	LastSyncAt *time.Time          `json:"lastSyncAt,omitempty"`
}

// ToSyncResponse converts a domain.SyncResult.
func ToSyncResponse(r *domain.SyncResult) SyncResponse {
	return SyncResponse{
		Status:     r.Status,
		Strategy:   r.Strategy,
		Uploaded:   r.Uploaded,
		Downloaded: r.Downloaded,
		Conflicts:  ToConflictResponses(r.Conflicts),
		Merge:      r.Merge,
		LastSyncAt: r.LastSyncAt,
	}
}

// SyncStatusResponse describes the engine and the last completed cycle.
type SyncStatusResponse struct {
	Status           domain.SyncStatus `json:"status"`
	DeviceID         string            `json:"deviceID"`
	LastSyncAt       *time.Time        `json:"lastSyncAt,omitempty"`
	LastFailureAt    *time.Time        `json:"lastFailureAt,omitempty"`
	LastError        string            `json:"lastError,omitempty"`
	PendingConflicts int               `json:"pendingConflicts"`
	RemoteRevision   string            `json:"remoteRevision,omitempty"`
}

// ResolveConflictRequest picks the side that wins a conflict.
type ResolveConflictRequest struct {
	Resolution domain.ResolutionSide `json:"resolution" binding:"required,oneof=local cloud"`
}

// ResolveConflictResponse reports what is left after resolving one conflict.
type ResolveConflictResponse struct {
	ConflictID         string        `json:"conflictID"`
	Resolution         string        `json:"resolution"`
	RemainingConflicts int           `json:"remainingConflicts"`
	Sync               *SyncResponse `json:"sync,omitempty"`
}
