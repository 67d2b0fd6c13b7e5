package domain

import (
	"encoding/json"
	"time"
)

// ConflictType names the entity kind a conflict is about.
type ConflictType string

const (
	ConflictTransaction ConflictType = "transaction"
	ConflictAccount     ConflictType = "account"
	ConflictCategory    ConflictType = "category"
)

// ResolutionSide picks which copy wins a conflict.
type ResolutionSide string

const (
	ResolveLocal ResolutionSide = "local"
	ResolveCloud ResolutionSide = "cloud"
)

// IsValid reports whether s names a side.
func (s ResolutionSide) IsValid() bool {
	return s == ResolveLocal || s == ResolveCloud
}

// Conflict is a record present on both sides of a sync with different contents.
// LocalData and CloudData hold the JSON of the respective records.
type Conflict struct {
	ConflictID   string          `json:"id"`
	Type         ConflictType    `json:"type"`
	Key          string          `json:"key"`
	LocalData    json.RawMessage `json:"localData"`
	CloudData    json.RawMessage `json:"cloudData"`
	ConflictDate time.Time       `json:"conflictDate"`
	Resolved     bool            `json:"resolved"`
}

func (c Conflict) RecordKind() EntityKind { return KindConflict }
func (c Conflict) RecordID() string       { return c.ConflictID }

func (c Conflict) IndexKeys() IndexKeys {
	return IndexKeys{Type: string(c.Type), Date: c.ConflictDate}
}

// DecisionKey is the key under which a resolution for this conflict is remembered.
func (c Conflict) DecisionKey() string {
	return string(c.Type) + "|" + c.Key
}
