package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Funnel Stages
// =============================================================================

// FunnelStage names a step of the signup funnel.
type FunnelStage string

const (
	StageViewed    FunnelStage = "viewed"
	StageStarted   FunnelStage = "started"
	StageAttempted FunnelStage = "attempted"
	StageValidated FunnelStage = "validated"
	StageSubmitted FunnelStage = "submitted"
	StageCompleted FunnelStage = "completed"
	StageFailed    FunnelStage = "failed"
)

// IsValid returns true if the stage is a recognized value.
func (s FunnelStage) IsValid() bool {
	switch s {
	case StageViewed, StageStarted, StageAttempted, StageValidated,
		StageSubmitted, StageCompleted, StageFailed:
		return true
	}
	return false
}

// IsClientStage reports whether the browser may report this stage itself.
// Everything from "attempted" on is emitted by the server.
func (s FunnelStage) IsClientStage() bool {
	return s == StageViewed || s == StageStarted
}

// FailureType discriminates failed events.
type FailureType string

const (
	FailureValidation FailureType = "validation"
	FailureAPI        FailureType = "api"
	FailureException  FailureType = "exception"
)

// WhatsApp outcome reported with completed events.
const (
	WhatsAppStatusSent   = "sent"
	WhatsAppStatusFailed = "failed"
)

// =============================================================================
// Funnel Event
// =============================================================================

// FunnelEvent is one analytics signal. Only the fields relevant to the stage
// are set.
type FunnelEvent struct {
	ID             uuid.UUID
	FormID         string
	VisitorID      string
	Stage          FunnelStage
	Variant        Variant
	FailureType    FailureType // failed only
	FailedFields   []string    // failed/validation only
	ErrorCode      string      // failed/api only
	WhatsAppStatus string      // completed only
	ProfileID      string      // submitted, completed
	PhoneHash      string      // submitted, completed
	OccurredAt     time.Time
}

// Detail returns the sub-status that qualifies the stage, if any.
func (e FunnelEvent) Detail() string {
	switch e.Stage {
	case StageFailed:
		return string(e.FailureType)
	case StageCompleted:
		return e.WhatsAppStatus
	}
	return ""
}

// Properties returns the stage-specific fields as a flat map for sinks that
// store free-form properties.
func (e FunnelEvent) Properties() map[string]any {
	props := map[string]any{}
	if e.Variant != "" {
		props["variant"] = string(e.Variant)
	}
	if e.FailureType != "" {
		props["error_type"] = string(e.FailureType)
	}
	if len(e.FailedFields) > 0 {
		props["fields"] = e.FailedFields
	}
	if e.ErrorCode != "" {
		props["error_code"] = e.ErrorCode
	}
	if e.WhatsAppStatus != "" {
		props["whatsapp_status"] = e.WhatsAppStatus
	}
	if e.ProfileID != "" {
		props["profile_id"] = e.ProfileID
	}
	return props
}

// =============================================================================
// Experiment Variant
// =============================================================================

// Variant is the landing page experiment arm shown to a visitor.
type Variant string

const (
	VariantControl Variant = "control"
	VariantA       Variant = "variant-a"
	VariantB       Variant = "variant-b"
)

// IsValid returns true if the variant is a recognized value.
func (v Variant) IsValid() bool {
	switch v {
	case VariantControl, VariantA, VariantB:
		return true
	}
	return false
}
