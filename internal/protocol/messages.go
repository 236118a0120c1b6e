package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags on the wire.
const (
	TypeSessionID      = "session_id"
	TypeStatus         = "status"
	TypePlanGenerated  = "plan_generated"
	TypePlanRefined    = "plan_refined"
	TypeSynthesisStart = "synthesis_start"
	TypeSynthesisChunk = "synthesis_chunk"
	TypeComplete       = "complete"
	TypeError          = "error"
	TypeCleared        = "cleared"

	TypeCreatePlan      = "create_plan"
	TypeRefinePlan      = "refine_plan"
	TypeExecuteResearch = "execute_research"
	TypeClear           = "clear"
)

// ErrUnknownType marks inbound messages whose type tag is not part of
// the protocol. Callers drop these without failing the connection.
var ErrUnknownType = errors.New("unknown message type")

// Inbound is a message pushed by the backend. The set of
// implementations is closed; DecodeInbound returns ErrUnknownType for
// anything else.
type Inbound interface {
	inbound()
}

// SessionAssigned carries the backend-assigned session identifier.
type SessionAssigned struct {
	SessionID string
}

// StatusUpdate is one progress line for the research log.
type StatusUpdate struct {
	Message string
}

// PlanGenerated delivers a fresh plan.
type PlanGenerated struct {
	Plan Plan
}

// PlanRefined delivers a plan reworked from user feedback.
type PlanRefined struct {
	Plan Plan
}

// SynthesisStarted announces that report streaming begins.
type SynthesisStarted struct{}

// SynthesisChunk is one streamed slice of the report text. Progress is
// a percentage between 0 and 100.
type SynthesisChunk struct {
	Chunk    string
	Progress int
}

// ResearchComplete carries the final result.
type ResearchComplete struct {
	Result Result
}

// BackendError reports a failure on the backend side.
type BackendError struct {
	Message string
}

// SessionCleared confirms a clear request.
type SessionCleared struct{}

func (SessionAssigned) inbound()  {}
func (StatusUpdate) inbound()     {}
func (PlanGenerated) inbound()    {}
func (PlanRefined) inbound()      {}
func (SynthesisStarted) inbound() {}
func (SynthesisChunk) inbound()   {}
func (ResearchComplete) inbound() {}
func (BackendError) inbound()     {}
func (SessionCleared) inbound()   {}

// Outbound is an action sent to the backend. The set of
// implementations is closed.
type Outbound interface {
	outbound()
}

// CreatePlan asks the backend to draft a research plan.
type CreatePlan struct {
	Query string
	Depth Depth
}

// RefinePlan asks the backend to rework the current plan using the
// user's feedback.
type RefinePlan struct {
	Query       string
	Depth       Depth
	Feedback    string
	CurrentPlan Plan
}

// ExecuteResearch starts the research run for an approved plan.
// Streaming is always requested so the report arrives in chunks.
type ExecuteResearch struct {
	Plan Plan
}

// ClearSession resets the backend session.
type ClearSession struct{}

func (CreatePlan) outbound()      {}
func (RefinePlan) outbound()      {}
func (ExecuteResearch) outbound() {}
func (ClearSession) outbound()    {}

// envelope is the single JSON shape every message travels in. Which
// fields are set depends on the type tag.
type envelope struct {
	Type string `json:"type"`

	// Backend to client
	SessionID string  `json:"session_id,omitempty"`
	Message   string  `json:"message,omitempty"`
	Plan      *Plan   `json:"plan,omitempty"`
	Chunk     string  `json:"chunk,omitempty"`
	Progress  int     `json:"progress,omitempty"`
	Result    *Result `json:"result,omitempty"`

	// Client to backend
	Query           string `json:"query,omitempty"`
	Depth           Depth  `json:"depth,omitempty"`
	Feedback        string `json:"feedback,omitempty"`
	CurrentPlan     *Plan  `json:"current_plan,omitempty"`
	EnableStreaming *bool  `json:"enable_streaming,omitempty"`
}

// DecodeInbound parses one message from the backend. A nil error means
// the returned Inbound is one of the closed variant set. Unknown type
// tags return ErrUnknownType so the caller can drop them.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case TypeSessionID:
		return SessionAssigned{SessionID: env.SessionID}, nil
	case TypeStatus:
		return StatusUpdate{Message: env.Message}, nil
	case TypePlanGenerated:
		if env.Plan == nil {
			return nil, fmt.Errorf("%s message without plan", env.Type)
		}
		return PlanGenerated{Plan: *env.Plan}, nil
	case TypePlanRefined:
		if env.Plan == nil {
			return nil, fmt.Errorf("%s message without plan", env.Type)
		}
		return PlanRefined{Plan: *env.Plan}, nil
	case TypeSynthesisStart:
		return SynthesisStarted{}, nil
	case TypeSynthesisChunk:
		return SynthesisChunk{Chunk: env.Chunk, Progress: env.Progress}, nil
	case TypeComplete:
		if env.Result == nil {
			return nil, fmt.Errorf("%s message without result", env.Type)
		}
		return ResearchComplete{Result: *env.Result}, nil
	case TypeError:
		return BackendError{Message: env.Message}, nil
	case TypeCleared:
		return SessionCleared{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// EncodeOutbound serializes an action for the backend.
func EncodeOutbound(msg Outbound) ([]byte, error) {
	var env envelope

	switch m := msg.(type) {
	case CreatePlan:
		env = envelope{Type: TypeCreatePlan, Query: m.Query, Depth: m.Depth}
	case RefinePlan:
		plan := m.CurrentPlan
		env = envelope{Type: TypeRefinePlan, Query: m.Query, Depth: m.Depth, Feedback: m.Feedback, CurrentPlan: &plan}
	case ExecuteResearch:
		plan := m.Plan
		streaming := true
		env = envelope{Type: TypeExecuteResearch, Plan: &plan, EnableStreaming: &streaming}
	case ClearSession:
		env = envelope{Type: TypeClear}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	return json.Marshal(env)
}
