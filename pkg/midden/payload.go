package midden

import (
	"encoding/json"
	"fmt"
)

// Payload shapes, one per event type.
//
// On the wire the payload is an open JSON object so that non-Go runtimes can
// produce and consume events with no type tags. In Go code each event type
// has a concrete struct, and DecodePayload resolves an event to the right
// one with a total switch over the closed EventType set. Unknown fields are
// ignored on decode; missing fields take their zero value, since payloads
// cross process and language boundaries.

// JobCreatedPayload announces a new job.
type JobCreatedPayload struct {
	JobID       string  `json:"jobId"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget"`
}

// JobAcceptedPayload records which worker took a job.
type JobAcceptedPayload struct {
	JobID    string `json:"jobId"`
	WorkerID string `json:"workerId"`
}

// WorkSubmittedPayload carries the worker's submission text.
type WorkSubmittedPayload struct {
	JobID      string `json:"jobId"`
	Submission string `json:"submission"`
}

// WorkApprovedPayload records the hiring agent's completion score.
type WorkApprovedPayload struct {
	JobID string `json:"jobId"`
	Score int    `json:"score"`
}

// DisputeFiledPayload records why a submission was rejected.
type DisputeFiledPayload struct {
	JobID  string `json:"jobId"`
	Reason string `json:"reason"`
}

// ArbitrationCompletePayload carries the arbitrator's ruling.
// Ruling is "worker", "employer", or "split"; RefundPct is the percentage of
// the budget refunded to the employer.
type ArbitrationCompletePayload struct {
	JobID     string `json:"jobId"`
	Ruling    string `json:"ruling"`
	RefundPct int    `json:"refundPct"`
	Penalty   bool   `json:"penalty"`
}

// PaymentReleasedPayload records a fund movement. TxID may be empty when the
// payment executor reported a pending/unknown transaction; that is a valid
// degraded outcome, not an error.
type PaymentReleasedPayload struct {
	JobID     string  `json:"jobId"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	TxID      string  `json:"txId"`
}

// EncodePayload converts a typed payload struct to the open map form stored
// on an Event.
func EncodePayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to convert payload to map: %w", err)
	}

	return m, nil
}

// DecodePayload resolves an event's open payload map to the concrete struct
// for its type. The switch is total over the closed EventType set; an
// unknown type is an error.
//
// Returns one of *JobCreatedPayload, *JobAcceptedPayload,
// *WorkSubmittedPayload, *WorkApprovedPayload, *DisputeFiledPayload,
// *ArbitrationCompletePayload, *PaymentReleasedPayload.
func DecodePayload(e *Event) (any, error) {
	switch e.Type {
	case EventJobCreated:
		return decodeInto[JobCreatedPayload](e)
	case EventJobAccepted:
		return decodeInto[JobAcceptedPayload](e)
	case EventWorkSubmitted:
		return decodeInto[WorkSubmittedPayload](e)
	case EventWorkApproved:
		return decodeInto[WorkApprovedPayload](e)
	case EventDisputeFiled:
		return decodeInto[DisputeFiledPayload](e)
	case EventArbitrationComplete:
		return decodeInto[ArbitrationCompletePayload](e)
	case EventPaymentReleased:
		return decodeInto[PaymentReleasedPayload](e)
	default:
		return nil, fmt.Errorf("no payload shape for event type %q", e.Type)
	}
}

// DecodeAs decodes an event's payload directly into a known concrete shape.
// Use this in handlers, where the subscription's event type already fixes
// the shape; DecodePayload is for callers that only hold an Event.
func DecodeAs[T any](e *Event) (*T, error) {
	return decodeInto[T](e)
}

// decodeInto round-trips the open map through JSON into a concrete struct.
func decodeInto[T any](e *Event) (*T, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal payload for %s: %w", e.ID, err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("payload of %s does not match shape for %s: %w", e.ID, e.Type, err)
	}

	return out, nil
}
