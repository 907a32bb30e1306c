// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	CampaignStarted   EventType = "campaign.started"
	CampaignProgress  EventType = "campaign.progress"
	CampaignCompleted EventType = "campaign.completed"
	BundleResolved    EventType = "bundle.resolved"
)

// Phase names the step a campaign is in when it reports progress.
type Phase string

const (
	PhaseFund    Phase = "fund"
	PhaseCollect Phase = "collect"
	PhaseBuy     Phase = "buy"
	PhaseBundle  Phase = "bundle"
	PhaseSell    Phase = "sell"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType  EventType
	EventTime  time.Time
	CampaignID string
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// StartedEvent is emitted before the first wallet of a campaign is processed.
type StartedEvent struct {
	BaseEvent
	Operation string
	Mint      solana.PublicKey
	Wallets   int
}

// ProgressEvent is emitted before each wallet is processed.
type ProgressEvent struct {
	BaseEvent
	Current int
	Total   int
	Wallet  solana.PublicKey
	Phase   Phase
}

// CompletedEvent closes a campaign.
type CompletedEvent struct {
	BaseEvent
	Operation string
	Succeeded int
	Failed    int
	Cancelled bool
}

// BundleEvent reports the terminal status of a bundle submission.
type BundleEvent struct {
	BaseEvent
	BundleID string
	Status   string
	Attempts int
}
