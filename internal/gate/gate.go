// Package gate implements the approval gate (C7): a single-slot blocking
// request/response channel between the orchestrator and whatever UI layer
// (TUI, headless auto-approver, or test harness) decides on a pending edit.
package gate

import (
	"time"

	"github.com/google/uuid"

	"github.com/qasimio/Operon/internal/obslog"
)

// Outcome is the gate's decision for one request.
type Outcome string

const (
	Approved Outcome = "approved"
	Rejected Outcome = "rejected"
)

// Payload is the proposed mutation presented for approval.
type Payload struct {
	File    string
	Search  string
	Replace string
	Summary string
}

// Request is one pending approval ask.
type Request struct {
	ID      string
	Action  string
	Payload Payload
}

// Decision is a UI layer's response to a Request.
type Decision struct {
	RequestID string
	Outcome   Outcome
}

// Gate is a single-slot blocking mailbox: at most one Request is in flight
// at a time, matching the orchestrator's single-threaded cooperative design.
type Gate struct {
	requests  chan Request
	decisions chan Decision
	Timeout   time.Duration
	Headless  bool
	AutoApprove bool
}

// New returns a Gate with the spec's default 300-second timeout.
func New(headless, autoApprove bool) *Gate {
	return &Gate{
		requests:    make(chan Request),
		decisions:   make(chan Decision),
		Timeout:     300 * time.Second,
		Headless:    headless,
		AutoApprove: autoApprove,
	}
}

// Requests exposes the inbound channel for a UI layer to range over.
func (g *Gate) Requests() <-chan Request {
	return g.requests
}

// Respond posts a decision for a previously received request. Blocks until
// Ask is waiting to receive it, mirroring the single-slot contract.
func (g *Gate) Respond(d Decision) {
	g.decisions <- d
}

// Ask submits action/payload for approval and blocks for a decision, the
// gate's 300-second timer, or cancel. Empty search and empty replace are
// rejected immediately as "no content" without involving any UI layer.
// Headless mode with AutoApprove set approves without waiting, still
// logging the decision.
func (g *Gate) Ask(action string, payload Payload, cancel <-chan struct{}) Outcome {
	log := obslog.Get(obslog.CategoryGate)

	if payload.Search == "" && payload.Replace == "" {
		log.Infof("action=%s file=%s outcome=rejected reason=no_content", action, payload.File)
		return Rejected
	}

	if g.Headless && g.AutoApprove {
		log.Infof("action=%s file=%s outcome=approved reason=headless_auto_approve", action, payload.File)
		return Approved
	}

	req := Request{ID: uuid.NewString(), Action: action, Payload: payload}

	timer := time.NewTimer(g.Timeout)
	defer timer.Stop()

	select {
	case g.requests <- req:
	case <-timer.C:
		log.Infof("action=%s file=%s outcome=rejected reason=timeout_before_dispatch", action, payload.File)
		return Rejected
	case <-cancel:
		log.Infof("action=%s file=%s outcome=rejected reason=cancelled", action, payload.File)
		return Rejected
	}

	select {
	case d := <-g.decisions:
		if d.RequestID != req.ID {
			log.Warnf("stray decision for request %s while awaiting %s", d.RequestID, req.ID)
		}
		log.Infof("action=%s file=%s outcome=%s", action, payload.File, d.Outcome)
		return d.Outcome
	case <-timer.C:
		log.Infof("action=%s file=%s outcome=rejected reason=timeout", action, payload.File)
		return Rejected
	case <-cancel:
		log.Infof("action=%s file=%s outcome=rejected reason=cancelled", action, payload.File)
		return Rejected
	}
}
