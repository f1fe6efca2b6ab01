package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk_EmptyContentRejectedImmediately(t *testing.T) {
	g := New(false, false)
	cancel := make(chan struct{})
	outcome := g.Ask("rewrite_function", Payload{File: "f.go"}, cancel)
	assert.Equal(t, Rejected, outcome)
}

func TestAsk_HeadlessAutoApprove(t *testing.T) {
	g := New(true, true)
	cancel := make(chan struct{})
	outcome := g.Ask("rewrite_function", Payload{File: "f.go", Search: "a", Replace: "b"}, cancel)
	assert.Equal(t, Approved, outcome)
}

func TestAsk_RespondApproves(t *testing.T) {
	g := New(false, false)
	cancel := make(chan struct{})
	done := make(chan Outcome, 1)

	go func() {
		done <- g.Ask("rewrite_function", Payload{File: "f.go", Search: "a", Replace: "b"}, cancel)
	}()

	req := <-g.Requests()
	g.Respond(Decision{RequestID: req.ID, Outcome: Approved})

	select {
	case outcome := <-done:
		assert.Equal(t, Approved, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Ask did not return after Respond")
	}
}

func TestAsk_CancelRejects(t *testing.T) {
	g := New(false, false)
	cancel := make(chan struct{})
	done := make(chan Outcome, 1)

	go func() {
		done <- g.Ask("rewrite_function", Payload{File: "f.go", Search: "a", Replace: "b"}, cancel)
	}()

	<-g.Requests()
	close(cancel)

	select {
	case outcome := <-done:
		assert.Equal(t, Rejected, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Ask did not return after cancel")
	}
}

func TestAsk_TimeoutRejects(t *testing.T) {
	g := New(false, false)
	g.Timeout = 20 * time.Millisecond
	cancel := make(chan struct{})

	done := make(chan Outcome, 1)
	go func() {
		done <- g.Ask("rewrite_function", Payload{File: "f.go", Search: "a", Replace: "b"}, cancel)
	}()
	<-g.Requests()

	select {
	case outcome := <-done:
		assert.Equal(t, Rejected, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Ask did not time out")
	}
}

func TestRequests_CarriesPayload(t *testing.T) {
	g := New(false, false)
	cancel := make(chan struct{})
	go g.Ask("rewrite_function", Payload{File: "f.go", Search: "a", Replace: "b", Summary: "s"}, cancel)

	req := <-g.Requests()
	require.Equal(t, "f.go", req.Payload.File)
	assert.Equal(t, "s", req.Payload.Summary)
	g.Respond(Decision{RequestID: req.ID, Outcome: Rejected})
}
