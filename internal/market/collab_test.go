// ABOUTME: Tests for the collaboration pack: ordered steps, output chaining, membership.

package market

import (
	"testing"

	"github.com/agoramesh/agora-gateway/internal/store"
)

func (f *fixture) proposeCollab(initiator, participant string) *store.Collaboration {
	f.t.Helper()
	out := f.mustCall("propose_collaboration",
		`{"initiator":"`+initiator+`","participants":["`+participant+`"],"steps":[{"name":"draft","agentId":"`+initiator+`","input":"the brief"},{"name":"review","agentId":"`+participant+`"}]}`)
	return out.(*store.Collaboration)
}

func TestProposeCollaboration(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")

	collab := f.proposeCollab(a.ID, b.ID)
	if collab.Status != store.CollabStatusProposed {
		t.Errorf("status = %s, want proposed", collab.Status)
	}
	for i, s := range collab.Steps {
		if s.Status != store.StepStatusPending {
			t.Errorf("step %d status = %s, want pending", i, s.Status)
		}
	}
}

func TestProposeCollaborationMembership(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")
	outsider := f.registerAgent("0xccc", "Outsider")

	// Steps can only be assigned to the initiator or a participant.
	f.wantCode("propose_collaboration",
		`{"initiator":"`+a.ID+`","participants":["`+b.ID+`"],"steps":[{"name":"draft","agentId":"`+outsider.ID+`"}]}`,
		CodeNotParticipant)

	f.wantCode("propose_collaboration",
		`{"initiator":"ghost","participants":["`+b.ID+`"],"steps":[{"name":"draft","agentId":"`+b.ID+`"}]}`,
		CodeAgentNotFound)

	f.wantCode("propose_collaboration",
		`{"initiator":"`+a.ID+`","participants":["`+b.ID+`"],"steps":[]}`,
		CodeValidation)
}

func TestCollaborationWorkflow(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")
	collab := f.proposeCollab(a.ID, b.ID)

	// Only a participant may respond.
	c := f.registerAgent("0xccc", "Outsider")
	f.wantCode("respond_to_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+c.ID+`","accept":true}`, CodeNotParticipant)

	out := f.mustCall("respond_to_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`","accept":true}`).(*store.Collaboration)
	if out.Status != store.CollabStatusAccepted {
		t.Fatalf("status = %s, want accepted", out.Status)
	}

	// Only the initiator starts it.
	f.wantCode("start_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`"}`, CodeUnauthorized)

	out = f.mustCall("start_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+a.ID+`"}`).(*store.Collaboration)
	if out.Status != store.CollabStatusInProgress {
		t.Fatalf("status = %s, want in_progress", out.Status)
	}
	if out.Steps[0].Status != store.StepStatusRunning {
		t.Fatalf("first step status = %s, want running", out.Steps[0].Status)
	}

	// The running step belongs to the writer; the reviewer cannot complete it.
	f.wantCode("complete_step",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`","output":"sneaky"}`, CodeUnauthorized)

	// Completing the first step starts the second and chains the output.
	out = f.mustCall("complete_step",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+a.ID+`","output":"first draft"}`).(*store.Collaboration)
	if out.Steps[0].Status != store.StepStatusCompleted {
		t.Errorf("step 0 status = %s, want completed", out.Steps[0].Status)
	}
	if out.Steps[1].Status != store.StepStatusRunning {
		t.Errorf("step 1 status = %s, want running", out.Steps[1].Status)
	}
	if out.Steps[1].Input != "first draft" {
		t.Errorf("step 1 input = %q, want the previous output", out.Steps[1].Input)
	}

	// Completing the last step completes the collaboration.
	out = f.mustCall("complete_step",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`","output":"approved"}`).(*store.Collaboration)
	if out.Status != store.CollabStatusCompleted {
		t.Errorf("status = %s, want completed", out.Status)
	}

	// Nothing left to complete.
	f.wantCode("complete_step",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`","output":"more"}`, CodeInvalidStatus)
}

func TestCollaborationDecline(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")
	collab := f.proposeCollab(a.ID, b.ID)

	out := f.mustCall("respond_to_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`","accept":false}`).(*store.Collaboration)
	if out.Status != store.CollabStatusCancelled {
		t.Errorf("status = %s, want cancelled", out.Status)
	}

	// A declined collaboration cannot be started.
	f.wantCode("start_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+a.ID+`"}`, CodeInvalidStatus)
}

func TestCancelCollaboration(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")
	collab := f.proposeCollab(a.ID, b.ID)

	f.wantCode("cancel_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+b.ID+`"}`, CodeUnauthorized)

	out := f.mustCall("cancel_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+a.ID+`"}`).(*store.Collaboration)
	if out.Status != store.CollabStatusCancelled {
		t.Errorf("status = %s, want cancelled", out.Status)
	}

	f.wantCode("cancel_collaboration",
		`{"collaborationId":"`+collab.ID+`","agentId":"`+a.ID+`"}`, CodeCannotCancel)
}

func TestListCollaborationsByAgent(t *testing.T) {
	f := newFixture(t)
	a := f.registerAgent("0xaaa", "Writer")
	b := f.registerAgent("0xbbb", "Reviewer")
	c := f.registerAgent("0xccc", "Bystander")
	f.proposeCollab(a.ID, b.ID)

	out := f.mustCall("list_collaborations", `{"agentId":"`+b.ID+`"}`).(map[string]any)
	if out["count"].(int) != 1 {
		t.Errorf("participant count = %v, want 1", out["count"])
	}

	out = f.mustCall("list_collaborations", `{"agentId":"`+c.ID+`"}`).(map[string]any)
	if out["count"].(int) != 0 {
		t.Errorf("bystander count = %v, want 0", out["count"])
	}
}
