// ABOUTME: Collaboration pack: multi-agent workflows with strictly ordered steps.
// ABOUTME: Completing step N feeds its output into step N+1 and starts it automatically.

package market

import (
	"context"
	"encoding/json"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

// CollaborationPack returns the workflow tools.
func (m *Market) CollaborationPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:collaboration",
		Tools: []*tools.Tool{
			{
				Name:        "propose_collaboration",
				Description: "Propose a multi-agent workflow with ordered steps",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"initiator":{"type":"string"},"participants":{"type":"array","items":{"type":"string"}},"steps":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"agentId":{"type":"string"},"input":{"type":"string"}},"required":["name","agentId"]}}},"required":["initiator","participants","steps"]}`),
				Handler:     m.locked(m.proposeCollaboration),
			},
			{
				Name:        "respond_to_collaboration",
				Description: "Accept or decline a proposed collaboration (participants only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"collaborationId":{"type":"string"},"agentId":{"type":"string"},"accept":{"type":"boolean"}},"required":["collaborationId","agentId","accept"]}`),
				Handler:     m.locked(m.respondToCollaboration),
			},
			{
				Name:        "start_collaboration",
				Description: "Start an accepted collaboration; the first step begins running",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"collaborationId":{"type":"string"},"agentId":{"type":"string"}},"required":["collaborationId","agentId"]}`),
				Handler:     m.locked(m.startCollaboration),
			},
			{
				Name:        "complete_step",
				Description: "Complete the running step; its output feeds the next step",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"collaborationId":{"type":"string"},"agentId":{"type":"string"},"output":{"type":"string"}},"required":["collaborationId","agentId","output"]}`),
				Handler:     m.locked(m.completeStep),
			},
			{
				Name:        "get_collaboration",
				Description: "Fetch a collaboration by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"collaborationId":{"type":"string"}},"required":["collaborationId"]}`),
				Handler:     m.locked(m.getCollaboration),
			},
			{
				Name:        "list_collaborations",
				Description: "List collaborations with optional status and agent filters",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"},"agentId":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listCollaborations),
			},
			{
				Name:        "cancel_collaboration",
				Description: "Cancel a collaboration that has not completed (initiator only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"collaborationId":{"type":"string"},"agentId":{"type":"string"}},"required":["collaborationId","agentId"]}`),
				Handler:     m.locked(m.cancelCollaboration),
			},
		},
	}
}

type proposeCollabInput struct {
	TaskID       string `json:"taskId"`
	Initiator    string `json:"initiator"`
	Participants []string `json:"participants"`
	Steps        []struct {
		Name    string `json:"name"`
		AgentID string `json:"agentId"`
		Input   string `json:"input"`
	} `json:"steps"`
}

func (m *Market) proposeCollaboration(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in proposeCollabInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if len(in.Steps) == 0 {
		return nil, tools.Errf(CodeValidation, "at least one step is required")
	}
	if _, err := m.store.GetAgent(ctx, in.Initiator); err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "initiator agent %s not found", in.Initiator)
	}
	members := map[string]bool{in.Initiator: true}
	for _, p := range in.Participants {
		if _, err := m.store.GetAgent(ctx, p); err != nil {
			return nil, tools.Errf(CodeAgentNotFound, "participant agent %s not found", p)
		}
		members[p] = true
	}

	steps := make([]store.Step, len(in.Steps))
	for i, s := range in.Steps {
		if s.Name == "" {
			return nil, tools.Errf(CodeValidation, "step %d is missing a name", i)
		}
		if !members[s.AgentID] {
			return nil, tools.Errf(CodeNotParticipant, "step %d agent %s is not a participant", i, s.AgentID)
		}
		steps[i] = store.Step{
			Name:    s.Name,
			AgentID: s.AgentID,
			Input:   s.Input,
			Status:  store.StepStatusPending,
		}
	}

	if in.TaskID != "" {
		if _, err := m.store.GetTask(ctx, in.TaskID); err != nil {
			return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
		}
	}

	now := m.now()
	collab := &store.Collaboration{
		ID:           m.newID(),
		TaskID:       in.TaskID,
		Initiator:    in.Initiator,
		Participants: in.Participants,
		Steps:        steps,
		Status:       store.CollabStatusProposed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.CreateCollaboration(ctx, collab); err != nil {
		return nil, err
	}

	m.logger.Info("collaboration proposed",
		"collaboration_id", collab.ID,
		"initiator", collab.Initiator,
		"participants", len(collab.Participants),
		"steps", len(collab.Steps),
	)
	return collab, nil
}

type collabRespondInput struct {
	CollaborationID string `json:"collaborationId"`
	AgentID         string `json:"agentId"`
	Accept          bool   `json:"accept"`
}

func (m *Market) respondToCollaboration(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in collabRespondInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collab, err := m.store.GetCollaboration(ctx, in.CollaborationID)
	if err != nil {
		return nil, tools.Errf(CodeCollabNotFound, "collaboration %s not found", in.CollaborationID)
	}
	if !isParticipant(collab, in.AgentID) {
		return nil, tools.Errf(CodeNotParticipant, "agent %s is not a participant of collaboration %s", in.AgentID, collab.ID)
	}
	if collab.Status != store.CollabStatusProposed {
		return nil, tools.Errf(CodeInvalidStatus, "collaboration %s is %s, expected proposed", collab.ID, collab.Status)
	}

	if in.Accept {
		collab.Status = store.CollabStatusAccepted
	} else {
		collab.Status = store.CollabStatusCancelled
	}
	collab.UpdatedAt = m.now()

	if err := m.store.UpdateCollaboration(ctx, collab); err != nil {
		return nil, err
	}

	m.logger.Info("collaboration response", "collaboration_id", collab.ID, "agent_id", in.AgentID, "accepted", in.Accept)
	return collab, nil
}

type collabActionInput struct {
	CollaborationID string `json:"collaborationId"`
	AgentID         string `json:"agentId"`
}

func (m *Market) startCollaboration(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in collabActionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collab, err := m.store.GetCollaboration(ctx, in.CollaborationID)
	if err != nil {
		return nil, tools.Errf(CodeCollabNotFound, "collaboration %s not found", in.CollaborationID)
	}
	if collab.Initiator != in.AgentID {
		return nil, tools.Errf(CodeUnauthorized, "only the initiator can start collaboration %s", collab.ID)
	}
	if collab.Status != store.CollabStatusAccepted {
		return nil, tools.Errf(CodeInvalidStatus, "collaboration %s is %s, expected accepted", collab.ID, collab.Status)
	}

	collab.Status = store.CollabStatusInProgress
	collab.Steps[0].Status = store.StepStatusRunning
	collab.UpdatedAt = m.now()

	if err := m.store.UpdateCollaboration(ctx, collab); err != nil {
		return nil, err
	}

	m.logger.Info("collaboration started", "collaboration_id", collab.ID, "first_step", collab.Steps[0].Name)
	return collab, nil
}

type completeStepInput struct {
	CollaborationID string `json:"collaborationId"`
	AgentID         string `json:"agentId"`
	Output          string `json:"output"`
}

func (m *Market) completeStep(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in completeStepInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collab, err := m.store.GetCollaboration(ctx, in.CollaborationID)
	if err != nil {
		return nil, tools.Errf(CodeCollabNotFound, "collaboration %s not found", in.CollaborationID)
	}
	if collab.Status != store.CollabStatusInProgress {
		return nil, tools.Errf(CodeInvalidStatus, "collaboration %s is %s, expected in_progress", collab.ID, collab.Status)
	}

	// Steps execute strictly in order regardless of the task's declared
	// mode; exactly one step is running at a time.
	current := -1
	for i := range collab.Steps {
		if collab.Steps[i].Status == store.StepStatusRunning {
			current = i
			break
		}
	}
	if current == -1 {
		return nil, tools.Errf(CodeInvalidStatus, "collaboration %s has no running step", collab.ID)
	}
	if collab.Steps[current].AgentID != in.AgentID {
		return nil, tools.Errf(CodeUnauthorized, "step %q belongs to agent %s", collab.Steps[current].Name, collab.Steps[current].AgentID)
	}

	collab.Steps[current].Output = in.Output
	collab.Steps[current].Status = store.StepStatusCompleted

	if current+1 < len(collab.Steps) {
		collab.Steps[current+1].Status = store.StepStatusRunning
		collab.Steps[current+1].Input = in.Output
	} else {
		collab.Status = store.CollabStatusCompleted
	}
	collab.UpdatedAt = m.now()

	if err := m.store.UpdateCollaboration(ctx, collab); err != nil {
		return nil, err
	}

	m.logger.Info("step completed",
		"collaboration_id", collab.ID,
		"step", collab.Steps[current].Name,
		"collaboration_status", collab.Status,
	)
	return collab, nil
}

type collabIDInput struct {
	CollaborationID string `json:"collaborationId"`
}

func (m *Market) getCollaboration(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in collabIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collab, err := m.store.GetCollaboration(ctx, in.CollaborationID)
	if err != nil {
		return nil, tools.Errf(CodeCollabNotFound, "collaboration %s not found", in.CollaborationID)
	}
	return collab, nil
}

type listCollabsInput struct {
	Status  string `json:"status"`
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (m *Market) listCollaborations(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listCollabsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collabs, err := m.store.ListCollaborations(ctx)
	if err != nil {
		return nil, err
	}
	collabs = store.Filter(collabs, func(c *store.Collaboration) bool {
		if in.Status != "" && c.Status != in.Status {
			return false
		}
		if in.AgentID != "" && !isParticipant(c, in.AgentID) {
			return false
		}
		return true
	})
	collabs = store.Paginate(collabs, in.Limit, in.Offset)
	return map[string]any{"collaborations": collabs, "count": len(collabs)}, nil
}

func (m *Market) cancelCollaboration(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in collabActionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	collab, err := m.store.GetCollaboration(ctx, in.CollaborationID)
	if err != nil {
		return nil, tools.Errf(CodeCollabNotFound, "collaboration %s not found", in.CollaborationID)
	}
	if collab.Initiator != in.AgentID {
		return nil, tools.Errf(CodeUnauthorized, "only the initiator can cancel collaboration %s", collab.ID)
	}
	switch collab.Status {
	case store.CollabStatusProposed, store.CollabStatusAccepted, store.CollabStatusInProgress:
		// cancellable
	default:
		return nil, tools.Errf(CodeCannotCancel, "collaboration %s is %s", collab.ID, collab.Status)
	}

	collab.Status = store.CollabStatusCancelled
	collab.UpdatedAt = m.now()
	if err := m.store.UpdateCollaboration(ctx, collab); err != nil {
		return nil, err
	}

	m.logger.Info("collaboration cancelled", "collaboration_id", collab.ID)
	return collab, nil
}

// isParticipant reports whether the agent is the initiator or a listed
// participant.
func isParticipant(c *store.Collaboration, agentID string) bool {
	if c.Initiator == agentID {
		return true
	}
	for _, p := range c.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}
