// ABOUTME: Tasks pack: creation, listing, bidding, result submission, validation, cancellation.
// ABOUTME: Status progression is one-directional; bids fill assignedAgents up to maxAgents.

package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
	"github.com/agoramesh/agora-gateway/internal/wei"
)

var taskModes = map[string]bool{
	store.ModeSingle:     true,
	store.ModeParallel:   true,
	store.ModeSequential: true,
	store.ModeConsensus:  true,
}

// TasksPack returns the task lifecycle tools.
func (m *Market) TasksPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:tasks",
		Tools: []*tools.Tool{
			{
				Name:        "create_task",
				Description: "Create a task open for bidding",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"creator":{"type":"string"},"title":{"type":"string"},"description":{"type":"string"},"requiredCapabilities":{"type":"array","items":{"type":"string"}},"reward":{"type":"string"},"deadline":{"type":"string","format":"date-time"},"mode":{"type":"string","enum":["single","parallel","sequential","consensus"]},"maxAgents":{"type":"integer"}},"required":["creator","title","reward","deadline"]}`),
				Handler:     m.locked(m.createTask),
			},
			{
				Name:        "get_task",
				Description: "Fetch a task by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"}},"required":["taskId"]}`),
				Handler:     m.locked(m.getTask),
			},
			{
				Name:        "list_tasks",
				Description: "List tasks with optional status, creator, and reward filters",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"},"creator":{"type":"string"},"minReward":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listTasks),
			},
			{
				Name:        "bid_on_task",
				Description: "Bid on an open task; the task flips to assigned when full",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"agentId":{"type":"string"}},"required":["taskId","agentId"]}`),
				Handler:     m.locked(m.bidOnTask),
			},
			{
				Name:        "submit_result",
				Description: "Submit a result for an assigned task",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"agentId":{"type":"string"},"result":{"type":"string"}},"required":["taskId","agentId","result"]}`),
				Handler:     m.locked(m.submitResult),
			},
			{
				Name:        "list_submissions",
				Description: "List the submissions posted against a task",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"}},"required":["taskId"]}`),
				Handler:     m.locked(m.listSubmissions),
			},
			{
				Name:        "validate_task",
				Description: "Validate or dispute a completed task",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"validator":{"type":"string"},"approved":{"type":"boolean"}},"required":["taskId","validator","approved"]}`),
				Handler:     m.locked(m.validateTask),
			},
			{
				Name:        "cancel_task",
				Description: "Cancel an open or assigned task (creator only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"walletAddress":{"type":"string"}},"required":["taskId","walletAddress"]}`),
				Handler:     m.locked(m.cancelTask),
			},
		},
	}
}

type createTaskInput struct {
	Creator              string   `json:"creator"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	RequiredCapabilities []string `json:"requiredCapabilities"`
	Reward               string   `json:"reward"`
	Deadline             string   `json:"deadline"`
	Mode                 string   `json:"mode"`
	MaxAgents            int      `json:"maxAgents"`
}

func (m *Market) createTask(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in createTaskInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.Creator) {
		return nil, tools.Errf(CodeValidation, "creator must be a 0x-prefixed wallet address")
	}
	if in.Title == "" {
		return nil, tools.Errf(CodeValidation, "title is required")
	}
	if !wei.Valid(in.Reward) || in.Reward == "" {
		return nil, tools.Errf(CodeValidation, "invalid reward %q", in.Reward)
	}
	deadline, err := time.Parse(time.RFC3339, in.Deadline)
	if err != nil {
		return nil, tools.Errf(CodeValidation, "invalid deadline: %v", err)
	}
	mode := in.Mode
	if mode == "" {
		mode = store.ModeSingle
	}
	if !taskModes[mode] {
		return nil, tools.Errf(CodeValidation, "unknown mode %q", in.Mode)
	}
	maxAgents := in.MaxAgents
	if maxAgents <= 0 {
		maxAgents = 1
	}
	if mode == store.ModeSingle {
		maxAgents = 1
	}
	for _, c := range in.RequiredCapabilities {
		if !capabilityCategories[c] {
			return nil, tools.Errf(CodeValidation, "unknown capability category %q", c)
		}
	}

	now := m.now()
	task := &store.Task{
		ID:                   m.newID(),
		Creator:              in.Creator,
		Title:                in.Title,
		Description:          in.Description,
		RequiredCapabilities: in.RequiredCapabilities,
		Reward:               in.Reward,
		Deadline:             deadline.UTC(),
		Mode:                 mode,
		MaxAgents:            maxAgents,
		AssignedAgents:       []string{},
		Status:               store.TaskStatusOpen,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := m.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("task created", "task_id", task.ID, "reward", task.Reward, "max_agents", task.MaxAgents)
	return task, nil
}

type taskIDInput struct {
	TaskID string `json:"taskId"`
}

func (m *Market) getTask(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in taskIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	return task, nil
}

type listTasksInput struct {
	Status    string `json:"status"`
	Creator   string `json:"creator"`
	MinReward string `json:"minReward"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

func (m *Market) listTasks(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listTasksInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.MinReward != "" && !wei.Valid(in.MinReward) {
		return nil, tools.Errf(CodeValidation, "invalid minReward %q", in.MinReward)
	}

	tasksList, err := m.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasksList = store.Filter(tasksList, func(t *store.Task) bool {
		if in.Status != "" && t.Status != in.Status {
			return false
		}
		if in.Creator != "" && t.Creator != in.Creator {
			return false
		}
		if in.MinReward != "" && wei.Cmp(t.Reward, in.MinReward) < 0 {
			return false
		}
		return true
	})
	tasksList = store.Paginate(tasksList, in.Limit, in.Offset)

	return map[string]any{"tasks": tasksList, "count": len(tasksList)}, nil
}

type bidInput struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
}

func (m *Market) bidOnTask(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in bidInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	if _, err := m.store.GetAgent(ctx, in.AgentID); err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}

	switch task.Status {
	case store.TaskStatusOpen:
		// bidding allowed
	case store.TaskStatusAssigned:
		return nil, tools.Errf(CodeTaskFull, "task %s already has %d agents", task.ID, len(task.AssignedAgents))
	default:
		return nil, tools.Errf(CodeTaskNotOpen, "task %s is %s", task.ID, task.Status)
	}

	for _, id := range task.AssignedAgents {
		if id == in.AgentID {
			return nil, tools.Errf(CodeAlreadyAssigned, "agent %s already assigned to task %s", in.AgentID, task.ID)
		}
	}

	task.AssignedAgents = append(task.AssignedAgents, in.AgentID)
	if len(task.AssignedAgents) >= task.MaxAgents {
		task.Status = store.TaskStatusAssigned
	}
	task.UpdatedAt = m.now()

	if err := m.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("bid accepted",
		"task_id", task.ID,
		"agent_id", in.AgentID,
		"assigned", len(task.AssignedAgents),
		"max_agents", task.MaxAgents,
	)
	return task, nil
}

type submitResultInput struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
	Result  string `json:"result"`
}

func (m *Market) submitResult(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in submitResultInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.Result == "" {
		return nil, tools.Errf(CodeValidation, "result is required")
	}
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	if task.Status != store.TaskStatusAssigned && task.Status != store.TaskStatusInProgress {
		return nil, tools.Errf(CodeInvalidStatus, "task %s is %s, expected assigned or in_progress", task.ID, task.Status)
	}

	assigned := false
	for _, id := range task.AssignedAgents {
		if id == in.AgentID {
			assigned = true
			break
		}
	}
	if !assigned {
		return nil, tools.Errf(CodeUnauthorized, "agent %s is not assigned to task %s", in.AgentID, task.ID)
	}

	now := m.now()
	sub := &store.Submission{
		ID:        m.newID(),
		TaskID:    task.ID,
		AgentID:   in.AgentID,
		Result:    in.Result,
		CreatedAt: now,
	}
	if err := m.store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	task.Status = store.TaskStatusCompleted
	task.UpdatedAt = now
	if err := m.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("result submitted", "task_id", task.ID, "agent_id", in.AgentID, "submission_id", sub.ID)
	return map[string]any{"submissionId": sub.ID, "taskStatus": task.Status}, nil
}

func (m *Market) listSubmissions(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in taskIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if _, err := m.store.GetTask(ctx, in.TaskID); err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	subs, err := m.store.ListSubmissionsByTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"submissions": subs, "count": len(subs)}, nil
}

type validateTaskInput struct {
	TaskID    string `json:"taskId"`
	Validator string `json:"validator"`
	Approved  bool   `json:"approved"`
}

func (m *Market) validateTask(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in validateTaskInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.Validator) {
		return nil, tools.Errf(CodeValidation, "validator must be a 0x-prefixed wallet address")
	}
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	if task.Status != store.TaskStatusCompleted {
		return nil, tools.Errf(CodeInvalidStatus, "task %s is %s, expected completed", task.ID, task.Status)
	}

	if in.Approved {
		task.Status = store.TaskStatusValidated
	} else {
		task.Status = store.TaskStatusDisputed
	}
	task.UpdatedAt = m.now()

	if err := m.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("task validated", "task_id", task.ID, "approved", in.Approved, "status", task.Status)
	return task, nil
}

type cancelTaskInput struct {
	TaskID        string `json:"taskId"`
	WalletAddress string `json:"walletAddress"`
}

func (m *Market) cancelTask(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in cancelTaskInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
	}
	if task.Creator != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "only the creator can cancel task %s", task.ID)
	}
	if task.Status != store.TaskStatusOpen && task.Status != store.TaskStatusAssigned {
		return nil, tools.Errf(CodeCannotCancel, "task %s is %s, cancellable only while open or assigned", task.ID, task.Status)
	}

	task.Status = store.TaskStatusCancelled
	task.UpdatedAt = m.now()

	if err := m.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("task cancelled", "task_id", task.ID)
	return task, nil
}
