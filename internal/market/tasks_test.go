// ABOUTME: Tests for the tasks pack: lifecycle transitions, bidding, validation.

package market

import (
	"strconv"
	"testing"

	"github.com/agoramesh/agora-gateway/internal/store"
)

func (f *fixture) createTask(creator, reward string, maxAgents int, mode string) *store.Task {
	f.t.Helper()
	input := `{"creator":"` + creator + `","title":"Summarize a paper","reward":"` + reward + `","deadline":"2025-07-01T00:00:00Z"`
	if mode != "" {
		input += `,"mode":"` + mode + `"`
	}
	if maxAgents > 0 {
		input += `,"maxAgents":` + strconv.Itoa(maxAgents)
	}
	input += `}`
	out := f.mustCall("create_task", input)
	return out.(*store.Task)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	task := f.createTask("0xcreator", "1000", 0, "")
	if task.Status != store.TaskStatusOpen {
		t.Errorf("status = %s, want open", task.Status)
	}
	if task.Mode != store.ModeSingle {
		t.Errorf("mode = %s, want single", task.Mode)
	}
	if task.MaxAgents != 1 {
		t.Errorf("maxAgents = %d, want 1", task.MaxAgents)
	}
}

func TestCreateTaskSingleModeForcesOneAgent(t *testing.T) {
	f := newFixture(t)
	task := f.createTask("0xcreator", "1000", 5, "single")
	if task.MaxAgents != 1 {
		t.Errorf("maxAgents = %d, want 1 for single mode", task.MaxAgents)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input string
	}{
		{"bad creator", `{"creator":"nope","title":"T","reward":"1","deadline":"2025-07-01T00:00:00Z"}`},
		{"empty title", `{"creator":"0xa","title":"","reward":"1","deadline":"2025-07-01T00:00:00Z"}`},
		{"bad reward", `{"creator":"0xa","title":"T","reward":"lots","deadline":"2025-07-01T00:00:00Z"}`},
		{"bad deadline", `{"creator":"0xa","title":"T","reward":"1","deadline":"tomorrow"}`},
		{"bad mode", `{"creator":"0xa","title":"T","reward":"1","deadline":"2025-07-01T00:00:00Z","mode":"swarm"}`},
		{"bad capability", `{"creator":"0xa","title":"T","reward":"1","deadline":"2025-07-01T00:00:00Z","requiredCapabilities":["sorcery"]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.wantCode("create_task", tc.input, CodeValidation)
		})
	}
}

func TestBidOnTaskFillsAssignment(t *testing.T) {
	f := newFixture(t)
	a1 := f.registerAgent("0xaaa", "A1")
	a2 := f.registerAgent("0xbbb", "A2")
	a3 := f.registerAgent("0xccc", "A3")
	task := f.createTask("0xcreator", "1000", 2, "parallel")

	out := f.mustCall("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+a1.ID+`"}`)
	if got := out.(*store.Task); got.Status != store.TaskStatusOpen {
		t.Errorf("status after first bid = %s, want open", got.Status)
	}

	// Same agent cannot bid twice.
	f.wantCode("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+a1.ID+`"}`, CodeAlreadyAssigned)

	out = f.mustCall("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+a2.ID+`"}`)
	if got := out.(*store.Task); got.Status != store.TaskStatusAssigned {
		t.Errorf("status after filling = %s, want assigned", got.Status)
	}

	// Task is full now.
	f.wantCode("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+a3.ID+`"}`, CodeTaskFull)
}

func TestBidOnTaskErrors(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "A")
	task := f.createTask("0xcreator", "1000", 1, "")

	f.wantCode("bid_on_task", `{"taskId":"nope","agentId":"`+agent.ID+`"}`, CodeTaskNotFound)
	f.wantCode("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"ghost"}`, CodeAgentNotFound)

	f.mustCall("cancel_task", `{"taskId":"`+task.ID+`","walletAddress":"0xcreator"}`)
	f.wantCode("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`"}`, CodeTaskNotOpen)
}

func TestSubmitResultAndValidate(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Worker")
	task := f.createTask("0xcreator", "1000", 1, "")
	f.mustCall("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`"}`)

	// Only the assignee can submit.
	stranger := f.registerAgent("0xbbb", "Stranger")
	f.wantCode("submit_result",
		`{"taskId":"`+task.ID+`","agentId":"`+stranger.ID+`","result":"hi"}`,
		CodeUnauthorized)

	out := f.mustCall("submit_result",
		`{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`","result":"the summary"}`)
	resp := out.(map[string]any)
	if resp["taskStatus"] != store.TaskStatusCompleted {
		t.Errorf("taskStatus = %v, want completed", resp["taskStatus"])
	}

	// A second submission is rejected: the task already moved on.
	f.wantCode("submit_result",
		`{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`","result":"again"}`,
		CodeInvalidStatus)

	subs := f.mustCall("list_submissions", `{"taskId":"`+task.ID+`"}`).(map[string]any)
	if subs["count"].(int) != 1 {
		t.Errorf("submission count = %v, want 1", subs["count"])
	}

	out = f.mustCall("validate_task", `{"taskId":"`+task.ID+`","validator":"0xval","approved":true}`)
	if got := out.(*store.Task); got.Status != store.TaskStatusValidated {
		t.Errorf("status = %s, want validated", got.Status)
	}
}

func TestValidateTaskRejection(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Worker")
	task := f.createTask("0xcreator", "1000", 1, "")
	f.mustCall("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`"}`)
	f.mustCall("submit_result", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`","result":"bad work"}`)

	out := f.mustCall("validate_task", `{"taskId":"`+task.ID+`","validator":"0xval","approved":false}`)
	if got := out.(*store.Task); got.Status != store.TaskStatusDisputed {
		t.Errorf("status = %s, want disputed", got.Status)
	}
}

func TestCancelTaskRules(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Worker")
	task := f.createTask("0xcreator", "1000", 1, "")

	f.wantCode("cancel_task", `{"taskId":"`+task.ID+`","walletAddress":"0xother"}`, CodeUnauthorized)

	f.mustCall("bid_on_task", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`"}`)
	f.mustCall("submit_result", `{"taskId":"`+task.ID+`","agentId":"`+agent.ID+`","result":"done"}`)

	// Completed tasks cannot be cancelled.
	f.wantCode("cancel_task", `{"taskId":"`+task.ID+`","walletAddress":"0xcreator"}`, CodeCannotCancel)
}

func TestListTasksFilters(t *testing.T) {
	f := newFixture(t)
	f.createTask("0xcreator", "100", 1, "")
	f.createTask("0xcreator", "5000", 1, "")
	f.createTask("0xother", "300", 1, "")

	out := f.mustCall("list_tasks", `{"creator":"0xcreator"}`).(map[string]any)
	if out["count"].(int) != 2 {
		t.Errorf("creator filter count = %v, want 2", out["count"])
	}

	out = f.mustCall("list_tasks", `{"minReward":"300"}`).(map[string]any)
	if out["count"].(int) != 2 {
		t.Errorf("minReward filter count = %v, want 2", out["count"])
	}

	out = f.mustCall("list_tasks", `{"limit":1,"offset":1}`).(map[string]any)
	tasksList := out["tasks"].([]*store.Task)
	if len(tasksList) != 1 || tasksList[0].Reward != "5000" {
		t.Errorf("pagination returned wrong window")
	}
}
