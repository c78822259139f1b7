// ABOUTME: Escrow pack: fund locking, release conditions, payout distribution, refunds, disputes.
// ABOUTME: Release credits registered beneficiary agents and moves a validated task to paid.

package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
	"github.com/agoramesh/agora-gateway/internal/wei"
)

// EscrowPack returns the escrow lifecycle tools.
func (m *Market) EscrowPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:escrow",
		Tools: []*tools.Tool{
			{
				Name:        "create_escrow",
				Description: "Lock funds against a task with share-based beneficiaries and release conditions",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"taskId":{"type":"string"},"depositor":{"type":"string"},"beneficiaries":{"type":"array","items":{"type":"object","properties":{"address":{"type":"string"},"share":{"type":"integer"}},"required":["address","share"]}},"amount":{"type":"string"},"conditions":{"type":"array","items":{"type":"object","properties":{"type":{"type":"string"},"description":{"type":"string"}},"required":["type"]}},"deadline":{"type":"string","format":"date-time"}},"required":["depositor","beneficiaries","amount"]}`),
				Handler:     m.locked(m.createEscrow),
			},
			{
				Name:        "get_escrow",
				Description: "Fetch an escrow by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"escrowId":{"type":"string"}},"required":["escrowId"]}`),
				Handler:     m.locked(m.getEscrow),
			},
			{
				Name:        "list_escrows",
				Description: "List escrows with optional status and task filters",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"},"taskId":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listEscrows),
			},
			{
				Name:        "mark_condition_met",
				Description: "Mark a release condition as met (depositor only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"escrowId":{"type":"string"},"walletAddress":{"type":"string"},"conditionIndex":{"type":"integer"}},"required":["escrowId","walletAddress","conditionIndex"]}`),
				Handler:     m.locked(m.markConditionMet),
			},
			{
				Name:        "release_escrow",
				Description: "Release escrowed funds to beneficiaries once all conditions are met",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"escrowId":{"type":"string"},"walletAddress":{"type":"string"}},"required":["escrowId","walletAddress"]}`),
				Handler:     m.locked(m.releaseEscrow),
			},
			{
				Name:        "refund_escrow",
				Description: "Refund an escrow after task cancellation or deadline expiry",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"escrowId":{"type":"string"},"walletAddress":{"type":"string"}},"required":["escrowId","walletAddress"]}`),
				Handler:     m.locked(m.refundEscrow),
			},
			{
				Name:        "dispute_escrow",
				Description: "Open a dispute on an escrow (depositor or beneficiary only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"escrowId":{"type":"string"},"walletAddress":{"type":"string"},"reason":{"type":"string"}},"required":["escrowId","walletAddress"]}`),
				Handler:     m.locked(m.disputeEscrow),
			},
		},
	}
}

type createEscrowInput struct {
	TaskID        string              `json:"taskId"`
	Depositor     string              `json:"depositor"`
	Beneficiaries []store.Beneficiary `json:"beneficiaries"`
	Amount        string              `json:"amount"`
	Conditions    []store.Condition   `json:"conditions"`
	Deadline      string              `json:"deadline"`
}

func (m *Market) createEscrow(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in createEscrowInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.Depositor) {
		return nil, tools.Errf(CodeValidation, "depositor must be a 0x-prefixed wallet address")
	}
	if !wei.Valid(in.Amount) || in.Amount == "" || in.Amount == "0" {
		return nil, tools.Errf(CodeValidation, "amount must be a positive decimal string")
	}
	if len(in.Beneficiaries) == 0 {
		return nil, tools.Errf(CodeValidation, "at least one beneficiary is required")
	}
	shareSum := 0
	for _, b := range in.Beneficiaries {
		if !validWallet(b.Address) {
			return nil, tools.Errf(CodeValidation, "beneficiary address %q must be 0x-prefixed", b.Address)
		}
		if b.Share <= 0 || b.Share > 100 {
			return nil, tools.Errf(CodeValidation, "beneficiary share %d out of range (1-100)", b.Share)
		}
		shareSum += b.Share
	}
	if shareSum != 100 {
		return nil, tools.Errf(CodeValidation, "beneficiary shares sum to %d, expected 100", shareSum)
	}

	var deadline time.Time
	if in.Deadline != "" {
		d, err := time.Parse(time.RFC3339, in.Deadline)
		if err != nil {
			return nil, tools.Errf(CodeValidation, "invalid deadline: %v", err)
		}
		deadline = d.UTC()
	}

	// The task reference is soft: checked for existence here but never
	// cascaded afterwards.
	if in.TaskID != "" {
		if _, err := m.store.GetTask(ctx, in.TaskID); err != nil {
			return nil, tools.Errf(CodeTaskNotFound, "task %s not found", in.TaskID)
		}
	}

	conditions := make([]store.Condition, len(in.Conditions))
	for i, c := range in.Conditions {
		if c.Type == "" {
			return nil, tools.Errf(CodeValidation, "condition %d is missing a type", i)
		}
		conditions[i] = store.Condition{Type: c.Type, Description: c.Description, Met: false}
	}

	now := m.now()
	escrow := &store.Escrow{
		ID:            m.newID(),
		TaskID:        in.TaskID,
		Depositor:     in.Depositor,
		Beneficiaries: in.Beneficiaries,
		Amount:        in.Amount,
		Conditions:    conditions,
		Deadline:      deadline,
		Status:        store.EscrowStatusFunded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.CreateEscrow(ctx, escrow); err != nil {
		return nil, err
	}

	m.logger.Info("escrow funded", "escrow_id", escrow.ID, "task_id", escrow.TaskID, "amount", escrow.Amount)
	return escrow, nil
}

type escrowIDInput struct {
	EscrowID string `json:"escrowId"`
}

func (m *Market) getEscrow(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in escrowIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrow, err := m.store.GetEscrow(ctx, in.EscrowID)
	if err != nil {
		return nil, tools.Errf(CodeEscrowNotFound, "escrow %s not found", in.EscrowID)
	}
	return escrow, nil
}

type listEscrowsInput struct {
	Status string `json:"status"`
	TaskID string `json:"taskId"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (m *Market) listEscrows(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listEscrowsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrows, err := m.store.ListEscrows(ctx)
	if err != nil {
		return nil, err
	}
	escrows = store.Filter(escrows, func(e *store.Escrow) bool {
		if in.Status != "" && e.Status != in.Status {
			return false
		}
		if in.TaskID != "" && e.TaskID != in.TaskID {
			return false
		}
		return true
	})
	escrows = store.Paginate(escrows, in.Limit, in.Offset)
	return map[string]any{"escrows": escrows, "count": len(escrows)}, nil
}

type markConditionInput struct {
	EscrowID       string `json:"escrowId"`
	WalletAddress  string `json:"walletAddress"`
	ConditionIndex int    `json:"conditionIndex"`
}

func (m *Market) markConditionMet(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in markConditionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrow, err := m.store.GetEscrow(ctx, in.EscrowID)
	if err != nil {
		return nil, tools.Errf(CodeEscrowNotFound, "escrow %s not found", in.EscrowID)
	}
	if escrow.Depositor != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "only the depositor can mark conditions on escrow %s", escrow.ID)
	}
	if escrow.Status != store.EscrowStatusFunded {
		return nil, tools.Errf(CodeInvalidStatus, "escrow %s is %s, expected funded", escrow.ID, escrow.Status)
	}
	if in.ConditionIndex < 0 || in.ConditionIndex >= len(escrow.Conditions) {
		return nil, tools.Errf(CodeValidation, "condition index %d out of range (0-%d)", in.ConditionIndex, len(escrow.Conditions)-1)
	}

	escrow.Conditions[in.ConditionIndex].Met = true
	escrow.UpdatedAt = m.now()

	if err := m.store.UpdateEscrow(ctx, escrow); err != nil {
		return nil, err
	}
	return escrow, nil
}

type escrowActionInput struct {
	EscrowID      string `json:"escrowId"`
	WalletAddress string `json:"walletAddress"`
}

// Payout reports what one beneficiary received on release.
type Payout struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
	Amount  string `json:"amount"`
}

func (m *Market) releaseEscrow(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in escrowActionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrow, err := m.store.GetEscrow(ctx, in.EscrowID)
	if err != nil {
		return nil, tools.Errf(CodeEscrowNotFound, "escrow %s not found", in.EscrowID)
	}
	if escrow.Depositor != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "only the depositor can release escrow %s", escrow.ID)
	}
	if escrow.Status != store.EscrowStatusFunded {
		return nil, tools.Errf(CodeInvalidStatus, "escrow %s is %s, expected funded", escrow.ID, escrow.Status)
	}
	for i, c := range escrow.Conditions {
		if !c.Met {
			return nil, tools.Errf(CodeConditionsNotMet, "condition %d (%s) is not met", i, c.Type)
		}
	}

	now := m.now()

	// Per-beneficiary payout is floor(amount*share/100); the rounding
	// remainder is not distributed.
	payouts := make([]Payout, 0, len(escrow.Beneficiaries))
	for _, b := range escrow.Beneficiaries {
		amount, err := wei.Share(escrow.Amount, b.Share)
		if err != nil {
			return nil, tools.Errf(CodeValidation, "payout arithmetic: %v", err)
		}
		payouts = append(payouts, Payout{Address: b.Address, Share: b.Share, Amount: amount})

		// Credit beneficiaries that are registered agents. Unregistered
		// wallets still receive a payout entry but no reputation credit.
		agent, err := m.store.GetAgentByWallet(ctx, b.Address)
		if err != nil {
			continue
		}
		earnings, err := wei.Add(agent.Reputation.TotalEarnings, amount)
		if err == nil {
			agent.Reputation.TotalEarnings = earnings
		}
		agent.Reputation.TotalTasks++
		agent.Reputation.SuccessfulTasks++
		agent.Reputation.LastUpdated = now
		agent.UpdatedAt = now
		if err := m.store.UpdateAgent(ctx, agent); err != nil {
			return nil, err
		}
	}

	escrow.Status = store.EscrowStatusReleased
	escrow.UpdatedAt = now
	if err := m.store.UpdateEscrow(ctx, escrow); err != nil {
		return nil, err
	}

	// A validated task tied to this escrow completes its payment cycle.
	if escrow.TaskID != "" {
		if task, err := m.store.GetTask(ctx, escrow.TaskID); err == nil && task.Status == store.TaskStatusValidated {
			task.Status = store.TaskStatusPaid
			task.UpdatedAt = now
			if err := m.store.UpdateTask(ctx, task); err != nil {
				return nil, err
			}
		}
	}

	m.logger.Info("escrow released",
		"escrow_id", escrow.ID,
		"task_id", escrow.TaskID,
		"amount", escrow.Amount,
		"beneficiaries", len(payouts),
	)
	return map[string]any{"escrowId": escrow.ID, "status": escrow.Status, "payouts": payouts}, nil
}

func (m *Market) refundEscrow(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in escrowActionInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrow, err := m.store.GetEscrow(ctx, in.EscrowID)
	if err != nil {
		return nil, tools.Errf(CodeEscrowNotFound, "escrow %s not found", in.EscrowID)
	}
	if escrow.Depositor != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "only the depositor can refund escrow %s", escrow.ID)
	}
	if escrow.Status != store.EscrowStatusFunded {
		return nil, tools.Errf(CodeInvalidStatus, "escrow %s is %s, expected funded", escrow.ID, escrow.Status)
	}

	refundable := false
	if !escrow.Deadline.IsZero() && m.now().After(escrow.Deadline) {
		refundable = true
	}
	if !refundable && escrow.TaskID != "" {
		if task, err := m.store.GetTask(ctx, escrow.TaskID); err == nil && task.Status == store.TaskStatusCancelled {
			refundable = true
		}
	}
	if !refundable {
		return nil, tools.Errf(CodeInvalidStatus, "escrow %s is refundable only after task cancellation or deadline expiry", escrow.ID)
	}

	escrow.Status = store.EscrowStatusRefunded
	escrow.UpdatedAt = m.now()
	if err := m.store.UpdateEscrow(ctx, escrow); err != nil {
		return nil, err
	}

	m.logger.Info("escrow refunded", "escrow_id", escrow.ID, "amount", escrow.Amount)
	return escrow, nil
}

type disputeEscrowInput struct {
	EscrowID      string `json:"escrowId"`
	WalletAddress string `json:"walletAddress"`
	Reason        string `json:"reason"`
}

func (m *Market) disputeEscrow(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in disputeEscrowInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	escrow, err := m.store.GetEscrow(ctx, in.EscrowID)
	if err != nil {
		return nil, tools.Errf(CodeEscrowNotFound, "escrow %s not found", in.EscrowID)
	}

	party := escrow.Depositor == in.WalletAddress
	for _, b := range escrow.Beneficiaries {
		if b.Address == in.WalletAddress {
			party = true
			break
		}
	}
	if !party {
		return nil, tools.Errf(CodeUnauthorized, "wallet %s is neither depositor nor beneficiary of escrow %s", in.WalletAddress, escrow.ID)
	}
	if escrow.Status != store.EscrowStatusFunded {
		return nil, tools.Errf(CodeInvalidStatus, "escrow %s is %s, expected funded", escrow.ID, escrow.Status)
	}

	now := m.now()
	escrow.Status = store.EscrowStatusDisputed
	escrow.UpdatedAt = now
	if err := m.store.UpdateEscrow(ctx, escrow); err != nil {
		return nil, err
	}

	// Cross-entity side effect: the referenced task is marked disputed too.
	if escrow.TaskID != "" {
		if task, err := m.store.GetTask(ctx, escrow.TaskID); err == nil {
			if task.Status != store.TaskStatusCancelled && task.Status != store.TaskStatusPaid {
				task.Status = store.TaskStatusDisputed
				task.UpdatedAt = now
				if err := m.store.UpdateTask(ctx, task); err != nil {
					return nil, err
				}
			}
		}
	}

	m.logger.Info("escrow disputed", "escrow_id", escrow.ID, "by", in.WalletAddress, "reason", in.Reason)
	return escrow, nil
}
