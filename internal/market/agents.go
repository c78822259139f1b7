// ABOUTME: Agents pack: registration, discovery, profile updates, and staking.
// ABOUTME: Agents are keyed by generated ID with a wallet-address secondary index.

package market

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
	"github.com/agoramesh/agora-gateway/internal/wei"
)

// CodeInsufficientStake is returned when an unstake exceeds the staked balance.
const CodeInsufficientStake = "INSUFFICIENT_STAKE"

// initialScore is the neutral reputation every agent starts with.
const initialScore = 500

var capabilityCategories = map[string]bool{
	store.CategoryResearch:   true,
	store.CategoryAnalysis:   true,
	store.CategoryCompute:    true,
	store.CategoryValidation: true,
	store.CategoryCreative:   true,
	store.CategoryData:       true,
}

var agentStatuses = map[string]bool{
	store.AgentStatusActive:    true,
	store.AgentStatusInactive:  true,
	store.AgentStatusSuspended: true,
	store.AgentStatusPending:   true,
}

// AgentsPack returns the agent registration and discovery tools.
func (m *Market) AgentsPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:agents",
		Tools: []*tools.Tool{
			{
				Name:        "register_agent",
				Description: "Register a new agent with priced capabilities",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"walletAddress":{"type":"string"},"name":{"type":"string"},"capabilities":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"category":{"type":"string","enum":["research","analysis","compute","validation","creative","data"]},"price":{"type":"string"}},"required":["name","category","price"]}}},"required":["walletAddress","name","capabilities"]}`),
				Handler:     m.locked(m.registerAgent),
			},
			{
				Name:        "get_agent",
				Description: "Fetch an agent by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"}},"required":["agentId"]}`),
				Handler:     m.locked(m.getAgent),
			},
			{
				Name:        "update_agent",
				Description: "Update an agent's profile, capabilities, or status",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"},"walletAddress":{"type":"string"},"name":{"type":"string"},"capabilities":{"type":"array"},"status":{"type":"string","enum":["active","inactive","suspended","pending"]}},"required":["agentId","walletAddress"]}`),
				Handler:     m.locked(m.updateAgent),
			},
			{
				Name:        "list_agents",
				Description: "List agents with optional status and reputation filters",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"},"minReputation":{"type":"integer"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listAgents),
			},
			{
				Name:        "discover_agents",
				Description: "Discover active agents by capability category, price, reputation, or text search",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"capabilities":{"type":"array","items":{"type":"string"}},"maxPrice":{"type":"string"},"minReputation":{"type":"integer"},"query":{"type":"string"},"sortBy":{"type":"string","enum":["reputation","price","tasks","earnings"]},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.discoverAgents),
			},
			{
				Name:        "stake_tokens",
				Description: "Add stake to an agent",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"},"walletAddress":{"type":"string"},"amount":{"type":"string"}},"required":["agentId","walletAddress","amount"]}`),
				Handler:     m.locked(m.stakeTokens),
			},
			{
				Name:        "unstake_tokens",
				Description: "Withdraw stake from an agent",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"},"walletAddress":{"type":"string"},"amount":{"type":"string"}},"required":["agentId","walletAddress","amount"]}`),
				Handler:     m.locked(m.unstakeTokens),
			},
			{
				Name:        "get_agent_reputation",
				Description: "Fetch an agent's reputation block",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"}},"required":["agentId"]}`),
				Handler:     m.locked(m.getAgentReputation),
			},
		},
	}
}

type registerAgentInput struct {
	WalletAddress string             `json:"walletAddress"`
	Name          string             `json:"name"`
	Capabilities  []store.Capability `json:"capabilities"`
}

func (m *Market) registerAgent(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in registerAgentInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.WalletAddress) {
		return nil, tools.Errf(CodeValidation, "walletAddress must be 0x-prefixed")
	}
	if in.Name == "" {
		return nil, tools.Errf(CodeValidation, "name is required")
	}
	if len(in.Capabilities) == 0 {
		return nil, tools.Errf(CodeValidation, "at least one capability is required")
	}
	for _, c := range in.Capabilities {
		if c.Name == "" {
			return nil, tools.Errf(CodeValidation, "capability name is required")
		}
		if !capabilityCategories[c.Category] {
			return nil, tools.Errf(CodeValidation, "unknown capability category %q", c.Category)
		}
		if !wei.Valid(c.Price) {
			return nil, tools.Errf(CodeValidation, "capability %q has invalid price %q", c.Name, c.Price)
		}
	}

	if existing, err := m.store.GetAgentByWallet(ctx, in.WalletAddress); err == nil {
		return nil, tools.Errf(CodeAgentExists, "wallet %s already registered as agent %s", in.WalletAddress, existing.ID)
	}

	now := m.now()
	agent := &store.Agent{
		ID:            m.newID(),
		WalletAddress: in.WalletAddress,
		Name:          in.Name,
		Capabilities:  in.Capabilities,
		Reputation: store.Reputation{
			Score:         initialScore,
			TotalEarnings: "0",
			TotalStake:    "0",
			LastUpdated:   now,
		},
		Status:    store.AgentStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}

	m.logger.Info("agent registered", "agent_id", agent.ID, "wallet", agent.WalletAddress)
	return agent, nil
}

type agentIDInput struct {
	AgentID string `json:"agentId"`
}

func (m *Market) getAgent(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in agentIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	agent, err := m.store.GetAgent(ctx, in.AgentID)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	return agent, nil
}

type updateAgentInput struct {
	AgentID       string             `json:"agentId"`
	WalletAddress string             `json:"walletAddress"`
	Name          string             `json:"name"`
	Capabilities  []store.Capability `json:"capabilities"`
	Status        string             `json:"status"`
}

func (m *Market) updateAgent(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in updateAgentInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	agent, err := m.store.GetAgent(ctx, in.AgentID)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	if agent.WalletAddress != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "wallet does not own agent %s", in.AgentID)
	}

	if in.Name != "" {
		agent.Name = in.Name
	}
	if in.Capabilities != nil {
		// An agent with nothing to sell has no place in the market, same
		// rule as registration. Omit the field to keep the current set.
		if len(in.Capabilities) == 0 {
			return nil, tools.Errf(CodeValidation, "at least one capability is required")
		}
		for _, c := range in.Capabilities {
			if !capabilityCategories[c.Category] {
				return nil, tools.Errf(CodeValidation, "unknown capability category %q", c.Category)
			}
			if !wei.Valid(c.Price) {
				return nil, tools.Errf(CodeValidation, "capability %q has invalid price %q", c.Name, c.Price)
			}
		}
		agent.Capabilities = in.Capabilities
	}
	if in.Status != "" {
		if !agentStatuses[in.Status] {
			return nil, tools.Errf(CodeValidation, "unknown status %q", in.Status)
		}
		agent.Status = in.Status
	}
	agent.UpdatedAt = m.now()

	if err := m.store.UpdateAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

type listAgentsInput struct {
	Status        string `json:"status"`
	MinReputation int    `json:"minReputation"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
}

func (m *Market) listAgents(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listAgentsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	agents, err := m.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	agents = store.Filter(agents, func(a *store.Agent) bool {
		if in.Status != "" && a.Status != in.Status {
			return false
		}
		return a.Reputation.Score >= in.MinReputation
	})
	agents = store.Paginate(agents, in.Limit, in.Offset)

	return map[string]any{"agents": agents, "count": len(agents)}, nil
}

type discoverAgentsInput struct {
	Capabilities  []string `json:"capabilities"`
	MaxPrice      string   `json:"maxPrice"`
	MinReputation int      `json:"minReputation"`
	Query         string   `json:"query"`
	SortBy        string   `json:"sortBy"`
	Limit         int      `json:"limit"`
	Offset        int      `json:"offset"`
}

func (m *Market) discoverAgents(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in discoverAgentsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.MaxPrice != "" && !wei.Valid(in.MaxPrice) {
		return nil, tools.Errf(CodeValidation, "invalid maxPrice %q", in.MaxPrice)
	}

	agents, err := m.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	agents = store.Filter(agents, func(a *store.Agent) bool {
		if a.Status != store.AgentStatusActive {
			return false
		}
		if a.Reputation.Score < in.MinReputation {
			return false
		}
		if len(in.Capabilities) > 0 && !hasAnyCategory(a, in.Capabilities) {
			return false
		}
		if in.MaxPrice != "" {
			low, ok := lowestPrice(a, in.Capabilities)
			if !ok || wei.Cmp(low, in.MaxPrice) > 0 {
				return false
			}
		}
		if in.Query != "" && !matchesQuery(a, in.Query) {
			return false
		}
		return true
	})

	switch in.SortBy {
	case "price":
		store.SortDesc(agents, func(a, b *store.Agent) bool {
			pa, _ := lowestPrice(a, in.Capabilities)
			pb, _ := lowestPrice(b, in.Capabilities)
			return wei.Cmp(pa, pb) < 0
		})
	case "tasks":
		store.SortDesc(agents, func(a, b *store.Agent) bool {
			return a.Reputation.TotalTasks < b.Reputation.TotalTasks
		})
	case "earnings":
		store.SortDesc(agents, func(a, b *store.Agent) bool {
			return wei.Cmp(a.Reputation.TotalEarnings, b.Reputation.TotalEarnings) < 0
		})
	default: // reputation
		store.SortDesc(agents, func(a, b *store.Agent) bool {
			return a.Reputation.Score < b.Reputation.Score
		})
	}

	agents = store.Paginate(agents, in.Limit, in.Offset)
	return map[string]any{"agents": agents, "count": len(agents)}, nil
}

type stakeInput struct {
	AgentID       string `json:"agentId"`
	WalletAddress string `json:"walletAddress"`
	Amount        string `json:"amount"`
}

func (m *Market) stakeTokens(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in stakeInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !wei.Valid(in.Amount) || in.Amount == "" || in.Amount == "0" {
		return nil, tools.Errf(CodeValidation, "amount must be a positive decimal string")
	}

	agent, err := m.store.GetAgent(ctx, in.AgentID)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	if agent.WalletAddress != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "wallet does not own agent %s", in.AgentID)
	}

	total, err := wei.Add(agent.Reputation.TotalStake, in.Amount)
	if err != nil {
		return nil, tools.Errf(CodeValidation, "stake arithmetic: %v", err)
	}
	agent.Reputation.TotalStake = total
	agent.Reputation.LastUpdated = m.now()
	agent.UpdatedAt = agent.Reputation.LastUpdated

	if err := m.store.UpdateAgent(ctx, agent); err != nil {
		return nil, err
	}

	m.logger.Info("stake added", "agent_id", agent.ID, "amount", in.Amount, "total_stake", total)
	return map[string]any{"agentId": agent.ID, "totalStake": total}, nil
}

func (m *Market) unstakeTokens(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in stakeInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !wei.Valid(in.Amount) || in.Amount == "" || in.Amount == "0" {
		return nil, tools.Errf(CodeValidation, "amount must be a positive decimal string")
	}

	agent, err := m.store.GetAgent(ctx, in.AgentID)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	if agent.WalletAddress != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "wallet does not own agent %s", in.AgentID)
	}

	total, err := wei.Sub(agent.Reputation.TotalStake, in.Amount)
	if err != nil {
		return nil, tools.Errf(CodeInsufficientStake, "staked balance %s is less than %s", agent.Reputation.TotalStake, in.Amount)
	}
	agent.Reputation.TotalStake = total
	agent.Reputation.LastUpdated = m.now()
	agent.UpdatedAt = agent.Reputation.LastUpdated

	if err := m.store.UpdateAgent(ctx, agent); err != nil {
		return nil, err
	}

	m.logger.Info("stake withdrawn", "agent_id", agent.ID, "amount", in.Amount, "total_stake", total)
	return map[string]any{"agentId": agent.ID, "totalStake": total}, nil
}

func (m *Market) getAgentReputation(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in agentIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	agent, err := m.store.GetAgent(ctx, in.AgentID)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	return map[string]any{"agentId": agent.ID, "reputation": agent.Reputation}, nil
}

// hasAnyCategory reports whether the agent offers a capability in any of
// the requested categories.
func hasAnyCategory(a *store.Agent, categories []string) bool {
	for _, c := range a.Capabilities {
		for _, want := range categories {
			if c.Category == want {
				return true
			}
		}
	}
	return false
}

// lowestPrice returns the agent's cheapest capability price, restricted to
// the given categories when provided.
func lowestPrice(a *store.Agent, categories []string) (string, bool) {
	var best string
	found := false
	for _, c := range a.Capabilities {
		if len(categories) > 0 {
			match := false
			for _, want := range categories {
				if c.Category == want {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if !found || wei.Cmp(c.Price, best) < 0 {
			best = c.Price
			found = true
		}
	}
	return best, found
}

// matchesQuery does a case-insensitive substring match over the agent name
// and capability names.
func matchesQuery(a *store.Agent, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(a.Name), q) {
		return true
	}
	for _, c := range a.Capabilities {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return true
		}
	}
	return false
}
