// ABOUTME: Tests for the agents pack: registration, updates, discovery, staking.

package market

import (
	"testing"

	"github.com/agoramesh/agora-gateway/internal/store"
)

func TestRegisterAgent(t *testing.T) {
	f := newFixture(t)

	agent := f.registerAgent("0xaaa", "Summarizer")
	if agent.Status != store.AgentStatusActive {
		t.Errorf("status = %s, want active", agent.Status)
	}
	if agent.Reputation.Score != 500 {
		t.Errorf("initial score = %d, want 500", agent.Reputation.Score)
	}
	if agent.Reputation.TotalStake != "0" {
		t.Errorf("initial stake = %s, want 0", agent.Reputation.TotalStake)
	}
	if agent.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestRegisterAgentDuplicateWallet(t *testing.T) {
	f := newFixture(t)
	f.registerAgent("0xaaa", "First")
	f.wantCode("register_agent",
		`{"walletAddress":"0xaaa","name":"Second","capabilities":[{"name":"x","category":"research","price":"1"}]}`,
		CodeAgentExists)
}

func TestRegisterAgentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input string
	}{
		{"missing wallet prefix", `{"walletAddress":"abc","name":"A","capabilities":[{"name":"x","category":"research","price":"1"}]}`},
		{"empty name", `{"walletAddress":"0xaaa","name":"","capabilities":[{"name":"x","category":"research","price":"1"}]}`},
		{"no capabilities", `{"walletAddress":"0xaaa","name":"A","capabilities":[]}`},
		{"bad category", `{"walletAddress":"0xaaa","name":"A","capabilities":[{"name":"x","category":"sorcery","price":"1"}]}`},
		{"negative price", `{"walletAddress":"0xaaa","name":"A","capabilities":[{"name":"x","category":"research","price":"-5"}]}`},
		{"non-numeric price", `{"walletAddress":"0xaaa","name":"A","capabilities":[{"name":"x","category":"research","price":"1.5"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.wantCode("register_agent", tc.input, CodeValidation)
		})
	}
}

func TestGetAgentNotFound(t *testing.T) {
	f := newFixture(t)
	f.wantCode("get_agent", `{"agentId":"nope"}`, CodeAgentNotFound)
}

func TestUpdateAgentOwnership(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Original")

	f.wantCode("update_agent",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xbbb","name":"Hijacked"}`,
		CodeUnauthorized)

	out := f.mustCall("update_agent",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","name":"Renamed","status":"inactive"}`)
	updated := out.(*store.Agent)
	if updated.Name != "Renamed" {
		t.Errorf("name = %s, want Renamed", updated.Name)
	}
	if updated.Status != store.AgentStatusInactive {
		t.Errorf("status = %s, want inactive", updated.Status)
	}
}

func TestUpdateAgentRejectsEmptyCapabilities(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Seller")

	f.wantCode("update_agent",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","capabilities":[]}`,
		CodeValidation)

	// Omitting the field keeps the existing set.
	out := f.mustCall("update_agent",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","name":"Renamed"}`)
	if got := len(out.(*store.Agent).Capabilities); got != 1 {
		t.Errorf("capabilities = %d, want 1", got)
	}
}

func TestListAgentsFilters(t *testing.T) {
	f := newFixture(t)
	f.registerAgent("0xaaa", "A")
	b := f.registerAgent("0xbbb", "B")
	f.mustCall("update_agent", `{"agentId":"`+b.ID+`","walletAddress":"0xbbb","status":"suspended"}`)

	out := f.mustCall("list_agents", `{"status":"active"}`)
	resp := out.(map[string]any)
	if resp["count"].(int) != 1 {
		t.Errorf("active count = %v, want 1", resp["count"])
	}

	out = f.mustCall("list_agents", `{"minReputation":600}`)
	resp = out.(map[string]any)
	if resp["count"].(int) != 0 {
		t.Errorf("minReputation count = %v, want 0", resp["count"])
	}
}

func TestDiscoverAgents(t *testing.T) {
	f := newFixture(t)

	f.mustCall("register_agent",
		`{"walletAddress":"0xaaa","name":"Cheap Researcher","capabilities":[{"name":"search","category":"research","price":"100"}]}`)
	f.mustCall("register_agent",
		`{"walletAddress":"0xbbb","name":"Pricey Analyst","capabilities":[{"name":"analyze","category":"analysis","price":"900"}]}`)
	c := f.registerAgent("0xccc", "Idle")
	f.mustCall("update_agent", `{"agentId":"`+c.ID+`","walletAddress":"0xccc","status":"inactive"}`)

	// Inactive agents never surface.
	out := f.mustCall("discover_agents", `{}`)
	resp := out.(map[string]any)
	if resp["count"].(int) != 2 {
		t.Fatalf("count = %v, want 2", resp["count"])
	}

	// Category filter.
	out = f.mustCall("discover_agents", `{"capabilities":["analysis"]}`)
	resp = out.(map[string]any)
	agents := resp["agents"].([]*store.Agent)
	if len(agents) != 1 || agents[0].Name != "Pricey Analyst" {
		t.Errorf("analysis filter returned %d agents", len(agents))
	}

	// Price ceiling.
	out = f.mustCall("discover_agents", `{"maxPrice":"500"}`)
	resp = out.(map[string]any)
	agents = resp["agents"].([]*store.Agent)
	if len(agents) != 1 || agents[0].Name != "Cheap Researcher" {
		t.Errorf("maxPrice filter returned %d agents", len(agents))
	}

	// Text search over names and capability names, case-insensitive.
	out = f.mustCall("discover_agents", `{"query":"ANALY"}`)
	resp = out.(map[string]any)
	agents = resp["agents"].([]*store.Agent)
	if len(agents) != 1 || agents[0].Name != "Pricey Analyst" {
		t.Errorf("query filter returned %d agents", len(agents))
	}
}

func TestDiscoverAgentsSortByReputation(t *testing.T) {
	f := newFixture(t)
	low := f.registerAgent("0xaaa", "Low")
	high := f.registerAgent("0xbbb", "High")

	// Push High's score up with a five-star attestation.
	f.mustCall("submit_attestation",
		`{"attestor":"0xccc","subject":"`+high.ID+`","rating":5,"category":"quality"}`)

	out := f.mustCall("discover_agents", `{"sortBy":"reputation"}`)
	agents := out.(map[string]any)["agents"].([]*store.Agent)
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].ID != high.ID || agents[1].ID != low.ID {
		t.Errorf("order = [%s, %s], want [High, Low]", agents[0].Name, agents[1].Name)
	}
}

func TestStakeAndUnstake(t *testing.T) {
	f := newFixture(t)
	agent := f.registerAgent("0xaaa", "Staker")

	out := f.mustCall("stake_tokens",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","amount":"5000000000000000000"}`)
	resp := out.(map[string]any)
	if resp["totalStake"] != "5000000000000000000" {
		t.Errorf("totalStake = %v", resp["totalStake"])
	}

	out = f.mustCall("unstake_tokens",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","amount":"2000000000000000000"}`)
	resp = out.(map[string]any)
	if resp["totalStake"] != "3000000000000000000" {
		t.Errorf("totalStake after unstake = %v", resp["totalStake"])
	}

	f.wantCode("unstake_tokens",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xaaa","amount":"9000000000000000000"}`,
		CodeInsufficientStake)

	f.wantCode("stake_tokens",
		`{"agentId":"`+agent.ID+`","walletAddress":"0xbbb","amount":"1"}`,
		CodeUnauthorized)
}
