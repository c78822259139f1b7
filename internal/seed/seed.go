// ABOUTME: Loads TOML fixture files and replays them through the tool dispatcher.
// ABOUTME: Seeding goes through the real tools so every fixture is validated like a client call.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/agoramesh/agora-gateway/internal/tools"
)

// File is a parsed fixture file.
type File struct {
	Agents    []Agent    `toml:"agents"`
	Tasks     []Task     `toml:"tasks"`
	Proposals []Proposal `toml:"proposals"`
}

// Agent seeds one register_agent call.
type Agent struct {
	Wallet       string       `toml:"wallet"`
	Name         string       `toml:"name"`
	Capabilities []Capability `toml:"capabilities"`
	Stake        string       `toml:"stake"`
}

// Capability is one priced capability on a seeded agent.
type Capability struct {
	Name     string `toml:"name"`
	Category string `toml:"category"`
	Price    string `toml:"price"`
}

// Task seeds one create_task call.
type Task struct {
	Creator              string    `toml:"creator"`
	Title                string    `toml:"title"`
	Description          string    `toml:"description"`
	RequiredCapabilities []string  `toml:"required_capabilities"`
	Reward               string    `toml:"reward"`
	Deadline             time.Time `toml:"deadline"`
	Mode                 string    `toml:"mode"`
	MaxAgents            int       `toml:"max_agents"`
}

// Proposal seeds one create_proposal call.
type Proposal struct {
	Proposer           string `toml:"proposer"`
	Title              string `toml:"title"`
	Description        string `toml:"description"`
	Category           string `toml:"category"`
	VotingDurationDays int    `toml:"voting_duration_days"`
}

// Load parses a fixture file.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return &f, nil
}

// Summary reports what a seeding run created.
type Summary struct {
	Agents    int
	Tasks     int
	Proposals int
}

// Apply replays the fixtures through the dispatcher. A failing envelope
// aborts the run: fixtures must satisfy the same validation as clients.
func Apply(ctx context.Context, d *tools.Dispatcher, f *File, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sum Summary

	for i, a := range f.Agents {
		caps := make([]map[string]any, len(a.Capabilities))
		for j, c := range a.Capabilities {
			caps[j] = map[string]any{"name": c.Name, "category": c.Category, "price": c.Price}
		}
		data, err := call(ctx, d, "register_agent", map[string]any{
			"walletAddress": a.Wallet,
			"name":          a.Name,
			"capabilities":  caps,
		})
		if err != nil {
			return sum, fmt.Errorf("seed agent %d (%s): %w", i, a.Name, err)
		}
		sum.Agents++

		if a.Stake != "" {
			var created struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data, &created); err != nil {
				return sum, fmt.Errorf("seed agent %d (%s): decode result: %w", i, a.Name, err)
			}
			if _, err := call(ctx, d, "stake_tokens", map[string]any{
				"agentId":       created.ID,
				"walletAddress": a.Wallet,
				"amount":        a.Stake,
			}); err != nil {
				return sum, fmt.Errorf("seed agent %d (%s) stake: %w", i, a.Name, err)
			}
		}
	}

	for i, t := range f.Tasks {
		args := map[string]any{
			"creator":  t.Creator,
			"title":    t.Title,
			"reward":   t.Reward,
			"deadline": t.Deadline.UTC().Format(time.RFC3339),
		}
		if t.Description != "" {
			args["description"] = t.Description
		}
		if len(t.RequiredCapabilities) > 0 {
			args["requiredCapabilities"] = t.RequiredCapabilities
		}
		if t.Mode != "" {
			args["mode"] = t.Mode
		}
		if t.MaxAgents > 0 {
			args["maxAgents"] = t.MaxAgents
		}
		if _, err := call(ctx, d, "create_task", args); err != nil {
			return sum, fmt.Errorf("seed task %d (%s): %w", i, t.Title, err)
		}
		sum.Tasks++
	}

	for i, p := range f.Proposals {
		args := map[string]any{
			"proposer": p.Proposer,
			"title":    p.Title,
			"category": p.Category,
		}
		if p.Description != "" {
			args["description"] = p.Description
		}
		if p.VotingDurationDays > 0 {
			args["votingDurationDays"] = p.VotingDurationDays
		}
		if _, err := call(ctx, d, "create_proposal", args); err != nil {
			return sum, fmt.Errorf("seed proposal %d (%s): %w", i, p.Title, err)
		}
		sum.Proposals++
	}

	logger.Info("seed applied", "agents", sum.Agents, "tasks", sum.Tasks, "proposals", sum.Proposals)
	return sum, nil
}

// call runs one tool and returns the data payload, or the domain error.
func call(ctx context.Context, d *tools.Dispatcher, name string, args map[string]any) (json.RawMessage, error) {
	input, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	env := d.Call(ctx, name, input, "seed-"+name)
	if !env.Success {
		return nil, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	data, err := json.Marshal(env.Data)
	if err != nil {
		return nil, err
	}
	return data, nil
}
