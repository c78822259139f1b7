// ABOUTME: Prompt templates served over MCP prompts/list and prompts/get.
// ABOUTME: Templates are parsed once at startup; rendering fills named arguments.

package prompts

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Argument describes one template parameter.
type Argument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt describes a registered template.
type Prompt struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Arguments   []Argument `json:"arguments,omitempty"`
}

type promptEntry struct {
	meta Prompt
	tmpl *template.Template
}

// Registry holds the prompt set. Read-only after New.
type Registry struct {
	prompts map[string]*promptEntry
}

// New builds the registry with the built-in prompts.
func New() (*Registry, error) {
	r := &Registry{prompts: make(map[string]*promptEntry)}
	for _, def := range builtins {
		tmpl, err := template.New(def.meta.Name).Option("missingkey=error").Parse(def.text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", def.meta.Name, err)
		}
		r.prompts[def.meta.Name] = &promptEntry{meta: def.meta, tmpl: tmpl}
	}
	return r, nil
}

// List returns prompt metadata sorted by name.
func (r *Registry) List() []Prompt {
	out := make([]Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		out = append(out, p.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Render fills a prompt template with the given arguments. Missing
// required arguments are an error; unknown prompt names are an error.
func (r *Registry) Render(name string, args map[string]string) (Prompt, string, error) {
	p, ok := r.prompts[name]
	if !ok {
		return Prompt{}, "", fmt.Errorf("prompt %q not found", name)
	}
	for _, a := range p.meta.Arguments {
		if !a.Required {
			continue
		}
		if args[a.Name] == "" {
			return Prompt{}, "", fmt.Errorf("prompt %q requires argument %q", name, a.Name)
		}
	}

	data := make(map[string]string, len(p.meta.Arguments))
	for _, a := range p.meta.Arguments {
		data[a.Name] = args[a.Name]
	}

	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, data); err != nil {
		return Prompt{}, "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return p.meta, sb.String(), nil
}

type builtinDef struct {
	meta Prompt
	text string
}

var builtins = []builtinDef{
	{
		meta: Prompt{
			Name:        "agent-onboarding",
			Description: "Walk a new agent through registration and its first task",
			Arguments: []Argument{
				{Name: "agentName", Description: "Display name for the new agent", Required: true},
				{Name: "category", Description: "Primary capability category", Required: true},
			},
		},
		text: `You are onboarding onto the Agora marketplace as {{.agentName}}.

1. Call register_agent with your wallet address, the name {{.agentName}},
   and at least one priced capability in the {{.category}} category.
2. Call discover_agents to see who else offers {{.category}} work and at
   what price, then set your own prices competitively.
3. Call list_tasks with status "open" and bid on a task that matches
   your capabilities with bid_on_task.
4. After finishing the work, call submit_result and wait for validation.

Reputation starts at 500. Every attestation you earn moves it; keep it
above the marketplace average to rank higher in discovery.`,
	},
	{
		meta: Prompt{
			Name:        "task-briefing",
			Description: "Brief an assigned agent on a task and its payment terms",
			Arguments: []Argument{
				{Name: "taskId", Description: "Task to brief on", Required: true},
				{Name: "escrowId", Description: "Escrow funding the task", Required: false},
			},
		},
		text: `Review task {{.taskId}} before starting work.

Call get_task with taskId {{.taskId}} and confirm the reward, deadline,
and required capabilities.{{if .escrowId}} The reward is locked in
escrow {{.escrowId}}; call get_escrow to confirm the amount matches and
to read the release conditions — your payout only moves once every
condition is met.{{end}}

When the work is done, call submit_result. The creator validates the
submission; a validated task tied to a released escrow is marked paid
and your earnings are credited.`,
	},
	{
		meta: Prompt{
			Name:        "dispute-review",
			Description: "Guide a neutral reviewer through a disputed task",
			Arguments: []Argument{
				{Name: "taskId", Description: "Disputed task to review", Required: true},
			},
		},
		text: `Task {{.taskId}} is disputed. Review it as a neutral party.

1. Call get_task and list_submissions for {{.taskId}} to read what was
   asked and what was delivered.
2. Call list_escrows with taskId {{.taskId}} to find the locked funds
   and their conditions.
3. Call list_attestations for the agents involved to weigh their track
   records, and get_trust_score between the creator's and worker's
   agents if both are registered.
4. Recommend either releasing the escrow (work acceptable), refunding it
   (work not delivered), or splitting via a fresh escrow with adjusted
   shares.`,
	},
}
