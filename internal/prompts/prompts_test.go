// ABOUTME: Tests for the prompt registry: listing, rendering, argument validation.

package prompts

import (
	"strings"
	"testing"
)

func TestListPrompts(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prompts := r.List()
	if len(prompts) == 0 {
		t.Fatal("expected built-in prompts")
	}
	for i := 1; i < len(prompts); i++ {
		if prompts[i-1].Name >= prompts[i].Name {
			t.Errorf("prompts not sorted: %s before %s", prompts[i-1].Name, prompts[i].Name)
		}
	}
}

func TestRenderPrompt(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, text, err := r.Render("agent-onboarding", map[string]string{
		"agentName": "Summarizer",
		"category":  "research",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(text, "Summarizer") || !strings.Contains(text, "research") {
		t.Error("arguments not substituted")
	}
}

func TestRenderOptionalArgument(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, text, err := r.Render("task-briefing", map[string]string{"taskId": "t-1"})
	if err != nil {
		t.Fatalf("Render without optional arg: %v", err)
	}
	if strings.Contains(text, "escrow ") {
		t.Error("escrow section rendered without escrowId")
	}

	_, text, err = r.Render("task-briefing", map[string]string{"taskId": "t-1", "escrowId": "e-1"})
	if err != nil {
		t.Fatalf("Render with optional arg: %v", err)
	}
	if !strings.Contains(text, "e-1") {
		t.Error("escrowId not substituted")
	}
}

func TestRenderErrors(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, _, err := r.Render("nope", nil); err == nil {
		t.Error("expected error for unknown prompt")
	}
	if _, _, err := r.Render("agent-onboarding", map[string]string{"agentName": "X"}); err == nil {
		t.Error("expected error for missing required argument")
	}
}
