// ABOUTME: Tests for fixture loading and replay through the real tool handlers.

package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/agoramesh/agora-gateway/internal/market"
	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

const fixture = `
[[agents]]
wallet = "0xaaa"
name = "Summarizer"
stake = "2000000000000000000"

[[agents.capabilities]]
name = "summarize"
category = "research"
price = "1000000000000000000"

[[agents]]
wallet = "0xbbb"
name = "Validator"

[[agents.capabilities]]
name = "review"
category = "validation"
price = "500000000000000000"

[[tasks]]
creator = "0xccc"
title = "Summarize the quarterly report"
reward = "3000000000000000000"
deadline = 2030-01-01T00:00:00Z
mode = "single"

[[proposals]]
proposer = "0xaaa"
title = "Lower the validation quorum"
category = "parameter"
voting_duration_days = 7
`

func newDispatcher(t *testing.T) *tools.Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := market.New(market.Config{Store: store.NewMemStore(), Logger: logger})
	registry := tools.NewRegistry(logger)
	for _, pack := range m.Packs() {
		if err := registry.RegisterPack(pack); err != nil {
			t.Fatalf("register pack: %v", err)
		}
	}
	return tools.NewDispatcher(tools.DispatcherConfig{Registry: registry, Logger: logger})
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndApply(t *testing.T) {
	f, err := Load(writeFixture(t, fixture))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Agents) != 2 || len(f.Tasks) != 1 || len(f.Proposals) != 1 {
		t.Fatalf("parsed %d agents, %d tasks, %d proposals", len(f.Agents), len(f.Tasks), len(f.Proposals))
	}

	d := newDispatcher(t)
	sum, err := Apply(context.Background(), d, f, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Agents != 2 || sum.Tasks != 1 || sum.Proposals != 1 {
		t.Errorf("summary = %+v", sum)
	}

	// The staked agent's voting power reflects the fixture stake.
	env := d.Call(context.Background(), "get_voting_power",
		[]byte(`{"walletAddress":"0xaaa"}`), "test")
	if !env.Success {
		t.Fatalf("get_voting_power: %v", env.Error)
	}
	power := env.Data.(map[string]any)["votingPower"]
	if power != "152" {
		t.Errorf("votingPower = %v, want 152", power)
	}
}

func TestApplyRejectsInvalidFixture(t *testing.T) {
	f, err := Load(writeFixture(t, `
[[agents]]
wallet = "not-a-wallet"
name = "Broken"

[[agents.capabilities]]
name = "x"
category = "research"
price = "1"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	d := newDispatcher(t)
	if _, err := Apply(context.Background(), d, f, nil); err == nil {
		t.Error("expected validation failure from seeded agent")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
