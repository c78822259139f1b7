// ABOUTME: Shared test fixture for the market packs.
// ABOUTME: Uses a manual clock and sequential IDs so lifecycle tests are deterministic.

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

type fixture struct {
	t     *testing.T
	m     *Market
	clock time.Time
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemStore())
}

func newFixtureWithStore(t *testing.T, s store.Store) *fixture {
	t.Helper()
	f := &fixture{t: t, clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	f.m = New(Config{
		Store:  s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return f.clock },
		NewID: func() string {
			f.seq++
			return fmt.Sprintf("id-%d", f.seq)
		},
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) handler(name string) tools.Handler {
	f.t.Helper()
	for _, pack := range f.m.Packs() {
		for _, tool := range pack.Tools {
			if tool.Name == name {
				return tool.Handler
			}
		}
	}
	f.t.Fatalf("tool %s not found", name)
	return nil
}

func (f *fixture) call(name, input string) (any, error) {
	f.t.Helper()
	h := f.handler(name)
	return h(context.Background(), json.RawMessage(input), tools.Call{RequestID: "req-test", Timestamp: f.clock})
}

func (f *fixture) mustCall(name, input string) any {
	f.t.Helper()
	out, err := f.call(name, input)
	if err != nil {
		f.t.Fatalf("%s: %v", name, err)
	}
	return out
}

// wantCode asserts the call fails with the given domain error code.
func (f *fixture) wantCode(name, input, code string) {
	f.t.Helper()
	_, err := f.call(name, input)
	if err == nil {
		f.t.Fatalf("%s: expected %s error, got success", name, code)
	}
	var te *tools.Error
	if !errors.As(err, &te) {
		f.t.Fatalf("%s: expected domain error, got %v", name, err)
	}
	if te.Code != code {
		f.t.Errorf("%s: code = %s, want %s", name, te.Code, code)
	}
}

func (f *fixture) registerAgent(wallet, name string) *store.Agent {
	f.t.Helper()
	out := f.mustCall("register_agent",
		`{"walletAddress":"`+wallet+`","name":"`+name+`","capabilities":[{"name":"summarize","category":"research","price":"1000"}]}`)
	return out.(*store.Agent)
}

func TestPacksRegisterWithoutCollision(t *testing.T) {
	f := newFixture(t)
	reg := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, pack := range f.m.Packs() {
		if err := reg.RegisterPack(pack); err != nil {
			t.Fatalf("register pack %s: %v", pack.ID, err)
		}
	}
	if reg.Count() < 40 {
		t.Errorf("expected the full tool surface, got %d tools", reg.Count())
	}
	for _, tool := range reg.List() {
		if len(tool.InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
		if tool.Description == "" {
			t.Errorf("tool %s has no description", tool.Name)
		}
	}
}

func TestMalformedInputIsValidationError(t *testing.T) {
	f := newFixture(t)
	f.wantCode("register_agent", `{"walletAddress": 42}`, CodeValidation)
	f.wantCode("create_task", `not json`, CodeValidation)
}

// TestConcurrentReadAndWrite drives a reading tool and a mutating tool from
// separate goroutines and serializes every read result, the same shape of
// work the HTTP transport does after a handler returns. Run with -race.
func TestConcurrentReadAndWrite(t *testing.T) {
	m := New(Config{
		Store:  store.NewMemStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	lookup := func(name string) tools.Handler {
		for _, pack := range m.Packs() {
			for _, tool := range pack.Tools {
				if tool.Name == name {
					return tool.Handler
				}
			}
		}
		t.Fatalf("tool %s not found", name)
		return nil
	}
	ctx := context.Background()

	out, err := lookup("register_agent")(ctx, json.RawMessage(
		`{"walletAddress":"0xaaa","name":"Subject","capabilities":[{"name":"summarize","category":"research","price":"1000"}]}`),
		tools.Call{})
	if err != nil {
		t.Fatalf("register_agent: %v", err)
	}
	subject := out.(*store.Agent)

	get := lookup("get_agent")
	attest := lookup("submit_attestation")
	getInput := json.RawMessage(`{"agentId":"` + subject.ID + `"}`)
	attInput := json.RawMessage(`{"attestor":"0xbbb","subject":"` + subject.ID + `","rating":5,"category":"quality"}`)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			res, err := get(ctx, getInput, tools.Call{})
			if err != nil {
				t.Errorf("get_agent: %v", err)
				return
			}
			if _, err := json.Marshal(res); err != nil {
				t.Errorf("marshal agent: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if _, err := attest(ctx, attInput, tools.Call{}); err != nil {
				t.Errorf("submit_attestation: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
