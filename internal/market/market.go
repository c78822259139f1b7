// ABOUTME: Market owns the marketplace state and exposes the seven tool packs.
// ABOUTME: One mutex serializes every tool call so cross-entity mutations are atomic.

package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

// generateID produces a fresh entity identifier. IDs are never reused.
func generateID() string {
	return uuid.New().String()
}

// Domain error codes shared across the tool modules.
const (
	CodeAgentNotFound    = "AGENT_NOT_FOUND"
	CodeAgentExists      = "AGENT_EXISTS"
	CodeTaskNotFound     = "TASK_NOT_FOUND"
	CodeEscrowNotFound   = "ESCROW_NOT_FOUND"
	CodeAttestNotFound   = "ATTESTATION_NOT_FOUND"
	CodeProposalNotFound = "PROPOSAL_NOT_FOUND"
	CodeCollabNotFound   = "COLLABORATION_NOT_FOUND"
	CodeMessageNotFound  = "MESSAGE_NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeTaskNotOpen      = "TASK_NOT_OPEN"
	CodeTaskFull         = "TASK_FULL"
	CodeAlreadyAssigned  = "ALREADY_ASSIGNED"
	CodeCannotCancel     = "CANNOT_CANCEL"
	CodeAlreadyVoted     = "ALREADY_VOTED"
	CodeNotParticipant   = "NOT_PARTICIPANT"
	CodeConditionsNotMet = "CONDITIONS_NOT_MET"
	CodeVotingClosed     = "VOTING_CLOSED"
	CodeValidation       = "VALIDATION"
)

// Behavioral constants.
const (
	// reputationStep is the per-rating-point score delta: (rating-3)*reputationStep.
	reputationStep = 5

	// Voting power components.
	votingBasePower = 100
	scorePerVote    = 10 // one bonus vote per 10 reputation points

	// Trust score weights.
	trustPerAttestation = 10
	trustMutualBonus    = 50
	trustReputationDiv  = 20
	trustPerRatingPoint = 10
	trustCeiling        = 1000
)

// Market implements the marketplace tool handlers over an injected store.
//
// The single mutex is a deliberate upgrade over the event-loop serialization
// of the original system: each tool call, including its cross-entity side
// effects, executes atomically with respect to every other call.
type Market struct {
	mu     sync.Mutex
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Config configures a Market.
type Config struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time // defaults to time.Now; injectable for tests
	NewID  func() string    // defaults to UUID generation
}

// New creates a Market.
func New(cfg Config) *Market {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = generateID
	}
	return &Market{
		store:  cfg.Store,
		logger: logger,
		now:    now,
		newID:  newID,
	}
}

// Packs returns every tool pack the market exposes.
func (m *Market) Packs() []*tools.Pack {
	return []*tools.Pack{
		m.AgentsPack(),
		m.TasksPack(),
		m.EscrowPack(),
		m.ReputationPack(),
		m.GovernancePack(),
		m.CollaborationPack(),
		m.MessagingPack(),
	}
}

// locked wraps a handler so it runs under the market mutex.
func (m *Market) locked(h tools.Handler) tools.Handler {
	return func(ctx context.Context, input json.RawMessage, call tools.Call) (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return h(ctx, input, call)
	}
}

// decode unmarshals tool input into a typed request struct, converting
// malformed JSON into a structured VALIDATION error instead of letting the
// handler fault on missing fields.
func decode(input json.RawMessage, v any) *tools.Error {
	if err := json.Unmarshal(input, v); err != nil {
		return tools.Errf(CodeValidation, "invalid input: %v", err)
	}
	return nil
}

// validWallet checks the opaque wallet address shape: 0x-prefixed, at
// least one character after the prefix. Content is not verified.
func validWallet(addr string) bool {
	return len(addr) > 2 && addr[0] == '0' && addr[1] == 'x'
}

// clampScore bounds a reputation score to [ScoreFloor, ScoreCeiling].
func clampScore(score int) int {
	if score < store.ScoreFloor {
		return store.ScoreFloor
	}
	if score > store.ScoreCeiling {
		return store.ScoreCeiling
	}
	return score
}
