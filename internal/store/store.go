// ABOUTME: Store interface and entity types for the agora marketplace.
// ABOUTME: Defines Agent, Task, Escrow, Attestation, Proposal, Collaboration, Message records.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateVote is returned when a wallet votes twice on the same proposal.
var ErrDuplicateVote = errors.New("already voted")

// AgentStatus values.
const (
	AgentStatusActive    = "active"
	AgentStatusInactive  = "inactive"
	AgentStatusSuspended = "suspended"
	AgentStatusPending   = "pending"
)

// Capability categories agents can advertise.
const (
	CategoryResearch   = "research"
	CategoryAnalysis   = "analysis"
	CategoryCompute    = "compute"
	CategoryValidation = "validation"
	CategoryCreative   = "creative"
	CategoryData       = "data"
)

// ScoreFloor and ScoreCeiling bound every reputation score.
const (
	ScoreFloor   = 0
	ScoreCeiling = 1000
)

// Capability is a priced service an agent offers.
type Capability struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"` // decimal string, wei
}

// Reputation aggregates an agent's track record. Monetary fields are
// decimal strings in wei.
type Reputation struct {
	Score           int       `json:"score"` // clamped to [0,1000]
	TotalTasks      int       `json:"total_tasks"`
	SuccessfulTasks int       `json:"successful_tasks"`
	TotalEarnings   string    `json:"total_earnings"`
	TotalStake      string    `json:"total_stake"`
	Attestations    int       `json:"attestations"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Agent is a registered marketplace participant. Agents are never deleted;
// suspension and deactivation are status changes.
type Agent struct {
	ID            string       `json:"id"`
	WalletAddress string       `json:"wallet_address"`
	Name          string       `json:"name"`
	Capabilities  []Capability `json:"capabilities"`
	Reputation    Reputation   `json:"reputation"`
	Status        string       `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Task statuses form a one-directional progression:
// open -> assigned -> completed -> validated -> paid, with cancelled
// reachable from open/assigned and disputed set through escrow disputes.
const (
	TaskStatusOpen       = "open"
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusValidated  = "validated"
	TaskStatusPaid       = "paid"
	TaskStatusDisputed   = "disputed"
	TaskStatusCancelled  = "cancelled"
)

// Collaboration modes accepted on a task.
const (
	ModeSingle     = "single"
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
	ModeConsensus  = "consensus"
)

// Task is a unit of work offered for bidding.
type Task struct {
	ID                   string    `json:"id"`
	Creator              string    `json:"creator"` // wallet address
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	RequiredCapabilities []string  `json:"required_capabilities"`
	Reward               string    `json:"reward"` // decimal string, wei
	Deadline             time.Time `json:"deadline"`
	Mode                 string    `json:"mode"`
	MaxAgents            int       `json:"max_agents"`
	AssignedAgents       []string  `json:"assigned_agents"` // agent IDs, len <= MaxAgents
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Submission is a task result posted by an assigned agent.
type Submission struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// Escrow statuses.
const (
	EscrowStatusFunded   = "funded"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
	EscrowStatusDisputed = "disputed"
)

// Beneficiary is a wallet entitled to a percentage share of an escrow.
type Beneficiary struct {
	Address string `json:"address"`
	Share   int    `json:"share"` // percent, all shares sum to 100
}

// Condition is a release precondition on an escrow.
type Condition struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Met         bool   `json:"met"`
}

// Escrow holds funds locked against a task until its conditions are met.
type Escrow struct {
	ID            string        `json:"id"`
	TaskID        string        `json:"task_id"`
	Depositor     string        `json:"depositor"` // wallet address
	Beneficiaries []Beneficiary `json:"beneficiaries"`
	Amount        string        `json:"amount"` // decimal string, wei
	Conditions    []Condition   `json:"conditions"`
	Deadline      time.Time     `json:"deadline"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Attestation categories.
const (
	AttestationQuality     = "quality"
	AttestationTimeliness  = "timeliness"
	AttestationCooperation = "cooperation"
	AttestationValidation  = "validation"
)

// Attestation is an immutable peer rating of an agent. Creating one shifts
// the subject's reputation score.
type Attestation struct {
	ID        string    `json:"id"`
	Attestor  string    `json:"attestor"` // wallet address
	Subject   string    `json:"subject"`  // agent ID
	TaskID    string    `json:"task_id,omitempty"`
	Rating    int       `json:"rating"` // 1..5
	Category  string    `json:"category"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Proposal statuses. Pending/active proposals flip to succeeded or
// defeated lazily once the voting window closes.
const (
	ProposalStatusPending   = "pending"
	ProposalStatusActive    = "active"
	ProposalStatusSucceeded = "succeeded"
	ProposalStatusDefeated  = "defeated"
	ProposalStatusExecuted  = "executed"
	ProposalStatusCancelled = "cancelled"
)

// Proposal categories.
const (
	ProposalParameter = "parameter"
	ProposalUpgrade   = "upgrade"
	ProposalTreasury  = "treasury"
	ProposalMembership = "membership"
)

// Proposal is a governance item open for weighted voting.
type Proposal struct {
	ID           string    `json:"id"`
	Proposer     string    `json:"proposer"` // wallet address
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	VotingStart  time.Time `json:"voting_start"`
	VotingEnd    time.Time `json:"voting_end"`
	VotesFor     string    `json:"votes_for"`     // decimal string
	VotesAgainst string    `json:"votes_against"` // decimal string
	VotesAbstain string    `json:"votes_abstain"` // decimal string
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Collaboration statuses.
const (
	CollabStatusProposed   = "proposed"
	CollabStatusAccepted   = "accepted"
	CollabStatusInProgress = "in_progress"
	CollabStatusCompleted  = "completed"
	CollabStatusFailed     = "failed"
	CollabStatusCancelled  = "cancelled"
)

// Workflow step statuses.
const (
	StepStatusPending   = "pending"
	StepStatusRunning   = "running"
	StepStatusCompleted = "completed"
)

// Step is one ordered unit of work inside a collaboration. Completing step
// N starts step N+1 and feeds it the previous output.
type Step struct {
	Name    string `json:"name"`
	AgentID string `json:"agent_id"`
	Input   string `json:"input,omitempty"`
	Output  string `json:"output,omitempty"`
	Status  string `json:"status"`
}

// Collaboration is a multi-agent workflow attached to a task.
type Collaboration struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id,omitempty"`
	Initiator    string    `json:"initiator"` // agent ID
	Participants []string  `json:"participants"`
	Steps        []Step    `json:"steps"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message statuses. Expiry is evaluated lazily on inbox reads.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusResponded = "responded"
	MessageStatusExpired   = "expired"
)

// Message is a typed payload sent between two agents.
type Message struct {
	ID        string     `json:"id"`
	From      string     `json:"from"` // agent ID
	To        string     `json:"to"`   // agent ID
	Type      string     `json:"type"`
	Payload   string     `json:"payload"`
	ReplyTo   string     `json:"reply_to,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store defines persistence for marketplace entities. Implementations keep
// insertion order for list operations so filtered results are reproducible.
// There are no delete operations: cancel and refund are status mutations.
//
// Updates are last-write-wins with no optimistic locking; callers serialize
// multi-entity mutations themselves (the market layer holds one lock per
// tool call).
type Store interface {
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByWallet(ctx context.Context, wallet string) (*Agent, error)
	UpdateAgent(ctx context.Context, a *Agent) error
	ListAgents(ctx context.Context) ([]*Agent, error)

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context) ([]*Task, error)

	CreateSubmission(ctx context.Context, s *Submission) error
	ListSubmissionsByTask(ctx context.Context, taskID string) ([]*Submission, error)

	CreateEscrow(ctx context.Context, e *Escrow) error
	GetEscrow(ctx context.Context, id string) (*Escrow, error)
	UpdateEscrow(ctx context.Context, e *Escrow) error
	ListEscrows(ctx context.Context) ([]*Escrow, error)

	CreateAttestation(ctx context.Context, a *Attestation) error
	GetAttestation(ctx context.Context, id string) (*Attestation, error)
	ListAttestations(ctx context.Context) ([]*Attestation, error)
	ListAttestationsBySubject(ctx context.Context, subject string) ([]*Attestation, error)

	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	UpdateProposal(ctx context.Context, p *Proposal) error
	ListProposals(ctx context.Context) ([]*Proposal, error)
	HasVoted(ctx context.Context, proposalID, wallet string) (bool, error)
	RecordVote(ctx context.Context, proposalID, wallet string) error

	CreateCollaboration(ctx context.Context, c *Collaboration) error
	GetCollaboration(ctx context.Context, id string) (*Collaboration, error)
	UpdateCollaboration(ctx context.Context, c *Collaboration) error
	ListCollaborations(ctx context.Context) ([]*Collaboration, error)

	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, m *Message) error
	ListInbox(ctx context.Context, agentID string) ([]*Message, error)

	// Close releases any resources held by the store.
	Close() error
}
