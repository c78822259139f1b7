// ABOUTME: Governance pack: proposals, weighted voting, lazy window closing, execution.
// ABOUTME: Voting power is computed fresh at vote time from the live agent record, never snapshotted.

package market

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
	"github.com/agoramesh/agora-gateway/internal/wei"
)

var proposalCategories = map[string]bool{
	store.ProposalParameter:  true,
	store.ProposalUpgrade:    true,
	store.ProposalTreasury:   true,
	store.ProposalMembership: true,
}

// weiPerToken converts staked wei into whole governance tokens.
var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// GovernancePack returns the governance tools.
func (m *Market) GovernancePack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:governance",
		Tools: []*tools.Tool{
			{
				Name:        "create_proposal",
				Description: "Open a governance proposal for weighted voting",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"proposer":{"type":"string"},"title":{"type":"string"},"description":{"type":"string"},"category":{"type":"string","enum":["parameter","upgrade","treasury","membership"]},"votingDurationDays":{"type":"integer"}},"required":["proposer","title","category"]}`),
				Handler:     m.locked(m.createProposal),
			},
			{
				Name:        "get_proposal",
				Description: "Fetch a proposal by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"proposalId":{"type":"string"}},"required":["proposalId"]}`),
				Handler:     m.locked(m.getProposal),
			},
			{
				Name:        "list_proposals",
				Description: "List proposals with an optional status filter",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listProposals),
			},
			{
				Name:        "vote_on_proposal",
				Description: "Cast a weighted vote; one vote per wallet per proposal",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"proposalId":{"type":"string"},"walletAddress":{"type":"string"},"choice":{"type":"string","enum":["for","against","abstain"]}},"required":["proposalId","walletAddress","choice"]}`),
				Handler:     m.locked(m.voteOnProposal),
			},
			{
				Name:        "execute_proposal",
				Description: "Execute a succeeded proposal",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"proposalId":{"type":"string"}},"required":["proposalId"]}`),
				Handler:     m.locked(m.executeProposal),
			},
			{
				Name:        "cancel_proposal",
				Description: "Cancel a pending or active proposal (proposer only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"proposalId":{"type":"string"},"walletAddress":{"type":"string"}},"required":["proposalId","walletAddress"]}`),
				Handler:     m.locked(m.cancelProposal),
			},
			{
				Name:        "get_voting_power",
				Description: "Compute a wallet's current voting power",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"walletAddress":{"type":"string"}},"required":["walletAddress"]}`),
				Handler:     m.locked(m.getVotingPower),
			},
		},
	}
}

// settleProposal applies the lazy close: once the voting window has passed,
// a pending or active proposal flips to succeeded or defeated based on the
// current tallies. Called on every read and vote path.
func (m *Market) settleProposal(ctx context.Context, p *store.Proposal, now time.Time) error {
	if p.Status != store.ProposalStatusPending && p.Status != store.ProposalStatusActive {
		return nil
	}
	if now.Before(p.VotingEnd) {
		return nil
	}
	if wei.Cmp(p.VotesFor, p.VotesAgainst) > 0 {
		p.Status = store.ProposalStatusSucceeded
	} else {
		p.Status = store.ProposalStatusDefeated
	}
	p.UpdatedAt = now
	return m.store.UpdateProposal(ctx, p)
}

// votingPower is base power plus a reputation bonus (one point per ten
// score) plus one point per whole staked token.
func votingPower(agent *store.Agent) *big.Int {
	power := big.NewInt(votingBasePower)
	if agent == nil {
		return power
	}
	power.Add(power, big.NewInt(int64(agent.Reputation.Score/scorePerVote)))
	if stake, err := wei.Parse(agent.Reputation.TotalStake); err == nil {
		power.Add(power, new(big.Int).Quo(stake, weiPerToken))
	}
	return power
}

type createProposalInput struct {
	Proposer           string `json:"proposer"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	VotingDurationDays int    `json:"votingDurationDays"`
}

func (m *Market) createProposal(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in createProposalInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.Proposer) {
		return nil, tools.Errf(CodeValidation, "proposer must be a 0x-prefixed wallet address")
	}
	if in.Title == "" {
		return nil, tools.Errf(CodeValidation, "title is required")
	}
	if !proposalCategories[in.Category] {
		return nil, tools.Errf(CodeValidation, "unknown proposal category %q", in.Category)
	}
	if in.VotingDurationDays < 0 {
		return nil, tools.Errf(CodeValidation, "votingDurationDays cannot be negative")
	}

	now := m.now()
	proposal := &store.Proposal{
		ID:           m.newID(),
		Proposer:     in.Proposer,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		VotingStart:  now,
		VotingEnd:    now.Add(time.Duration(in.VotingDurationDays) * 24 * time.Hour),
		VotesFor:     "0",
		VotesAgainst: "0",
		VotesAbstain: "0",
		Status:       store.ProposalStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.CreateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	m.logger.Info("proposal created", "proposal_id", proposal.ID, "category", proposal.Category, "voting_end", proposal.VotingEnd)
	return proposal, nil
}

type proposalIDInput struct {
	ProposalID string `json:"proposalId"`
}

func (m *Market) getProposal(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in proposalIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	proposal, err := m.store.GetProposal(ctx, in.ProposalID)
	if err != nil {
		return nil, tools.Errf(CodeProposalNotFound, "proposal %s not found", in.ProposalID)
	}
	if err := m.settleProposal(ctx, proposal, m.now()); err != nil {
		return nil, err
	}
	return proposal, nil
}

type listProposalsInput struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (m *Market) listProposals(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listProposalsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	proposals, err := m.store.ListProposals(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	for _, p := range proposals {
		if err := m.settleProposal(ctx, p, now); err != nil {
			return nil, err
		}
	}

	proposals = store.Filter(proposals, func(p *store.Proposal) bool {
		return in.Status == "" || p.Status == in.Status
	})
	proposals = store.Paginate(proposals, in.Limit, in.Offset)

	return map[string]any{"proposals": proposals, "count": len(proposals)}, nil
}

type voteInput struct {
	ProposalID    string `json:"proposalId"`
	WalletAddress string `json:"walletAddress"`
	Choice        string `json:"choice"`
}

func (m *Market) voteOnProposal(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in voteInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.Choice != "for" && in.Choice != "against" && in.Choice != "abstain" {
		return nil, tools.Errf(CodeValidation, "choice must be for, against, or abstain")
	}
	if !validWallet(in.WalletAddress) {
		return nil, tools.Errf(CodeValidation, "walletAddress must be 0x-prefixed")
	}

	proposal, err := m.store.GetProposal(ctx, in.ProposalID)
	if err != nil {
		return nil, tools.Errf(CodeProposalNotFound, "proposal %s not found", in.ProposalID)
	}
	now := m.now()
	if err := m.settleProposal(ctx, proposal, now); err != nil {
		return nil, err
	}
	if proposal.Status != store.ProposalStatusPending && proposal.Status != store.ProposalStatusActive {
		return nil, tools.Errf(CodeVotingClosed, "proposal %s is %s", proposal.ID, proposal.Status)
	}

	voted, err := m.store.HasVoted(ctx, proposal.ID, in.WalletAddress)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, tools.Errf(CodeAlreadyVoted, "wallet %s already voted on proposal %s", in.WalletAddress, proposal.ID)
	}

	// Power reflects the live agent record at vote time; a vote cast
	// before staking weighs less than the same wallet's vote after.
	agent, _ := m.store.GetAgentByWallet(ctx, in.WalletAddress)
	power := votingPower(agent)

	var total *string
	switch in.Choice {
	case "for":
		total = &proposal.VotesFor
	case "against":
		total = &proposal.VotesAgainst
	case "abstain":
		total = &proposal.VotesAbstain
	}
	sum, err := wei.Add(*total, power.String())
	if err != nil {
		return nil, tools.Errf(CodeValidation, "vote arithmetic: %v", err)
	}
	*total = sum
	proposal.UpdatedAt = now

	if err := m.store.RecordVote(ctx, proposal.ID, in.WalletAddress); err != nil {
		return nil, tools.Errf(CodeAlreadyVoted, "wallet %s already voted on proposal %s", in.WalletAddress, proposal.ID)
	}
	if err := m.store.UpdateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	m.logger.Info("vote cast",
		"proposal_id", proposal.ID,
		"wallet", in.WalletAddress,
		"choice", in.Choice,
		"power", power.String(),
	)
	return map[string]any{
		"proposalId":  proposal.ID,
		"choice":      in.Choice,
		"votingPower": power.String(),
	}, nil
}

func (m *Market) executeProposal(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in proposalIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	proposal, err := m.store.GetProposal(ctx, in.ProposalID)
	if err != nil {
		return nil, tools.Errf(CodeProposalNotFound, "proposal %s not found", in.ProposalID)
	}
	if err := m.settleProposal(ctx, proposal, m.now()); err != nil {
		return nil, err
	}
	if proposal.Status != store.ProposalStatusSucceeded {
		return nil, tools.Errf(CodeInvalidStatus, "proposal %s is %s, expected succeeded", proposal.ID, proposal.Status)
	}

	proposal.Status = store.ProposalStatusExecuted
	proposal.UpdatedAt = m.now()
	if err := m.store.UpdateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	m.logger.Info("proposal executed", "proposal_id", proposal.ID)
	return proposal, nil
}

type cancelProposalInput struct {
	ProposalID    string `json:"proposalId"`
	WalletAddress string `json:"walletAddress"`
}

func (m *Market) cancelProposal(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in cancelProposalInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	proposal, err := m.store.GetProposal(ctx, in.ProposalID)
	if err != nil {
		return nil, tools.Errf(CodeProposalNotFound, "proposal %s not found", in.ProposalID)
	}
	if proposal.Proposer != in.WalletAddress {
		return nil, tools.Errf(CodeUnauthorized, "only the proposer can cancel proposal %s", proposal.ID)
	}
	if proposal.Status != store.ProposalStatusPending && proposal.Status != store.ProposalStatusActive {
		return nil, tools.Errf(CodeCannotCancel, "proposal %s is %s", proposal.ID, proposal.Status)
	}

	proposal.Status = store.ProposalStatusCancelled
	proposal.UpdatedAt = m.now()
	if err := m.store.UpdateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	m.logger.Info("proposal cancelled", "proposal_id", proposal.ID)
	return proposal, nil
}

type votingPowerInput struct {
	WalletAddress string `json:"walletAddress"`
}

func (m *Market) getVotingPower(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in votingPowerInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.WalletAddress) {
		return nil, tools.Errf(CodeValidation, "walletAddress must be 0x-prefixed")
	}

	agent, _ := m.store.GetAgentByWallet(ctx, in.WalletAddress)
	power := votingPower(agent)

	result := map[string]any{
		"walletAddress": in.WalletAddress,
		"votingPower":   power.String(),
		"basePower":     votingBasePower,
		"registered":    agent != nil,
	}
	if agent != nil {
		result["agentId"] = agent.ID
	}
	return result, nil
}
