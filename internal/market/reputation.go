// ABOUTME: Reputation pack: attestations and pairwise trust scores.
// ABOUTME: Each attestation shifts the subject's score by (rating-3)*5, clamped to [0,1000].

package market

import (
	"context"
	"encoding/json"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

var attestationCategories = map[string]bool{
	store.AttestationQuality:     true,
	store.AttestationTimeliness:  true,
	store.AttestationCooperation: true,
	store.AttestationValidation:  true,
}

// ReputationPack returns the attestation and trust tools.
func (m *Market) ReputationPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:reputation",
		Tools: []*tools.Tool{
			{
				Name:        "submit_attestation",
				Description: "Rate an agent; the rating immediately shifts their reputation score",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"attestor":{"type":"string"},"subject":{"type":"string"},"taskId":{"type":"string"},"rating":{"type":"integer","minimum":1,"maximum":5},"category":{"type":"string","enum":["quality","timeliness","cooperation","validation"]},"comment":{"type":"string"}},"required":["attestor","subject","rating","category"]}`),
				Handler:     m.locked(m.submitAttestation),
			},
			{
				Name:        "get_attestation",
				Description: "Fetch an attestation by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"attestationId":{"type":"string"}},"required":["attestationId"]}`),
				Handler:     m.locked(m.getAttestation),
			},
			{
				Name:        "list_attestations",
				Description: "List attestations with optional subject and attestor filters",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"subject":{"type":"string"},"attestor":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				Handler:     m.locked(m.listAttestations),
			},
			{
				Name:        "get_trust_score",
				Description: "Compute the pairwise trust score between two agents",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentA":{"type":"string"},"agentB":{"type":"string"}},"required":["agentA","agentB"]}`),
				Handler:     m.locked(m.getTrustScore),
			},
		},
	}
}

type submitAttestationInput struct {
	Attestor string `json:"attestor"`
	Subject  string `json:"subject"`
	TaskID   string `json:"taskId"`
	Rating   int    `json:"rating"`
	Category string `json:"category"`
	Comment  string `json:"comment"`
}

func (m *Market) submitAttestation(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in submitAttestationInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if !validWallet(in.Attestor) {
		return nil, tools.Errf(CodeValidation, "attestor must be a 0x-prefixed wallet address")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, tools.Errf(CodeValidation, "rating %d out of range (1-5)", in.Rating)
	}
	if !attestationCategories[in.Category] {
		return nil, tools.Errf(CodeValidation, "unknown attestation category %q", in.Category)
	}

	subject, err := m.store.GetAgent(ctx, in.Subject)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "subject agent %s not found", in.Subject)
	}

	now := m.now()
	att := &store.Attestation{
		ID:        m.newID(),
		Attestor:  in.Attestor,
		Subject:   in.Subject,
		TaskID:    in.TaskID,
		Rating:    in.Rating,
		Category:  in.Category,
		Comment:   in.Comment,
		CreatedAt: now,
	}
	if err := m.store.CreateAttestation(ctx, att); err != nil {
		return nil, err
	}

	// Bounded delta: neutral at 3, +-2 steps of 5 points at the extremes.
	delta := (in.Rating - 3) * reputationStep
	subject.Reputation.Score = clampScore(subject.Reputation.Score + delta)
	subject.Reputation.Attestations++
	subject.Reputation.LastUpdated = now
	subject.UpdatedAt = now
	if err := m.store.UpdateAgent(ctx, subject); err != nil {
		return nil, err
	}

	m.logger.Info("attestation recorded",
		"attestation_id", att.ID,
		"subject", subject.ID,
		"rating", in.Rating,
		"delta", delta,
		"score", subject.Reputation.Score,
	)
	return map[string]any{
		"attestationId": att.ID,
		"subjectScore":  subject.Reputation.Score,
		"delta":         delta,
	}, nil
}

type attestationIDInput struct {
	AttestationID string `json:"attestationId"`
}

func (m *Market) getAttestation(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in attestationIDInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	att, err := m.store.GetAttestation(ctx, in.AttestationID)
	if err != nil {
		return nil, tools.Errf(CodeAttestNotFound, "attestation %s not found", in.AttestationID)
	}
	return att, nil
}

type listAttestationsInput struct {
	Subject  string `json:"subject"`
	Attestor string `json:"attestor"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

func (m *Market) listAttestations(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in listAttestationsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	var atts []*store.Attestation
	var err error
	if in.Subject != "" {
		atts, err = m.store.ListAttestationsBySubject(ctx, in.Subject)
	} else {
		atts, err = m.store.ListAttestations(ctx)
	}
	if err != nil {
		return nil, err
	}

	atts = store.Filter(atts, func(a *store.Attestation) bool {
		return in.Attestor == "" || a.Attestor == in.Attestor
	})
	atts = store.Paginate(atts, in.Limit, in.Offset)

	return map[string]any{"attestations": atts, "count": len(atts)}, nil
}

type trustScoreInput struct {
	AgentA string `json:"agentA"`
	AgentB string `json:"agentB"`
}

func (m *Market) getTrustScore(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in trustScoreInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	a, err := m.store.GetAgent(ctx, in.AgentA)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentA)
	}
	b, err := m.store.GetAgent(ctx, in.AgentB)
	if err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentB)
	}

	aboutB, err := m.store.ListAttestationsBySubject(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	aboutA, err := m.store.ListAttestationsBySubject(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	// Direct attestations between the pair, identified by attestor wallet.
	aToB := 0
	bToA := 0
	ratingSum := 0
	ratingCount := 0
	for _, att := range aboutB {
		if att.Attestor == a.WalletAddress {
			aToB++
			ratingSum += att.Rating
			ratingCount++
		}
	}
	for _, att := range aboutA {
		if att.Attestor == b.WalletAddress {
			bToA++
			ratingSum += att.Rating
			ratingCount++
		}
	}

	// Recomputed fresh on every call; nothing is cached.
	score := (aToB + bToA) * trustPerAttestation
	mutual := aToB > 0 && bToA > 0
	if mutual {
		score += trustMutualBonus
	}
	score += (a.Reputation.Score + b.Reputation.Score) / trustReputationDiv
	if ratingCount > 0 {
		score += (ratingSum / ratingCount) * trustPerRatingPoint
	}
	if score > trustCeiling {
		score = trustCeiling
	}

	return map[string]any{
		"agentA":             a.ID,
		"agentB":             b.ID,
		"trustScore":         score,
		"directAttestations": aToB + bToA,
		"mutual":             mutual,
	}, nil
}
