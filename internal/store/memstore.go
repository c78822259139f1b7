// ABOUTME: In-memory Store implementation backed by insertion-ordered collections.
// ABOUTME: Single-writer semantics; the market layer serializes access with its own lock.

package store

import (
	"context"
	"fmt"
)

// collection is an identifier-keyed map that remembers insertion order so
// listings are deterministic and sort ties break reproducibly.
//
// Every put and get passes through clone, so the stored record is never
// aliased by callers. Handlers hand their results to a transport that
// serializes them after the market lock is released; without the copies a
// later mutation would race with that serialization.
type collection[T any] struct {
	byID  map[string]*T
	order []string
	clone func(*T) *T
}

func newCollection[T any](clone func(*T) *T) *collection[T] {
	return &collection[T]{byID: make(map[string]*T), clone: clone}
}

func (c *collection[T]) put(id string, v *T) {
	if _, exists := c.byID[id]; !exists {
		c.order = append(c.order, id)
	}
	c.byID[id] = c.clone(v)
}

func (c *collection[T]) get(id string) (*T, bool) {
	v, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.clone(v), true
}

func (c *collection[T]) list() []*T {
	out := make([]*T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.clone(c.byID[id]))
	}
	return out
}

// MemStore implements Store entirely in process memory. Identifiers are
// never reused or recycled and nothing is ever deleted.
type MemStore struct {
	agents         *collection[Agent]
	agentsByWallet map[string]string // wallet -> agent ID
	tasks          *collection[Task]
	submissions    *collection[Submission]
	subsByTask     map[string][]string
	escrows        *collection[Escrow]
	attestations   *collection[Attestation]
	attBySubject   map[string][]string
	proposals      *collection[Proposal]
	votes          map[string]map[string]bool // proposal ID -> wallet set
	collabs        *collection[Collaboration]
	messages       *collection[Message]
	inbox          map[string][]string // recipient agent ID -> message IDs
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		agents:         newCollection((*Agent).Clone),
		agentsByWallet: make(map[string]string),
		tasks:          newCollection((*Task).Clone),
		submissions:    newCollection((*Submission).Clone),
		subsByTask:     make(map[string][]string),
		escrows:        newCollection((*Escrow).Clone),
		attestations:   newCollection((*Attestation).Clone),
		attBySubject:   make(map[string][]string),
		proposals:      newCollection((*Proposal).Clone),
		votes:          make(map[string]map[string]bool),
		collabs:        newCollection((*Collaboration).Clone),
		messages:       newCollection((*Message).Clone),
		inbox:          make(map[string][]string),
	}
}

// Agents

func (s *MemStore) CreateAgent(_ context.Context, a *Agent) error {
	s.agents.put(a.ID, a)
	s.agentsByWallet[a.WalletAddress] = a.ID
	return nil
}

func (s *MemStore) GetAgent(_ context.Context, id string) (*Agent, error) {
	a, ok := s.agents.get(id)
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemStore) GetAgentByWallet(_ context.Context, wallet string) (*Agent, error) {
	id, ok := s.agentsByWallet[wallet]
	if !ok {
		return nil, fmt.Errorf("agent wallet %s: %w", wallet, ErrNotFound)
	}
	a, _ := s.agents.get(id)
	return a, nil
}

func (s *MemStore) UpdateAgent(_ context.Context, a *Agent) error {
	if _, ok := s.agents.get(a.ID); !ok {
		return fmt.Errorf("agent %s: %w", a.ID, ErrNotFound)
	}
	s.agents.put(a.ID, a)
	return nil
}

func (s *MemStore) ListAgents(_ context.Context) ([]*Agent, error) {
	return s.agents.list(), nil
}

// Tasks

func (s *MemStore) CreateTask(_ context.Context, t *Task) error {
	s.tasks.put(t.ID, t)
	return nil
}

func (s *MemStore) GetTask(_ context.Context, id string) (*Task, error) {
	t, ok := s.tasks.get(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *MemStore) UpdateTask(_ context.Context, t *Task) error {
	if _, ok := s.tasks.get(t.ID); !ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	s.tasks.put(t.ID, t)
	return nil
}

func (s *MemStore) ListTasks(_ context.Context) ([]*Task, error) {
	return s.tasks.list(), nil
}

// Submissions

func (s *MemStore) CreateSubmission(_ context.Context, sub *Submission) error {
	s.submissions.put(sub.ID, sub)
	s.subsByTask[sub.TaskID] = append(s.subsByTask[sub.TaskID], sub.ID)
	return nil
}

func (s *MemStore) ListSubmissionsByTask(_ context.Context, taskID string) ([]*Submission, error) {
	ids := s.subsByTask[taskID]
	out := make([]*Submission, 0, len(ids))
	for _, id := range ids {
		if sub, ok := s.submissions.get(id); ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

// Escrows

func (s *MemStore) CreateEscrow(_ context.Context, e *Escrow) error {
	s.escrows.put(e.ID, e)
	return nil
}

func (s *MemStore) GetEscrow(_ context.Context, id string) (*Escrow, error) {
	e, ok := s.escrows.get(id)
	if !ok {
		return nil, fmt.Errorf("escrow %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemStore) UpdateEscrow(_ context.Context, e *Escrow) error {
	if _, ok := s.escrows.get(e.ID); !ok {
		return fmt.Errorf("escrow %s: %w", e.ID, ErrNotFound)
	}
	s.escrows.put(e.ID, e)
	return nil
}

func (s *MemStore) ListEscrows(_ context.Context) ([]*Escrow, error) {
	return s.escrows.list(), nil
}

// Attestations

func (s *MemStore) CreateAttestation(_ context.Context, a *Attestation) error {
	s.attestations.put(a.ID, a)
	s.attBySubject[a.Subject] = append(s.attBySubject[a.Subject], a.ID)
	return nil
}

func (s *MemStore) GetAttestation(_ context.Context, id string) (*Attestation, error) {
	a, ok := s.attestations.get(id)
	if !ok {
		return nil, fmt.Errorf("attestation %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemStore) ListAttestations(_ context.Context) ([]*Attestation, error) {
	return s.attestations.list(), nil
}

func (s *MemStore) ListAttestationsBySubject(_ context.Context, subject string) ([]*Attestation, error) {
	ids := s.attBySubject[subject]
	out := make([]*Attestation, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.attestations.get(id); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Proposals

func (s *MemStore) CreateProposal(_ context.Context, p *Proposal) error {
	s.proposals.put(p.ID, p)
	return nil
}

func (s *MemStore) GetProposal(_ context.Context, id string) (*Proposal, error) {
	p, ok := s.proposals.get(id)
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *MemStore) UpdateProposal(_ context.Context, p *Proposal) error {
	if _, ok := s.proposals.get(p.ID); !ok {
		return fmt.Errorf("proposal %s: %w", p.ID, ErrNotFound)
	}
	s.proposals.put(p.ID, p)
	return nil
}

func (s *MemStore) ListProposals(_ context.Context) ([]*Proposal, error) {
	return s.proposals.list(), nil
}

func (s *MemStore) HasVoted(_ context.Context, proposalID, wallet string) (bool, error) {
	return s.votes[proposalID][wallet], nil
}

func (s *MemStore) RecordVote(_ context.Context, proposalID, wallet string) error {
	if s.votes[proposalID] == nil {
		s.votes[proposalID] = make(map[string]bool)
	}
	if s.votes[proposalID][wallet] {
		return ErrDuplicateVote
	}
	s.votes[proposalID][wallet] = true
	return nil
}

// Collaborations

func (s *MemStore) CreateCollaboration(_ context.Context, c *Collaboration) error {
	s.collabs.put(c.ID, c)
	return nil
}

func (s *MemStore) GetCollaboration(_ context.Context, id string) (*Collaboration, error) {
	c, ok := s.collabs.get(id)
	if !ok {
		return nil, fmt.Errorf("collaboration %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *MemStore) UpdateCollaboration(_ context.Context, c *Collaboration) error {
	if _, ok := s.collabs.get(c.ID); !ok {
		return fmt.Errorf("collaboration %s: %w", c.ID, ErrNotFound)
	}
	s.collabs.put(c.ID, c)
	return nil
}

func (s *MemStore) ListCollaborations(_ context.Context) ([]*Collaboration, error) {
	return s.collabs.list(), nil
}

// Messages

func (s *MemStore) CreateMessage(_ context.Context, m *Message) error {
	s.messages.put(m.ID, m)
	s.inbox[m.To] = append(s.inbox[m.To], m.ID)
	return nil
}

func (s *MemStore) GetMessage(_ context.Context, id string) (*Message, error) {
	m, ok := s.messages.get(id)
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return m, nil
}

func (s *MemStore) UpdateMessage(_ context.Context, m *Message) error {
	if _, ok := s.messages.get(m.ID); !ok {
		return fmt.Errorf("message %s: %w", m.ID, ErrNotFound)
	}
	s.messages.put(m.ID, m)
	return nil
}

func (s *MemStore) ListInbox(_ context.Context, agentID string) ([]*Message, error) {
	ids := s.inbox[agentID]
	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.messages.get(id); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Close satisfies Store; there is nothing to release.
func (s *MemStore) Close() error { return nil }
