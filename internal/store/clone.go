// ABOUTME: Deep-copy constructors for every entity type.
// ABOUTME: MemStore clones on both read and write so callers never alias stored records.

package store

import "time"

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	c := *a
	c.Capabilities = cloneSlice(a.Capabilities)
	return &c
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.RequiredCapabilities = cloneSlice(t.RequiredCapabilities)
	c.AssignedAgents = cloneSlice(t.AssignedAgents)
	return &c
}

// Clone returns a copy of the submission.
func (s *Submission) Clone() *Submission {
	c := *s
	return &c
}

// Clone returns a deep copy of the escrow.
func (e *Escrow) Clone() *Escrow {
	c := *e
	c.Beneficiaries = cloneSlice(e.Beneficiaries)
	c.Conditions = cloneSlice(e.Conditions)
	return &c
}

// Clone returns a copy of the attestation.
func (a *Attestation) Clone() *Attestation {
	c := *a
	return &c
}

// Clone returns a copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	c := *p
	return &c
}

// Clone returns a deep copy of the collaboration.
func (cl *Collaboration) Clone() *Collaboration {
	c := *cl
	c.Participants = cloneSlice(cl.Participants)
	c.Steps = cloneSlice(cl.Steps)
	return &c
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	c.ExpiresAt = cloneTimePtr(m.ExpiresAt)
	return &c
}
