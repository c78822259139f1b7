// ABOUTME: Messaging pack: direct agent-to-agent messages with per-recipient inboxes.
// ABOUTME: Expiry and read transitions are evaluated lazily on fetch, never by a sweeper.

package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

// MessagingPack returns the inbox tools.
func (m *Market) MessagingPack() *tools.Pack {
	return &tools.Pack{
		ID: "agora:messaging",
		Tools: []*tools.Tool{
			{
				Name:        "send_message",
				Description: "Send a typed message from one agent to another",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"from":{"type":"string"},"to":{"type":"string"},"type":{"type":"string"},"payload":{"type":"string"},"expiresInHours":{"type":"integer"}},"required":["from","to","payload"]}`),
				Handler:     m.locked(m.sendMessage),
			},
			{
				Name:        "get_message",
				Description: "Fetch a message; a recipient fetch marks it read",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"messageId":{"type":"string"},"agentId":{"type":"string"}},"required":["messageId"]}`),
				Handler:     m.locked(m.getMessage),
			},
			{
				Name:        "get_inbox",
				Description: "List an agent's inbox, expiring stale messages on the way",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"agentId":{"type":"string"},"status":{"type":"string"},"limit":{"type":"integer"},"offset":{"type":"integer"}},"required":["agentId"]}`),
				Handler:     m.locked(m.getInbox),
			},
			{
				Name:        "mark_message_read",
				Description: "Explicitly mark a message as read (recipient only)",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"messageId":{"type":"string"},"agentId":{"type":"string"}},"required":["messageId","agentId"]}`),
				Handler:     m.locked(m.markMessageRead),
			},
			{
				Name:        "respond_to_message",
				Description: "Reply to a message; the original becomes responded",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"messageId":{"type":"string"},"agentId":{"type":"string"},"payload":{"type":"string"}},"required":["messageId","agentId","payload"]}`),
				Handler:     m.locked(m.respondToMessage),
			},
		},
	}
}

type sendMessageInput struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Type           string `json:"type"`
	Payload        string `json:"payload"`
	ExpiresInHours int    `json:"expiresInHours"`
	ReplyTo        string `json:"replyTo"`
}

func (m *Market) sendMessage(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in sendMessageInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.Payload == "" {
		return nil, tools.Errf(CodeValidation, "payload is required")
	}
	if in.ExpiresInHours < 0 {
		return nil, tools.Errf(CodeValidation, "expiresInHours must not be negative")
	}
	if _, err := m.store.GetAgent(ctx, in.From); err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "sender agent %s not found", in.From)
	}
	if _, err := m.store.GetAgent(ctx, in.To); err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "recipient agent %s not found", in.To)
	}

	now := m.now()
	msg := &store.Message{
		ID:        m.newID(),
		From:      in.From,
		To:        in.To,
		Type:      in.Type,
		Payload:   in.Payload,
		ReplyTo:   in.ReplyTo,
		Status:    store.MessageStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	if in.ExpiresInHours > 0 {
		exp := now.Add(time.Duration(in.ExpiresInHours) * time.Hour)
		msg.ExpiresAt = &exp
	}
	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	m.logger.Info("message sent", "message_id", msg.ID, "from", msg.From, "to", msg.To, "type", msg.Type)
	return msg, nil
}

type getMessageInput struct {
	MessageID string `json:"messageId"`
	AgentID   string `json:"agentId"`
}

func (m *Market) getMessage(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in getMessageInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	msg, err := m.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, tools.Errf(CodeMessageNotFound, "message %s not found", in.MessageID)
	}
	if m.expireMessage(ctx, msg) {
		return msg, nil
	}
	// A recipient fetch implies the message has been seen.
	if in.AgentID == msg.To && (msg.Status == store.MessageStatusSent || msg.Status == store.MessageStatusDelivered) {
		msg.Status = store.MessageStatusRead
		msg.UpdatedAt = m.now()
		if err := m.store.UpdateMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

type getInboxInput struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (m *Market) getInbox(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in getInboxInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if _, err := m.store.GetAgent(ctx, in.AgentID); err != nil {
		return nil, tools.Errf(CodeAgentNotFound, "agent %s not found", in.AgentID)
	}
	msgs, err := m.store.ListInbox(ctx, in.AgentID)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		m.expireMessage(ctx, msg)
	}
	msgs = store.Filter(msgs, func(msg *store.Message) bool {
		return in.Status == "" || msg.Status == in.Status
	})
	msgs = store.Paginate(msgs, in.Limit, in.Offset)
	return map[string]any{"messages": msgs, "count": len(msgs)}, nil
}

func (m *Market) markMessageRead(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in getMessageInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	msg, err := m.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, tools.Errf(CodeMessageNotFound, "message %s not found", in.MessageID)
	}
	if msg.To != in.AgentID {
		return nil, tools.Errf(CodeUnauthorized, "message %s is not addressed to agent %s", msg.ID, in.AgentID)
	}
	if m.expireMessage(ctx, msg) {
		return nil, tools.Errf(CodeInvalidStatus, "message %s has expired", msg.ID)
	}
	switch msg.Status {
	case store.MessageStatusSent, store.MessageStatusDelivered:
		msg.Status = store.MessageStatusRead
		msg.UpdatedAt = m.now()
		if err := m.store.UpdateMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

type respondMessageInput struct {
	MessageID string `json:"messageId"`
	AgentID   string `json:"agentId"`
	Payload   string `json:"payload"`
}

func (m *Market) respondToMessage(ctx context.Context, input json.RawMessage, _ tools.Call) (any, error) {
	var in respondMessageInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if in.Payload == "" {
		return nil, tools.Errf(CodeValidation, "payload is required")
	}
	original, err := m.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, tools.Errf(CodeMessageNotFound, "message %s not found", in.MessageID)
	}
	if original.To != in.AgentID {
		return nil, tools.Errf(CodeUnauthorized, "message %s is not addressed to agent %s", original.ID, in.AgentID)
	}
	if m.expireMessage(ctx, original) {
		return nil, tools.Errf(CodeInvalidStatus, "message %s has expired", original.ID)
	}

	now := m.now()
	reply := &store.Message{
		ID:        m.newID(),
		From:      in.AgentID,
		To:        original.From,
		Type:      original.Type,
		Payload:   in.Payload,
		ReplyTo:   original.ID,
		Status:    store.MessageStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateMessage(ctx, reply); err != nil {
		return nil, err
	}

	original.Status = store.MessageStatusResponded
	original.UpdatedAt = now
	if err := m.store.UpdateMessage(ctx, original); err != nil {
		return nil, err
	}

	m.logger.Info("message answered", "message_id", original.ID, "reply_id", reply.ID)
	return reply, nil
}

// expireMessage flips a stale sent/delivered message to expired and persists
// the change. Reports whether the message is expired after the check.
func (m *Market) expireMessage(ctx context.Context, msg *store.Message) bool {
	if msg.Status == store.MessageStatusExpired {
		return true
	}
	if msg.ExpiresAt == nil || m.now().Before(*msg.ExpiresAt) {
		return false
	}
	switch msg.Status {
	case store.MessageStatusSent, store.MessageStatusDelivered:
		msg.Status = store.MessageStatusExpired
		msg.UpdatedAt = m.now()
		if err := m.store.UpdateMessage(ctx, msg); err != nil {
			m.logger.Warn("failed to persist message expiry", "message_id", msg.ID, "error", err)
		}
		return true
	}
	return false
}
