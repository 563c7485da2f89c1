package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nerrad567/hubspace-bridge/internal/entity"
)

// handleSet routes a typed action from hubspace/entity/<uid>/set.
//
// Errors are reported on the ack topic; the handler itself only fails on
// topics it does not recognise.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	uid, ok := b.topics.EntityFromTopic(topic)
	if !ok {
		return nil
	}

	b.mu.RLock()
	e, ok := b.entities[uid]
	var kind entity.Kind
	if ok {
		kind = e.Kind()
	}
	b.mu.RUnlock()
	if !ok {
		b.publishAckError(uid, "", "", ErrEntityNotFound)
		return nil
	}

	actions, err := entity.DecodeSetPayload(kind, payload)
	if err != nil {
		b.logger.Warn("invalid set payload", "entity", uid, "error", err)
		b.publishAckError(uid, "", "", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()

	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.ActionName())
		if _, err := b.Execute(ctx, uid, a); err != nil {
			b.logger.Warn("set failed", "entity", uid, "action", a.ActionName(), "error", err)
			b.publishAckError(uid, "", a.ActionName(), err)
			return nil
		}
	}
	b.publishAck(uid, "", strings.Join(names, ","))
	return nil
}

// handleCommand routes an escape-hatch write from hubspace/entity/<uid>/command.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	uid, ok := b.topics.EntityFromTopic(topic)
	if !ok {
		return nil
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAckError(uid, "", "send_command", errors.Join(ErrInvalidCommand, err))
		return nil
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()

	if _, err := b.SendCommand(ctx, uid, cmd.FunctionClass, cmd.FunctionInstance, cmd.Value); err != nil {
		b.logger.Warn("command failed", "entity", uid, "command_id", cmd.ID, "error", err)
		b.publishAckError(uid, cmd.ID, "send_command", err)
		return nil
	}
	b.publishAck(uid, cmd.ID, "send_command")
	return nil
}

// handleDiagnostics writes a diagnostics dump when the button is pressed.
func (b *Bridge) handleDiagnostics(_ string, payload []byte) error {
	if strings.TrimSpace(string(payload)) != PayloadPress {
		return nil
	}
	if _, err := b.WriteDiagnostics(""); err != nil {
		b.logger.Error("diagnostics dump failed", "error", err)
	}
	return nil
}

// handleHomeAssistantStatus republishes everything on the HA birth message.
func (b *Bridge) handleHomeAssistantStatus(_ string, payload []byte) error {
	if strings.TrimSpace(string(payload)) != PayloadOnline {
		return nil
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()
	b.Republish(ctx)
	return nil
}

func (b *Bridge) publishAck(uid, commandID, action string) {
	b.sendAck(AckMessage{
		CommandID: commandID,
		EntityID:  uid,
		Action:    action,
		Status:    AckAccepted,
		Timestamp: b.now().UTC(),
	})
}

func (b *Bridge) publishAckError(uid, commandID, action string, err error) {
	b.sendAck(AckMessage{
		CommandID: commandID,
		EntityID:  uid,
		Action:    action,
		Status:    AckFailed,
		Timestamp: b.now().UTC(),
		Error: &AckError{
			Code:    ErrorCode(err),
			Message: err.Error(),
		},
	})
}

func (b *Bridge) sendAck(ack AckMessage) {
	if err := b.mqtt.PublishJSON(b.topics.Ack(ack.EntityID), ack, false); err != nil {
		b.logger.Warn("failed to publish ack", "entity", ack.EntityID, "error", err)
	}
}

// ErrorCode maps a command error to the code reported in acks and API errors.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEntityNotFound):
		return ErrCodeNotFound
	case errors.Is(err, entity.ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, entity.ErrInvalidValue):
		return ErrCodeInvalidValue
	case errors.Is(err, entity.ErrInvalidAction), errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidPayload
	default:
		return ErrCodeCloudError
	}
}
