package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultCommandPrefix is the subject prefix for request-reply commands.
const DefaultCommandPrefix = "radar.cmd."

type errorReply struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
}

// Listen subscribes to prefix+"*" and answers each request with the command's
// acknowledgement. The subscription is drained when ctx ends.
func (rt *Router) Listen(ctx context.Context, nc *nats.Conn, prefix string, timeout time.Duration) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sub, err := nc.Subscribe(prefix+"*", func(m *nats.Msg) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out := rt.Reply(reqCtx, strings.TrimPrefix(m.Subject, prefix), m.Data)
		if m.Reply == "" {
			return
		}
		if err := m.Respond(out); err != nil {
			rt.log.Warn("command reply failed", zap.String("subject", m.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	rt.log.Info("command listener started", zap.String("subject", prefix+"*"))
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return sub, nil
}

// Reply decodes data as a Command for action and returns the encoded
// acknowledgement or error reply.
func (rt *Router) Reply(ctx context.Context, action string, data []byte) []byte {
	var cmd Command
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &cmd); err != nil {
			return encode(errorReply{Error: "invalid JSON", Action: action})
		}
	}
	if action != "" {
		cmd.Action = action
	}

	ack, err := rt.Handle(ctx, cmd)
	if err != nil {
		if !errors.Is(err, ErrUnknownAction) && !errors.Is(err, ErrBadCommand) {
			rt.log.Error("command failed", zap.String("action", cmd.Action), zap.Error(err))
		}
		return encode(errorReply{Error: err.Error(), Action: cmd.Action})
	}
	return encode(ack)
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(errorReply{Error: err.Error()})
	}
	return b
}
