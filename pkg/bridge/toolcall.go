package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ToolCall is one finalized function call from the engine.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// pendingCall accumulates streamed argument-JSON fragments for one in-flight
// function call. The buffer is never parsed until the engine signals the
// call complete.
type pendingCall struct {
	name string
	args strings.Builder
}

// toolCalls tracks in-flight function calls keyed by call ID.
type toolCalls struct {
	pending map[string]*pendingCall
}

func newToolCalls() toolCalls {
	return toolCalls{pending: make(map[string]*pendingCall)}
}

// appendDelta buffers one argument fragment for callID.
func (tc *toolCalls) appendDelta(callID, delta string) {
	p, ok := tc.pending[callID]
	if !ok {
		p = &pendingCall{}
		tc.pending[callID] = p
	}
	p.args.WriteString(delta)
}

// finalize parses the accumulated arguments for callID and removes the
// pending entry. The done event's name and full argument string take
// precedence over accumulated state when present.
func (tc *toolCalls) finalize(callID, name, fullArgs string) (*ToolCall, error) {
	p := tc.pending[callID]
	delete(tc.pending, callID)

	args := fullArgs
	if args == "" && p != nil {
		args = p.args.String()
	}
	if name == "" && p != nil {
		name = p.name
	}

	parsed := map[string]any{}
	if strings.TrimSpace(args) != "" {
		if err := unmarshalArgs(args, &parsed); err != nil {
			return nil, fmt.Errorf("bridge: tool call %s arguments: %w", callID, err)
		}
	}
	return &ToolCall{CallID: callID, Name: name, Args: parsed}, nil
}

// unmarshalArgs parses tool arguments, repairing malformed JSON before
// giving up. Model output is occasionally truncated or loosely quoted.
func unmarshalArgs(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}
	fixed, rerr := jsonrepair.JSONRepair(data)
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}
