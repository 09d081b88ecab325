// ABOUTME: JSON codec for agent events keyed by the "type" discriminator
// ABOUTME: Unknown types and payloads that do not fit their variant are decode errors

package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a payload names a type this client does not know.
var ErrUnknownType = errors.New("unknown event type")

// ErrMissingType is returned when a payload has no "type" field.
var ErrMissingType = errors.New("missing event type")

// Unmarshal decodes a single JSON payload into its concrete variant.
func Unmarshal(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding event header: %w", err)
	}
	if head.Type == "" {
		return nil, ErrMissingType
	}

	switch head.Type {
	case TypeToken:
		return decodeAs[Token](data)
	case TypeToolStart:
		return decodeAs[ToolStart](data)
	case TypeToolComplete:
		return decodeAs[ToolComplete](data)
	case TypeToolError:
		return decodeAs[ToolError](data)
	case TypeToolApprovalRequired:
		return decodeAs[ToolApprovalRequired](data)
	case TypeNeedClarification:
		return decodeAs[NeedClarification](data)
	case TypeTodoListUpdated:
		return decodeAs[TodoListUpdated](data)
	case TypeTodoItemProgress:
		return decodeAs[TodoItemProgress](data)
	case TypeTodoListCompleted:
		return decodeAs[TodoListCompleted](data)
	case TypeTodoEvaluationStarted:
		return decodeAs[TodoEvaluationStarted](data)
	case TypeTodoEvaluationCompleted:
		return decodeAs[TodoEvaluationCompleted](data)
	case TypeTokenBudgetUpdated:
		return decodeAs[TokenBudgetUpdated](data)
	case TypeContextSummarized:
		return decodeAs[ContextSummarized](data)
	case TypeComplete:
		return decodeAs[Complete](data)
	case TypeError:
		return decodeAs[StreamError](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", v.Type(), err)
	}
	return v, nil
}

// Marshal encodes e with its "type" discriminator as the first field.
func Marshal(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", e.Type(), err)
	}
	typ, err := json.Marshal(e.Type())
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString(`{"type":`)
	b.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		b.WriteByte(',')
		b.Write(inner)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Frame encodes e as a complete SSE data frame, including the blank-line terminator.
func Frame(e Event) ([]byte, error) {
	data, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(data)+8)
	out = append(out, "data: "...)
	out = append(out, data...)
	out = append(out, "\n\n"...)
	return out, nil
}
