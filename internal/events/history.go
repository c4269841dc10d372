package events

import (
	"encoding/json"
	"fmt"
)

type handlerHistory struct {
	Errors               []*HandlerError   `json:"errors,omitempty"`
	SuccessfulExecutions []*HandlerSuccess `json:"successful_executions,omitempty"`
}

// transportHeaders returns the headers to write on a broker, including the handler history when there is one.
func transportHeaders(msg Message) (map[string]string, error) {
	headers := make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		if k != HeaderHandlerHistory {
			headers[k] = v
		}
	}

	if len(msg.Errors) == 0 && len(msg.SuccessfulExecutions) == 0 {
		return headers, nil
	}

	history, err := json.Marshal(handlerHistory{Errors: msg.Errors, SuccessfulExecutions: msg.SuccessfulExecutions})
	if err != nil {
		return nil, fmt.Errorf("marshalling handler history: %w", err)
	}
	headers[HeaderHandlerHistory] = string(history)
	return headers, nil
}

// restoreHistory moves the handler history header read from a broker back into msg.
func restoreHistory(msg *Message) error {
	raw, ok := msg.Headers[HeaderHandlerHistory]
	if !ok {
		return nil
	}
	delete(msg.Headers, HeaderHandlerHistory)

	var history handlerHistory
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return fmt.Errorf("unmarshalling handler history: %w", err)
	}
	msg.Errors = history.Errors
	msg.SuccessfulExecutions = history.SuccessfulExecutions
	return nil
}
