package agentgw

import "encoding/json"

// Request is the invocation envelope the agent runtime delivers to an
// action-group target. Body carries the parameter object as a
// JSON-encoded string, not a nested object.
type Request struct {
	ActionGroup string `json:"actionGroup"`
	Function    string `json:"function"`
	Body        string `json:"body"`
}

// Response is the envelope returned to the agent runtime. Body is always a
// JSON-encoded object; callers distinguish outcomes by the presence of an
// "error" key versus a "result"/"details"/"status" key.
type Response struct {
	Body string `json:"body"`
}

// errorResponse builds the uniform error envelope.
func errorResponse(msg string) Response {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		// map[string]string cannot fail to marshal; keep the contract anyway.
		return Response{Body: `{"error":"internal error"}`}
	}
	return Response{Body: string(body)}
}
