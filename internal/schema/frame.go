package schema

// FinishReason is the model's stated reason for ending a streamed response.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// ToolCallDelta is one incremental fragment of a streamed tool call.
// The call ID and function name typically arrive on the first fragment;
// Arguments carries a raw JSON fragment that consumers must concatenate
// across frames before parsing.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Frame is one unit pulled from a streaming completion. Exactly one of the
// payload fields is meaningful per frame:
//
//   - TextDelta: a chunk of assistant prose
//   - Tool: a tool-call fragment
//   - Finish: the model signalled the end of the response
//   - Err: the stream failed; no further frames follow
//
// A closed channel with no Finish frame seen means the stream ended without
// the model declaring why.
type Frame struct {
	TextDelta string
	Tool      *ToolCallDelta
	Finish    FinishReason
	Err       error
}
