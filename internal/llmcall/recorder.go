package llmcall

// Recorder receives completed LLM call records.
type Recorder interface {
	Record(call *Call)
}

// Discard is a Recorder that drops every call.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(*Call) {}
