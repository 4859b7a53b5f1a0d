package ai

import "strings"

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Part is one element of a candidate: either text or a tool call.
type Part struct {
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"toolCall,omitempty"`
}

// Candidate is one alternative answer.
type Candidate struct {
	Parts []Part `json:"parts"`
}

// Reply is the provider-neutral shape of a model response.
type Reply struct {
	Candidates []Candidate `json:"candidates"`
}

// TextSegments returns every non-empty text part across all candidates, trimmed.
func (r *Reply) TextSegments() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, c := range r.Candidates {
		for _, p := range c.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// ToolCalls returns every tool call across all candidates.
func (r *Reply) ToolCalls() []ToolCall {
	if r == nil {
		return nil
	}
	var out []ToolCall
	for _, c := range r.Candidates {
		for _, p := range c.Parts {
			if p.ToolCall != nil {
				out = append(out, *p.ToolCall)
			}
		}
	}
	return out
}

// HasToolCall reports whether any candidate asks for the named tool.
func (r *Reply) HasToolCall(name string) bool {
	for _, call := range r.ToolCalls() {
		if call.Name == name {
			return true
		}
	}
	return false
}

// Text concatenates the text parts of the first candidate unmodified.
func (r *Reply) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
