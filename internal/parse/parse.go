// Package parse extracts a well-formed Instruction from a raw assistant reply.
//
// Replies are supposed to be exact JSON, but the language service sometimes
// wraps them in fenced code blocks or surrounds them with commentary. The
// parser strips that dressing and decodes the remainder strictly; anything it
// still cannot understand degrades to a fixed fallback output instruction.
// Parsing never fails past this boundary: Parse is a total function.
package parse

import (
	"encoding/json"
	"log/slog"
	"strings"

	"speechplan/internal/message"
)

// FallbackMessage is surfaced when a reply cannot be decoded.
const FallbackMessage = "Sorry, I encountered an error processing your request."

const fenceMarker = "```"

// reply is the wire shape of one assistant turn. Input is polymorphic and
// decoded per function.
type reply struct {
	Type     string          `json:"type"`
	Function string          `json:"function"`
	Input    json.RawMessage `json:"input"`
	Output   string          `json:"output"`
}

type objectInput struct {
	Title   string `json:"title"`
	DueDate string `json:"due_date"`
}

// Parse turns raw reply text into an Instruction. Shape errors of any kind
// yield the fallback output instruction; semantic errors (such as a missing
// task id) are not this layer's concern and surface later from the store.
func Parse(raw string) message.Instruction {
	text := stripFences(raw)
	text = stripCommentLines(text)

	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		slog.Debug("assistant reply is not valid JSON", "error", err)
		return message.Output(FallbackMessage)
	}

	switch r.Type {
	case string(message.KindOutput):
		return message.Output(r.Output)
	case string(message.KindAction):
		instr, ok := decodeAction(r)
		if !ok {
			return message.Output(FallbackMessage)
		}
		return instr
	default:
		slog.Debug("assistant reply has unknown type", "type", r.Type)
		return message.Output(FallbackMessage)
	}
}

func decodeAction(r reply) (message.Instruction, bool) {
	fn := message.Function(r.Function)
	if !message.KnownFunction(fn) {
		slog.Debug("assistant requested unknown function", "function", r.Function)
		return message.Instruction{}, false
	}

	instr := message.Instruction{Kind: message.KindAction, Function: fn}

	switch fn {
	case message.FuncListTasks:
		// Input is ignored; the original contract sends an empty string.
		return instr, true

	case message.FuncCreateTask:
		var in objectInput
		if err := json.Unmarshal(r.Input, &in); err != nil || in.Title == "" {
			return message.Instruction{}, false
		}
		instr.Args = message.Args{Title: in.Title, DueDate: in.DueDate}
		return instr, true

	case message.FuncSearchTask:
		// Accepts {"title": "..."} or a bare string.
		var in objectInput
		if err := json.Unmarshal(r.Input, &in); err == nil && in.Title != "" {
			instr.Args = message.Args{Title: in.Title}
			return instr, true
		}
		var q string
		if err := json.Unmarshal(r.Input, &q); err == nil && q != "" {
			instr.Args = message.Args{Title: q}
			return instr, true
		}
		return message.Instruction{}, false

	case message.FuncDeleteTaskByID:
		// Accepts a single id or an array of ids.
		var id int64
		if err := json.Unmarshal(r.Input, &id); err == nil {
			instr.Args = message.Args{IDs: []int64{id}}
			return instr, true
		}
		var ids []int64
		if err := json.Unmarshal(r.Input, &ids); err == nil && len(ids) > 0 {
			instr.Args = message.Args{IDs: ids}
			return instr, true
		}
		return message.Instruction{}, false
	}

	return message.Instruction{}, false
}

// stripFences keeps only the content between the first opening fence marker
// and the next closing one, discarding everything outside. A language tag on
// the opening line is dropped. Text without fences passes through untouched.
func stripFences(raw string) string {
	start := strings.Index(raw, fenceMarker)
	if start < 0 {
		return raw
	}
	rest := raw[start+len(fenceMarker):]

	// Skip the language tag, if any, up to the end of the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isLanguageTag(rest[:nl]) {
		rest = rest[nl+1:]
	}

	if end := strings.Index(rest, fenceMarker); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// stripCommentLines drops lines whose first non-space characters are a line
// comment marker. Models occasionally annotate their JSON this way.
func stripCommentLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
