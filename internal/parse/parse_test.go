package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechplan/internal/message"
)

func TestParseOutput(t *testing.T) {
	instr := Parse(`{"type": "output", "output": "You have 3 tasks."}`)
	assert.Equal(t, message.KindOutput, instr.Kind)
	assert.Equal(t, "You have 3 tasks.", instr.Message)
}

func TestParseCreateTask(t *testing.T) {
	instr := Parse(`{"type": "action", "function": "createTask", "input": {"title": "buy milk", "due_date": "tomorrow"}}`)
	require.Equal(t, message.KindAction, instr.Kind)
	assert.Equal(t, message.FuncCreateTask, instr.Function)
	assert.Equal(t, "buy milk", instr.Args.Title)
	assert.Equal(t, "tomorrow", instr.Args.DueDate)
}

func TestParseFencedReply(t *testing.T) {
	raw := "Here is the JSON you asked for:\n```json\n{\"type\": \"action\", \"function\": \"listTasks\", \"input\": \"\"}\n```\nLet me know if you need anything else."
	instr := Parse(raw)
	require.Equal(t, message.KindAction, instr.Kind)
	assert.Equal(t, message.FuncListTasks, instr.Function)
}

func TestParseFenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"type\": \"output\", \"output\": \"done\"}\n```"
	instr := Parse(raw)
	assert.Equal(t, message.KindOutput, instr.Kind)
	assert.Equal(t, "done", instr.Message)
}

func TestParseCommentedJSON(t *testing.T) {
	raw := "// the requested action\n{\"type\": \"action\", \"function\": \"deleteTaskById\", \"input\": 7}"
	instr := Parse(raw)
	require.Equal(t, message.KindAction, instr.Kind)
	assert.Equal(t, []int64{7}, instr.Args.IDs)
}

func TestParseDeleteManyIDs(t *testing.T) {
	instr := Parse(`{"type": "action", "function": "deleteTaskById", "input": [3, 5, 8]}`)
	require.Equal(t, message.FuncDeleteTaskByID, instr.Function)
	assert.Equal(t, []int64{3, 5, 8}, instr.Args.IDs)
}

func TestParseSearchShapes(t *testing.T) {
	object := Parse(`{"type": "action", "function": "searchTask", "input": {"title": "milk"}}`)
	require.Equal(t, message.FuncSearchTask, object.Function)
	assert.Equal(t, "milk", object.Args.Title)

	bare := Parse(`{"type": "action", "function": "searchTask", "input": "milk"}`)
	require.Equal(t, message.FuncSearchTask, bare.Function)
	assert.Equal(t, "milk", bare.Args.Title)
}

func TestParseFallbacks(t *testing.T) {
	cases := map[string]string{
		"prose":             "Sure! I added the task for you.",
		"truncated":         `{"type": "action", "function": "createTa`,
		"unknown type":      `{"type": "tool_call", "function": "createTask"}`,
		"unknown function":  `{"type": "action", "function": "updateTask", "input": {}}`,
		"missing title":     `{"type": "action", "function": "createTask", "input": {"due_date": "tomorrow"}}`,
		"empty delete list": `{"type": "action", "function": "deleteTaskById", "input": []}`,
		"bad delete id":     `{"type": "action", "function": "deleteTaskById", "input": "seven"}`,
		"empty search":      `{"type": "action", "function": "searchTask", "input": ""}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			instr := Parse(raw)
			assert.Equal(t, message.KindOutput, instr.Kind)
			assert.Equal(t, FallbackMessage, instr.Message)
		})
	}
}

func TestParseNeverPanics(t *testing.T) {
	for _, raw := range []string{"", "```", "``````", "```json", "{", "null", "[]", "42"} {
		instr := Parse(raw)
		assert.NotEmpty(t, instr.Kind, "raw=%q", raw)
	}
}

func TestStripFencesPassthrough(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
