package claudecode

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArtifacts(t *testing.T) {
	rawJSONL := strings.Join([]string{
		`{"type":"user","message":{"role":"user","content":"do things"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[` +
			`{"type":"tool_use","name":"Read","input":{"file_path":"/app/main.go"}},` +
			`{"type":"tool_use","name":"Edit","input":{"file_path":"/app/main.go","old_string":"foo"}},` +
			`{"type":"tool_use","name":"Write","input":{"file_path":"/app/new.go"}},` +
			`{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}},` +
			`{"type":"tool_use","name":"Grep","input":{"pattern":"TODO","path":"/app"}}]}}`,
		`{"type":"user","message":{"role":"user","content":[` +
			`{"type":"tool_result","is_error":true,"content":"compilation failed: undefined foo"}]}}`,
	}, "\n")

	result := ExtractArtifacts(rawJSONL)

	assert.Equal(t, 5, result.ToolCallCount)
	assert.Equal(t, []string{"/app/main.go"}, result.FilesRead)
	assert.Equal(t, []string{"/app/new.go"}, result.FilesWritten)
	assert.Equal(t, []string{"/app/main.go"}, result.FilesEdited)
	assert.Equal(t, []string{"go test ./..."}, result.CommandsRun)
	assert.Equal(t, []string{"compilation failed: undefined foo"}, result.ErrorsEncountered)

	// files_touched dedupes across read/write/edit
	assert.Equal(t, []string{"/app/main.go", "/app/new.go"}, result.FilesTouched())

	types := make(map[string]int)
	for _, a := range result.Artifacts {
		types[a.Type]++
	}
	assert.Equal(t, 2, types[ArtifactFileRead]) // Read + Grep
	assert.Equal(t, 1, types[ArtifactFileWrite])
	assert.Equal(t, 1, types[ArtifactFileEdit])
	assert.Equal(t, 1, types[ArtifactCommand])
	assert.Equal(t, 1, types[ArtifactError])
}

func TestExtractArtifactsTaskAndGenericTools(t *testing.T) {
	rawJSONL := `{"type":"assistant","message":{"role":"assistant","content":[` +
		`{"type":"tool_use","name":"Task","input":{"prompt":"explore the repo","subagent_type":"general"}},` +
		`{"type":"tool_use","name":"WebFetch","input":{"url":"https://example.com"}}]}}`

	result := ExtractArtifacts(rawJSONL)
	require.Len(t, result.Artifacts, 2)

	assert.Equal(t, ArtifactToolCall, result.Artifacts[0].Type)
	assert.Equal(t, "Task: explore the repo", result.Artifacts[0].Value)
	assert.Equal(t, "general", result.Artifacts[0].Metadata["subagent_type"])

	assert.Equal(t, ArtifactToolCall, result.Artifacts[1].Type)
	assert.Equal(t, "WebFetch", result.Artifacts[1].Value)
	assert.Equal(t, 2, result.ToolCallCount)
}

func TestExtractArtifactsGenericToolInputKeys(t *testing.T) {
	rawJSONL := `{"type":"assistant","message":{"role":"assistant","content":[` +
		`{"type":"tool_use","name":"WebSearch","input":{"query":"go generics","allowed_domains":["go.dev"]}}]}}`

	result := ExtractArtifacts(rawJSONL)
	require.Len(t, result.Artifacts, 1)

	meta := result.Artifacts[0].Metadata
	assert.Equal(t, "WebSearch", meta["tool"])
	assert.Equal(t, []string{"allowed_domains", "query"}, meta["input_keys"])
}

func TestInputKeysCapped(t *testing.T) {
	input := `{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7,"h":8,"i":9,"j":10,"k":11,"l":12}`

	keys := inputKeys([]byte(input), 10)
	require.Len(t, keys, 10)
	assert.Equal(t, "a", keys[0])
	assert.Equal(t, "j", keys[9])
}

func TestExtractArtifactsErrorContentBlocks(t *testing.T) {
	rawJSONL := `{"type":"user","message":{"role":"user","content":[` +
		`{"type":"tool_result","is_error":true,"content":[{"type":"text","text":"first line"},{"type":"text","text":"second line"}]},` +
		`{"type":"tool_result","is_error":false,"content":"fine"}]}}`

	result := ExtractArtifacts(rawJSONL)
	assert.Equal(t, []string{"first line\nsecond line"}, result.ErrorsEncountered)
}

func TestExtractArtifactsTruncatesLongValues(t *testing.T) {
	longCommand := strings.Repeat("x", 600)
	rawJSONL := `{"type":"assistant","message":{"role":"assistant","content":[` +
		`{"type":"tool_use","name":"Bash","input":{"command":"` + longCommand + `"}}]}}`

	result := ExtractArtifacts(rawJSONL)
	require.Len(t, result.Artifacts, 1)
	assert.Len(t, result.Artifacts[0].Value, 500)
	// commands_run keeps the full command
	assert.Len(t, result.CommandsRun[0], 600)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 10)
	cut := truncate(s, 5)
	assert.Equal(t, "ééééé", cut)
	assert.True(t, utf8.ValidString(cut))

	// Short strings pass through untouched
	assert.Equal(t, "abc", truncate("abc", 5))
}

func TestExtractArtifactsEmptyInput(t *testing.T) {
	result := ExtractArtifacts("")
	assert.Zero(t, result.ToolCallCount)
	assert.Empty(t, result.Artifacts)
	assert.Empty(t, result.FilesTouched())
}

func TestExtractFilePathsFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "absolute path",
			text: "look at /home/user/project/main.go please",
			want: []string{"/home/user/project/main.go"},
		},
		{
			name: "relative path under source root",
			text: "the bug is in src/auth/login.py somewhere",
			want: []string{"src/auth/login.py"},
		},
		{
			name: "mixed and deduped",
			text: "compare /etc/app.conf with /etc/app.conf and tests/test_app.py",
			want: []string{"/etc/app.conf", "tests/test_app.py"},
		},
		{
			name: "no extension means no match",
			text: "check /usr/local/bin and the src/utils directory",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFilePathsFromText(tt.text))
		})
	}
}
