package paths

import (
	"path/filepath"
	"testing"
)

func TestSanitizePathForClaude(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/Users/test/myrepo", "-Users-test-myrepo"},
		{"/home/user/project", "-home-user-project"},
		{"simple", "simple"},
		{"/path/with spaces/here", "-path-with-spaces-here"},
		{"/path.with.dots/file", "-path-with-dots-file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizePathForClaude(tt.input)
			if got != tt.want {
				t.Errorf("SanitizePathForClaude(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSessionIDFromTranscriptPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/.claude/projects/-home-user-proj/abc-123.jsonl", "abc-123"},
		{"sess.jsonl", "sess"},
		{"/tmp/no-extension", "no-extension"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := SessionIDFromTranscriptPath(tt.path)
			if got != tt.want {
				t.Errorf("SessionIDFromTranscriptPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"empty", "", true},
		{"forward slash", "abc/def", true},
		{"backslash", "abc\\def", true},
		{"simple", "session1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir_Override(t *testing.T) {
	t.Setenv(EnvConfigDir, "/tmp/test-simon-config")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir != "/tmp/test-simon-config" {
		t.Errorf("ConfigDir() = %q, want /tmp/test-simon-config", dir)
	}

	file, err := ConfigFile()
	if err != nil {
		t.Fatalf("ConfigFile() error = %v", err)
	}
	want := filepath.Join("/tmp/test-simon-config", ConfigFileName)
	if file != want {
		t.Errorf("ConfigFile() = %q, want %q", file, want)
	}
}

func TestConfigFile_DirectOverride(t *testing.T) {
	t.Setenv(EnvConfigFile, "/tmp/custom.toml")

	file, err := ConfigFile()
	if err != nil {
		t.Fatalf("ConfigFile() error = %v", err)
	}
	if file != "/tmp/custom.toml" {
		t.Errorf("ConfigFile() = %q, want /tmp/custom.toml", file)
	}
}

func TestClaudeProjectDirFor_Override(t *testing.T) {
	t.Setenv(EnvClaudeDir, "/tmp/test-claude")

	dir, err := ClaudeProjectDirFor("/some/repo/path")
	if err != nil {
		t.Fatalf("ClaudeProjectDirFor() error = %v", err)
	}
	want := filepath.Join("/tmp/test-claude", "projects", "-some-repo-path")
	if dir != want {
		t.Errorf("ClaudeProjectDirFor() = %q, want %q", dir, want)
	}
}

func TestProjectSkillsDir(t *testing.T) {
	got := ProjectSkillsDir("/work/myproj")
	want := filepath.Join("/work/myproj", ".claude", "skills")
	if got != want {
		t.Errorf("ProjectSkillsDir() = %q, want %q", got, want)
	}
}
