package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hannadev/blogsearch/internal/rag"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestRunHelp(t *testing.T) {
	output := captureStdout(t, runHelp)

	for _, want := range []string{
		"blogsearch serve",
		"blogsearch sync",
		"blogsearch ask",
		"GEMINI_API_KEY",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRunVersion(t *testing.T) {
	output := captureStdout(t, runVersion)

	if !strings.Contains(output, "blogsearch "+Version) {
		t.Errorf("version output missing version line: %q", output)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"blogsearch", "frobnicate"}

	err := Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Execute() = %v, want unknown command error", err)
	}
}

func TestWriteIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rag-index.json")
	chunks := []rag.EmbeddedChunk{
		{
			Chunk:     rag.Chunk{ID: "post:0", DocID: "post", Text: "hello"},
			Embedding: []float32{0.1, 0.2},
		},
	}

	if err := writeIndex(path, chunks); err != nil {
		t.Fatalf("writeIndex() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading index back: %v", err)
	}
	var got []rag.EmbeddedChunk
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("index is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0].ID != "post:0" {
		t.Errorf("round-tripped index = %+v", got)
	}

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("listing index dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("index dir has %d entries, want 1", len(entries))
	}
}
