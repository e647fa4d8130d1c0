package gemini

import (
	"context"
	"strings"
	"testing"
)

func TestMockGenerator_ReplaysAnswer(t *testing.T) {
	gen := &MockGenerator{Answer: "hello 세계 streaming", ChunkSize: 4}

	var sb strings.Builder
	for token, err := range gen.Stream(context.Background(), "ignored") {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		sb.WriteString(token)
	}

	if sb.String() != "hello 세계 streaming" {
		t.Errorf("reassembled = %q", sb.String())
	}
}

func TestMockGenerator_ConsumerStop(t *testing.T) {
	gen := &MockGenerator{Answer: strings.Repeat("a", 100), ChunkSize: 10}

	count := 0
	for range gen.Stream(context.Background(), "") {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("consumed %d chunks after early break, want 2", count)
	}
}

func TestMockGenerator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := NewMockGenerator()

	var lastErr error
	for _, err := range gen.Stream(ctx, "") {
		if err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Error("canceled context did not surface an error")
	}
}
