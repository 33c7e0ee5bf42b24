package xapi

import (
	"strings"
	"testing"

	"github.com/technojoe/claude-token-share/internal/models"
)

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1.00K"},
		{1_234, "1.23K"},
		{1_234_567, "1.23M"},
		{2_500_000_000, "2.50B"},
	}
	for _, tt := range tests {
		if got := FormatTokenCount(tt.n); got != tt.want {
			t.Errorf("FormatTokenCount(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestBuildShareMessage(t *testing.T) {
	msg := BuildShareMessage(1_234_567, models.SourceLocalFiles, "https://app.example")

	if !strings.Contains(msg, "1.23M") {
		t.Errorf("Expected formatted token count in message: %s", msg)
	}
	if strings.Contains(msg, "{tokens}") {
		t.Errorf("Placeholder was not substituted: %s", msg)
	}
	if !strings.Contains(msg, "https://app.example") {
		t.Errorf("Expected app link appended: %s", msg)
	}
	if !strings.Contains(msg, "#ClaudeCode") {
		t.Errorf("Expected local-files hashtag: %s", msg)
	}
}

func TestBuildShareMessage_AdminSource(t *testing.T) {
	msg := BuildShareMessage(10, models.SourceAdminAPI, "")

	if strings.Contains(msg, "Check your usage") {
		t.Errorf("No link expected without an app URL: %s", msg)
	}
	if !strings.Contains(msg, "#ClaudeAI") {
		t.Errorf("Expected admin-source hashtag: %s", msg)
	}
}

func TestBuildShareMessage_WithinPostLimit(t *testing.T) {
	for i := 0; i < 20; i++ {
		msg := BuildShareMessage(999_999_999_999, models.SourceLocalFiles, "https://claude-token-share.example.com")
		if n := len([]rune(msg)); n > MaxMessageLen {
			t.Fatalf("Share message exceeds %d chars: %d", MaxMessageLen, n)
		}
	}
}
