package storage

import (
	"errors"
	"testing"

	"voicereport-platform/internal/config"
	"voicereport-platform/internal/conversation"
)

func TestNewMinioStore_DisabledWithoutEndpoint(t *testing.T) {
	if _, err := NewMinioStore(config.StorageConfig{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestArtifactContentTypes(t *testing.T) {
	cases := []struct {
		kind        conversation.ArtifactKind
		ext         string
		contentType string
	}{
		{conversation.ArtifactTranscript, ".json", "application/json"},
		{conversation.ArtifactReport, ".pdf", "application/pdf"},
		{conversation.ArtifactAudio, ".mp3", "audio/mpeg"},
	}
	for _, tc := range cases {
		if got := extFor(tc.kind); got != tc.ext {
			t.Fatalf("ext for %s: expected %q got %q", tc.kind, tc.ext, got)
		}
		if got := contentTypeFor(tc.kind); got != tc.contentType {
			t.Fatalf("content type for %s: expected %q got %q", tc.kind, tc.contentType, got)
		}
	}
}
