package viewer_test

import (
	"context"
	"errors"
	"testing"

	"volsegsync/internal/errs"
	"volsegsync/internal/logging"
	"volsegsync/internal/viewer"
)

func TestLaunchMissingBinary(t *testing.T) {
	err := viewer.Launch(context.Background(), logging.NewNop(), "definitely-not-a-viewer-9000")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestLaunchRunsBinary(t *testing.T) {
	if err := viewer.Launch(context.Background(), logging.NewNop(), "true"); err != nil {
		t.Fatalf("Launch(true): %v", err)
	}
	if err := viewer.Launch(context.Background(), logging.NewNop(), "false"); err == nil {
		t.Fatal("expected error from failing viewer process")
	}
}
