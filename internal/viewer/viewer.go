// Package viewer launches an external viewer on a volume/segmentation pair.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"volsegsync/internal/errs"
	"volsegsync/internal/logging"
)

// DefaultBinary is used when the instance config does not name a viewer.
const DefaultBinary = "volsegviewer"

// Launch runs the viewer binary with the given file arguments and waits for
// it to exit. The viewer owns its own UI; nothing is read back beyond the
// exit status.
func Launch(ctx context.Context, logger *slog.Logger, binary string, paths ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return errs.Wrap(errs.ErrConfiguration, "viewer", "launch",
			fmt.Sprintf("viewer %q not found on PATH", binary), nil)
	}

	logger.Info("launching viewer",
		logging.String("binary", resolved),
		logging.Int("files", len(paths)))

	cmd := exec.CommandContext(ctx, resolved, paths...)
	if err := cmd.Run(); err != nil {
		return errs.Wrap(nil, "viewer", "launch", fmt.Sprintf("run %s", binary), err)
	}
	return nil
}
