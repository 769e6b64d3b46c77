// Package preflight provides readiness checks for the directories and
// external tools an instance depends on. Mutating commands run the
// directory checks before touching the index so a permissions problem
// surfaces as one clear line instead of a half-applied update.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"volsegsync/internal/scan"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to an instance rooted at root.
// The viewer check only runs when a binary is configured.
func RunAll(root string, layout scan.Layout, viewerBinary string) []Result {
	results := []Result{
		CheckDirectoryAccess("Instance root", root),
		CheckDirectoryAccess("Volumes directory", layout.VolumesPath(root)),
		CheckDirectoryAccess("Segmentations directory", layout.SegmentationsPath(root)),
	}
	if strings.TrimSpace(viewerBinary) != "" {
		results = append(results, CheckBinary("Viewer", viewerBinary))
	}
	return results
}

// AllPassed reports whether every result in the set passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies that the named command resolves on PATH or points at
// an executable file.
func CheckBinary(name, command string) Result {
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found on PATH)", command)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}
