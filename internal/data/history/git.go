package history

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// ResolveGitCommit returns the abbreviated HEAD commit of the repository at
// projectRoot, or "" when git or the repository is unavailable.
func ResolveGitCommit(ctx context.Context, projectRoot string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return runGit(ctx, projectRoot, "rev-parse", "--short=12", "HEAD")
}

func runGit(ctx context.Context, projectRoot string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", projectRoot}, args...)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(stdout.String())
}
