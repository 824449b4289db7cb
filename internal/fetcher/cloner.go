package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Cloner copies a remote repository into a local target directory. The real
// implementation shells out to git; tests substitute their own.
type Cloner interface {
	Clone(ctx context.Context, url, target string) error
}

// GitCloner runs the configured git binary. The clone URL embeds the API
// token, so command output is surfaced but the caller redacts it before
// logging.
type GitCloner struct {
	Binary string
}

func (g GitCloner) Clone(ctx context.Context, url, target string) error {
	cmd := exec.CommandContext(ctx, g.Binary, "clone", url, target)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone failed: %v: %s", err, output.String())
	}
	return nil
}
