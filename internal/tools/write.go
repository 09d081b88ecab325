// ABOUTME: Write-file tool: creates or overwrites a file, creating parent directories
// ABOUTME: Mutating, so it is declared as requiring approval

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

func newWriteTool(root string) *Tool {
	return &Tool{
		Spec: Spec{
			Name:        "write",
			Label:       "Write File",
			Description: "Write content to a file, creating parent directories if needed.",
			Params: []Param{
				{Name: "path", Description: "Path to the file"},
				{Name: "content", Description: "Content to write"},
			},
			Strategy:         StrategyDeterministic,
			Rule:             Rule{Kind: RuleFirstSpace},
			RequiresApproval: true,
		},
		Execute: func(_ context.Context, args Values) (string, error) {
			raw, err := requireArg(args, "path")
			if err != nil {
				return "", err
			}
			content, _ := args.Get("content")
			path := resolvePath(raw, root)

			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("creating directory %s: %w", dir, err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("writing file %s: %w", path, err)
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
	}
}
