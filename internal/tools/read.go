// ABOUTME: Read-file tool: returns file contents, refusing binary files
// ABOUTME: Large outputs are truncated at 100KB

package tools

import (
	"context"
	"fmt"
	"os"
)

const binaryCheckBytes = 512

func newReadTool(root string) *Tool {
	return &Tool{
		Spec: Spec{
			Name:          "read",
			Label:         "Read File",
			Description:   "Read the contents of a file.",
			Params:        []Param{{Name: "path", Description: "Path to the file"}},
			Strategy:      StrategyDeterministic,
			Rule:          Rule{Kind: RuleWhole},
			SummaryPrompt: "Explain what this file contains and point out anything relevant to the request.",
			ReadOnly:      true,
		},
		Execute: func(_ context.Context, args Values) (string, error) {
			raw, err := requireArg(args, "path")
			if err != nil {
				return "", err
			}
			path := resolvePath(raw, root)

			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading file %s: %w", path, err)
			}
			if isBinary(data) {
				return "", fmt.Errorf("binary file detected: %s", path)
			}
			return truncateOutput(string(data), maxOutput), nil
		},
	}
}

// isBinary checks for null bytes in the first binaryCheckBytes of data.
func isBinary(data []byte) bool {
	limit := min(len(data), binaryCheckBytes)
	for _, b := range data[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
