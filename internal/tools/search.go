// ABOUTME: Search tool: literal text search across the tool root using filepath.WalkDir
// ABOUTME: Stops after maxMatches results and honours context cancellation between files

package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxMatches = 1000

var errMatchLimitReached = fmt.Errorf("match limit reached (%d)", maxMatches)

func newSearchTool(root string) *Tool {
	return &Tool{
		Spec: Spec{
			Name:          "search",
			Label:         "Search Files",
			Description:   "Search file contents under the workspace for a literal string.",
			Params:        []Param{{Name: "query", Description: "Text to search for"}},
			Strategy:      StrategyDeterministic,
			Rule:          Rule{Kind: RuleWhole},
			SummaryPrompt: "Group the matches by file and say which ones look most relevant.",
			ReadOnly:      true,
		},
		Execute: func(ctx context.Context, args Values) (string, error) {
			query, err := requireArg(args, "query")
			if err != nil {
				return "", err
			}
			return searchTree(ctx, root, query)
		},
	}
}

// searchTree walks root and reports "path:line:text" for each line containing query.
func searchTree(ctx context.Context, root, query string) (string, error) {
	var b strings.Builder
	count := 0
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		return searchFile(path, root, query, &b, &count)
	})

	if walkErr != nil && !errors.Is(walkErr, errMatchLimitReached) {
		return "", fmt.Errorf("searching %s: %w", root, walkErr)
	}
	if b.Len() == 0 {
		return "no matches found", nil
	}
	if count >= maxMatches {
		fmt.Fprintf(&b, "\n... [truncated: %d matches shown, limit reached]\n", maxMatches)
	}
	return truncateOutput(b.String(), maxOutput), nil
}

func searchFile(path, root, query string, b *strings.Builder, count *int) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // skip unreadable files
	}
	defer f.Close()

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 && strings.IndexByte(line, 0) >= 0 {
			return nil // binary
		}
		if strings.Contains(line, query) {
			fmt.Fprintf(b, "%s:%d:%s\n", rel, lineNum, line)
			*count++
			if *count >= maxMatches {
				return errMatchLimitReached
			}
		}
	}
	return nil
}
