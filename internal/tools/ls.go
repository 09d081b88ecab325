// ABOUTME: Directory listing tool: directories first, then files, with size and mod time
// ABOUTME: Read-only; the listing ends with a count of directories and files

package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
)

const lsTimeLayout = "2006-01-02 15:04"

func newLsTool(root string) *Tool {
	return &Tool{
		Spec: Spec{
			Name:        "ls",
			Label:       "List Directory",
			Description: "List a directory: subdirectories first, then files with size and modification time.",
			Params:      []Param{{Name: "path", Description: "Directory to list"}},
			Strategy:    StrategyDeterministic,
			Rule:        Rule{Kind: RuleWhole},
			ReadOnly:    true,
		},
		Execute: func(_ context.Context, args Values) (string, error) {
			raw, err := requireArg(args, "path")
			if err != nil {
				return "", err
			}
			dir := resolvePath(raw, root)
			entries, err := os.ReadDir(dir)
			if err != nil {
				return "", fmt.Errorf("listing %s: %w", dir, err)
			}
			return truncateOutput(listing(entries), maxOutput), nil
		},
	}
}

type lsRow struct {
	name  string
	dir   bool
	size  int64
	mtime time.Time
	err   error
}

func listing(entries []fs.DirEntry) string {
	if len(entries) == 0 {
		return "(empty directory)"
	}

	rows := make([]lsRow, 0, len(entries))
	for _, e := range entries {
		r := lsRow{name: e.Name(), dir: e.IsDir()}
		if info, err := e.Info(); err != nil {
			r.err = err
		} else {
			r.size, r.mtime = info.Size(), info.ModTime()
		}
		rows = append(rows, r)
	}
	slices.SortStableFunc(rows, func(a, b lsRow) int {
		if a.dir != b.dir {
			if a.dir {
				return -1
			}
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	var b strings.Builder
	dirs := 0
	for _, r := range rows {
		kind, name := "-", r.name
		if r.dir {
			kind, name = "d", r.name+"/"
			dirs++
		}
		if r.err != nil {
			fmt.Fprintf(&b, "%s %10s  %-16s  %s\n", kind, "?", "?", name)
			continue
		}
		fmt.Fprintf(&b, "%s %10d  %-16s  %s\n", kind, r.size, r.mtime.Format(lsTimeLayout), name)
	}
	fmt.Fprintf(&b, "%d director%s, %d file%s", dirs, plural(dirs, "y", "ies"), len(rows)-dirs, plural(len(rows)-dirs, "", "s"))
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
