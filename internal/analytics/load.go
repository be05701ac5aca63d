package analytics

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dan9191/cashflow-service/internal/statement"
)

// loadBranch reads the explicit files, or every statement_<branch>_*.csv in
// the data directory when none are given.
func (e *Engine) loadBranch(branch string, files []string) ([]statement.Row, error) {
	var paths []string
	if len(files) > 0 {
		for _, f := range files {
			path, err := e.resolve(f)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(path); err != nil {
				return nil, badRequest("File not found: %s", f)
			}
			paths = append(paths, path)
		}
	} else {
		pattern := filepath.Join(e.dataDir, "statement_"+branch+"_*.csv")
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			return nil, notFound("No CSVs found for pattern: %s", pattern)
		}
		sort.Strings(matches)
		paths = matches
	}

	var rows []statement.Row
	for _, path := range paths {
		fileRows, err := readStatement(path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// resolve keeps explicit file names inside the data directory.
func (e *Engine) resolve(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dataDir, path)
	}
	path = filepath.Clean(path)
	root := filepath.Clean(e.dataDir)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", badRequest("File not found: %s", name)
	}
	return path, nil
}

func readStatement(path string) ([]statement.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, badRequest("File not found: %s", filepath.Base(path))
	}
	defer f.Close()

	rows, err := statement.Parse(f)
	if err != nil {
		return nil, badRequest("%s: %v", filepath.Base(path), err)
	}
	return rows, nil
}
