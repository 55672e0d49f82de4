package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/packhound/packhound/pkg/domain"
)

// codeLimit is the per-file cutoff beyond which the remainder is replaced by
// an omission marker in the corpus.
const codeLimit = 8000

const omissionMarker = "\n\n" +
	"######################################################################\n" +
	"# the lines below are omitted because they are too long for analysis. #\n" +
	"######################################################################\n"

var (
	importPattern     = regexp.MustCompile(`(?m)^\s*import ([^#\s]+)`)
	fromImportPattern = regexp.MustCompile(`(?m)^\s*from ([^\s]+) import ([^#\s]+)`)
)

// CollectSources gathers the package's entry-point files: the shallowest
// setup.py, the shallowest __init__.py beneath it, and the local modules
// they import. Empty files are skipped.
func CollectSources(pkgDir string) ([]domain.SourceUnit, error) {
	setupPath, err := shallowest(pkgDir, "setup.py")
	if err != nil {
		return nil, err
	}
	if setupPath == "" {
		return nil, fmt.Errorf("no setup.py found under %s", pkgDir)
	}

	entrypoints := []string{setupPath}
	initPath, err := shallowest(filepath.Dir(setupPath), "__init__.py")
	if err != nil {
		return nil, err
	}
	if initPath != "" {
		entrypoints = append(entrypoints, initPath)
	}

	var units []domain.SourceUnit
	for _, path := range entrypoints {
		collected, err := collectForFile(path)
		if err != nil {
			return nil, err
		}
		units = append(units, collected...)
	}
	return units, nil
}

// shallowest returns the matching file with the fewest path components, or
// the empty string when none exists.
func shallowest(root, name string) (string, error) {
	var best string
	bestDepth := -1
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		depth := strings.Count(path, string(filepath.Separator))
		if bestDepth < 0 || depth < bestDepth {
			best = path
			bestDepth = depth
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return best, nil
}

// collectForFile reads one entry point and, except for setup.py, chases the
// local modules its import statements name.
func collectForFile(path string) ([]domain.SourceUnit, error) {
	code, err := readTrimmed(path)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, nil
	}

	units := []domain.SourceUnit{{
		Filename: filepath.Base(path),
		Code:     truncateCode(code),
	}}
	if filepath.Base(path) == "setup.py" {
		// setup.py is usually self-contained
		return units, nil
	}

	for _, module := range importedModules(code) {
		modulePath, err := shallowest(filepath.Dir(path), module+".py")
		if err != nil || modulePath == "" {
			continue
		}
		moduleCode, err := readTrimmed(modulePath)
		if err != nil || moduleCode == "" {
			continue
		}
		units = append(units, domain.SourceUnit{
			Filename: filepath.Base(modulePath),
			Code:     truncateCode(moduleCode),
		})
	}
	return units, nil
}

// importedModules extracts candidate local module names from import
// statements. Dotted paths contribute their last component, so
// "from aaa.bbb.ccc import xyz" yields both ccc and xyz.
func importedModules(code string) []string {
	seen := make(map[string]struct{})
	var modules []string
	add := func(name string) {
		name = name[strings.LastIndex(name, ".")+1:]
		if name == "" || name == "*" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		modules = append(modules, name)
	}

	for _, m := range importPattern.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range fromImportPattern.FindAllStringSubmatch(code, -1) {
		add(m[1])
		add(m[2])
	}
	return modules
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func truncateCode(code string) string {
	if len(code) < codeLimit {
		return code
	}
	return code[:codeLimit] + omissionMarker
}
