// Package filediscovery collects workspace source files used as prompt
// context by the generation phases, honoring ignore rules so build
// output and vendored trees never leak into prompts.
package filediscovery

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Default caps keep prompt context bounded.
const (
	DefaultMaxFiles    = 50
	maxFileSizeBytes   = 256 * 1024
	defaultIgnoredDirs = ".git,node_modules,vendor,dist,build"
)

// GetIgnoreRules reads ignore files (.gitignore, .specdrive/.ignore) and
// returns a compiled matcher, or nil when no rules exist.
func GetIgnoreRules(rootDir string) *ignore.GitIgnore {
	var allRules []string

	gitignorePath := filepath.Join(rootDir, ".gitignore")
	if rules, err := readIgnoreFile(gitignorePath); err == nil {
		allRules = append(allRules, rules...)
	}

	localIgnorePath := filepath.Join(rootDir, ".specdrive", ".ignore")
	if rules, err := readIgnoreFile(localIgnorePath); err == nil {
		allRules = append(allRules, rules...)
	}

	if len(allRules) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(allRules...)
}

// readIgnoreFile reads a single ignore file and returns its lines.
func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ContextFiles walks rootDir and returns up to maxFiles source file
// paths (relative to rootDir) suitable for prompt context, sorted for
// deterministic prompts.
func ContextFiles(rootDir string, maxFiles int) ([]string, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	rules := GetIgnoreRules(rootDir)
	skipDirs := map[string]bool{}
	for _, d := range strings.Split(defaultIgnoredDirs, ",") {
		skipDirs[d] = true
	}

	var files []string
	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if rules != nil && rules.MatchesPath(rel) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileSizeBytes {
			return nil
		}
		if !isSourceFile(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}
	return files, nil
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".h": true,
	".cpp": true, ".md": true, ".yaml": true, ".yml": true, ".json": true,
	".sql": true, ".sh": true,
}

func isSourceFile(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}
