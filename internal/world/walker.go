package world

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qasimio/Operon/internal/obslog"
)

// hiddenDirAllow mirrors the teacher's "blind spot" fix: most dot-directories
// are VCS/tooling scratch space and are skipped, but a few carry source-
// adjacent configuration worth walking into.
var hiddenDirAllow = map[string]bool{
	".github":   true,
	".vscode":   true,
	".circleci": true,
	".config":   true,
	".operon":   false,
	".git":      false,
}

var ignoredDirNames = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
	"bin":          true,
	"obj":          true,
	".terraform":   true,
	".venv":        true,
	".cache":       true,
}

// FileInfo is the walker's per-file record before symbol extraction.
type FileInfo struct {
	Path     string // repository-relative, slash-separated
	Hash     string
	Language string
	ModTime  time.Time
	IsTest   bool
}

// WalkResult aggregates the outcome of a single Walk call.
type WalkResult struct {
	Files          []FileInfo
	FileCount      int
	DirectoryCount int
	Languages      map[string]int
}

// Walker enumerates tracked files under a repository root and content-hashes
// each one, skipping VCS and build-artifact directories.
type Walker struct {
	Concurrency int
}

// NewWalker returns a Walker with a sensible default concurrency.
func NewWalker() *Walker {
	return &Walker{Concurrency: 20}
}

// Walk performs a full recursive scan of root, hashing every tracked file.
// The supplied cache (may be nil) is consulted to skip re-hashing files
// whose mtime/size have not changed.
func (w *Walker) Walk(ctx context.Context, root string, cache *FileCache) (*WalkResult, error) {
	result := &WalkResult{Languages: make(map[string]int)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 20
	}
	sem := make(chan struct{}, concurrency)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") {
				if allow, known := hiddenDirAllow[name]; known {
					if !allow {
						return filepath.SkipDir
					}
					mu.Lock()
					result.DirectoryCount++
					mu.Unlock()
					return nil
				}
				return filepath.SkipDir
			}
			if ignoredDirNames[name] {
				return filepath.SkipDir
			}
			mu.Lock()
			result.DirectoryCount++
			mu.Unlock()
			return nil
		}

		wg.Add(1)
		go func(path string, info os.FileInfo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			var hash string
			if cache != nil {
				if cached, hit := cache.Get(rel, info); hit {
					hash = cached
				}
			}
			if hash == "" {
				h, hashErr := HashFile(path)
				if hashErr != nil {
					obslog.Get(obslog.CategoryWorld).Warnf("skipping file (hash error): %s: %v", rel, hashErr)
					return
				}
				hash = h
				if cache != nil {
					cache.Update(rel, info, hash)
				}
			}

			lang := DetectLanguage(filepath.Ext(path), path)
			fi := FileInfo{
				Path:     rel,
				Hash:     hash,
				Language: lang,
				ModTime:  info.ModTime(),
				IsTest:   IsTestFile(path),
			}

			mu.Lock()
			result.Files = append(result.Files, fi)
			result.FileCount++
			result.Languages[lang]++
			mu.Unlock()
		}(path, info)
		return nil
	})

	wg.Wait()
	if err != nil {
		return result, err
	}
	return result, nil
}

// HashFile returns the hex-encoded SHA-256 hash of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".kt":   "kotlin",
	".rb":   "ruby",
	".php":  "php",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".swift": "swift",
	".scala": "scala",
	".lua":  "lua",
	".sh":   "shell",
	".bash": "shell",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".md":   "markdown",
	".toml": "toml",
}

// DetectLanguage maps a file extension (and, for extensionless files, a
// well-known basename) to a language tag. Unrecognized files are "unknown".
func DetectLanguage(ext, path string) string {
	ext = strings.ToLower(ext)
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	switch filepath.Base(path) {
	case "Dockerfile", "dockerfile":
		return "dockerfile"
	case "Makefile", "makefile", "GNUmakefile":
		return "makefile"
	case "go.mod", "go.sum":
		return "go_mod"
	case "package.json":
		return "npm"
	case "Cargo.toml":
		return "cargo"
	case "requirements.txt", "setup.py", "pyproject.toml":
		return "python_config"
	}
	return "unknown"
}

// IsTestFile reports whether path names a test file by the conventions of
// its apparent language.
func IsTestFile(path string) bool {
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	if strings.HasSuffix(path, "_test.go") {
		return true
	}
	if strings.HasSuffix(path, "_test.py") || strings.HasPrefix(base, "test_") {
		return true
	}

	dirParts := strings.Split(filepath.ToSlash(dir), "/")
	inTestDir := false
	for _, part := range dirParts {
		if part == "tests" || part == "test" || part == "__tests__" {
			inTestDir = true
			break
		}
	}
	if inTestDir {
		switch filepath.Ext(path) {
		case ".py", ".js", ".ts", ".tsx", ".rs":
			return true
		}
	}

	if strings.HasSuffix(path, ".test.js") || strings.HasSuffix(path, ".test.ts") ||
		strings.HasSuffix(path, ".spec.js") || strings.HasSuffix(path, ".spec.ts") ||
		strings.HasSuffix(path, ".test.tsx") || strings.HasSuffix(path, ".spec.tsx") {
		return true
	}
	if strings.HasSuffix(path, "Test.java") || strings.HasSuffix(path, "Tests.java") {
		return true
	}
	if strings.Contains(dir, "tests") && strings.HasSuffix(path, ".rs") {
		return true
	}
	return false
}
