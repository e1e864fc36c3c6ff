package workspace

import (
	"path/filepath"
	"strings"
)

// ProjectInfo is the detected project type.
type ProjectInfo struct {
	// Language is python, javascript, typescript, go, rust, java,
	// ruby, or "unknown".
	Language string

	// Framework is the detected framework (flask, express, ...) or "".
	Framework string

	// PackageManager is the conventional manager for the language.
	PackageManager string

	// EntryPoint is the conventional main file when present.
	EntryPoint string

	// ConfigFiles lists the marker files that drove detection.
	ConfigFiles []string
}

// languageMarkers map manifest files to languages, checked in a fixed
// order so multi-language trees detect deterministically.
var languageOrder = []string{"python", "javascript", "typescript", "go", "rust", "java", "ruby"}

var languageMarkers = map[string][]string{
	"python":     {"pyproject.toml", "setup.py", "setup.cfg", "requirements.txt", "Pipfile"},
	"javascript": {"package.json"},
	"typescript": {"tsconfig.json"},
	"go":         {"go.mod"},
	"rust":       {"Cargo.toml"},
	"java":       {"pom.xml", "build.gradle"},
	"ruby":       {"Gemfile"},
}

var extensionLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
}

var packageManagers = map[string]string{
	"python":     "pip",
	"javascript": "npm",
	"typescript": "npm",
	"go":         "go",
	"rust":       "cargo",
	"java":       "maven",
	"ruby":       "bundler",
}

// frameworkMarkers are substrings looked up in the language's
// dependency manifest.
var frameworkMarkers = map[string][]struct{ name, marker string }{
	"python": {
		{"flask", "flask"},
		{"fastapi", "fastapi"},
		{"django", "django"},
		{"pytest", "pytest"},
	},
	"javascript": {
		{"next", "next"},
		{"express", "express"},
		{"react", "react"},
		{"vue", "vue"},
	},
	"typescript": {
		{"next", "next"},
		{"express", "express"},
		{"react", "react"},
		{"angular", "@angular"},
	},
}

var dependencyFiles = map[string][]string{
	"python":     {"requirements.txt", "pyproject.toml", "Pipfile"},
	"javascript": {"package.json"},
	"typescript": {"package.json"},
}

var entryCandidates = map[string][]string{
	"python":     {"app.py", "main.py", "server.py", "__main__.py", "manage.py"},
	"javascript": {"index.js", "app.js", "server.js", "src/index.js"},
	"typescript": {"index.ts", "app.ts", "server.ts", "src/index.ts"},
	"go":         {"main.go", "cmd/main.go"},
	"rust":       {"src/main.rs"},
}

// DetectProject infers language, framework, package manager, and entry
// point from a file listing. Marker files win; extension counts are
// the fallback.
func DetectProject(dir string, files []string) ProjectInfo {
	info := ProjectInfo{Language: "unknown"}

	fileSet := make(map[string]struct{}, len(files))
	for _, f := range files {
		fileSet[f] = struct{}{}
	}

	for _, lang := range languageOrder {
		for _, marker := range languageMarkers[lang] {
			if _, ok := fileSet[marker]; ok {
				info.Language = lang
				info.ConfigFiles = append(info.ConfigFiles, marker)
				break
			}
		}
		if info.Language != "unknown" {
			break
		}
	}

	if info.Language == "unknown" {
		info.Language = dominantExtensionLanguage(files)
	}

	info.PackageManager = packageManagers[info.Language]

	if markers := frameworkMarkers[info.Language]; len(markers) > 0 {
		deps := strings.ToLower(readDependencyFile(dir, info.Language))
		for _, m := range markers {
			if strings.Contains(deps, m.marker) {
				info.Framework = m.name
				break
			}
		}
	}

	for _, candidate := range entryCandidates[info.Language] {
		if _, ok := fileSet[candidate]; ok {
			info.EntryPoint = candidate
			break
		}
	}

	return info
}

// dominantExtensionLanguage picks the language of the most common
// known file extension, or "unknown".
func dominantExtensionLanguage(files []string) string {
	counts := make(map[string]int)
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if ext != "" {
			counts[ext]++
		}
	}

	best, bestCount := "", 0
	for ext, n := range counts {
		if n > bestCount || (n == bestCount && ext < best) {
			best, bestCount = ext, n
		}
	}
	if lang, ok := extensionLanguages[best]; ok {
		return lang
	}
	return "unknown"
}

func readDependencyFile(dir, language string) string {
	for _, name := range dependencyFiles[language] {
		if content := readTruncated(filepath.Join(dir, name), 5000); content != "" {
			return content
		}
	}
	return ""
}
