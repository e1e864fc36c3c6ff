package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fakeRunner records install invocations and returns canned errors.
type fakeRunner struct {
	calls [][]string
	fail  map[string]error // keyed by joined argv
}

func (f *fakeRunner) run(_ context.Context, _ string, _ time.Duration, argv ...string) error {
	f.calls = append(f.calls, argv)
	return f.fail[strings.Join(argv, " ")]
}

func TestMissingModulesPython(t *testing.T) {
	text := "Traceback (most recent call last):\n" +
		"ModuleNotFoundError: No module named 'flask'\n" +
		"ModuleNotFoundError: No module named 'yaml.scanner'\n"

	require.Equal(t, []string{"flask", "yaml"}, MissingModules(text))
}

func TestMissingModulesImportError(t *testing.T) {
	text := "ImportError: cannot import name 'HTTPAdapter' from 'requests.adapters'"

	require.Equal(t, []string{"requests"}, MissingModules(text))
}

func TestMissingModulesNode(t *testing.T) {
	text := "Error: Cannot find module 'express'\n" +
		"Error: Cannot find module './routes'\n" +
		"Error: Cannot find module '/abs/path'\n"

	require.Equal(t, []string{"express"}, MissingModules(text))
}

func TestMissingModulesDedupAndSort(t *testing.T) {
	text := "ModuleNotFoundError: No module named 'zlib2'\n" +
		"ModuleNotFoundError: No module named 'aiohttp'\n" +
		"ModuleNotFoundError: No module named 'zlib2'\n"

	require.Equal(t, []string{"aiohttp", "zlib2"}, MissingModules(text))
}

func TestMissingModulesEmpty(t *testing.T) {
	require.Empty(t, MissingModules("all tests passed"))
}

func TestPackageAliases(t *testing.T) {
	require.Equal(t, "Pillow", packageFor("PIL"))
	require.Equal(t, "PyYAML", packageFor("yaml"))
	require.Equal(t, "scikit-learn", packageFor("sklearn"))
	require.Equal(t, "requests", packageFor("requests"))
}

func TestResolveInstallsPythonAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "flask\n")
	fake := &fakeRunner{}
	r := NewResolver(dir, nil)
	r.run = fake.run

	installed := r.Resolve(context.Background(), "ModuleNotFoundError: No module named 'PIL'")

	require.Equal(t, []string{"Pillow"}, installed)
	require.Equal(t, [][]string{{"pip", "install", "Pillow", "-q"}}, fake.calls)
}

func TestResolveInstallsNodePackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "demo"}`)
	fake := &fakeRunner{}
	r := NewResolver(dir, nil)
	r.run = fake.run

	installed := r.Resolve(context.Background(), "Error: Cannot find module 'express'")

	require.Equal(t, []string{"express"}, installed)
	require.Equal(t, [][]string{{"npm", "install", "express", "--save"}}, fake.calls)
}

func TestResolveSkipsFailedInstalls(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "import flask\n")
	fake := &fakeRunner{fail: map[string]error{
		"pip install flask -q": os.ErrPermission,
	}}
	r := NewResolver(dir, nil)
	r.run = fake.run

	installed := r.Resolve(context.Background(), "ModuleNotFoundError: No module named 'flask'")

	require.Empty(t, installed)
	require.Len(t, fake.calls, 1)
}

func TestResolveUnknownProjectTypeDoesNothing(t *testing.T) {
	fake := &fakeRunner{}
	r := NewResolver(t.TempDir(), nil)
	r.run = fake.run

	installed := r.Resolve(context.Background(), "ModuleNotFoundError: No module named 'flask'")

	require.Empty(t, installed)
	require.Empty(t, fake.calls)
}

func TestInstallManifestPython(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "flask\n")
	fake := &fakeRunner{}
	r := NewResolver(dir, nil)
	r.run = fake.run

	done := r.InstallManifest(context.Background())

	require.Equal(t, []string{"requirements.txt"}, done)
	require.Equal(t, [][]string{{"pip", "install", "-r", "requirements.txt", "-q"}}, fake.calls)
}

func TestInstallManifestPipFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "flask\n")
	fake := &fakeRunner{fail: map[string]error{
		"pip install -r requirements.txt -q": os.ErrNotExist,
	}}
	r := NewResolver(dir, nil)
	r.run = fake.run

	done := r.InstallManifest(context.Background())

	require.Equal(t, []string{"requirements.txt"}, done)
	require.Len(t, fake.calls, 2)
	require.Equal(t, []string{"python3", "-m", "pip", "install", "-r", "requirements.txt", "-q"}, fake.calls[1])
}

func TestInstallManifestNodeSkipsExistingModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "demo"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	fake := &fakeRunner{}
	r := NewResolver(dir, nil)
	r.run = fake.run

	done := r.InstallManifest(context.Background())

	require.Empty(t, done)
	require.Empty(t, fake.calls)
}

func TestInstallManifestNode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "demo"}`)
	fake := &fakeRunner{}
	r := NewResolver(dir, nil)
	r.run = fake.run

	done := r.InstallManifest(context.Background())

	require.Equal(t, []string{"package.json"}, done)
	require.Equal(t, [][]string{{"npm", "install"}}, fake.calls)
}
