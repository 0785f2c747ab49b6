package buildcheck

import (
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/amanthanvi/registry"

func TestBuildWithoutCGOSucceeds(t *testing.T) {
	t.Parallel()
	root := repoRoot(t)

	cmd := exec.Command("go", "build", "./...")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	output, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "go build without cgo failed:\n%s", string(output))
}

func TestStorageDoesNotImportUpperLayers(t *testing.T) {
	t.Parallel()
	root := repoRoot(t)

	imports := listDependencies(t, root, "./internal/storage")
	for _, imp := range imports {
		for _, upper := range []string{"/internal/app", "/internal/cli", "/internal/config", "/internal/log"} {
			require.NotEqualf(t, modulePath+upper, imp, "internal/storage must not depend on %s", upper)
		}
	}
}

// internal/app backs both the member commands and invoke, so it stays free
// of cobra.
func TestAppDoesNotImportCobra(t *testing.T) {
	t.Parallel()
	root := repoRoot(t)

	importsByPkg := listDirectImports(t, root, "./internal/app/...")
	for pkg, imports := range importsByPkg {
		for _, imp := range imports {
			require.Falsef(t, strings.HasPrefix(imp, "github.com/spf13/cobra"),
				"package %s imports %s", pkg, imp)
			require.NotEqualf(t, modulePath+"/internal/cli", imp, "package %s imports the CLI", pkg)
		}
	}
}

func TestVersionEmbedding(t *testing.T) {
	t.Parallel()
	root := repoRoot(t)
	binaryPath := filepath.Join(t.TempDir(), "registry-test")

	version := "v0.1.0-test"
	commit := "abc123def456"
	buildTime := "2026-02-19T00:00:00Z"

	build := exec.Command(
		"go",
		"build",
		"-trimpath",
		"-ldflags",
		"-X "+modulePath+"/internal/version.Version="+version+
			" -X "+modulePath+"/internal/version.Commit="+commit+
			" -X "+modulePath+"/internal/version.BuildTime="+buildTime,
		"-o",
		binaryPath,
		"./cmd/registry",
	)
	build.Dir = root
	buildOutput, err := build.CombinedOutput()
	require.NoErrorf(t, err, "build failed:\n%s", string(buildOutput))

	run := exec.Command(binaryPath, "version", "--json")
	run.Dir = root
	stdout, err := run.CombinedOutput()
	require.NoErrorf(t, err, "running binary failed:\n%s", string(stdout))

	var got struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	}
	require.NoError(t, json.Unmarshal(stdout, &got))
	require.Equal(t, version, got.Version)
	require.Equal(t, commit, got.Commit)
	require.Equal(t, buildTime, got.BuildTime)
}

func listDependencies(t *testing.T, root string, target string) []string {
	t.Helper()
	cmd := exec.Command("go", "list", "-deps", target)
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "go list failed:\n%s", string(output))

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	deps := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		deps = append(deps, line)
	}
	return deps
}

func listDirectImports(t *testing.T, root, pattern string) map[string][]string {
	t.Helper()
	cmd := exec.Command("go", "list", "-json", pattern)
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "go list -json failed:\n%s", string(output))

	dec := json.NewDecoder(strings.NewReader(string(output)))
	importsByPkg := map[string][]string{}
	for {
		var p struct {
			ImportPath string
			Imports    []string
		}
		err := dec.Decode(&p)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		importsByPkg[p.ImportPath] = append([]string(nil), p.Imports...)
	}
	return importsByPkg
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	_, err := os.Stat(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	return root
}
