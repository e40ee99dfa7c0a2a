package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/partybook/internal/config"
	"github.com/mesh-intelligence/partybook/internal/sqlite"
	"github.com/mesh-intelligence/partybook/pkg/partybook"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

type harness struct {
	t       *testing.T
	dirArgs []string
	dataDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	configDir := filepath.Join(t.TempDir(), "config")
	dataDir := filepath.Join(t.TempDir(), "data")
	return &harness{
		t:       t,
		dirArgs: []string{"--config-dir", configDir, "--data-dir", dataDir},
		dataDir: dataDir,
	}
}

func (h *harness) run(args ...string) (string, string, int) {
	h.t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	code := run(root, append(args, h.dirArgs...), &stderr)
	return stdout.String(), stderr.String(), code
}

// mustRun runs a command that is expected to succeed and returns stdout.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(args...)
	require.Equal(h.t, exitSuccess, code, "stderr: %s", errOut)
	return out
}

func (h *harness) create(args ...string) types.View {
	h.t.Helper()
	out := h.mustRun(append([]string{"create", "--json"}, args...)...)
	var v types.View
	require.NoError(h.t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestVersion(t *testing.T) {
	out := newHarness(t).mustRun("version")
	assert.Equal(t, fmt.Sprintf("partybook v%s\nmodule: %s\n", partybook.Version, modulePath), out)
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("init")
	assert.Contains(t, out, "Partybook initialized")

	assert.FileExists(t, filepath.Join(h.dirArgs[1], config.FileName))
	assert.FileExists(t, filepath.Join(h.dataDir, sqlite.DBFile))

	// Idempotent.
	h.mustRun("init")
}

func TestPartyLifecycle(t *testing.T) {
	h := newHarness(t)
	created := h.create("--first-name", "Jane", "--last-name", "Doe",
		"--email", "jane@x.com", "--city", "Springfield", "--attr", "industry=Retail")
	assert.Equal(t, "Jane Doe", created.Name)
	assert.Equal(t, types.KindProspect, created.Kind)
	assert.Equal(t, "Retail", created.Industry)

	text := h.mustRun("get", created.ID)
	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "Springfield")
	assert.NotContains(t, text, "Phone:")

	out := h.mustRun("update", created.ID, "--json", "--phone", "555-1111", "--attr", "tier=gold")
	var updated types.View
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "555-1111", updated.Phone)
	assert.Equal(t, "jane@x.com", updated.Email)
	assert.Equal(t, "Springfield", updated.City)
	assert.Equal(t, "gold", updated.Attributes["tier"])
	assert.Equal(t, "Retail", updated.Industry)

	assert.Contains(t, h.mustRun("delete", created.ID), "Deleted "+created.ID)
	_, errOut, code := h.run("get", created.ID)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.ErrNotFound.Error())
}

func TestCreateFromJSON(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "jane.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"first_name":"Jane","email":"jane@x.com","phone":"555-1111"}`), 0o644))

	v := h.create("--from", path, "--last-name", "Roe")
	assert.Equal(t, "Jane Roe", v.Name)
	assert.Equal(t, "555-1111", v.Phone)
}

func TestCreateValidationFailure(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("create", "--first-name", "Jane")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, "email")
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"get"},
		{"delete", "a", "b"},
		{"create", "--no-such-flag"},
		{"version", "extra"},
	} {
		_, _, code := h.run(args...)
		assert.Equal(t, exitUserError, code, strings.Join(args, " "))
	}
}

func TestConvert(t *testing.T) {
	h := newHarness(t)
	v := h.create("--first-name", "Jane", "--email", "jane@x.com")

	out := h.mustRun("convert", v.ID, "--check")
	assert.Contains(t, out, "warning: No phone number found")

	_, errOut, code := h.run("convert", v.ID)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, errOut, types.StageNeedsConfirmation)
	assert.Contains(t, errOut, "--yes")

	// No bridge is configured, so a confirmed conversion fails to sync.
	_, errOut, code = h.run("convert", v.ID, "--yes")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, errOut, types.StageSyncFailed)

	got := h.mustRun("get", v.ID, "--json")
	assert.Contains(t, got, `"kind": "PROSPECT"`)
}

func TestExportImport(t *testing.T) {
	h := newHarness(t)
	v := h.create("--first-name", "Jane", "--email", "jane@x.com")
	dir := filepath.Join(t.TempDir(), "backup")

	out := h.mustRun("export", dir)
	assert.Contains(t, out, "parties")
	assert.FileExists(t, filepath.Join(dir, "parties.jsonl"))

	h.mustRun("delete", v.ID)
	out = h.mustRun("import", dir, "--json")
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, 1, counts[types.TableParties])
	assert.Equal(t, 1, counts[types.TableChannels])

	h.mustRun("get", v.ID)
}

func TestBridgeConfigWithoutBridge(t *testing.T) {
	_, errOut, code := newHarness(t).run("bridge-config")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, errOut, types.ErrBridgeNotConfigured.Error())
}

func TestBuildPatchPresence(t *testing.T) {
	cmd := newUpdateCmd(&rootFlags{})
	require.NoError(t, cmd.ParseFlags([]string{"--email", "", "--city", "Boston", "--attr", "industry="}))

	p, err := buildPatch(cmd)
	require.NoError(t, err)
	assert.Equal(t, types.Optional{Value: "", Set: true}, p.Email)
	assert.Equal(t, types.Some("Boston"), p.City)
	assert.False(t, p.Phone.Set)
	assert.False(t, p.FirstName.Set)
	assert.Equal(t, map[string]string{"industry": ""}, p.Attributes)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"validation", &types.ValidationError{Issues: []types.Issue{{Field: "email", Reason: "is required"}}}, exitUserError},
		{"not found", fmt.Errorf("fetch: %w", types.ErrNotFound), exitUserError},
		{"usage", fmt.Errorf("%w: bad flag", errUsage), exitUserError},
		{"needs confirmation", &types.ConversionError{Stage: types.StageNeedsConfirmation}, exitUserError},
		{"sync failed", &types.ConversionError{Stage: types.StageSyncFailed, Err: types.ErrBridgeNotConfigured}, exitSysError},
		{"persist", &types.PersistError{Group: types.GroupCore, Op: types.OpInsert, Err: types.ErrStoreDetached}, exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
