package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofedurco/EB-gridmaker/internal/config"
	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/testutil"
)

const toyConfigPath = "testdata/toy.yaml"

// toyOptions returns root options that evaluate with the in-process simulator.
func toyOptions(sim *testutil.FakeSimulator) *RootOptions {
	return &RootOptions{
		Simulator: sim,
		RunIDs:    engine.NewFixedGenerator("run-1", "run-2", "run-3"),
	}
}

// runCLI executes args and returns stdout and the exit code.
func runCLI(t *testing.T, opts *RootOptions, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := opts.execute(context.Background(), args, &stdout, &stderr)
	if code != ExitSuccess {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), code
}

// decodeData unmarshals a JSON success response into data.
func decodeData(t *testing.T, out string, data any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

func evaluateToy(t *testing.T, opts *RootOptions, db string, extra ...string) EvaluateResult {
	t.Helper()
	args := append([]string{"--format", "json", "--config", toyConfigPath, "evaluate", "--db", db}, extra...)
	out, code := runCLI(t, opts, args...)
	require.Equal(t, ExitSuccess, code)
	var res EvaluateResult
	decodeData(t, out, &res)
	return res
}

func TestEvaluate_ToyGrid(t *testing.T) {
	sim := &testutil.FakeSimulator{}
	db := filepath.Join(t.TempDir(), "toy.db")

	res := evaluateToy(t, toyOptions(sim), db)
	assert.False(t, res.Interrupted)
	assert.Equal(t, db, res.Database)
	assert.Equal(t, engine.Stats{Invalid: 7, Committed: 5}, res.Stats)
	assert.Equal(t, testutil.ToyValidIDs, sim.Calls())

	again := evaluateToy(t, toyOptions(sim), db)
	assert.Zero(t, again.Stats.Committed, "a finished shard has nothing left to commit")
	assert.Len(t, sim.Calls(), 5)
}

func TestEvaluate_FlagsOverrideConfig(t *testing.T) {
	sim := &testutil.FakeSimulator{}
	db := filepath.Join(t.TempDir(), "detached.db")

	res := evaluateToy(t, toyOptions(sim), db,
		"--morphology", "detached", "--processes", "1", "--chunk-size", "3", "--resume", "marker",
		"--metrics-addr", "127.0.0.1:0")
	assert.Equal(t, engine.Stats{Invalid: 7, Filtered: 1, Committed: 4}, res.Stats)
	assert.Equal(t, testutil.ToyDetachedIDs, sim.Calls())
}

func TestEvaluate_TextOutput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "toy.db")
	out, code := runCLI(t, toyOptions(&testutil.FakeSimulator{}),
		"--config", toyConfigPath, "evaluate", "--db", db)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "committed:    5")
}

func TestEvaluate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, code := runCLI(t, toyOptions(&testutil.FakeSimulator{}),
		"--config", toyConfigPath, "evaluate", "--db", filepath.Join(dir, "a.db"), "--morphology", "contact")
	assert.Equal(t, ExitCommandError, code)

	_, code = runCLI(t, toyOptions(&testutil.FakeSimulator{}),
		"--config", toyConfigPath, "evaluate", "--db", filepath.Join(dir, "b.db"), "--bottom", "0.8", "--top", "0.2")
	assert.Equal(t, ExitCommandError, code)

	fatal := &testutil.FakeSimulator{Errors: map[int64]error{0: errors.New("segmentation fault")}}
	_, code = runCLI(t, toyOptions(fatal),
		"--config", toyConfigPath, "evaluate", "--db", filepath.Join(dir, "c.db"))
	assert.Equal(t, ExitFailure, code)
}

func TestMergeAndStatus(t *testing.T) {
	dir := t.TempDir()
	lower := filepath.Join(dir, "lower.db")
	upper := filepath.Join(dir, "upper.db")
	merged := filepath.Join(dir, "merged.db")

	sim := &testutil.FakeSimulator{}
	a := evaluateToy(t, toyOptions(sim), lower, "--top", "0.5")
	b := evaluateToy(t, toyOptions(sim), upper, "--bottom", "0.5")
	assert.Equal(t, int64(5), a.Stats.Committed+b.Stats.Committed)

	opts := &RootOptions{}
	out, code := runCLI(t, opts, "--format", "json", "merge", "--output", merged, lower, upper)
	require.Equal(t, ExitSuccess, code)
	var mres MergeResult
	decodeData(t, out, &mres)
	assert.Equal(t, merged, mres.Output)
	assert.Equal(t, []string{lower, upper}, mres.Sources)

	out, code = runCLI(t, opts, "--format", "json", "--config", toyConfigPath, "status", "--db", merged)
	require.Equal(t, ExitSuccess, code)
	var st StatusResult
	decodeData(t, out, &st)
	assert.Equal(t, int64(5), st.Parameters)
	assert.Equal(t, int64(5), st.Curves)
	assert.Nil(t, st.LastIndex, "a merged database is not resumable")
	assert.Equal(t, int64(12), st.GridSize)
	assert.True(t, st.MatchesConfig)

	full := filepath.Join(dir, "full.db")
	evaluateToy(t, toyOptions(sim), full)
	out, code = runCLI(t, opts, "--format", "json", "--config", toyConfigPath, "status", "--db", full)
	require.Equal(t, ExitSuccess, code)
	decodeData(t, out, &st)
	require.NotNil(t, st.LastIndex)
	assert.Contains(t, testutil.ToyValidIDs, *st.LastIndex)

	_, code = runCLI(t, opts, "merge", "--output", merged, lower, upper)
	assert.Equal(t, ExitCommandError, code, "existing output")

	_, code = runCLI(t, opts, "merge", "--output", filepath.Join(dir, "twice.db"), full, full)
	assert.Equal(t, ExitStorage, code, "overlapping shards")
}

func TestStatus_MissingDatabase(t *testing.T) {
	_, code := runCLI(t, &RootOptions{}, "--config", toyConfigPath, "status",
		"--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, ExitCommandError, code)
}

func TestDecode(t *testing.T) {
	out, code := runCLI(t, &RootOptions{}, "--config", toyConfigPath, "decode", "0", "11")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t,
		"0: mass_ratio=1 primary_radius=0.1 secondary_radius=0.1 primary_t_eff=5000 secondary_t_eff=5000 inclination_step=0.5\n"+
			"11: mass_ratio=1 primary_radius=0.5 secondary_radius=0.6 primary_t_eff=5000 secondary_t_eff=5000 inclination_step=0.5\n",
		out)

	out, code = runCLI(t, &RootOptions{}, "--format", "json", "--config", toyConfigPath, "decode", "6")
	require.Equal(t, ExitSuccess, code)
	var res DecodeResult
	decodeData(t, out, &res)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, []int{0, 1, 2, 0, 0, 0}, res.Nodes[0].Indices)
	assert.Equal(t, 0.5, res.Nodes[0].Values["secondary_radius"])

	_, code = runCLI(t, &RootOptions{}, "--config", toyConfigPath, "decode", "seven")
	assert.Equal(t, ExitCommandError, code)
	_, code = runCLI(t, &RootOptions{}, "--config", toyConfigPath, "decode", "-1")
	assert.Equal(t, ExitRange, code)
}

func TestCheckIDs(t *testing.T) {
	out, code := runCLI(t, &RootOptions{}, "--format", "json", "--config", toyConfigPath, "check-ids", "--count", "100")
	require.Equal(t, ExitSuccess, code)
	var res CheckIDsResult
	decodeData(t, out, &res)
	assert.Equal(t, CheckIDsResult{Checked: 12, GridSize: 12}, res)

	out, code = runCLI(t, &RootOptions{}, "check-ids", "--count", "5000")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "success: 5000 of 19868750")

	_, code = runCLI(t, &RootOptions{}, "check-ids", "--count", "-1")
	assert.Equal(t, ExitCommandError, code)
}

func TestEstimate_Golden(t *testing.T) {
	out, code := runCLI(t, &RootOptions{}, "estimate")
	require.Equal(t, ExitSuccess, code)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "estimate", []byte(out))
}

func TestEstimate_JSON(t *testing.T) {
	out, code := runCLI(t, &RootOptions{}, "--format", "json", "--config", toyConfigPath, "estimate")
	require.Equal(t, ExitSuccess, code)
	var res EstimateResult
	decodeData(t, out, &res)
	assert.Equal(t, int64(12), res.Nodes)
	assert.Equal(t, 2, res.Passbands)
	assert.Equal(t, 8, res.Points)
	assert.Equal(t, []string{"q[1]", "r1[3]", "r2[4]", "t_eff[1]", "t_eff[1]", "inclination[1]"}, res.Dimensions)
	assert.InDelta(t, 12*2*25*64/(8*1024*1024*1024.0), res.SizeGiB, 1e-15)
}

func TestPushPull(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shard-0.db")
	pulled := filepath.Join(dir, "pulled.db")

	opts := toyOptions(&testutil.FakeSimulator{})
	opts.Blobs = testutil.NewDirBlobs(t.TempDir())
	evaluateToy(t, opts, src)

	out, code := runCLI(t, opts, "--format", "json", "--config", toyConfigPath, "push", "--db", src)
	require.Equal(t, ExitSuccess, code)
	var pushed SyncResult
	decodeData(t, out, &pushed)
	assert.Equal(t, "shards", pushed.Container)
	assert.Equal(t, "shard-0.db", pushed.Blob)
	assert.NotEmpty(t, pushed.URL)

	out, code = runCLI(t, opts, "--format", "json", "--config", toyConfigPath,
		"pull", "--blob", "shard-0.db", "--db", pulled)
	require.Equal(t, ExitSuccess, code)
	var got SyncResult
	decodeData(t, out, &got)
	assert.Positive(t, got.Bytes)

	out, code = runCLI(t, opts, "--format", "json", "--config", toyConfigPath, "status", "--db", pulled)
	require.Equal(t, ExitSuccess, code)
	var st StatusResult
	decodeData(t, out, &st)
	assert.Equal(t, int64(5), st.Parameters)

	_, code = runCLI(t, opts, "--config", toyConfigPath, "pull", "--blob", "shard-0.db", "--db", pulled)
	assert.Equal(t, ExitCommandError, code, "existing destination")
}

func TestPush_NeedsCredentials(t *testing.T) {
	t.Setenv(config.EnvConnectionString, "")
	db := filepath.Join(t.TempDir(), "shard.db")
	evaluateToy(t, toyOptions(&testutil.FakeSimulator{}), db)

	_, code := runCLI(t, &RootOptions{}, "--config", toyConfigPath, "push", "--db", db)
	assert.Equal(t, ExitCommandError, code)

	_, code = runCLI(t, &RootOptions{Blobs: testutil.NewDirBlobs(t.TempDir())}, "push", "--db", db)
	assert.Equal(t, ExitCommandError, code, "no container configured")
}
