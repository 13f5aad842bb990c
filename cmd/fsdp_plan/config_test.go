package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/fsdp"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hybridConfig = `
mesh:
  name: my-pod
  axes:
    - {name: shard, size: 2}
    - {name: replicate, size: 3}
shard_axis: shard
replicate_axis: replicate
params:
  - {name: embed.table, dtype: f32, dims: [5, 2], shared_with: [head.weight]}
  - {name: norm, dtype: f32, dims: [4]}
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(hybridConfig))
	require.NoError(t, err)
	assert.Equal(t, "my_pod", cfg.Mesh.Name)
	assert.Equal(t, []AxisConfig{{"shard", 2}, {"replicate", 3}}, cfg.Mesh.Axes)
	assert.Equal(t, []string{"head.weight"}, cfg.Params[0].SharedWith)

	params, err := cfg.ParamShapes()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.NoError(t, params[0].Check(dtypes.Float32, 5, 2))

	dm, err := cfg.BuildMesh()
	require.NoError(t, err)
	assert.Equal(t, 6, dm.NumDevices())
	info, err := cfg.MeshInfoForRank(dm, 4)
	require.NoError(t, err)
	assert.Equal(t, fsdp.HybridShard, info.Strategy())

	t.Run("defaults", func(t *testing.T) {
		cfg := must.M1(ParseConfig([]byte("mesh: {axes: [{name: dp, size: 4}]}\nshard_axis: dp\n")))
		assert.Equal(t, "mesh", cfg.Mesh.Name)
		dm := must.M1(cfg.BuildMesh())
		info := must.M1(cfg.MeshInfoForRank(dm, 1))
		assert.Equal(t, fsdp.FullyShard, info.Strategy())
	})

	t.Run("device assignment", func(t *testing.T) {
		cfg := must.M1(ParseConfig([]byte(
			"mesh: {axes: [{name: dp, size: 4}], devices: [3, 2, 1, 0]}\nshard_axis: dp\n")))
		dm := must.M1(cfg.BuildMesh())
		info := must.M1(cfg.MeshInfoForRank(dm, 3))
		assert.Equal(t, 0, info.ShardGroupRank())
	})
}

func TestConfigErrors(t *testing.T) {
	_, err := ParseConfig(nil)
	require.Error(t, err)
	_, err = ParseConfig([]byte("mesh: {axes: [{name: dp, size: 4}]}\nunknown_field: 1\n"))
	require.Error(t, err)

	cfg := must.M1(ParseConfig([]byte("mesh: {axes: [{name: dp, size: 4}]}\n")))
	dm := must.M1(cfg.BuildMesh())
	_, err = cfg.MeshInfoForRank(dm, 0)
	require.ErrorIs(t, err, fsdp.ErrInvalidConfiguration)
	_, err = cfg.MeshInfoForRank(dm, 4)
	require.Error(t, err)

	cfg.ShardAxis = "model"
	_, err = cfg.MeshInfoForRank(dm, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard_axis")

	cfg = must.M1(ParseConfig([]byte("mesh: {axes: [{name: dp, size: 0}]}\n")))
	_, err = cfg.BuildMesh()
	require.Error(t, err)

	cfg = must.M1(ParseConfig([]byte("mesh: {axes: [{name: dp, size: 2}], devices: [0, 0]}\n")))
	_, err = cfg.BuildMesh()
	require.Error(t, err)

	for _, params := range []string{
		"[{name: w, dtype: f99, dims: [2]}]",
		"[{name: w, dtype: f32, dims: [-2]}]",
		"[{dtype: f32, dims: [2]}]",
		"[{name: w, dtype: f32, dims: [2]}, {name: w, dtype: f32, dims: [3]}]",
	} {
		cfg := must.M1(ParseConfig([]byte("params: " + params + "\n")))
		_, err = cfg.ParamShapes()
		require.Errorf(t, err, "params: %s", params)
	}
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hybridConfig), 0o644))

	var buf bytes.Buffer
	require.NoError(t, run(&buf, path, 4, false))
	want := strings.Join([]string{
		"Rank 4 [1 1]: MeshInfo(HybridShard, shard=axis 0 [rank 1 of 2], replicate=axis 1 [rank 1 of 3])",
		"  embed.table (shared with head.weight): HybridShard: (Float32)[5 2] padded to (Float32)[6 2], " +
			"shard 1/2 (Float32)[3 2] rows [3, 6) (2 valid), 24 B per shard (8 B padding)",
		"  norm: HybridShard: (Float32)[4] padded to (Float32)[4], " +
			"shard 1/2 (Float32)[2] rows [2, 4) (2 valid), 8 B per shard (0 B padding)",
		"  Total: 32 B per rank (8 B padding)",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, run(&buf, path, 0, true))
	assert.Equal(t, 6, strings.Count(buf.String(), "Rank "))

	require.Error(t, run(&buf, filepath.Join(t.TempDir(), "missing.yaml"), 0, false))
	require.Error(t, run(&buf, path, 6, false))
}
