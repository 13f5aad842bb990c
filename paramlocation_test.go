package fsdp

import (
	"testing"

	"github.com/gomlx/fsdp/types/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readOnlyModule refuses every SetParameter.
type readOnlyModule struct {
	*BasicModule
}

func (m *readOnlyModule) SetParameter(name string, _ Parameter) error {
	return errors.Errorf("module %q is read-only, cannot set %q", m.Name(), name)
}

func TestBasicModule(t *testing.T) {
	m := NewBasicModule("linear")
	weight := tensors.FromFlatDataAndDimensions(iotaF32(6), 3, 2)
	require.NoError(t, m.SetParameter("weight", weight))
	require.NoError(t, m.SetParameter("bias", tensors.FromFlatDataAndDimensions(iotaF32(2), 2)))
	require.Error(t, m.SetParameter("", weight))
	require.Error(t, m.SetParameter("other", nil))

	p, found := m.Parameter("weight")
	require.True(t, found)
	assert.Same(t, weight, p)
	_, found = m.Parameter("missing")
	assert.False(t, found)
	assert.Equal(t, []string{"bias", "weight"}, m.ParameterNames())
	assert.Equal(t, `Module("linear", params=[bias weight])`, m.String())
}

func TestParamLocation(t *testing.T) {
	embed := NewBasicModule("embed")
	head := NewBasicModule("head")
	table := tensors.FromFlatDataAndDimensions(iotaF32(8), 4, 2)
	require.NoError(t, embed.SetParameter("table", table))
	require.NoError(t, head.SetParameter("weight", table))

	t.Run("missing parameter", func(t *testing.T) {
		_, err := NewParamLocation(embed, "weight")
		require.Error(t, err)
		_, err = NewParamLocation(nil, "weight")
		require.Error(t, err)
	})

	t.Run("swap primary and aliases", func(t *testing.T) {
		loc, err := NewParamLocation(embed, "table", ParamAlias{Module: head, ParamName: "weight"})
		require.NoError(t, err)
		assert.Equal(t, "embed.table (shared with head.weight)", loc.String())

		p, err := loc.Get()
		require.NoError(t, err)
		assert.Same(t, table, p)

		replacement := tensors.FromFlatDataAndDimensions(iotaF32(4), 2, 2)
		require.NoError(t, loc.Swap(replacement))
		for _, m := range []*BasicModule{embed, head} {
			for _, name := range m.ParameterNames() {
				p, _ := m.Parameter(name)
				assert.Samef(t, replacement, p, "%s.%s", m.Name(), name)
			}
		}
		require.NoError(t, loc.Validate())
	})

	t.Run("aliases", func(t *testing.T) {
		loc, err := NewParamLocation(embed, "table")
		require.NoError(t, err)
		assert.Equal(t, "embed.table", loc.String())
		require.Error(t, loc.AddAlias(embed, "table"))
		require.Error(t, loc.AddAlias(nil, "table"))
		require.Error(t, loc.AddAlias(head, ""))
		require.NoError(t, loc.AddAlias(head, "weight"))
		assert.Len(t, loc.Shared, 1)

		_, err = NewParamLocation(embed, "table", ParamAlias{Module: embed, ParamName: "table"})
		require.Error(t, err)
	})

	t.Run("swap restores on error", func(t *testing.T) {
		owner := NewBasicModule("owner")
		require.NoError(t, owner.SetParameter("table", table))
		frozen := &readOnlyModule{NewBasicModule("frozen")}
		require.NoError(t, frozen.BasicModule.SetParameter("w", table))
		last := NewBasicModule("last")
		require.NoError(t, last.SetParameter("w", table))
		loc, err := NewParamLocation(owner, "table",
			ParamAlias{Module: frozen, ParamName: "w"}, ParamAlias{Module: last, ParamName: "w"})
		require.NoError(t, err)

		replacement := tensors.FromFlatDataAndDimensions(iotaF32(2), 2)
		err = loc.Swap(replacement)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read-only")
		for _, m := range []Module{owner, frozen, last} {
			for _, name := range []string{"table", "w"} {
				if p, found := m.Parameter(name); found {
					assert.Samef(t, table, p, "%s.%s must hold the original parameter", m.Name(), name)
				}
			}
		}
	})

	t.Run("swap needs every alias", func(t *testing.T) {
		owner := NewBasicModule("owner")
		require.NoError(t, owner.SetParameter("table", table))
		loc, err := NewParamLocation(owner, "table", ParamAlias{Module: NewBasicModule("empty"), ParamName: "w"})
		require.NoError(t, err)
		err = loc.Swap(tensors.FromFlatDataAndDimensions(iotaF32(2), 2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty.w holds no parameter")
		p, _ := owner.Parameter("table")
		assert.Same(t, table, p)
	})

	t.Run("get after removal", func(t *testing.T) {
		loc := &ParamLocation{Module: NewBasicModule("empty"), ParamName: "w"}
		_, err := loc.Get()
		require.Error(t, err)
		require.Error(t, loc.Validate())
	})
}
