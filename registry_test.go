package fsdp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckComposable(t *testing.T) {
	m := NewBasicModule("block")

	t.Run("empty or nil registry", func(t *testing.T) {
		require.NoError(t, CheckComposable(nil, m))
		require.NoError(t, CheckComposable(NewRegistry(), m))
		var zero Registry
		assert.True(t, IsComposable(&zero, m))
	})

	t.Run("compatible wrappers", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register(m, "fully_shard", "checkpoint")
		require.NoError(t, CheckComposable(reg, m))
		assert.Equal(t, []string{"checkpoint", "fully_shard"}, reg.Applied(m))
	})

	t.Run("replicate already applied", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register(m, "checkpoint")
		reg.Register(m, Replicate.RegistryName())
		err := CheckComposable(reg, m)
		require.ErrorIs(t, err, ErrNotComposable)
		assert.Contains(t, err.Error(), `"block"`)
		assert.False(t, IsComposable(reg, m))

		// Only the module it was applied to is affected.
		assert.True(t, IsComposable(reg, NewBasicModule("block")))

		reg.Unregister(m)
		assert.True(t, IsComposable(reg, m))
		assert.Nil(t, reg.Applied(m))
	})
}

func TestRegistryConcurrency(t *testing.T) {
	reg := NewRegistry()
	modules := make([]*BasicModule, 8)
	for i := range modules {
		modules[i] = NewBasicModule(fmt.Sprintf("m%d", i))
	}
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := modules[i%len(modules)]
			reg.Register(m, fmt.Sprintf("w%d", i/len(modules)))
			_ = IsComposable(reg, m)
		}()
	}
	wg.Wait()
	for _, m := range modules {
		assert.Equal(t, []string{"w0", "w1", "w2", "w3"}, reg.Applied(m))
	}
}
