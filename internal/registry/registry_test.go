package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item string

func (i item) Name() string { return string(i) }

func TestRegistry_Register(t *testing.T) {
	r := New[item]("plugin")

	require.NoError(t, r.Register("model"))
	assert.Equal(t, 1, r.Count(), "expected count 1")

	got, ok := r.Get("model")
	assert.True(t, ok, "expected to find item by name")
	assert.Equal(t, item("model"), got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := New[item]("transform")
	require.NoError(t, r.Register("excludeTraits"))

	err := r.Register("excludeTraits")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, `transform "excludeTraits" is already registered`, dup.Error())

	assert.Error(t, r.Register(""))
	assert.Panics(t, func() { r.MustRegister("excludeTraits") })
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := New[item]("plugin")
	r.MustRegister("sources", "build-info", "model")

	assert.Equal(t, []string{"build-info", "model", "sources"}, r.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New[item]("plugin")
	r.MustRegister("model")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Get("model")
			_ = r.Names()
		}()
	}
	wg.Wait()
}
