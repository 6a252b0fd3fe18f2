package registry

import (
	"sync"
	"testing"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/skitter-project/skitter/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustComponent(t *testing.T, name string) *component.Component {
	t.Helper()
	c, err := component.NewComponent(name, nil, nil, nil, nil)
	require.NoError(t, err)
	return c
}

func TestRegisterAndLookupComponent(t *testing.T) {
	r := New()
	r.Register(mustComponent(t, "average"))
	c, err := r.LookupComponent("average")
	require.NoError(t, err)
	assert.Equal(t, "average", c.Name)
}

func TestRegisterAndLookupStrategy(t *testing.T) {
	r := New()
	strat := strategy.New("immutable", nil)
	r.Register(strat)
	s, err := r.LookupStrategy("immutable")
	require.NoError(t, err)
	assert.Equal(t, "immutable", s.Name)
}

func TestLookupComponentWrongKind(t *testing.T) {
	r := New()
	r.Register(strategy.New("immutable", nil))
	_, err := r.LookupComponent("immutable")
	assert.ErrorIs(t, err, skerr.ErrDefinition)
}

func TestRegisterNoopsOnEmptyName(t *testing.T) {
	r := New()
	r.Register(mustComponent(t, ""))
	assert.Empty(t, r.Names())
}

func TestLookupUnknownName(t *testing.T) {
	r := New()
	_, err := r.Lookup("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrUnknownName)
}

func TestUnregister(t *testing.T) {
	r := New()
	r.Register(mustComponent(t, "average"))
	r.Unregister("average")
	_, err := r.Lookup("average")
	assert.ErrorIs(t, err, skerr.ErrUnknownName)
}

func TestConcurrentReadsDuringWrite(t *testing.T) {
	r := New()
	r.Register(mustComponent(t, "stable"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Lookup("stable")
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register(mustComponent(t, "dynamic"))
		}(i)
	}
	wg.Wait()

	_, err := r.Lookup("stable")
	assert.NoError(t, err)
}
