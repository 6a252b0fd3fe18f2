package component

import (
	"testing"

	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func averageComponent(t *testing.T) *Component {
	t.Helper()
	recv := &Callback{
		Name:            "receive",
		ReadFields:      map[string]bool{"total": true, "count": true},
		WriteFields:     map[string]bool{"total": true, "count": true},
		StateCapability: true,
		Fn: func(env *Env) (CallbackResult, error) {
			total := env.State.(map[string]any)["total"].(float64)
			count := env.State.(map[string]any)["count"].(int)
			v := env.Args[0].(float64)
			return CallbackResult{State: map[string]any{"total": total + v, "count": count + 1}}, nil
		},
	}
	c, err := NewComponent("average", []string{"total", "count"}, nil, nil, []*Callback{recv})
	require.NoError(t, err)
	return c
}

func TestInvokeRespectsCapabilities(t *testing.T) {
	c := averageComponent(t)
	res, err := Invoke(c, "receive", &Env{
		Args:  []any{4.0},
		State: map[string]any{"total": 0.0, "count": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.State.(map[string]any)["total"])
	assert.Nil(t, res.Published, "receive declared no publish capability")
}

func TestNewComponentRejectsUndeclaredFieldRead(t *testing.T) {
	cb := &Callback{
		Name:       "bad",
		ReadFields: map[string]bool{"nope": true},
		Fn:         func(env *Env) (CallbackResult, error) { return CallbackResult{}, nil },
	}
	_, err := NewComponent("c", []string{"total"}, nil, nil, []*Callback{cb})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrDefinition)
}

func TestNewComponentRejectsWriteWithoutStateCapability(t *testing.T) {
	cb := &Callback{
		Name:        "bad",
		WriteFields: map[string]bool{"total": true},
	}
	_, err := NewComponent("c", []string{"total"}, nil, nil, []*Callback{cb})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrDefinition)
}

func TestNewComponentRejectsPublishOnUndeclaredPort(t *testing.T) {
	cb := &Callback{
		Name:              "bad",
		PublishPorts:      map[string]bool{"out": true},
		PublishCapability: true,
	}
	_, err := NewComponent("c", nil, nil, nil, []*Callback{cb})
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrDefinition)
}

func TestCallbackUnknownName(t *testing.T) {
	c := averageComponent(t)
	_, err := c.Callback("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrNoSuchCallback)
}
