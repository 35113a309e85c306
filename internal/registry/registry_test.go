package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflows/internal/domain"
)

type stubState struct {
	BaseState
	slug string
}

func (s stubState) Name() string { return s.slug }
func (s stubState) Slug() string { return s.slug }

func TestRegister(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("order.receive", stubState{slug: "receive-order"}))

	def, err := reg.Definition("order.receive")
	require.NoError(t, err)
	assert.Equal(t, "receive-order", def.Slug())
}

func TestRegisterDuplicate(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("order.receive", stubState{slug: "receive-order"}))
	assert.Error(t, reg.Register("order.receive", stubState{slug: "receive-order"}))
	assert.Panics(t, func() {
		reg.MustRegister("order.receive", stubState{slug: "receive-order"})
	})
}

func TestDefinitionUnknown(t *testing.T) {
	reg := New()
	_, err := reg.Definition("order.unknown")
	assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
}

func TestBaseStateDefaults(t *testing.T) {
	var s stubState
	assert.Equal(t, DefaultDueTime, s.DueTime())
	assert.Equal(t, DefaultDueTimeWarning, s.DueTimeWarning())
	assert.False(t, s.IsFinal())
	assert.Empty(t, s.Required())
	assert.Nil(t, s.Next(nil, nil))
}
