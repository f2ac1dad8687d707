package nodeid

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saltA = bytes.Repeat([]byte{0xa1}, types.SaltLength)
	saltB = bytes.Repeat([]byte{0xb2}, types.SaltLength)
)

func TestDeriveDeterministic(t *testing.T) {
	d := New()

	id1, err := d.Derive("https://example.com", "https://example.org", types.ModePersistent, saltA)
	require.NoError(t, err)
	id2, err := d.Derive("https://example.com", "https://example.org", types.ModePersistent, saltA)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NoError(t, id1.Validate())
	assert.Len(t, id1.String(), types.NodeIDLength)
}

func TestDeriveDistinguishes(t *testing.T) {
	d := New()
	base, err := d.Derive("https://example1.com", "https://example2.com", types.ModePersistent, saltA)
	require.NoError(t, err)

	tests := []struct {
		name   string
		origin string
		top    string
		mode   types.Mode
		secret []byte
	}{
		{"swapped origins", "https://example2.com", "https://example1.com", types.ModePersistent, saltA},
		{"different top level", "https://example1.com", "https://example3.com", types.ModePersistent, saltA},
		{"private mode", "https://example1.com", "https://example2.com", types.ModePrivate, saltA},
		{"different secret", "https://example1.com", "https://example2.com", types.ModePersistent, saltB},
		{"boundary shift", "https://example1.comh", "ttps://example2.com", types.ModePersistent, saltA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := d.Derive(tt.origin, tt.top, tt.mode, tt.secret)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}
}

func TestDeriveRejectsInvalidInput(t *testing.T) {
	d := New()

	_, err := d.Derive("", "https://example.org", types.ModePersistent, saltA)
	assert.ErrorIs(t, err, types.ErrInvalidOrigin)

	_, err = d.Derive("https://example.com", strings.Repeat("a", types.MaxOriginLength+1), types.ModePersistent, saltA)
	assert.ErrorIs(t, err, types.ErrInvalidOrigin)

	_, err = d.Derive("https://exa mple.com", "https://example.org", types.ModePersistent, saltA)
	assert.ErrorIs(t, err, types.ErrInvalidOrigin)

	_, err = d.Derive("https://example.com", "https://example.org", types.ModePersistent, nil)
	assert.Error(t, err)
}

func TestDeriveSameOriginBothSides(t *testing.T) {
	d := New()
	id, err := d.Derive("https://example.com", "https://example.com", types.ModePrivate, saltA)
	require.NoError(t, err)
	assert.NoError(t, id.Validate())
}
