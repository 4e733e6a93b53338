package gateway

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimaryStateUpdateBumpsEpochOnChange(t *testing.T) {
	s := NewPrimaryState()
	require.EqualValues(t, 0, s.Epoch())

	target := TargetAddress{IP: net.ParseIP("10.0.0.1"), Port: "5432"}
	changed, epoch := s.Update(target, 0)
	require.True(t, changed)
	require.EqualValues(t, 1, epoch)

	got, idx := s.Current()
	require.True(t, got.Equal(target))
	require.Equal(t, 0, idx)

	// No-op update: same target and index must not bump the epoch.
	changed, epoch = s.Update(target, 0)
	require.False(t, changed)
	require.EqualValues(t, 1, epoch)
}

func TestPrimaryStateUpdateToNoPrimary(t *testing.T) {
	s := NewPrimaryState()
	target := TargetAddress{IP: net.ParseIP("10.0.0.1"), Port: "5432"}
	s.Update(target, 0)

	changed, epoch := s.Update(TargetAddress{}, -1)
	require.True(t, changed)
	require.EqualValues(t, 2, epoch)

	got, idx := s.Current()
	require.False(t, got.Valid())
	require.Equal(t, -1, idx)
}
