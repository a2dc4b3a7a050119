package control

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrive_WheelSpeeds(t *testing.T) {
	d, err := NewDrive(GeometryConfig{WheelRadius: 0.5, TrackWidth: 2})
	require.NoError(t, err)

	// v/r = 2, w/(2r) * yaw = 2 * 1
	cmd := d.WheelSpeeds(1, 1)
	assert.InDelta(t, 0.0, cmd.Left, 1e-12)
	assert.InDelta(t, 4.0, cmd.Right, 1e-12)
}

func TestDrive_Invertible(t *testing.T) {
	d, err := NewDrive(DefaultGeometry())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := rng.NormFloat64() * 2
		yaw := rng.NormFloat64() * 3

		cmd := d.WheelSpeeds(v, yaw)
		v2, yaw2 := d.ChassisRates(cmd.Left, cmd.Right)

		assert.InDelta(t, v, v2, 1e-9)
		assert.InDelta(t, yaw, yaw2, 1e-9)
	}
}

func TestDrive_LinearVelocityMatchesInverse(t *testing.T) {
	d, err := NewDrive(DefaultGeometry())
	require.NoError(t, err)

	w := WheelSpeeds{Left: 3, Right: 5}
	v, _ := d.ChassisRates(w.Left, w.Right)
	assert.InDelta(t, v, d.LinearVelocity(w), 1e-12)
}

func TestNewDrive_RejectsBadGeometry(t *testing.T) {
	_, err := NewDrive(GeometryConfig{WheelRadius: 0, TrackWidth: 1})
	assert.Error(t, err)
	_, err = NewDrive(GeometryConfig{WheelRadius: 1, TrackWidth: -1})
	assert.Error(t, err)
}
