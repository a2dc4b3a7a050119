package register

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct{ L, R float64 }

func TestRegister_ZeroBeforeWrite(t *testing.T) {
	r := New[pair]("wheel_cmd")
	assert.Equal(t, pair{}, r.Read())
	assert.Equal(t, "wheel_cmd", r.Name())
}

func TestRegister_LatestValueWins(t *testing.T) {
	r := New[pair]("wheel_cmd")
	w, err := r.Claim()
	require.NoError(t, err)

	w.Write(pair{1, 2})
	w.Write(pair{3, 4})
	assert.Equal(t, pair{3, 4}, r.Read())
	// repeated reads without a write see the same value
	assert.Equal(t, pair{3, 4}, r.Read())
}

func TestRegister_SingleWriter(t *testing.T) {
	r := New[bool]("final_pending")
	_, err := r.Claim()
	require.NoError(t, err)

	_, err = r.Claim()
	assert.ErrorIs(t, err, ErrWriterClaimed)
	assert.Panics(t, func() { r.MustClaim() })
}

func TestRegister_NoTearing(t *testing.T) {
	r := New[pair]("wheel_cmd")
	w := r.MustClaim()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			v := float64(i)
			w.Write(pair{v, -v})
		}
	}()

	for i := 0; i < 10000; i++ {
		p := r.Read()
		require.Equal(t, p.L, -p.R)
	}
	wg.Wait()
}
