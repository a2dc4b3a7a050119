package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Drive is the decoupling matrix of a differential-drive chassis:
//
//	[ωl]   [1/r  -w/(2r)] [v  ]
//	[ωr] = [1/r   w/(2r)] [yaw]
//
// and its inverse, used to recover chassis rates from wheel speeds.
type Drive struct {
	radius  float64
	forward *mat.Dense
	inverse *mat.Dense

	in, out *mat.VecDense
}

// NewDrive builds the decoupling matrix for wheel radius r and track width w.
func NewDrive(g GeometryConfig) (*Drive, error) {
	r, w := g.WheelRadius, g.TrackWidth
	if r <= 0 || w <= 0 {
		return nil, fmt.Errorf("drive geometry must be positive: wheel_radius=%v track_width=%v", r, w)
	}

	forward := mat.NewDense(2, 2, []float64{
		1 / r, -w / (2 * r),
		1 / r, w / (2 * r),
	})
	var inverse mat.Dense
	if err := inverse.Inverse(forward); err != nil {
		return nil, fmt.Errorf("decoupling matrix: %w", err)
	}

	return &Drive{
		radius:  r,
		forward: forward,
		inverse: &inverse,
		in:      mat.NewVecDense(2, nil),
		out:     mat.NewVecDense(2, nil),
	}, nil
}

// WheelSpeeds maps a chassis command (linear velocity, yaw rate) to wheel angular speeds.
func (d *Drive) WheelSpeeds(v, yawRate float64) RobotCommand {
	d.in.SetVec(0, v)
	d.in.SetVec(1, yawRate)
	d.out.MulVec(d.forward, d.in)
	return RobotCommand{Left: d.out.AtVec(0), Right: d.out.AtVec(1)}
}

// ChassisRates is the inverse of WheelSpeeds.
func (d *Drive) ChassisRates(left, right float64) (v, yawRate float64) {
	d.in.SetVec(0, left)
	d.in.SetVec(1, right)
	d.out.MulVec(d.inverse, d.in)
	return d.out.AtVec(0), d.out.AtVec(1)
}

// LinearVelocity is the forward speed of the chassis centre: (ωl·r + ωr·r) / 2.
func (d *Drive) LinearVelocity(w WheelSpeeds) float64 {
	return (w.Left*d.radius + w.Right*d.radius) / 2
}
