package core

import (
	"errors"
	"fmt"
	"math"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/utils"
)

var ErrDutyOutOfRange = errors.New("duty out of range")

// Actuator is the boundary in front of a MotorDriver. Commands outside ±100 % are caller
// bugs: they are logged and dropped, leaving the previous duty in place.
type Actuator struct {
	name     string
	drv      MotorDriver
	log      *utils.Logger
	last     float64
	rejected int
}

func NewActuator(name string, drv MotorDriver, log *utils.Logger) *Actuator {
	return &Actuator{name: name, drv: drv, log: log}
}

func (a *Actuator) Set(duty float64) error {
	if math.IsNaN(duty) || math.Abs(duty) > control.DutyLimit {
		a.rejected++
		a.log.Error("%s motor: rejected duty %v", a.name, duty)
		return fmt.Errorf("%s motor: %w: %v", a.name, ErrDutyOutOfRange, duty)
	}
	a.drv.SetDuty(duty)
	a.last = duty
	return nil
}

// Stop sets zero duty unconditionally.
func (a *Actuator) Stop() {
	a.drv.SetDuty(0)
	a.last = 0
}

func (a *Actuator) Last() float64 { return a.last }

func (a *Actuator) Rejected() int { return a.rejected }
