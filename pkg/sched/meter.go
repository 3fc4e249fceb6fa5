package sched

// EnergyMeter derives instantaneous power from the engine's cumulative
// energy reports. The first report only sets the baseline; non-positive
// time deltas leave the power reading unchanged.
type EnergyMeter struct {
	lastEnergy float64
	lastTime   float64
	power      float64
	seen       bool
}

// Observe ingests one cumulative-energy report at simulation time t
func (m *EnergyMeter) Observe(t, energy float64) {
	if m.seen && t > m.lastTime {
		m.power = (energy - m.lastEnergy) / (t - m.lastTime)
	}
	m.lastEnergy = energy
	m.lastTime = t
	m.seen = true
}

// CurrentPower returns the last derived power in watts
func (m *EnergyMeter) CurrentPower() float64 {
	return m.power
}
