package phi

// Field is anything with opposing accumulation and expenditure pressures:
// supply against demand in a market.
type Field interface {
	// Charging returns the accumulating pressure (units offered).
	Charging() float64
	// Discharging returns the draining pressure (units wanted).
	Discharging() float64
}

// Imbalance returns the signed pressure difference, positive when the
// discharging side dominates.
func Imbalance(f Field) float64 {
	return f.Discharging() - f.Charging()
}

// Health returns 0.0–1.0 for how balanced the field is. Any ratio within
// [Matter, Being] counts as fully healthy; health falls off linearly with the
// distance from 1.0 and reaches zero at Totality.
func Health(f Field) float64 {
	dp := f.Discharging()
	if dp < Agnosis {
		dp = Agnosis
	}
	ratio := f.Charging() / dp
	if ratio >= Matter && ratio <= Being {
		return 1.0
	}
	deviation := ratio - 1.0
	if deviation < 0 {
		deviation = -deviation
	}
	health := 1.0 - deviation/Totality
	if health < 0 {
		return 0
	}
	return health
}
