package scale

const (
	// ThresholdVHF is the listening frequency at and above which the VHF
	// S-unit table applies. Below it the HF table is used.
	ThresholdVHF = 30e6

	// Unknown is the label reported when a level falls outside every
	// interval of the scale.
	Unknown = "unknown"
)

// sUnits returns the extended S-unit table. Above S9 each step is
// defined as the previous one plus 6 dB, so announcements stay short
// ("S11" instead of "S9 plus 12"). Sentinel extremes at both ends
// absorb out-of-table levels.
//
// HF and VHF tables currently carry identical bins but are constructed
// independently so either can be retuned without touching the other.
func sUnits() []Interval {
	return []Interval{
		{Label: "S0", Start: -999, End: -48},
		{Label: "S1", Start: -48, End: -42},
		{Label: "S2", Start: -42, End: -36},
		{Label: "S3", Start: -36, End: -30},
		{Label: "S4", Start: -30, End: -24},
		{Label: "S5", Start: -24, End: -18},
		{Label: "S6", Start: -18, End: -12},
		{Label: "S7", Start: -12, End: -6},
		{Label: "S8", Start: -6, End: 0},
		{Label: "S9", Start: 0, End: 6},
		{Label: "S10", Start: 6, End: 12},
		{Label: "S11", Start: 12, End: 18},
		{Label: "S12", Start: 18, End: 24},
		{Label: "S too much", Start: 24, End: 999},
	}
}

// HF returns the S-unit scale for listening frequencies below 30 MHz.
func HF() *Scale {
	s, err := New(sUnits())
	if err != nil {
		panic(err) // static table, must be valid
	}
	return s
}

// VHF returns the S-unit scale for listening frequencies at or above 30 MHz.
func VHF() *Scale {
	s, err := New(sUnits())
	if err != nil {
		panic(err) // static table, must be valid
	}
	return s
}

// ForFrequency selects the scale matching the given listening frequency in Hz.
func ForFrequency(hz float64) *Scale {
	if hz >= ThresholdVHF {
		return VHF()
	}
	return HF()
}
