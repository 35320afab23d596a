package store

// rowOverhead approximates the per-curve cost of the parameters row and
// SQLite record headers, in float-sized units.
const rowOverhead = 17

// EstimateSize returns the expected size in GiB of a database holding nodes
// committed nodes with the given number of passbands and points per curve.
func EstimateSize(nodes int64, passbands, points int) float64 {
	return float64(nodes) * float64(passbands) * float64(points+rowOverhead) * 64 / (8 * 1024 * 1024 * 1024)
}
