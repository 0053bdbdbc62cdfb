package master

// startingPositions returns the deterministic starting (x,y) for each
// player index, truncated to playerCount, per spec.md §4.3. Entries are
// applied in order, so on a board small enough for two slots to coincide,
// the later entry's ownership marker wins (spec.md §8 boundary behavior).
func startingPositions(width, height, playerCount int) [][2]int {
	all := [][2]int{
		{0, 0},
		{width - 1, 0},
		{0, height - 1},
		{width - 1, height - 1},
		{width / 2, height / 2},
		{width / 2, 0},
		{width / 2, height - 1},
		{0, height / 2},
		{width - 1, height / 2},
	}
	if playerCount > len(all) {
		playerCount = len(all)
	}
	return all[:playerCount]
}
