package domain

// DefaultPickOrder is the fixed captain pick sequence for a ten-player
// match with two pre-assigned captains. Alpha picks first, so the
// sequence front-loads beta with a double pick to rebalance:
// alpha 2, beta 2, then single alternating picks. The sequence covers 8
// picks; the 10th player is assigned automatically to the smaller team.
func DefaultPickOrder() []Side {
	return []Side{
		SideAlpha, SideAlpha,
		SideBeta, SideBeta,
		SideAlpha, SideBeta,
		SideAlpha, SideBeta,
	}
}

// DefaultVetoOrder is the strict alternation of map bans starting with
// alpha. An n-map pool needs n-1 bans to leave exactly one map.
func DefaultVetoOrder(mapCount int) []Side {
	if mapCount < 2 {
		return nil
	}
	order := make([]Side, mapCount-1)
	for i := range order {
		if i%2 == 0 {
			order[i] = SideAlpha
		} else {
			order[i] = SideBeta
		}
	}
	return order
}

// TurnAt returns the side whose turn it is at the given index, or nil
// when the index has exhausted the order.
func TurnAt(order []Side, index int) *Side {
	if index < 0 || index >= len(order) {
		return nil
	}
	side := order[index]
	return &side
}

// SmallerTeam returns the side with fewer assigned players, preferring
// alpha on a tie.
func (m *Match) SmallerTeam() Side {
	if len(m.Team(SideBeta)) < len(m.Team(SideAlpha)) {
		return SideBeta
	}
	return SideAlpha
}
