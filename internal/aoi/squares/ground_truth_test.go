package squares

import (
	"math/rand"
	"testing"

	"github.com/sablecore/aoi-engine/internal/aoi"
)

// TestGroundTruthConsistency runs a sequence of random single-player
// moves against a small population and checks, after every tick, that
// the cumulative enter/leave deltas reported for each sensor track a
// brute-force O(n^2) distance scan over the same positions. This is
// the grid variant's version of the ground-truth consistency
// invariant: a sensor's membership, rebuilt purely from the deltas it
// has ever been told about, must always equal what a direct distance
// check over the current positions would say.
func TestGroundTruthConsistency(t *testing.T) {
	const (
		numPlayers = 8
		radius     = 80.0
		rounds     = 40
	)
	radiusSquare := radius * radius

	rng := rand.New(rand.NewSource(1))
	idx := New(50)

	pos := make(map[aoi.Nuid][2]float64, numPlayers)
	membership := make(map[aoi.Nuid]map[aoi.Nuid]bool, numPlayers)

	for i := 1; i <= numPlayers; i++ {
		nuid := aoi.Nuid(i)
		x := rng.Float64()*400 - 200
		z := rng.Float64()*400 - 200
		pos[nuid] = [2]float64{x, z}
		membership[nuid] = make(map[aoi.Nuid]bool)
		idx.AddPlayer(nuid, x, 0, z)
		idx.AddSensor(nuid, 1, radius)
	}

	checkAgainstBruteForce := func() {
		updates := idx.Tick()
		for nuid, info := range updates {
			set := membership[nuid]
			for _, su := range info.SensorUpdateList {
				for _, other := range su.Enters {
					set[other] = true
				}
				for _, other := range su.Leaves {
					delete(set, other)
				}
			}
		}

		for owner, set := range membership {
			ownerPos := pos[owner]
			want := make(map[aoi.Nuid]bool)
			for other, otherPos := range pos {
				if other == owner {
					continue
				}
				dx := ownerPos[0] - otherPos[0]
				dz := ownerPos[1] - otherPos[1]
				if dx*dx+dz*dz < radiusSquare {
					want[other] = true
				}
			}
			if len(set) != len(want) {
				t.Fatalf("owner %d: membership size mismatch after delta replay, got %v want %v", owner, set, want)
			}
			for other := range want {
				if !set[other] {
					t.Fatalf("owner %d: expected %d in replayed AOI membership, got %v", owner, other, set)
				}
			}
		}
	}

	checkAgainstBruteForce()

	for round := 0; round < rounds; round++ {
		mover := aoi.Nuid(rng.Intn(numPlayers) + 1)
		cur := pos[mover]
		x := cur[0] + rng.Float64()*60 - 30
		z := cur[1] + rng.Float64()*60 - 30
		pos[mover] = [2]float64{x, z}
		idx.UpdatePos(mover, x, 0, z)
		checkAgainstBruteForce()
	}
}
