package squares

import (
	"testing"

	"github.com/sablecore/aoi-engine/internal/aoi"
)

func TestPosToCellID(t *testing.T) {
	const inverseCellSize = 1.0 / 200.0

	tests := []struct {
		name    string
		x, z    float64
		wantHex uint64
	}{
		{"origin", 0, 0, 0x0000000000000000},
		{"negative x", -1, 0, 0xFFFFFFFF00000000},
		{"negative z", 0, -1, 0x00000000FFFFFFFF},
		{"negative both", -1, -1, 0xFFFFFFFFFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := posToCellID(tt.x, tt.z, inverseCellSize)
			if uint64(got) != tt.wantHex {
				t.Fatalf("posToCellID(%v, %v) = %#x, want %#x", tt.x, tt.z, uint64(got), tt.wantHex)
			}
		})
	}
}

func newIndexWithPlayers(t *testing.T, players map[aoi.Nuid][3]float64, radius float64) *Index {
	t.Helper()
	idx := New(200)
	for nuid, pos := range players {
		idx.AddPlayer(nuid, pos[0], pos[1], pos[2])
		idx.AddSensor(nuid, 1, radius)
	}
	return idx
}

func enterSet(info aoi.AoiUpdateInfo) map[aoi.Nuid]bool {
	set := make(map[aoi.Nuid]bool)
	for _, su := range info.SensorUpdateList {
		for _, n := range su.Enters {
			set[n] = true
		}
	}
	return set
}

func leaveSet(info aoi.AoiUpdateInfo) map[aoi.Nuid]bool {
	set := make(map[aoi.Nuid]bool)
	for _, su := range info.SensorUpdateList {
		for _, n := range su.Leaves {
			set[n] = true
		}
	}
	return set
}

func TestTick_SeparationAndProximity(t *testing.T) {
	tests := []struct {
		name      string
		posA      [3]float64
		posB      [3]float64
		radius    float64
		wantEnter bool
	}{
		{"far apart stay separate", [3]float64{0, 0, 0}, [3]float64{1000, 0, 1000}, 50, false},
		{"within radius enter each other", [3]float64{0, 0, 0}, [3]float64{10, 0, 10}, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newIndexWithPlayers(t, map[aoi.Nuid][3]float64{
				1: tt.posA,
				2: tt.posB,
			}, tt.radius)

			updates := idx.Tick()

			if tt.wantEnter {
				infoA, ok := updates[1]
				if !ok {
					t.Fatalf("expected player 1 to have an update, got none")
				}
				if !enterSet(infoA)[2] {
					t.Fatalf("expected player 1 to see player 2 enter, got %v", infoA)
				}
				infoB, ok := updates[2]
				if !ok {
					t.Fatalf("expected player 2 to have an update, got none")
				}
				if !enterSet(infoB)[1] {
					t.Fatalf("expected player 2 to see player 1 enter, got %v", infoB)
				}
			} else {
				if len(updates) != 0 {
					t.Fatalf("expected no updates for distant players, got %v", updates)
				}
			}
		})
	}
}

// Moving a player so its grid cell changes must not break detection:
// once rebucketed, a neighbour in its new cell and within the
// sensor's radius must be found.
func TestCellBoundaryCrossingStillDetected(t *testing.T) {
	idx := New(200) // cells: [0,200), [200,400), ...
	idx.AddPlayer(1, 50, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.AddPlayer(2, 390, 0, 0)
	if updates := idx.Tick(); len(updates) != 0 {
		t.Fatalf("expected no updates while players are far apart, got %v", updates)
	}

	// Moves player 1 from cell 0 into cell 1, landing within radius of
	// player 2. The rebucket must not break detection.
	idx.UpdatePos(1, 370, 0, 0)
	updates := idx.Tick()

	info, ok := updates[1]
	if !ok {
		t.Fatalf("expected player 1 to have an update after crossing a cell boundary")
	}
	if !enterSet(info)[2] {
		t.Fatalf("expected player 1 to detect player 2 across the cell boundary, got %v", info)
	}
}

func TestRemovalWhileInsideEmitsLeave(t *testing.T) {
	idx := newIndexWithPlayers(t, map[aoi.Nuid][3]float64{
		1: {0, 0, 0},
		2: {10, 0, 10},
	}, 50)
	idx.Tick() // establish mutual AOI membership

	idx.RemovePlayer(2)
	updates := idx.Tick()

	info, ok := updates[1]
	if !ok {
		t.Fatalf("expected player 1 to have an update after player 2 was removed")
	}
	if !leaveSet(info)[2] {
		t.Fatalf("expected player 1 to see player 2 leave, got %v", info)
	}
	if idx.PlayerCount() != 1 {
		t.Fatalf("expected removed player to be evicted after tick, got PlayerCount()=%d", idx.PlayerCount())
	}
}

func TestNewPlayerReportsFullAoiOnFirstTick(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.Tick()

	idx.AddPlayer(2, 5, 0, 5)
	idx.AddSensor(2, 1, 50)
	updates := idx.Tick()

	info, ok := updates[2]
	if !ok {
		t.Fatalf("expected the new player to get an update on its first tick")
	}
	if !enterSet(info)[1] {
		t.Fatalf("expected the new player's first tick to report every current AOI member as entering, got %v", info)
	}
}

func TestBoundaryDistanceExactlyRadiusIsOutside(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 10)
	idx.AddPlayer(2, 10, 0, 0) // dist == radius exactly

	updates := idx.Tick()
	if info, ok := updates[1]; ok && enterSet(info)[2] {
		t.Fatalf("expected a player exactly at radius distance to be outside (strict less-than), got enter")
	}
}

func TestRemoveSensorIsNoOpWhenUnknown(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 0, 0, 0)
	idx.RemoveSensor(1, 999) // no sensors at all yet
	idx.RemoveSensor(999, 1) // unknown player
}

func TestAddSensorRejectsDuplicateID(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 7, 50)
	idx.AddSensor(1, 7, 999) // duplicate sensor_id, radius must not change

	p := idx.players[1]
	if len(p.sensors) != 1 {
		t.Fatalf("expected duplicate AddSensor to be a no-op, got %d sensors", len(p.sensors))
	}
	if p.sensors[0].radius != 50 {
		t.Fatalf("expected original radius to survive a duplicate AddSensor, got %v", p.sensors[0].radius)
	}
}

// Approach, mutual separation, and removal, against both players'
// sensors over a run of moves.
func TestScenario_ApproachAndSeparation(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 2, 10)
	idx.AddPlayer(3, 0, 0, 0)
	idx.AddSensor(3, 4, 5)

	updates := idx.Tick()
	if !enterSet(updates[1])[3] {
		t.Fatalf("expected A's sensor to enter {3} on the first tick, got %v", updates[1])
	}
	if !enterSet(updates[3])[1] {
		t.Fatalf("expected B's sensor to enter {1} on the first tick, got %v", updates[3])
	}

	// B moves to (6,0,0): still within A's radius 10, but outside B's
	// own radius 5 looking back at A (dist 6 > 5).
	idx.UpdatePos(3, 6, 0, 0)
	updates = idx.Tick()
	if _, ok := updates[1]; ok {
		t.Fatalf("expected A's sensor to see no change (dist 6 <= 10), got %v", updates[1])
	}
	if !leaveSet(updates[3])[1] {
		t.Fatalf("expected B's sensor to leave {1} (dist 6 > 5), got %v", updates[3])
	}

	// B moves far away: now A's sensor loses B too.
	idx.UpdatePos(3, 600, 0, 100)
	updates = idx.Tick()
	if !leaveSet(updates[1])[3] {
		t.Fatalf("expected A's sensor to leave {3} once B is far away, got %v", updates[1])
	}

	// A moves to sit right next to B again: both re-enter.
	idx.UpdatePos(1, 601, 100, 101)
	updates = idx.Tick()
	if !enterSet(updates[1])[3] {
		t.Fatalf("expected A's sensor to re-enter {3}, got %v", updates[1])
	}
	if !enterSet(updates[3])[1] {
		t.Fatalf("expected B's sensor to re-enter {1}, got %v", updates[3])
	}

	// Removing B drops it from A's sensor.
	idx.RemovePlayer(3)
	updates = idx.Tick()
	if !leaveSet(updates[1])[3] {
		t.Fatalf("expected A's sensor to leave {3} after B was removed, got %v", updates[1])
	}
}

// Cell boundary crossing with cell_size 200: moving within radius of a
// neighbour that sits just across a cell edge produces no spurious
// enter/leave churn once membership is already established.
func TestScenario_CellBoundaryCrossingNoChurn(t *testing.T) {
	idx := New(200)
	idx.AddPlayer(1, 199, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.AddPlayer(2, 201, 0, 0) // player 2 carries no sensor of its own

	updates := idx.Tick()
	if !enterSet(updates[1])[2] {
		t.Fatalf("expected A to enter {B} on the first tick, got %v", updates[1])
	}

	// A moves from cell (0,0) into cell (1,0); B is already in (1,0).
	// Still within radius 50, so no further update is expected.
	idx.UpdatePos(1, 249, 0, 0)
	updates = idx.Tick()
	if _, ok := updates[1]; ok {
		t.Fatalf("expected no further change once A crosses into B's cell while still in range, got %v", updates[1])
	}
}
