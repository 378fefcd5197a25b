package cross

import (
	"testing"

	"github.com/sablecore/aoi-engine/internal/aoi"
)

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

func TestSortAndSweep_NoBeacon_SeparationAndCrossing(t *testing.T) {
	idx := New(Config{}) // BeaconX/Z both zero: no beacon scaffolding

	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.AddPlayer(2, 1000, 0, 1000)
	idx.AddSensor(2, 1, 50)

	if updates := idx.Tick(); len(updates) != 0 {
		t.Fatalf("expected no updates while players are far apart, got %v", updates)
	}

	// Sweep player 2 into player 1's sensor.
	idx.UpdatePos(2, 10, 0, 10)
	updates := idx.Tick()

	info1, ok := updates[1]
	if !ok || !enterSet(info1)[2] {
		t.Fatalf("expected player 1 to detect player 2 entering, got %v (ok=%v)", info1, ok)
	}
	info2, ok := updates[2]
	if !ok || !enterSet(info2)[1] {
		t.Fatalf("expected player 2 to detect player 1 entering, got %v (ok=%v)", info2, ok)
	}

	// Sweep player 2 back out.
	idx.UpdatePos(2, 1000, 0, 1000)
	updates = idx.Tick()

	info1, ok = updates[1]
	if !ok || !leaveSet(info1)[2] {
		t.Fatalf("expected player 1 to detect player 2 leaving, got %v (ok=%v)", info1, ok)
	}
}

func TestRemovalWhileInsideEmitsLeave(t *testing.T) {
	idx := New(Config{})
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.AddPlayer(2, 10, 0, 10)
	idx.AddSensor(2, 1, 50)
	idx.Tick() // establish mutual membership

	idx.RemovePlayer(2)
	updates := idx.Tick()

	info, ok := updates[1]
	if !ok || !leaveSet(info)[2] {
		t.Fatalf("expected player 1 to see player 2 leave after removal, got %v (ok=%v)", info, ok)
	}
	if idx.PlayerCount() != 1 {
		t.Fatalf("expected the removed player to be evicted after tick, got PlayerCount()=%d", idx.PlayerCount())
	}
}

func TestRemoveSensorSwapPop(t *testing.T) {
	idx := New(Config{})
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 50)
	idx.AddSensor(1, 2, 80)

	idx.RemoveSensor(1, 1)

	p := idx.players[1]
	if len(p.sensors) != 1 {
		t.Fatalf("expected one sensor left after removal, got %d", len(p.sensors))
	}
	if p.sensors[0].id != 2 {
		t.Fatalf("expected surviving sensor to be id 2, got %d", p.sensors[0].id)
	}

	// The removed sensor's four endpoints must be fully unlinked: a
	// further position update must not panic via the double-unlink
	// invariant check.
	idx.UpdatePos(1, 5, 0, 5)
}

func TestAddSensorRejectsDuplicateID(t *testing.T) {
	idx := New(Config{})
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 7, 50)
	idx.AddSensor(1, 7, 999)

	p := idx.players[1]
	if len(p.sensors) != 1 {
		t.Fatalf("expected duplicate AddSensor to be a no-op, got %d sensors", len(p.sensors))
	}
	if p.sensors[0].radius != 50 {
		t.Fatalf("expected original radius to survive a duplicate AddSensor, got %v", p.sensors[0].radius)
	}
}

func TestBeaconSeededCandidatesDetectOnFirstTick(t *testing.T) {
	cfg := Config{
		XMin: 0, XMax: 1000,
		ZMin: 0, ZMax: 1000,
		BeaconX: 2, BeaconZ: 2,
		BeaconRadius: 5000, // wide enough to cover the whole bounding rect
	}
	idx := New(cfg)
	if idx.BeaconCount() != 4 {
		t.Fatalf("expected 4 beacons for a 2x2 grid, got %d", idx.BeaconCount())
	}

	idx.AddPlayer(10, 100, 0, 100)
	idx.AddPlayer(11, 110, 0, 100) // 10 units from player 10
	idx.AddSensor(10, 1, 50)
	idx.AddSensor(11, 1, 50)

	updates := idx.Tick()

	info10, ok := updates[10]
	if !ok || !enterSet(info10)[11] {
		t.Fatalf("expected player 10 to detect player 11 via beacon-seeded candidates, got %v (ok=%v)", info10, ok)
	}
	info11, ok := updates[11]
	if !ok || !enterSet(info11)[10] {
		t.Fatalf("expected player 11 to detect player 10 via beacon-seeded candidates, got %v (ok=%v)", info11, ok)
	}
}

// No beacons. A sensor's candidate set is built purely from endpoint
// crossings, so this also exercises the x-axis list ordering directly:
// once Q sweeps inside P's guards, Q's player node must sit strictly
// between P's GuardLeft and GuardRight.
func TestScenario_SortAndSweepEndpointCrossing(t *testing.T) {
	idx := New(Config{})
	idx.AddPlayer(1, 0, 0, 0)
	idx.AddSensor(1, 1, 10)
	idx.AddPlayer(3, 100, 0, 0)

	if updates := idx.Tick(); len(updates) != 0 {
		t.Fatalf("expected no updates while Q sits outside P's radius, got %v", updates)
	}

	idx.UpdatePos(3, 5, 0, 0)
	updates := idx.Tick()

	info, ok := updates[1]
	if !ok || !enterSet(info)[3] {
		t.Fatalf("expected P to detect Q entering, got %v (ok=%v)", info, ok)
	}

	p := idx.players[1]
	q := idx.players[3]
	s := p.sensors[0]
	if s.leftX.value != -10 || s.rightX.value != 10 {
		t.Fatalf("expected P's sensor guards at -10/+10, got %v/%v", s.leftX.value, s.rightX.value)
	}

	found := false
	for node := s.leftX.next; node != nil && node != s.rightX; node = node.next {
		if node == q.nodeX {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected Q's x-node to sort between P's GuardLeft and GuardRight")
	}
}

// A single beacon covering the whole bounded region takes both C and D
// into its own candidate set on join; since C's sensor holds the
// beacon, D's join also seeds D into C's sensor, so C's sensor already
// carries D as a candidate before the first tick and the geometric
// disc test alone decides the AOI membership. The beacon itself must
// never surface in a tick's deltas.
func TestScenario_BeaconJoin(t *testing.T) {
	cfg := Config{
		XMin: -1000, XMax: 1000,
		ZMin: -1000, ZMax: 1000,
		BeaconX: 1, BeaconZ: 1,
		BeaconRadius: 1000,
	}
	idx := New(cfg)
	if idx.BeaconCount() != 1 {
		t.Fatalf("expected exactly one beacon for a 1x1 grid, got %d", idx.BeaconCount())
	}
	beaconNuid := idx.beacons[0].nuid

	idx.AddPlayer(10, 10, 0, 10)
	idx.AddSensor(10, 1, 50)
	idx.AddPlayer(20, 20, 0, 20) // no sensor of its own

	updates := idx.Tick()

	info, ok := updates[10]
	if !ok || !enterSet(info)[20] {
		t.Fatalf("expected C to detect D entering via the beacon-seeded candidate set, got %v (ok=%v)", info, ok)
	}
	if _, ok := updates[beaconNuid]; ok {
		t.Fatalf("expected the beacon never to appear as a subject of any tick's updates")
	}
	if _, ok := updates[20]; ok {
		t.Fatalf("expected D, which owns no sensor, not to appear as an update key")
	}
}

func TestBeaconSeededCandidatesExcludeDistantPlayers(t *testing.T) {
	cfg := Config{
		XMin: 0, XMax: 1000,
		ZMin: 0, ZMax: 1000,
		BeaconX: 2, BeaconZ: 2,
		BeaconRadius: 5000,
	}
	idx := New(cfg)

	idx.AddPlayer(10, 50, 0, 50)
	idx.AddPlayer(11, 950, 0, 950) // far from player 10
	idx.AddSensor(10, 1, 50)
	idx.AddSensor(11, 1, 50)

	updates := idx.Tick()
	if info, ok := updates[10]; ok && enterSet(info)[11] {
		t.Fatalf("expected distant beacon-seeded players not to detect each other, got %v", info)
	}
}
