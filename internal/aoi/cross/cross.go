// Package cross implements the sort-and-sweep area-of-interest index:
// two sorted doubly-linked lists of 1-D projections (on x and on z) of
// player points and sensor-disc endpoints. Enter/leave candidacy is
// detected incrementally as endpoints swap order in either list,
// optionally seeded by beacons for fast joins into a pre-populated
// world.
package cross

import (
	"math"

	"github.com/sablecore/aoi-engine/internal/aoi"
)

type nodeKind uint8

const (
	kindPlayer nodeKind = iota + 1
	kindGuardLeft
	kindGuardRight
)

type direction uint8

const (
	dirLeft direction = iota
	dirRight
)

// coordNode is a node in one of the two sorted endpoint lists.
type coordNode struct {
	kind   nodeKind
	value  float64
	prev   *coordNode
	next   *coordNode
	linked bool
	player *player
	sensor *sensor
}

// axis owns one sorted doubly-linked list of coordNodes (either the
// x-projection list or the z-projection list).
type axis struct {
	head *coordNode
}

func (a *axis) insertBefore(pos, node *coordNode) {
	aoi.Invariant(!node.linked, "coord node inserted while already linked")
	node.linked = true
	if a.head == nil {
		node.prev, node.next = nil, nil
		a.head = node
		return
	}
	if pos.prev != nil {
		pos.prev.next = node
	}
	node.prev = pos.prev
	pos.prev = node
	node.next = pos
	if a.head == pos {
		a.head = node
	}
}

func (a *axis) insertAfter(pos, node *coordNode) {
	aoi.Invariant(!node.linked, "coord node inserted while already linked")
	node.linked = true
	if a.head == nil {
		node.prev, node.next = nil, nil
		a.head = node
		return
	}
	if pos.next != nil {
		pos.next.prev = node
	}
	node.next = pos.next
	pos.next = node
	node.prev = pos
}

func (a *axis) remove(node *coordNode) {
	aoi.Invariant(node.linked, "coord node removed twice")
	node.linked = false
	if node.prev == nil && node.next == nil {
		a.head = nil
	} else {
		if node.prev != nil {
			node.prev.next = node.next
		}
		if node.next != nil {
			node.next.prev = node.prev
		}
		if a.head == node {
			a.head = node.next
		}
	}
	node.prev, node.next = nil, nil
}

// updateNode re-sorts node after its value has changed, by a local
// bidirectional bubble: it swaps with the neighbour on the side the
// value moved toward until the list is ordered again, firing a
// crossEvent for every neighbour it passes.
func (a *axis) updateNode(node *coordNode) {
	value := node.value

	if node.next != nil && node.next.value < value {
		cur := node.next
		for {
			crossEvent(dirRight, node, cur)
			if cur.next == nil || cur.next.value >= value {
				break
			}
			cur = cur.next
		}
		a.remove(node)
		a.insertAfter(cur, node)
	} else if node.prev != nil && node.prev.value > value {
		cur := node.prev
		for {
			crossEvent(dirLeft, node, cur)
			if cur.prev == nil || cur.prev.value <= value {
				break
			}
			cur = cur.prev
		}
		a.remove(node)
		a.insertBefore(cur, node)
	}
}

// crossEvent classifies one swap between a moving node and the static
// node it just passed, dispatching on the pair's node kinds and the
// direction of travel, and applies the corresponding candidate-set
// update. Two guards crossing, or a node crossing itself, has no
// effect.
func crossEvent(dir direction, moving, static *coordNode) {
	switch {
	case moving.kind == kindPlayer && static.kind == kindGuardLeft && dir == dirRight:
		moveIn(moving, static)
	case moving.kind == kindPlayer && static.kind == kindGuardRight && dir == dirLeft:
		moveIn(moving, static)
	case moving.kind == kindGuardLeft && static.kind == kindPlayer && dir == dirLeft:
		moveIn(static, moving)
	case moving.kind == kindGuardRight && static.kind == kindPlayer && dir == dirRight:
		moveIn(static, moving)

	case moving.kind == kindPlayer && static.kind == kindGuardLeft && dir == dirLeft:
		moveOut(moving, static)
	case moving.kind == kindPlayer && static.kind == kindGuardRight && dir == dirRight:
		moveOut(moving, static)
	case moving.kind == kindGuardRight && static.kind == kindPlayer && dir == dirLeft:
		moveOut(static, moving)
	case moving.kind == kindGuardLeft && static.kind == kindPlayer && dir == dirRight:
		moveOut(static, moving)
	}
}

// moveIn adds playerNode's player to guardNode's sensor's candidate
// set, but only if both axes agree the player is inside the sensor's
// AABB — a single axis crossing the guard is necessary but not
// sufficient, since the other axis may already be out of range.
func moveIn(playerNode, guardNode *coordNode) {
	if playerNode.player.nuid == guardNode.player.nuid {
		return
	}
	pos := playerNode.player.pos
	otherPos := guardNode.player.pos
	r := guardNode.sensor.radius
	if math.Abs(pos.X-otherPos.X) < r && math.Abs(pos.Z-otherPos.Z) < r {
		guardNode.sensor.addCandidate(playerNode.player)
	}
}

func moveOut(playerNode, guardNode *coordNode) {
	guardNode.sensor.removeCandidate(playerNode.player)
}

// sensor is a single circular view owned by a player, realized in the
// sort-and-sweep index as four guard endpoints and a candidate set of
// players currently inside its axis-aligned bounding square.
type sensor struct {
	id           aoi.Nuid
	radius       float64
	radiusSquare float64
	owner        *player

	leftX, rightX *coordNode
	leftZ, rightZ *coordNode

	candidates map[aoi.Nuid]*player
	aoiPlayers [2][]*player
}

func newSensor(id aoi.Nuid, radius float64, owner *player) *sensor {
	s := &sensor{
		id:           id,
		radius:       radius,
		radiusSquare: radius * radius,
		owner:        owner,
		candidates:   make(map[aoi.Nuid]*player, 16),
	}
	s.leftX = &coordNode{kind: kindGuardLeft, value: owner.pos.X - radius, player: owner, sensor: s}
	s.rightX = &coordNode{kind: kindGuardRight, value: owner.pos.X + radius, player: owner, sensor: s}
	s.leftZ = &coordNode{kind: kindGuardLeft, value: owner.pos.Z - radius, player: owner, sensor: s}
	s.rightZ = &coordNode{kind: kindGuardRight, value: owner.pos.Z + radius, player: owner, sensor: s}
	return s
}

// addCandidate inserts other into s's candidate set (a no-op if
// already present, or if other is s's own owner) and, if other is a
// beacon, records s in that beacon's detected_by map — this is what
// lets a newly joining player be seeded in one shot into every sensor
// that holds its nearest beacon.
func (s *sensor) addCandidate(other *player) {
	if s.owner.nuid == other.nuid {
		return
	}
	if _, exists := s.candidates[other.nuid]; exists {
		return
	}
	s.candidates[other.nuid] = other
	if other.detectedBy != nil {
		other.detectedBy[s.owner.nuid] = append(other.detectedBy[s.owner.nuid], s.id)
	}
}

func (s *sensor) removeCandidate(other *player) {
	if _, exists := s.candidates[other.nuid]; !exists {
		return
	}
	delete(s.candidates, other.nuid)
	if other.detectedBy != nil {
		ids := other.detectedBy[s.owner.nuid]
		for i, id := range ids {
			if id == s.id {
				other.detectedBy[s.owner.nuid] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}

// player is the index's internal record for one tracked entity,
// beacon or otherwise.
type player struct {
	nuid    aoi.Nuid
	pos     aoi.Position
	lastPos aoi.Position
	flags   aoi.Flags

	nodeX, nodeZ *coordNode
	sensors      []*sensor

	// detectedBy is non-nil only for beacons: other player's nuid ->
	// the IDs of that player's own sensors whose candidate sets
	// currently hold this beacon.
	detectedBy map[aoi.Nuid][]aoi.Nuid
}

func (p *player) ID() aoi.Nuid          { return p.nuid }
func (p *player) Pos() aoi.Position     { return p.pos }
func (p *player) LastPos() aoi.Position { return p.lastPos }
func (p *player) IsRemoved() bool       { return p.flags.Has(aoi.FlagRemoved) }

func newPlayer(nuid aoi.Nuid, x, y, z float64) *player {
	p := &player{
		nuid:    nuid,
		pos:     aoi.Position{X: x, Y: y, Z: z},
		lastPos: aoi.FarPosition(),
		flags:   aoi.FlagNew,
	}
	p.nodeX = &coordNode{kind: kindPlayer, value: math.Inf(-1), player: p}
	p.nodeZ = &coordNode{kind: kindPlayer, value: math.Inf(-1), player: p}
	return p
}

// Config parameterizes a cross index. If BeaconX and BeaconZ are both
// zero, no beacons are created and the bounds are unused. Otherwise
// the rectangle [XMin,XMax]x[ZMin,ZMax] is tiled into BeaconX*BeaconZ
// cells, one beacon placed at each cell centre.
type Config struct {
	XMin, XMax, ZMin, ZMax float64
	BeaconX, BeaconZ       int
	BeaconRadius           float64
}

// Index is the sort-and-sweep AOI index. The zero value is not usable;
// construct with New.
type Index struct {
	listX, listZ axis
	players      map[aoi.Nuid]*player
	curBuf       uint32
	beacons      []*player
	gen          *aoi.Generator
}

// New constructs a cross index per Config. Panics if beacons are
// requested (BeaconX or BeaconZ nonzero) with degenerate bounds.
func New(cfg Config) *Index {
	idx := &Index{
		players: make(map[aoi.Nuid]*player, 100),
		gen:     aoi.NewGenerator(),
	}
	if cfg.BeaconX == 0 && cfg.BeaconZ == 0 {
		return idx
	}
	if cfg.XMax <= cfg.XMin || cfg.ZMax <= cfg.ZMin {
		panic("cross: beacon grid requires XMax > XMin and ZMax > ZMin")
	}

	stepX := (cfg.XMax - cfg.XMin) / float64(cfg.BeaconX) / 2
	stepZ := (cfg.ZMax - cfg.ZMin) / float64(cfg.BeaconZ) / 2
	for x := 0; x < cfg.BeaconX; x++ {
		for z := 0; z < cfg.BeaconZ; z++ {
			posX := cfg.XMin + stepX*float64(x*2+1)
			posZ := cfg.ZMin + stepZ*float64(z*2+1)

			nuid := idx.gen.Next()
			idx.addPlayerNoBeacon(nuid, posX, 0, posZ)
			sensorID := idx.gen.Next()
			idx.addSensorNoBeacon(nuid, sensorID, cfg.BeaconRadius)

			beacon := idx.players[nuid]
			beacon.flags = beacon.flags.Set(aoi.FlagBeacon)
			beacon.detectedBy = make(map[aoi.Nuid][]aoi.Nuid)
			idx.beacons = append(idx.beacons, beacon)
		}
	}

	// Sensors of beacons built earlier took each later beacon as a
	// candidate before its map existed; rebuild every map from scratch.
	for _, b := range idx.beacons {
		b.detectedBy = make(map[aoi.Nuid][]aoi.Nuid)
	}
	for _, owner := range idx.beacons {
		for _, s := range owner.sensors {
			for _, c := range s.candidates {
				if c.detectedBy != nil {
					c.detectedBy[owner.nuid] = append(c.detectedBy[owner.nuid], s.id)
				}
			}
		}
	}
	return idx
}

// AddPlayer inserts a new player, or re-admits a previously removed
// one. With beacons configured, a brand-new player's coordinate nodes
// are inserted next to the nearest beacon (a position known to be
// near-correct) and the player is pre-seeded as a candidate of every
// sensor listed in that beacon's detected_by map and of the beacon's
// own sensors, before UpdatePos sweeps it to its exact sorted
// position.
func (idx *Index) AddPlayer(nuid aoi.Nuid, x, y, z float64) {
	if len(idx.beacons) == 0 {
		idx.addPlayerNoBeacon(nuid, x, y, z)
		return
	}
	if _, exists := idx.players[nuid]; exists {
		idx.addPlayerNoBeacon(nuid, x, y, z)
		return
	}

	p := newPlayer(nuid, x, y, z)
	idx.players[nuid] = p

	best := idx.nearestBeacon(x, z)
	aoi.Invariant(best != nil, "no beacon found despite non-empty beacon list")

	for otherNuid, sensorIDs := range best.detectedBy {
		other, ok := idx.players[otherNuid]
		if !ok {
			continue
		}
		for _, sid := range sensorIDs {
			for _, s := range other.sensors {
				if s.id == sid {
					s.addCandidate(p)
				}
			}
		}
	}
	for _, s := range best.sensors {
		s.addCandidate(p)
	}

	idx.listX.insertBefore(best.nodeX, p.nodeX)
	idx.listZ.insertBefore(best.nodeZ, p.nodeZ)
	idx.UpdatePos(nuid, x, y, z)
}

func (idx *Index) addPlayerNoBeacon(nuid aoi.Nuid, x, y, z float64) {
	p, exists := idx.players[nuid]
	if !exists {
		p = newPlayer(nuid, x, y, z)
		idx.players[nuid] = p
		idx.listX.insertBefore(idx.listX.head, p.nodeX)
		idx.listZ.insertBefore(idx.listZ.head, p.nodeZ)
	} else {
		p.flags = p.flags.Clear(aoi.FlagRemoved)
	}
	idx.UpdatePos(nuid, x, y, z)
}

func (idx *Index) nearestBeacon(x, z float64) *player {
	var best *player
	minDistSquare := math.MaxFloat64
	for _, b := range idx.beacons {
		dx := b.pos.X - x
		dz := b.pos.Z - z
		d := dx*dx + dz*dz
		if d < minDistSquare {
			minDistSquare = d
			best = b
		}
	}
	return best
}

// RemovePlayer marks a player removed; eviction (and unlinking every
// sensor and coordinate node it owns) is deferred to the next Tick().
func (idx *Index) RemovePlayer(nuid aoi.Nuid) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	p.flags = p.flags.Set(aoi.FlagRemoved)
}

func (idx *Index) removePlayer(nuid aoi.Nuid) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	ids := make([]aoi.Nuid, len(p.sensors))
	for i, s := range p.sensors {
		ids[len(p.sensors)-1-i] = s.id
	}
	for _, sid := range ids {
		idx.RemoveSensor(nuid, sid)
	}
	idx.listX.remove(p.nodeX)
	idx.listZ.remove(p.nodeZ)
	delete(idx.players, nuid)
}

// AddSensor appends a sensor to nuid's owner. A no-op if the owner is
// unknown or already has a sensor with this sensor_id.
//
// With beacons configured, it first checks whether the new sensor's
// disc would be wholly contained in the nearest beacon's sensor disc
// (dist + radius <= beacon_radius — a plain containment-of-circles
// test). If so, the new sensor's candidate set is seeded by copying
// the beacon sensor's candidates and its endpoints are inserted just
// inside the beacon sensor's. Otherwise it falls back to the
// no-beacon path.
func (idx *Index) AddSensor(nuid, sensorID aoi.Nuid, radius float64) {
	if len(idx.beacons) == 0 {
		idx.addSensorNoBeacon(nuid, sensorID, radius)
		return
	}

	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	for _, s := range p.sensors {
		if s.id == sensorID {
			return
		}
	}

	best := idx.nearestBeacon(p.pos.X, p.pos.Z)
	aoi.Invariant(best != nil, "no beacon found despite non-empty beacon list")
	bestSensor := best.sensors[0]

	dx := best.pos.X - p.pos.X
	dz := best.pos.Z - p.pos.Z
	dist := math.Sqrt(dx*dx + dz*dz)
	if dist+radius > bestSensor.radius {
		idx.addSensorNoBeacon(nuid, sensorID, radius)
		return
	}

	s := newSensor(sensorID, radius, p)
	p.sensors = append(p.sensors, s)
	for _, candidate := range bestSensor.candidates {
		s.addCandidate(candidate)
	}
	s.addCandidate(best)

	idx.listX.insertAfter(bestSensor.leftX, s.leftX)
	idx.listX.insertBefore(bestSensor.rightX, s.rightX)
	idx.listZ.insertAfter(bestSensor.leftZ, s.leftZ)
	idx.listZ.insertBefore(bestSensor.rightZ, s.rightZ)

	idx.updateSensorPos(p, s)
}

func (idx *Index) addSensorNoBeacon(nuid, sensorID aoi.Nuid, radius float64) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	for _, s := range p.sensors {
		if s.id == sensorID {
			return
		}
	}

	s := newSensor(sensorID, radius, p)
	p.sensors = append(p.sensors, s)

	idx.listX.insertBefore(p.nodeX, s.leftX)
	idx.listX.insertAfter(p.nodeX, s.rightX)
	idx.listZ.insertBefore(p.nodeZ, s.leftZ)
	idx.listZ.insertAfter(p.nodeZ, s.rightZ)

	idx.updateSensorPos(p, s)
}

// RemoveSensor drops a sensor from its owner immediately: swap with
// the owner's last sensor, unlink its four endpoints from both axis
// lists, then truncate. A no-op if nuid or sensor_id is unknown.
func (idx *Index) RemoveSensor(nuid, sensorID aoi.Nuid) {
	p, ok := idx.players[nuid]
	if !ok || len(p.sensors) == 0 {
		return
	}

	found := -1
	for i, s := range p.sensors {
		if s.id == sensorID {
			found = i
			break
		}
	}
	if found == -1 {
		return
	}

	last := len(p.sensors) - 1
	p.sensors[found], p.sensors[last] = p.sensors[last], p.sensors[found]
	s := p.sensors[last]

	idx.listX.remove(s.leftX)
	idx.listX.remove(s.rightX)
	idx.listZ.remove(s.leftZ)
	idx.listZ.remove(s.rightZ)
	p.sensors = p.sensors[:last]
}

// UpdatePos moves a player, re-sorting its own coordinate nodes and
// every sensor's four guard nodes. The order of the six re-sorts is
// irrelevant to correctness: each is a monotone walk that emits every
// crossing it passes over.
func (idx *Index) UpdatePos(nuid aoi.Nuid, x, y, z float64) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	p.pos = aoi.Position{X: x, Y: y, Z: z}
	p.flags = p.flags.Set(aoi.FlagDirty)

	p.nodeX.value = p.pos.X
	idx.listX.updateNode(p.nodeX)
	p.nodeZ.value = p.pos.Z
	idx.listZ.updateNode(p.nodeZ)

	for _, s := range p.sensors {
		idx.updateSensorPos(p, s)
	}
}

func (idx *Index) updateSensorPos(p *player, s *sensor) {
	r := s.radius

	s.rightX.value = p.pos.X + r
	idx.listX.updateNode(s.rightX)
	s.leftX.value = p.pos.X - r
	idx.listX.updateNode(s.leftX)

	s.rightZ.value = p.pos.Z + r
	idx.listZ.updateNode(s.rightZ)
	s.leftZ.value = p.pos.Z - r
	idx.listZ.updateNode(s.leftZ)
}

// Tick recomputes every live, non-beacon player's sensors, diffs
// against the previous tick, evicts removed players, snapshots
// last_pos, and flips the double buffer.
func (idx *Index) Tick() aoi.UpdateInfos {
	updates := make(aoi.UpdateInfos)
	var removeList []*player

	for _, p := range idx.players {
		if p.flags.Has(aoi.FlagBeacon) {
			continue
		}
		if p.flags.Has(aoi.FlagRemoved) {
			removeList = append(removeList, p)
			continue
		}

		if len(p.sensors) > 0 {
			info := idx.updatePlayerAoi(p)
			if len(info.SensorUpdateList) > 0 {
				updates[info.Nuid] = info
			}
		}

		p.flags = p.flags.Clear(aoi.FlagNew)
	}

	for _, p := range removeList {
		idx.removePlayer(p.nuid)
	}
	for _, p := range idx.players {
		p.lastPos = p.pos
	}
	idx.curBuf = 1 - idx.curBuf
	return updates
}

func (idx *Index) updatePlayerAoi(p *player) aoi.AoiUpdateInfo {
	info := aoi.AoiUpdateInfo{Nuid: p.nuid}
	newBuf := 1 - idx.curBuf

	for _, s := range p.sensors {
		oldSet := s.aoiPlayers[idx.curBuf]
		idx.calcAoiPlayers(p, s, newBuf)
		newSet := s.aoiPlayers[newBuf]

		var su aoi.SensorUpdateInfo
		aoi.CheckLeave(p.pos, s.radiusSquare, oldSet, &su.Leaves)
		aoi.CheckEnter(p.lastPos, s.radiusSquare, p.flags.Has(aoi.FlagNew), newSet, &su.Enters)

		if len(su.Enters) == 0 && len(su.Leaves) == 0 {
			continue
		}
		su.SensorID = s.id
		info.SensorUpdateList = append(info.SensorUpdateList, su)
	}

	return info
}

// calcAoiPlayers narrows s's candidate set (everyone in its AABB) down
// to the disc test, skipping beacons and removed players alike.
func (idx *Index) calcAoiPlayers(p *player, s *sensor, buf uint32) {
	result := s.aoiPlayers[buf][:0]
	for _, other := range s.candidates {
		if other.flags.Has(aoi.FlagBeacon) || other.flags.Has(aoi.FlagRemoved) {
			continue
		}
		if other.pos.DistSquareXZ(p.pos) <= s.radiusSquare {
			result = append(result, other)
		}
	}
	s.aoiPlayers[buf] = result
}

// PlayerCount returns the number of tracked players, beacons included.
func (idx *Index) PlayerCount() int { return len(idx.players) }

// BeaconCount returns the number of configured beacons.
func (idx *Index) BeaconCount() int { return len(idx.beacons) }

// CandidateSetSizes returns the current candidate-set size of every
// non-beacon sensor, for observability sampling. Order is unspecified.
func (idx *Index) CandidateSetSizes() []int {
	sizes := make([]int, 0, len(idx.players))
	for _, p := range idx.players {
		if p.flags.Has(aoi.FlagBeacon) {
			continue
		}
		for _, s := range p.sensors {
			sizes = append(sizes, len(s.candidates))
		}
	}
	return sizes
}

// SensorCount returns the total number of sensors across every tracked
// player, beacons included, for observability sampling.
func (idx *Index) SensorCount() int {
	n := 0
	for _, p := range idx.players {
		n += len(p.sensors)
	}
	return n
}
