// Package squares implements the uniform-grid area-of-interest index:
// players are bucketed into fixed-size square cells on the x-z plane,
// and a sensor's query walks the cells its disc overlaps.
package squares

import (
	"math"

	"github.com/sablecore/aoi-engine/internal/aoi"
)

// DefaultCellSize is used when New is called with cellSize <= 0.
const DefaultCellSize = 200

// cellID packs two floored cell coordinates into one 64-bit key: xi in
// the high 32 bits, zi in the low 32 bits. Negative coordinates floor
// toward negative infinity, so e.g. pos(-1,-1) at cellSize 200 packs
// to 0xFFFFFFFFFFFFFFFF (both halves become -1 as an unsigned int32).
type cellID uint64

func coordToCell(coord, inverseCellSize float64) int32 {
	return int32(math.Floor(coord * inverseCellSize))
}

func posToCellID(x, z, inverseCellSize float64) cellID {
	xi := coordToCell(x, inverseCellSize)
	zi := coordToCell(z, inverseCellSize)
	return genCellID(xi, zi)
}

func genCellID(xi, zi int32) cellID {
	return cellID(uint64(uint32(xi))<<32 | uint64(uint32(zi)))
}

// sensor is a single circular view owned by a player.
type sensor struct {
	id           aoi.Nuid
	radius       float64
	radiusSquare float64
	aoiPlayers   [2][]*player
}

// player is the index's internal record for one tracked entity.
type player struct {
	nuid      aoi.Nuid
	pos       aoi.Position
	lastPos   aoi.Position
	flags     aoi.Flags
	cellID    cellID
	cellIndex int
	sensors   []*sensor
}

func (p *player) ID() aoi.Nuid          { return p.nuid }
func (p *player) Pos() aoi.Position     { return p.pos }
func (p *player) LastPos() aoi.Position { return p.lastPos }
func (p *player) IsRemoved() bool       { return p.flags.Has(aoi.FlagRemoved) }

// Index is the uniform-grid AOI index. The zero value is not usable;
// construct with New.
type Index struct {
	cellSize        float64
	inverseCellSize float64
	curBuf          uint32

	cells   map[cellID][]*player
	players map[aoi.Nuid]*player
}

// New constructs a grid index with the given cell size. cellSize
// should exceed the largest expected sensor radius for good locality,
// but correctness does not depend on it. A non-positive cellSize falls
// back to DefaultCellSize.
func New(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index{
		cellSize:        cellSize,
		inverseCellSize: 1 / cellSize,
		cells:           make(map[cellID][]*player, 100),
		players:         make(map[aoi.Nuid]*player, 100),
	}
}

func (idx *Index) removeFromCell(p *player) {
	if p.cellIndex < 0 {
		return
	}
	bucket, ok := idx.cells[p.cellID]
	if ok {
		last := len(bucket) - 1
		bucket[p.cellIndex] = bucket[last]
		bucket[p.cellIndex].cellIndex = p.cellIndex
		bucket = bucket[:last]
		if len(bucket) == 0 {
			delete(idx.cells, p.cellID)
		} else {
			idx.cells[p.cellID] = bucket
		}
	}
	p.cellIndex = -1
}

func (idx *Index) addToCell(p *player) {
	id := posToCellID(p.pos.X, p.pos.Z, idx.inverseCellSize)
	bucket := idx.cells[id]
	p.cellID = id
	p.cellIndex = len(bucket)
	idx.cells[id] = append(bucket, p)
}

// AddPlayer inserts a new player, or re-admits a previously removed
// one (clearing Removed). Re-adding rebuckets at the freshly supplied
// (x, y, z): a removed-then-re-added player's bucket reflects where it
// actually is now, not wherever it happened to be standing when it was
// last removed.
func (idx *Index) AddPlayer(nuid aoi.Nuid, x, y, z float64) {
	p, exists := idx.players[nuid]
	if exists {
		idx.removeFromCell(p)
		p.flags = p.flags.Clear(aoi.FlagRemoved)
		p.pos = aoi.Position{X: x, Y: y, Z: z}
	} else {
		p = &player{
			nuid:      nuid,
			pos:       aoi.Position{X: x, Y: y, Z: z},
			lastPos:   aoi.FarPosition(),
			flags:     aoi.FlagNew,
			cellIndex: -1,
		}
		idx.players[nuid] = p
	}
	idx.addToCell(p)
}

// RemovePlayer marks a player removed; eviction is deferred to the
// next Tick(). A no-op if nuid is unknown.
func (idx *Index) RemovePlayer(nuid aoi.Nuid) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	idx.removeFromCell(p)
	p.flags = p.flags.Set(aoi.FlagRemoved)
}

// AddSensor appends a sensor to nuid's owner. A no-op if the owner is
// unknown or already has a sensor with this sensor_id.
func (idx *Index) AddSensor(nuid, sensorID aoi.Nuid, radius float64) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	for _, s := range p.sensors {
		if s.id == sensorID {
			return
		}
	}
	p.sensors = append(p.sensors, &sensor{id: sensorID, radius: radius, radiusSquare: radius * radius})
}

// RemoveSensor drops a sensor from its owner immediately, swapping it
// with the owner's last sensor before truncating (the grid index has
// no endpoint lists to unlink, unlike the cross variant). A no-op if
// nuid or sensor_id is unknown.
func (idx *Index) RemoveSensor(nuid, sensorID aoi.Nuid) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	for i, s := range p.sensors {
		if s.id != sensorID {
			continue
		}
		last := len(p.sensors) - 1
		p.sensors[i] = p.sensors[last]
		p.sensors = p.sensors[:last]
		return
	}
}

// UpdatePos moves a player to a new position, rebucketing it if the
// new position falls in a different cell. A no-op if nuid is unknown.
func (idx *Index) UpdatePos(nuid aoi.Nuid, x, y, z float64) {
	p, ok := idx.players[nuid]
	if !ok {
		return
	}
	p.flags = p.flags.Set(aoi.FlagDirty)
	newID := posToCellID(x, z, idx.inverseCellSize)
	if newID != p.cellID {
		idx.removeFromCell(p)
		p.pos = aoi.Position{X: x, Y: y, Z: z}
		idx.addToCell(p)
	} else {
		p.pos = aoi.Position{X: x, Y: y, Z: z}
	}
}

// Tick recomputes every live player's sensors, diffs against the
// previous tick, evicts removed players, snapshots last_pos, and flips
// the double buffer.
func (idx *Index) Tick() aoi.UpdateInfos {
	updates := make(aoi.UpdateInfos)
	var removeList []*player

	for _, p := range idx.players {
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
		delete(idx.players, p.nuid)
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

// calcAoiPlayers walks every cell overlapping the sensor's
// axis-aligned bounding square, applies an axis prefilter, then the
// strict-less-than disc test, and writes the result into buf.
func (idx *Index) calcAoiPlayers(p *player, s *sensor, buf uint32) {
	radius := s.radius
	minXi := coordToCell(p.pos.X-radius, idx.inverseCellSize)
	maxXi := coordToCell(p.pos.X+radius, idx.inverseCellSize)
	minZi := coordToCell(p.pos.Z-radius, idx.inverseCellSize)
	maxZi := coordToCell(p.pos.Z+radius, idx.inverseCellSize)

	result := s.aoiPlayers[buf][:0]

	for xi := minXi; xi <= maxXi; xi++ {
		for zi := minZi; zi <= maxZi; zi++ {
			bucket, ok := idx.cells[genCellID(xi, zi)]
			if !ok {
				continue
			}
			for _, other := range bucket {
				if other.nuid == p.nuid || other.flags.Has(aoi.FlagRemoved) {
					continue
				}
				dx := p.pos.X - other.pos.X
				dz := p.pos.Z - other.pos.Z
				if dx > radius || dz > radius || -dx > radius || -dz > radius {
					continue
				}
				if dx*dx+dz*dz < s.radiusSquare {
					result = append(result, other)
				}
			}
		}
	}
	s.aoiPlayers[buf] = result
}

// PlayerCount returns the number of tracked (including not-yet-evicted
// removed) players.
func (idx *Index) PlayerCount() int { return len(idx.players) }

// CellCount returns the number of non-empty cells.
func (idx *Index) CellCount() int { return len(idx.cells) }

// SensorCount returns the total number of sensors across every tracked
// player, for observability sampling.
func (idx *Index) SensorCount() int {
	n := 0
	for _, p := range idx.players {
		n += len(p.sensors)
	}
	return n
}
