package spatial

import (
	"math"
	"sort"
	"sync"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

// LOD is the detail class assigned to a visible entity
type LOD int

const (
	LODFull LOD = iota
	LODReduced
	LODBillboard
	LODCulled
)

func (l LOD) String() string {
	switch l {
	case LODFull:
		return "full"
	case LODReduced:
		return "reduced"
	case LODBillboard:
		return "billboard"
	default:
		return "culled"
	}
}

// Distance breaks for LOD assignment, in world units
const (
	fullDetailRange = 10.0
	reducedRange    = 30.0
)

// Entity is a positioned object under spatial management
type Entity struct {
	ID      string
	X, Y, Z float64
}

// Placement is the optimizer's decision for one entity
type Placement struct {
	Entity   Entity
	Distance float64
	LOD      LOD
}

// Optimizer assigns LOD classes under the level's visibility budget:
// nearest entities first until MaxEntities is spent, the rest culled.
type Optimizer struct {
	mu sync.RWMutex

	entities map[string]Entity
	budget   int

	logger *utils.Logger
}

func NewOptimizer(logger *utils.Logger) *Optimizer {
	if logger == nil {
		logger = utils.DefaultLogger("spatial")
	}
	return &Optimizer{
		entities: make(map[string]Entity),
		budget:   perf.LevelMedium.MaxEntities(),
		logger:   logger,
	}
}

// SetQualityLevel implements perf.QualityAdjustable: the visibility
// budget follows the level's entity cap.
func (o *Optimizer) SetQualityLevel(level perf.Level) {
	o.mu.Lock()
	o.budget = level.MaxEntities()
	o.mu.Unlock()

	o.logger.Debug("Spatial budget updated",
		utils.String("level", level.String()),
		utils.Int("budget", level.MaxEntities()),
	)
}

// Upsert adds or moves an entity
func (o *Optimizer) Upsert(e Entity) {
	o.mu.Lock()
	o.entities[e.ID] = e
	o.mu.Unlock()
}

// Remove drops an entity; unknown ids are ignored
func (o *Optimizer) Remove(id string) {
	o.mu.Lock()
	delete(o.entities, id)
	o.mu.Unlock()
}

// Count returns the number of managed entities
func (o *Optimizer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entities)
}

// Assign computes placements relative to the viewer position. Entities
// are admitted nearest-first until the budget is spent; admitted ones
// get a distance-bucketed LOD, the overflow is culled. The result is
// ordered by distance.
func (o *Optimizer) Assign(viewX, viewY, viewZ float64) []Placement {
	o.mu.RLock()
	placements := make([]Placement, 0, len(o.entities))
	for _, e := range o.entities {
		dx := e.X - viewX
		dy := e.Y - viewY
		dz := e.Z - viewZ
		placements = append(placements, Placement{
			Entity:   e,
			Distance: math.Sqrt(dx*dx + dy*dy + dz*dz),
		})
	}
	budget := o.budget
	o.mu.RUnlock()

	sort.Slice(placements, func(i, j int) bool {
		if placements[i].Distance != placements[j].Distance {
			return placements[i].Distance < placements[j].Distance
		}
		return placements[i].Entity.ID < placements[j].Entity.ID
	})

	for i := range placements {
		if i >= budget {
			placements[i].LOD = LODCulled
			continue
		}
		placements[i].LOD = lodForDistance(placements[i].Distance)
	}
	return placements
}

func lodForDistance(distance float64) LOD {
	switch {
	case distance <= fullDetailRange:
		return LODFull
	case distance <= reducedRange:
		return LODReduced
	default:
		return LODBillboard
	}
}

// Stats returns optimizer metrics
func (o *Optimizer) Stats() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return map[string]interface{}{
		"entities": len(o.entities),
		"budget":   o.budget,
	}
}
