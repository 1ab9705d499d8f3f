package realm

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Economy tunables.
const (
	MaxTaxRate          = 0.5
	growthRate          = 0.02
	repairPerTurn       = 20
	unrestThreshold     = 20
	secessionUnrest     = 3
	incitedHappiness    = 30
	troopsPerFood       = 20
	starvationHappiness = -5
	marketDrift         = 0.05
	minPrice, maxPrice  = 0.5, 2.0
)

// produce credits each player's cities and charges troop upkeep.
func (run *phaseRun) produce() {
	w := run.w
	for _, p := range w.ActivePlayers() {
		gold, food := 0, 0
		for _, c := range w.CitiesOf(p.ID) {
			g := gradeTable[c.Grade]
			gold += g.gold + int(float64(c.Population)*c.TaxRate/10) + 15*c.BuildingLevel(Market)
			food += g.food + 20*c.BuildingLevel(Farm)
			if c.Specialty != "" {
				if c.Stock == nil {
					c.Stock = make(map[Specialty]int)
				}
				c.Stock[c.Specialty]++
				gold += int(2 * w.Room.Market[c.Specialty])
			}
		}
		food -= w.TotalTroops(p.ID) / troopsPerFood
		p.Gold += gold
		p.Food += food
		if p.Food < 0 {
			p.Food = 0
			for _, c := range w.CitiesOf(p.ID) {
				c.addHappiness(starvationHappiness)
			}
			run.privateNews(NewsEconomy, []PlayerID{p.ID}, "granaries are empty; the army is starving", nil)
		}
		run.privateNews(NewsEconomy, []PlayerID{p.ID},
			fmt.Sprintf("income: %s gold, %s food", humanize.Comma(int64(gold)), humanize.Comma(int64(food))),
			map[string]any{"gold": gold, "food": food})
	}
}

// advanceBuildQueues ticks the head order of every city's queue.
func (run *phaseRun) advanceBuildQueues() {
	for _, c := range run.w.Cities {
		if len(c.BuildQueue) == 0 || c.Owner == 0 {
			continue
		}
		head := &c.BuildQueue[0]
		head.TurnsLeft--
		if head.TurnsLeft > 0 {
			continue
		}
		if c.Buildings == nil {
			c.Buildings = make(map[BuildingKind]*Building)
		}
		b := c.Buildings[head.Kind]
		if b == nil {
			b = &Building{Kind: head.Kind}
			c.Buildings[head.Kind] = b
		}
		b.Level = min(maxBuildingLevel, b.Level+1)
		b.HP = buildingMaxHP
		c.BuildQueue = c.BuildQueue[1:]
		run.privateNews(NewsEconomy, []PlayerID{c.Owner},
			fmt.Sprintf("%s finished %s level %d", c.Name, b.Kind, b.Level), map[string]any{"city": c.ID})
	}
}

// driftMarket walks every specialty price by up to ±5%.
func (run *phaseRun) driftMarket() {
	m := run.w.Room.Market
	for _, s := range Specialties {
		price, ok := m[s]
		if !ok {
			price = 1
		}
		price *= 1 + (run.rng.Float64()*2-1)*marketDrift
		m[s] = clampFloat(price, minPrice, maxPrice)
	}
}

// growCities applies growth, tax mood and unrest.
func (run *phaseRun) growCities() {
	w := run.w
	for _, c := range w.Cities {
		if c.Owner == 0 {
			continue
		}
		p := w.Player(c.Owner)
		if c.Happiness >= 50 && p != nil && p.Food > 0 {
			c.Population += int(float64(c.Population) * growthRate)
		}
		switch {
		case c.TaxRate > 0.3:
			c.addHappiness(-3)
		case c.TaxRate < 0.15:
			c.addHappiness(2)
		}
		if c.Happiness < unrestThreshold {
			c.Unrest++
			run.privateNews(NewsUnrest, []PlayerID{c.Owner},
				fmt.Sprintf("riots in %s (unrest %d)", c.Name, c.Unrest), map[string]any{"city": c.ID})
		} else if c.Unrest > 0 {
			c.Unrest--
		}
	}
}

// repairBuildings restores damaged buildings a little each turn.
func (run *phaseRun) repairBuildings() {
	for _, c := range run.w.Cities {
		for _, k := range sortedKinds(c) {
			b := c.Buildings[k]
			if b.HP < buildingMaxHP {
				b.HP = min(buildingMaxHP, b.HP+repairPerTurn)
			}
		}
	}
}

func sortedKinds(c *City) []BuildingKind {
	var out []BuildingKind
	for _, k := range []BuildingKind{Farm, Market, Barracks, Walls, Watchtower, SpyAcademy, Harbor} {
		if c.Buildings[k] != nil {
			out = append(out, k)
		}
	}
	return out
}

// processSecession splits restless cities off into rebel AI nations.
func (run *phaseRun) processSecession() {
	w := run.w
	for _, c := range w.Cities {
		if c.Owner == 0 || c.Grade == Capital {
			continue
		}
		if c.Unrest < secessionUnrest && !(c.Incited && c.Happiness < incitedHappiness) {
			continue
		}
		if len(w.CitiesOf(c.Owner)) <= 1 {
			continue
		}
		run.secede(c)
	}
}

func (run *phaseRun) secede(c *City) {
	w := run.w
	old := c.Owner
	oldName := run.playerName(old)
	rebel := w.AddPlayer(Player{
		Name:       "Free " + c.Name,
		Nation:     fmt.Sprintf("rebels-%d", c.ID),
		Gold:       100,
		Food:       100,
		IsAI:       true,
		Difficulty: Normal,
		Rebel:      true,
	})
	w.SetRelation(rebel.ID, old, War, 0)
	w.transferCity(c, rebel.ID, false)
	c.Happiness = 50

	for _, t := range w.ClusterTiles(c) {
		if t.City != c.ID {
			continue
		}
		troops := w.TroopsOf(old, t.ID)
		for _, ut := range troops.Types() {
			n := w.removeUnits(old, t.ID, ut, troops[ut]/2)
			w.AddUnits(rebel.ID, t.ID, ut, n, c.ID)
		}
		rest := w.TroopsOf(old, t.ID)
		if rest.Total() == 0 {
			continue
		}
		if dst := NearestSafeTile(w, old, t.ID, rest.Types()); dst != 0 {
			w.transferUnits(old, t.ID, dst, rest)
		} else if w.TroopsOf(rebel.ID, t.ID).Total() > 0 {
			run.joinBattlefield(t.ID, rebel.ID, []PlayerID{old}, "")
		}
	}
	run.globalNews(NewsSecession, fmt.Sprintf("%s rose against %s and declared independence", c.Name, oldName),
		map[string]any{"city": c.ID, "from": old, "rebel": rebel.ID})
}

// build queues one level of a building.
func (run *phaseRun) build(p PlayerID, a BuildAction) error {
	w := run.w
	c, err := ownedCity(w, p, a.City)
	if err != nil {
		return err
	}
	if !a.Building.Valid() {
		return fmt.Errorf("%w: building %q", ErrInvalidAction, a.Building)
	}
	if len(c.BuildQueue) >= maxBuildQueue {
		return ErrQueueFull
	}
	next := c.BuildingLevel(a.Building) + 1
	if b := c.Buildings[a.Building]; b != nil {
		next = b.Level + 1
	}
	for _, o := range c.BuildQueue {
		if o.Kind == a.Building {
			next++
		}
	}
	if next > maxBuildingLevel {
		return ErrMaxLevel
	}
	cost := a.Building.Cost() * next
	pl := w.Player(p)
	if pl.Gold < cost {
		return fmt.Errorf("%w: %s costs %s", ErrInsufficientGold, a.Building, humanize.Comma(int64(cost)))
	}
	pl.Gold -= cost
	c.BuildQueue = append(c.BuildQueue, BuildOrder{Kind: a.Building, TurnsLeft: buildingTable[a.Building].turns})
	return nil
}

// recruit trains units in a city. Spies go through RecruitSpy.
func (run *phaseRun) recruit(p PlayerID, a RecruitAction) error {
	w := run.w
	if a.Unit == Spy {
		_, err := RecruitSpy(w, p, a.City)
		return err
	}
	c, err := ownedCity(w, p, a.City)
	if err != nil {
		return err
	}
	if !a.Unit.Fights() || a.Count <= 0 {
		return fmt.Errorf("%w: recruit %d %q", ErrInvalidAction, a.Count, a.Unit)
	}
	switch a.Unit {
	case Cavalry, Siege:
		if c.BuildingLevel(Barracks) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingBuilding, Barracks)
		}
	case Navy:
		if c.BuildingLevel(Harbor) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingBuilding, Harbor)
		}
	}
	tile := c.Center
	if center := w.Tile(c.Center); center == nil || !a.Unit.CanEnter(center.Terrain) {
		tile = 0
		for _, t := range w.ClusterTiles(c) {
			if t.City == c.ID && a.Unit.CanEnter(t.Terrain) {
				tile = t.ID
				break
			}
		}
		if tile == 0 {
			return fmt.Errorf("%w: no tile for %s near %s", ErrInvalidTarget, a.Unit, c.Name)
		}
	}
	cost := a.Unit.Cost() * a.Count
	pl := w.Player(p)
	if pl.Gold < cost {
		return fmt.Errorf("%w: %s costs %s", ErrInsufficientGold, a.Unit, humanize.Comma(int64(cost)))
	}
	if c.Population <= a.Count {
		return fmt.Errorf("%w: %s lacks recruits", ErrInvalidAction, c.Name)
	}
	pl.Gold -= cost
	c.Population -= a.Count / 2
	w.AddUnits(p, tile, a.Unit, a.Count, c.ID)
	return nil
}

// setTax sets one city's rate, or every city's when a.City is 0.
func (run *phaseRun) setTax(p PlayerID, a TaxAction) error {
	if a.Rate < 0 || a.Rate > MaxTaxRate {
		return fmt.Errorf("%w: %.2f", ErrInvalidTaxRate, a.Rate)
	}
	if a.City == 0 {
		for _, c := range run.w.CitiesOf(p) {
			c.TaxRate = a.Rate
		}
		return nil
	}
	c, err := ownedCity(run.w, p, a.City)
	if err != nil {
		return err
	}
	c.TaxRate = a.Rate
	return nil
}

// inciteCivilWar stirs a foreign city where p has a living spy.
func (run *phaseRun) inciteCivilWar(p PlayerID, a CivilWarAction) error {
	w := run.w
	c := w.City(a.City)
	if c == nil {
		return ErrUnknownCity
	}
	if c.Owner == 0 || c.Owner == p {
		return fmt.Errorf("%w: not a foreign city", ErrInvalidTarget)
	}
	hasSpy := false
	for _, s := range w.SpiesOf(p) {
		if t := w.Tile(s.Tile); t != nil && t.City == c.ID {
			hasSpy = true
			break
		}
	}
	if !hasSpy {
		return fmt.Errorf("%w: no agent inside %s", ErrInvalidTarget, c.Name)
	}
	pl := w.Player(p)
	if pl.Gold < CivilWarCost {
		return fmt.Errorf("%w: incitement costs %d", ErrInsufficientGold, CivilWarCost)
	}
	pl.Gold -= CivilWarCost
	c.addHappiness(-15)
	c.Incited = true
	run.privateNews(NewsUnrest, []PlayerID{p},
		fmt.Sprintf("agitators are stirring revolt in %s", c.Name), map[string]any{"city": c.ID})
	run.privateNews(NewsUnrest, []PlayerID{c.Owner},
		fmt.Sprintf("foreign agitators are stirring revolt in %s", c.Name), map[string]any{"city": c.ID})
	return nil
}

func ownedCity(w *World, p PlayerID, id CityID) (*City, error) {
	c := w.City(id)
	if c == nil {
		return nil, ErrUnknownCity
	}
	if c.Owner != p {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, c.Name)
	}
	return c, nil
}
