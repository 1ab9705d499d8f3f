package realm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=realmmock/mock_realm.go -package=realmmock github.com/laby37200-cell/civilization-forge-sub000/pkg/realm StrategyJudge,Narrator,Planner

// StrategyJudge scores free-text battle strategies. Implementations may be
// slow or unavailable; the engine bounds every call and falls back.
type StrategyJudge interface {
	Judge(ctx context.Context, req JudgeRequest) (JudgeVerdict, error)
}

// Narrator turns an event into prose. Purely cosmetic.
type Narrator interface {
	Narrate(ctx context.Context, kind NewsKind, data map[string]any) (string, error)
}

// Planner chooses actions for an AI player during T-Start. It may also
// answer proposals addressed to the player directly on the world.
type Planner interface {
	PlanTurn(ctx context.Context, w *World, player PlayerID) []Action
}

// JudgeRequest is the battle context sent to the judge.
type JudgeRequest struct {
	Attacker         Troops  `json:"attacker"`
	Defender         Troops  `json:"defender"`
	AttackerStrategy string  `json:"attackerStrategy"`
	DefenderStrategy string  `json:"defenderStrategy"`
	Terrain          Terrain `json:"terrain"`
	IsCity           bool    `json:"isCity"`
	CityDefenseLevel int     `json:"cityDefenseLevel"`
}

// JudgeVerdict carries per-side strategy scores in [0,30].
type JudgeVerdict struct {
	AttackerScore int    `json:"attackerScore"`
	DefenderScore int    `json:"defenderScore"`
	Narrative     string `json:"narrative"`
}

// Engine runs the three turn phases against a loaded World.
type Engine struct {
	judge        StrategyJudge
	narrator     Narrator
	judgeTimeout time.Duration
	log          zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithJudge sets the strategy judge.
func WithJudge(j StrategyJudge) Option {
	return func(e *Engine) { e.judge = j }
}

// WithNarrator sets the narrative generator.
func WithNarrator(n Narrator) Option {
	return func(e *Engine) { e.narrator = n }
}

// WithJudgeTimeout overrides the room's judge timeout.
func WithJudgeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.judgeTimeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an Engine. With no judge, strategy scores fall back.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Delta is the change of one player's holdings over a phase.
type Delta struct {
	Gold   int `json:"gold"`
	Food   int `json:"food"`
	Troops int `json:"troops"`
	Cities int `json:"cities"`
}

// PlannedAction is an action produced by the AI during T-Start.
type PlannedAction struct {
	Player PlayerID `json:"player"`
	Action Action   `json:"action"`
}

// PhaseResult is what one phase hands back to the host.
type PhaseResult struct {
	RoomID  string              `json:"roomId"`
	Turn    int                 `json:"turn"`
	Phase   Phase               `json:"phase"`
	News    []News              `json:"news"`
	Battles []BattleOutcome     `json:"battles,omitempty"`
	Deltas  map[PlayerID]Delta  `json:"deltas"`
	Victory *Victory            `json:"victory,omitempty"`
	Planned []PlannedAction     `json:"-"`
	Actions []SubmissionOutcome `json:"actions,omitempty"`
}

// phaseRun is the state of one phase invocation.
type phaseRun struct {
	ctx     context.Context
	e       *Engine
	w       *World
	phase   Phase
	rng     *rand.Rand
	res     *PhaseResult
	log     zerolog.Logger
	narrate func(NewsKind, News) string
}

type holdings struct{ gold, food, troops, cities int }

func (e *Engine) begin(ctx context.Context, w *World, phase Phase) (*phaseRun, map[PlayerID]holdings, error) {
	if w.Room.Status != RoomPlaying {
		return nil, nil, ErrRoomNotPlaying
	}
	if !phaseFollows(w.Room.Phase, phase) {
		return nil, nil, fmt.Errorf("%w: %s after %s", ErrPhaseOrder, phase, w.Room.Phase)
	}
	w.Reindex()
	run := &phaseRun{
		ctx:   ctx,
		e:     e,
		w:     w,
		phase: phase,
		rng:   w.phaseRand(phase),
		res: &PhaseResult{
			RoomID: w.Room.ID,
			Turn:   w.Room.Turn,
			Phase:  phase,
			Deltas: make(map[PlayerID]Delta),
		},
		log: e.log.With().Str("roomId", w.Room.ID).Int("turn", w.Room.Turn).Str("phase", string(phase)).Logger(),
	}
	if e.narrator != nil {
		run.narrate = run.narrateNews
	}
	return run, snapshotHoldings(w), nil
}

func (run *phaseRun) finish(before map[PlayerID]holdings) *PhaseResult {
	after := snapshotHoldings(run.w)
	for id, a := range after {
		b := before[id]
		d := Delta{Gold: a.gold - b.gold, Food: a.food - b.food, Troops: a.troops - b.troops, Cities: a.cities - b.cities}
		if d != (Delta{}) {
			run.res.Deltas[id] = d
		}
	}
	run.w.Room.Phase = run.phase
	return run.res
}

func phaseFollows(last, next Phase) bool {
	switch next {
	case PhaseTurnStart:
		return last == PhaseNone || last == PhaseResolution
	case PhaseActions:
		return last == PhaseTurnStart
	case PhaseResolution:
		return last == PhaseActions
	}
	return false
}

func snapshotHoldings(w *World) map[PlayerID]holdings {
	out := make(map[PlayerID]holdings, len(w.Players))
	for _, p := range w.Players {
		out[p.ID] = holdings{gold: p.Gold, food: p.Food, troops: w.TotalTroops(p.ID), cities: len(w.CitiesOf(p.ID))}
	}
	return out
}

// TurnStart advances standing orders, runs the AI planner for every AI
// player and grows espionage power.
func (e *Engine) TurnStart(ctx context.Context, w *World, planner Planner) (*PhaseResult, error) {
	run, before, err := e.begin(ctx, w, PhaseTurnStart)
	if err != nil {
		return nil, err
	}
	run.advanceAutoMoves()
	if planner != nil {
		for _, p := range w.ActivePlayers() {
			if !p.IsAI {
				continue
			}
			for _, a := range run.planSafely(planner, p.ID) {
				run.res.Planned = append(run.res.Planned, PlannedAction{Player: p.ID, Action: a})
			}
		}
	}
	run.growEspionagePower()
	run.log.Info().Int("planned", len(run.res.Planned)).Int("news", len(run.res.News)).Msg("Turn start complete")
	return run.finish(before), nil
}

func (run *phaseRun) planSafely(planner Planner, p PlayerID) (actions []Action) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error().Int64("playerId", int64(p)).Interface("panic", r).Msg("AI planner panicked")
			actions = nil
		}
	}()
	return planner.PlanTurn(run.ctx, run.w, p)
}

// Actions applies unresolved submissions in type order, one outcome each.
func (e *Engine) Actions(ctx context.Context, w *World, subs []Submission) (*PhaseResult, error) {
	run, before, err := e.begin(ctx, w, PhaseActions)
	if err != nil {
		return nil, err
	}
	for _, s := range orderSubmissions(subs) {
		run.res.Actions = append(run.res.Actions, run.applySubmission(s))
	}
	run.recomputeFog()
	run.log.Info().Int("actions", len(run.res.Actions)).Msg("Actions phase complete")
	return run.finish(before), nil
}

// Resolution runs the economy, settlement, diplomacy, espionage and battle
// steps, checks victory and advances the turn counter.
func (e *Engine) Resolution(ctx context.Context, w *World) (*PhaseResult, error) {
	run, before, err := e.begin(ctx, w, PhaseResolution)
	if err != nil {
		return nil, err
	}
	steps := []struct {
		name string
		fn   func()
	}{
		{"production", run.produce},
		{"build_queue", run.advanceBuildQueues},
		{"trade_settlement", run.settleTrades},
		{"market_drift", run.driftMarket},
		{"growth", run.growCities},
		{"repair", run.repairBuildings},
		{"secession", run.processSecession},
		{"diplomacy", run.applyDiplomacy},
		{"espionage", run.resolveEspionage},
		{"battlefields", run.resolveBattlefields},
		{"engagements", run.expireEngagements},
		{"victory", run.checkVictory},
		{"fog", run.recomputeFog},
	}
	for _, s := range steps {
		s.fn()
		w.Reindex()
	}
	res := run.finish(before)
	if w.Room.Status == RoomPlaying {
		w.Room.Turn++
	}
	run.log.Info().Int("battles", len(res.Battles)).Bool("victory", res.Victory != nil).Msg("Resolution complete")
	return res, nil
}

// callJudge asks the judge with a hard deadline. Any error, timeout or
// panic yields ok=false.
func (run *phaseRun) callJudge(req JudgeRequest) (JudgeVerdict, bool) {
	if run.e.judge == nil {
		return JudgeVerdict{}, false
	}
	ctx, cancel := context.WithTimeout(run.ctx, run.judgeTimeout())
	defer cancel()

	type reply struct {
		v   JudgeVerdict
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("judge panic: %v", r)}
			}
		}()
		v, err := run.e.judge.Judge(ctx, req)
		ch <- reply{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			run.log.Warn().Err(r.err).Msg("Strategy judge failed, using fallback")
			return JudgeVerdict{}, false
		}
		return r.v, true
	case <-ctx.Done():
		run.log.Warn().Err(ctx.Err()).Msg("Strategy judge timed out, using fallback")
		return JudgeVerdict{}, false
	}
}

func (run *phaseRun) judgeTimeout() time.Duration {
	if run.e.judgeTimeout > 0 {
		return run.e.judgeTimeout
	}
	if d := run.w.Room.Config.JudgeTimeout; d > 0 {
		return d
	}
	return 3 * time.Second
}

var narratedKinds = map[NewsKind]bool{
	NewsBattle:    true,
	NewsSecession: true,
	NewsVictory:   true,
}

// narrateNews asks the narrator for prose; empty means keep the plain text.
func (run *phaseRun) narrateNews(kind NewsKind, n News) string {
	if !narratedKinds[kind] {
		return ""
	}
	ctx, cancel := context.WithTimeout(run.ctx, run.judgeTimeout())
	defer cancel()
	data := map[string]any{"text": n.Text, "turn": n.Turn}
	for k, v := range n.Data {
		data[k] = v
	}
	ch := make(chan string, 1)
	go func() {
		defer func() {
			if recover() != nil {
				ch <- ""
			}
		}()
		s, err := run.e.narrator.Narrate(ctx, kind, data)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				run.log.Debug().Err(err).Msg("Narrator failed")
			}
			s = ""
		}
		ch <- s
	}()
	select {
	case s := <-ch:
		return s
	case <-ctx.Done():
		return ""
	}
}
