package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/bot"
	redisrepo "github.com/laby37200-cell/civilization-forge-sub000/internal/repository/redis"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository/sqlite"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/sandbox"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

var (
	numGames  int
	workers   int
	maxTurns  int
	radius    int
	seed      int64
	nationCfg string
	dbPath    string
	redisURL  string
	jsonOut   bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Play bot-only rooms to completion and print standings",
	Long: `match generates rooms whose nations are all played by the bot, runs
every turn through the turn service and prints the final standings.
Nations are given as difficulties, e.g. --nations hard,normal,easy.`,
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.IntVarP(&numGames, "games", "n", 1, "number of rooms to play")
	f.IntVar(&workers, "workers", 1, "rooms played in parallel")
	f.IntVar(&maxTurns, "turns", 30, "turn limit of each room")
	f.IntVar(&radius, "radius", 10, "map radius")
	f.Int64Var(&seed, "seed", 0, "base seed (0 = random)")
	f.StringVar(&nationCfg, "nations", "hard,normal,normal,easy", "comma separated bot difficulties")
	f.StringVar(&dbPath, "db", "", "SQLite file (defaults to SANDBOX_DB)")
	f.StringVar(&redisURL, "redis", "", "Redis URL (empty runs an embedded server)")
	f.BoolVar(&jsonOut, "json", false, "output results as JSON")
}

// Standing is one nation's final position in a room.
type Standing struct {
	Name       string           `json:"name"`
	Difficulty realm.Difficulty `json:"difficulty"`
	Score      int              `json:"score"`
	Cities     int              `json:"cities"`
	Troops     int              `json:"troops"`
	Gold       int              `json:"gold"`
	Eliminated bool             `json:"eliminated"`
}

// MatchResult summarizes one finished room.
type MatchResult struct {
	RoomID    string        `json:"roomId"`
	Seed      int64         `json:"seed"`
	Turns     int           `json:"turns"`
	Winner    string        `json:"winner,omitempty"`
	Condition string        `json:"condition,omitempty"`
	Standings []Standing    `json:"standings"`
	Elapsed   time.Duration `json:"elapsed"`
}

func parseNations(s string) ([]sandbox.Nation, error) {
	names := []string{"Aria", "Boros", "Cyra", "Dovan", "Eska", "Fenwick", "Galt", "Hesper"}
	parts := strings.Split(s, ",")
	if len(parts) > len(names) {
		return nil, fmt.Errorf("at most %d nations", len(names))
	}
	out := make([]sandbox.Nation, 0, len(parts))
	for i, p := range parts {
		d := realm.Difficulty(strings.TrimSpace(p))
		switch d {
		case realm.Easy, realm.Normal, realm.Hard:
		default:
			return nil, fmt.Errorf("unknown difficulty %q", p)
		}
		out = append(out, sandbox.Nation{Name: names[i], IsAI: true, Difficulty: d})
	}
	return out, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	nations, err := parseNations(nationCfg)
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath = cfg.SandboxDB
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if redisURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded redis: %w", err)
		}
		defer mr.Close()
		redisURL = "redis://" + mr.Addr()
	}
	rc, err := redisrepo.Connect(ctx, redisURL, redisrepo.Options{PoolSize: max(workers, 1) * 4})
	if err != nil {
		return err
	}
	defer rc.Close()

	turns := service.NewTurnService(service.TurnDeps{
		Worlds:  store,
		News:    store,
		Queue:   rc,
		Clock:   rc,
		Memory:  rc,
		Engine:  realm.NewEngine(realm.WithLogger(log.Logger)),
		Planner: bot.NewPlanner(rc),
	})

	results := make([]*MatchResult, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	errCount := 0

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			gen := sandbox.DefaultGenConfig()
			gen.Radius = radius
			gen.Seed = seed + int64(idx)
			gen.Nations = nations
			res, err := playRoom(ctx, store, turns, gen, fmt.Sprintf("turnsim-%d", idx+1))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Match failed")
				errCount++
				return
			}
			results[idx] = res
			log.Info().Int("game", idx+1).Str("winner", res.Winner).Int("turns", res.Turns).Msg("Match completed")
		}(i)
	}
	wg.Wait()

	if jsonOut {
		return printJSON(results, errCount)
	}
	printSummary(results, errCount)
	return nil
}

// playRoom creates one bot room and runs turns until it ends.
func playRoom(ctx context.Context, store *sqlite.Store, turns *service.TurnService, gen sandbox.GenConfig, name string) (*MatchResult, error) {
	start := time.Now()
	w, err := sandbox.Generate(uuid.NewString(), name, gen)
	if err != nil {
		return nil, err
	}
	w.Room.Status = realm.RoomPlaying
	w.Room.Config.MaxTurns = maxTurns
	if err := store.CreateRoom(ctx, w); err != nil {
		return nil, err
	}
	roomID := w.Room.ID

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := turns.RunTurn(ctx, roomID); err != nil {
			return nil, fmt.Errorf("room %s: %w", roomID, err)
		}
		if w, err = store.LoadWorld(ctx, roomID); err != nil {
			return nil, err
		}
		if w.Room.Status == realm.RoomEnded {
			break
		}
	}
	return summarize(w, gen.Seed, time.Since(start)), nil
}

func summarize(w *realm.World, seed int64, elapsed time.Duration) *MatchResult {
	res := &MatchResult{RoomID: w.Room.ID, Seed: seed, Turns: w.Room.Turn, Elapsed: elapsed}
	if v := w.Room.Victory; v != nil {
		res.Condition = string(v.Condition)
		if p := w.Player(v.Winner); p != nil {
			res.Winner = p.Name
		}
	}
	for _, p := range w.Players {
		res.Standings = append(res.Standings, Standing{
			Name:       p.Name,
			Difficulty: p.Difficulty,
			Score:      realm.Score(w, p.ID),
			Cities:     len(w.CitiesOf(p.ID)),
			Troops:     w.TotalTroops(p.ID),
			Gold:       p.Gold,
			Eliminated: p.Eliminated,
		})
	}
	sort.SliceStable(res.Standings, func(i, j int) bool { return res.Standings[i].Score > res.Standings[j].Score })
	return res
}

func printSummary(results []*MatchResult, errCount int) {
	completed := 0
	for _, r := range results {
		if r != nil {
			completed++
		}
	}
	fmt.Printf("\nResults (%d rooms, %d turn limit):\n", completed, maxTurns)
	if errCount > 0 {
		fmt.Printf("  (%d rooms failed)\n", errCount)
	}
	for i, r := range results {
		if r == nil {
			continue
		}
		winner := r.Winner
		if winner == "" {
			winner = "draw"
		}
		fmt.Printf("\nRoom %d (seed %d): %s by %s after %d turns in %s\n",
			i+1, r.Seed, winner, r.Condition, r.Turns, r.Elapsed.Round(time.Millisecond))
		for rank, s := range r.Standings {
			status := ""
			if s.Eliminated {
				status = " (eliminated)"
			}
			fmt.Printf("  %-5s %-8s (%s): score %s, %d cities, %s troops, %s gold%s\n",
				humanize.Ordinal(rank+1), s.Name, s.Difficulty, humanize.Comma(int64(s.Score)),
				s.Cities, humanize.Comma(int64(s.Troops)), humanize.Comma(int64(s.Gold)), status)
		}
	}
}

func printJSON(results []*MatchResult, errCount int) error {
	out := struct {
		Total   int            `json:"total"`
		Errors  int            `json:"errors"`
		Results []*MatchResult `json:"results"`
	}{
		Total:   len(results),
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
