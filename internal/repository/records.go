package repository

import (
	"encoding/json"
	"fmt"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// Kind names an entity table of the world.
type Kind string

const (
	KindTile        Kind = "tile"
	KindUnit        Kind = "unit"
	KindCity        Kind = "city"
	KindPlayer      Kind = "player"
	KindRelation    Kind = "relation"
	KindTrade       Kind = "trade"
	KindSpy         Kind = "spy"
	KindBattlefield Kind = "battlefield"
	KindEngagement  Kind = "engagement"
	KindAutoMove    Kind = "automove"
)

// Record is one persisted entity. Seq keeps the in-memory order of its kind.
type Record struct {
	Kind Kind            `db:"kind"`
	Seq  int             `db:"seq"`
	Data json.RawMessage `db:"data"`
}

// Flatten encodes every entity of w as records, kind by kind.
func Flatten(w *realm.World) ([]Record, error) {
	var out []Record
	add := func(kind Kind, n int, at func(i int) any) error {
		for i := 0; i < n; i++ {
			data, err := json.Marshal(at(i))
			if err != nil {
				return fmt.Errorf("encode %s %d: %w", kind, i, err)
			}
			out = append(out, Record{Kind: kind, Seq: i, Data: data})
		}
		return nil
	}
	steps := []struct {
		kind Kind
		n    int
		at   func(i int) any
	}{
		{KindTile, len(w.Tiles), func(i int) any { return w.Tiles[i] }},
		{KindUnit, len(w.Units), func(i int) any { return w.Units[i] }},
		{KindCity, len(w.Cities), func(i int) any { return w.Cities[i] }},
		{KindPlayer, len(w.Players), func(i int) any { return w.Players[i] }},
		{KindRelation, len(w.Relations), func(i int) any { return w.Relations[i] }},
		{KindTrade, len(w.Trades), func(i int) any { return w.Trades[i] }},
		{KindSpy, len(w.Spies), func(i int) any { return w.Spies[i] }},
		{KindBattlefield, len(w.Battlefields), func(i int) any { return w.Battlefields[i] }},
		{KindEngagement, len(w.Engagements), func(i int) any { return w.Engagements[i] }},
		{KindAutoMove, len(w.AutoMoves), func(i int) any { return w.AutoMoves[i] }},
	}
	for _, s := range steps {
		if err := add(s.kind, s.n, s.at); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Assemble rebuilds a world from its room row and entity records.
// Records must be sorted by seq within each kind.
func Assemble(room realm.Room, recs []Record) (*realm.World, error) {
	w := realm.NewWorld(room)
	for _, r := range recs {
		var err error
		switch r.Kind {
		case KindTile:
			err = decodeInto(r, &w.Tiles)
		case KindUnit:
			err = decodeInto(r, &w.Units)
		case KindCity:
			err = decodeInto(r, &w.Cities)
		case KindPlayer:
			err = decodeInto(r, &w.Players)
		case KindRelation:
			err = decodeInto(r, &w.Relations)
		case KindTrade:
			err = decodeInto(r, &w.Trades)
		case KindSpy:
			err = decodeInto(r, &w.Spies)
		case KindBattlefield:
			err = decodeInto(r, &w.Battlefields)
		case KindEngagement:
			err = decodeInto(r, &w.Engagements)
		case KindAutoMove:
			err = decodeInto(r, &w.AutoMoves)
		default:
			err = fmt.Errorf("unknown record kind %q", r.Kind)
		}
		if err != nil {
			return nil, err
		}
	}
	w.Reindex()
	return w, nil
}

func decodeInto[T any](r Record, dst *[]*T) error {
	v := new(T)
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s %d: %w", r.Kind, r.Seq, err)
	}
	*dst = append(*dst, v)
	return nil
}
