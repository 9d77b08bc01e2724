package reducer

import (
	"maps"
	"slices"

	"github.com/roach88/scorelog/internal/model"
)

// Game statuses.
const (
	StatusPending    = ""
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
)

// State is the derived game state. It is a value: handlers return a new
// State and never mutate maps or slices reachable from their input.
type State struct {
	Status   string              `json:"status"`
	Period   int64               `json:"period"`
	Scores   map[string]int64    `json:"scores"`
	Counters map[string]int64    `json:"counters"`
	Roster   map[string][]string `json:"roster"`
	Notes    []string            `json:"notes"`

	// Applied counts the generative actions that took effect.
	Applied int `json:"applied"`
}

// Initial returns the state of an empty log.
func Initial() State {
	return State{
		Scores:   map[string]int64{},
		Counters: map[string]int64{},
		Roster:   map[string][]string{},
		Notes:    []string{},
	}
}

func (s State) addScore(team string, points int64) State {
	s.Scores = maps.Clone(s.Scores)
	if s.Scores == nil {
		s.Scores = map[string]int64{}
	}
	s.Scores[team] += points
	return s
}

func (s State) setCounter(name string, v int64) State {
	s.Counters = maps.Clone(s.Counters)
	if s.Counters == nil {
		s.Counters = map[string]int64{}
	}
	s.Counters[name] = v
	return s
}

func (s State) setRoster(team string, players []string) State {
	s.Roster = maps.Clone(s.Roster)
	if s.Roster == nil {
		s.Roster = map[string][]string{}
	}
	if len(players) == 0 {
		delete(s.Roster, team)
		return s
	}
	s.Roster[team] = players
	return s
}

func (s State) addNote(text string) State {
	s.Notes = append(slices.Clip(s.Notes), text)
	return s
}

// Value converts the state into a model.Object for canonical encoding.
func (s State) Value() model.Object {
	scores := make(model.Object, len(s.Scores))
	for k, v := range s.Scores {
		scores[k] = model.Int(v)
	}
	counters := make(model.Object, len(s.Counters))
	for k, v := range s.Counters {
		counters[k] = model.Int(v)
	}
	roster := make(model.Object, len(s.Roster))
	for team, players := range s.Roster {
		list := make(model.List, len(players))
		for i, p := range players {
			list[i] = model.String(p)
		}
		roster[team] = list
	}
	notes := make(model.List, len(s.Notes))
	for i, n := range s.Notes {
		notes[i] = model.String(n)
	}
	return model.Object{
		"status":   model.String(s.Status),
		"period":   model.Int(s.Period),
		"scores":   scores,
		"counters": counters,
		"roster":   roster,
		"notes":    notes,
		"applied":  model.Int(int64(s.Applied)),
	}
}

// Digest returns the SHA-256 digest of the canonical state encoding.
func (s State) Digest() string {
	// State only holds strings and integers, so encoding cannot fail.
	d, _ := model.Digest(model.DomainState, s.Value())
	return d
}
