package reducer

import (
	"errors"
	"slices"

	"github.com/roach88/scorelog/internal/model"
)

// Built-in generative action types.
const (
	TypeGameStart     model.ActionType = "game.start"
	TypeGameEnd       model.ActionType = "game.end"
	TypePeriodAdvance model.ActionType = "period.advance"
	TypeScoreAdd      model.ActionType = "score.add"
	TypeCounterSet    model.ActionType = "counter.set"
	TypeCounterAdd    model.ActionType = "counter.add"
	TypeRosterAdd     model.ActionType = "roster.add"
	TypeRosterRemove  model.ActionType = "roster.remove"
	TypeNoteAdd       model.ActionType = "note.add"
)

// ScorePayload is the payload of score.add.
type ScorePayload struct {
	Team   string `json:"team"`
	Points int64  `json:"points"`
}

// CounterPayload is the payload of counter.set and counter.add.
type CounterPayload struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// RosterPayload is the payload of roster.add and roster.remove.
type RosterPayload struct {
	Team   string `json:"team"`
	Player string `json:"player"`
}

// NotePayload is the payload of note.add.
type NotePayload struct {
	Text string `json:"text"`
}

type empty struct{}

var (
	errMissingTeam   = errors.New("team is required")
	errMissingName   = errors.New("counter name is required")
	errMissingPlayer = errors.New("player is required")
	errNotOnRoster   = errors.New("player is not on the roster")
	errOnRoster      = errors.New("player is already on the roster")
)

// DefaultRegistry returns a registry with every built-in handler.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	MustHandle(r, TypeGameStart, func(s State, _ empty) (State, error) {
		s.Status = StatusInProgress
		if s.Period == 0 {
			s.Period = 1
		}
		return s, nil
	})
	MustHandle(r, TypeGameEnd, func(s State, _ empty) (State, error) {
		s.Status = StatusFinal
		return s, nil
	})
	MustHandle(r, TypePeriodAdvance, func(s State, _ empty) (State, error) {
		s.Period++
		return s, nil
	})
	MustHandle(r, TypeScoreAdd, func(s State, p ScorePayload) (State, error) {
		if p.Team == "" {
			return s, errMissingTeam
		}
		return s.addScore(p.Team, p.Points), nil
	})
	MustHandle(r, TypeCounterSet, func(s State, p CounterPayload) (State, error) {
		if p.Name == "" {
			return s, errMissingName
		}
		return s.setCounter(p.Name, p.Value), nil
	})
	MustHandle(r, TypeCounterAdd, func(s State, p CounterPayload) (State, error) {
		if p.Name == "" {
			return s, errMissingName
		}
		return s.setCounter(p.Name, s.Counters[p.Name]+p.Value), nil
	})
	MustHandle(r, TypeRosterAdd, func(s State, p RosterPayload) (State, error) {
		if p.Team == "" {
			return s, errMissingTeam
		}
		if p.Player == "" {
			return s, errMissingPlayer
		}
		players := s.Roster[p.Team]
		if slices.Contains(players, p.Player) {
			return s, errOnRoster
		}
		return s.setRoster(p.Team, append(slices.Clip(players), p.Player)), nil
	})
	MustHandle(r, TypeRosterRemove, func(s State, p RosterPayload) (State, error) {
		players := s.Roster[p.Team]
		i := slices.Index(players, p.Player)
		if i < 0 {
			return s, errNotOnRoster
		}
		return s.setRoster(p.Team, slices.Delete(slices.Clone(players), i, i+1)), nil
	})
	MustHandle(r, TypeNoteAdd, func(s State, p NotePayload) (State, error) {
		return s.addNote(p.Text), nil
	})
	return r
}
