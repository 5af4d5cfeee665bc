package domain

import "time"

// MatchResult is the persisted outcome of a decided PvP game.
type MatchResult struct {
	ID       int64
	Winner   string
	Loser    string
	PlayedAt time.Time
}

// Friend is an entry of a user's friend list.
type Friend struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// Profile is the subset of the account record the game server reads.
type Profile struct {
	Login string
	Name  string
}
