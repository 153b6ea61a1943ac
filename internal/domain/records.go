package domain

import (
	"fmt"

	"github.com/park285/cheese-chess/internal/chess"
)

// Role is how a connected user relates to a game.
type Role string

const (
	RoleWhite    Role = "white"
	RoleBlack    Role = "black"
	RoleObserver Role = "observer"
)

// GameRecord is the authoritative per-game unit: participants plus state.
// An empty username means the color slot is free.
type GameRecord struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	WhiteUser string      `json:"white_username,omitempty"`
	BlackUser string      `json:"black_username,omitempty"`
	Game      *chess.Game `json:"game"`
}

// NewGameRecord builds an unjoined record holding a fresh game.
func NewGameRecord(id int, name string) *GameRecord {
	return &GameRecord{ID: id, Name: name, Game: chess.NewGame()}
}

// Clone returns a deep copy.
func (r *GameRecord) Clone() *GameRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Game != nil {
		c.Game = r.Game.Clone()
	}
	return &c
}

// Slot returns the username bound to color c.
func (r *GameRecord) Slot(c chess.Color) string {
	switch c {
	case chess.White:
		return r.WhiteUser
	case chess.Black:
		return r.BlackUser
	default:
		return ""
	}
}

// Bind claims color c for username. First writer wins; the incumbent
// rebinding its own slot is accepted.
func (r *GameRecord) Bind(c chess.Color, username string) error {
	var slot *string
	switch c {
	case chess.White:
		slot = &r.WhiteUser
	case chess.Black:
		slot = &r.BlackUser
	default:
		return fmt.Errorf("%w: unknown color", ErrInvalidRequest)
	}
	if *slot != "" && *slot != username {
		return fmt.Errorf("%w: %s is already playing %s", ErrAlreadyTaken, *slot, c)
	}
	*slot = username
	return nil
}

// Unbind clears every slot held by username and reports whether one was held.
func (r *GameRecord) Unbind(username string) bool {
	held := false
	if r.WhiteUser == username {
		r.WhiteUser = ""
		held = true
	}
	if r.BlackUser == username {
		r.BlackUser = ""
		held = true
	}
	return held
}

// ColorOf returns the color username plays, or NoColor for an observer.
// A user holding both slots is reported as the side to move.
func (r *GameRecord) ColorOf(username string) chess.Color {
	white, black := r.WhiteUser == username, r.BlackUser == username
	switch {
	case white && black:
		if r.Game != nil && r.Game.Turn() == chess.Black {
			return chess.Black
		}
		return chess.White
	case white:
		return chess.White
	case black:
		return chess.Black
	default:
		return chess.NoColor
	}
}

// RoleOf maps username to its connection role.
func (r *GameRecord) RoleOf(username string) Role {
	switch r.ColorOf(username) {
	case chess.White:
		return RoleWhite
	case chess.Black:
		return RoleBlack
	default:
		return RoleObserver
	}
}

// User is a registered account. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email"`
}

// AuthTicket ties an opaque token to the user it authenticates.
type AuthTicket struct {
	Token    string `json:"authToken"`
	Username string `json:"username"`
}
