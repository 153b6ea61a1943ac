// Package chessdto holds the JSON shapes exchanged with clients over REST and
// the live websocket session.
package chessdto

// CommandType selects the live-session action.
type CommandType string

const (
	CommandConnect  CommandType = "CONNECT"
	CommandMakeMove CommandType = "MAKE_MOVE"
	CommandLeave    CommandType = "LEAVE"
	CommandResign   CommandType = "RESIGN"
)

// Command is one inbound websocket frame. Move is set only for MAKE_MOVE.
type Command struct {
	CommandType CommandType `json:"commandType"`
	AuthToken   string      `json:"authToken"`
	GameID      int         `json:"gameID"`
	Move        *Move       `json:"move,omitempty"`
}

// Position is 1-indexed; row 1 is white's back rank, col 1 the a-file.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move carries an optional promotion piece name (QUEEN, ROOK, BISHOP, KNIGHT).
type Move struct {
	StartPosition  Position `json:"startPosition"`
	EndPosition    Position `json:"endPosition"`
	PromotionPiece *string  `json:"promotionPiece"`
}
