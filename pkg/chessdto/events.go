package chessdto

// ServerMessageType tags an outbound websocket frame.
type ServerMessageType string

const (
	MessageLoadGame     ServerMessageType = "LOAD_GAME"
	MessageNotification ServerMessageType = "NOTIFICATION"
	MessageError        ServerMessageType = "ERROR"
)

// Event is one outbound frame. Game is set for LOAD_GAME, Message for
// NOTIFICATION and ErrorMessage for ERROR.
type Event struct {
	ServerMessageType ServerMessageType `json:"serverMessageType"`
	Game              *GameSnapshot     `json:"game,omitempty"`
	Message           string            `json:"message,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
}

// GameSnapshot is the full state a client needs to draw the board. Board holds
// eight rank strings, rank 8 first, FEN letters with '.' for empty squares.
type GameSnapshot struct {
	GameID        int      `json:"gameID"`
	GameName      string   `json:"gameName"`
	WhiteUsername string   `json:"whiteUsername,omitempty"`
	BlackUsername string   `json:"blackUsername,omitempty"`
	Turn          string   `json:"turn"`
	GameOver      bool     `json:"gameOver"`
	Board         []string `json:"board"`
	Check         bool     `json:"check"`
	Checkmate     bool     `json:"checkmate"`
	Stalemate     bool     `json:"stalemate"`
}

func LoadGame(s *GameSnapshot) Event { return Event{ServerMessageType: MessageLoadGame, Game: s} }

func Notification(msg string) Event { return Event{ServerMessageType: MessageNotification, Message: msg} }

func Error(msg string) Event { return Event{ServerMessageType: MessageError, ErrorMessage: msg} }
