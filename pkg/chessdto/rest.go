package chessdto

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse answers register and login.
type AuthResponse struct {
	Username  string `json:"username"`
	AuthToken string `json:"authToken"`
}

type CreateGameRequest struct {
	GameName string `json:"gameName"`
}

type CreateGameResponse struct {
	GameID int `json:"gameID"`
}

// JoinGameRequest binds the caller to a color. PlayerColor is WHITE or BLACK.
type JoinGameRequest struct {
	PlayerColor string `json:"playerColor"`
	GameID      int    `json:"gameID"`
}

type GameSummary struct {
	GameID        int    `json:"gameID"`
	WhiteUsername string `json:"whiteUsername,omitempty"`
	BlackUsername string `json:"blackUsername,omitempty"`
	GameName      string `json:"gameName"`
}

type ListGamesResponse struct {
	Games []GameSummary `json:"games"`
}

// ErrorResponse is the body of every non-2xx REST reply.
type ErrorResponse struct {
	Message string `json:"message"`
}
