package protocol

// WELCOME (server -> client), sent once the socket is upgraded.
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Shape           [3]int   `json:"shape"`
	Wrap            bool     `json:"wrap"`
	TileCount       int      `json:"tile_count"`
	CorpusDigest    string   `json:"corpus_digest"`
	Palette         []string `json:"palette"`
	MaxAttempts     int      `json:"max_attempts"`
}

// GENERATE (client -> server). Seed 0 lets the server pick one.
type GenerateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Seed            int64  `json:"seed,omitempty"`
}

// GRID (server -> client). Data holds the tile ids in layer order
// (x fastest, then z, then y) packed with Encoding; ids index Palette.
type GridMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	RunID           string `json:"run_id"`
	Seed            int64  `json:"seed"`
	Attempt         int    `json:"attempt"`
	Attempts        int    `json:"attempts"`
	Shape           [3]int `json:"shape"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
	DurationMS      int64  `json:"duration_ms"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(requestID, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	}
}
