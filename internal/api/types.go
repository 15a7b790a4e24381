package api

// Wire types shared between the server and the barmeterctl client.

type LevelRequest struct {
	Value float64 `json:"value"`
}

type LevelResponse struct {
	Delta    float64 `json:"delta"`
	Accepted bool    `json:"accepted"`
}

type BrightnessRequest struct {
	Level int `json:"level"`
}

type BlinkRequest struct {
	Rate int `json:"rate"`
}

type WarningsRequest struct {
	Warn int `json:"warn"`
	Crit int `json:"crit"`
}

type NoiseRequest struct {
	Value   float64 `json:"value"`
	Default bool    `json:"default"`
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Advice []string `json:"advice,omitempty"`
}
