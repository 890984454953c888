package model

import (
	"encoding/json"
	"time"
)

// Fragment is one inbound piece of a streamed assistant reply, delivered as
// an ai_response_chunk event. CompleteText, when non-empty, is an
// authoritative full-text replacement; Chunk appends.
type Fragment struct {
	Chunk        string `json:"chunk,omitempty"`
	CompleteText string `json:"complete_text,omitempty"`
	IsNewMessage bool   `json:"is_new_message"`
	IsComplete   bool   `json:"is_complete"`
}

// ActionType identifies a completed server-side action.
type ActionType string

const (
	ActionWebsiteOpened  ActionType = "website_opened"
	ActionMusicPlaying   ActionType = "music_playing"
	ActionWeatherFetched ActionType = "weather_fetched"
)

// Weather is the payload of a weather_fetched action.
type Weather struct {
	Temp     float64 `json:"temp"`
	Location string  `json:"location"`
}

// ActionEvent is an action_completed event from the server.
type ActionEvent struct {
	Type    ActionType `json:"type"`
	Weather *Weather   `json:"weather,omitempty"`
}

// OpenURLEvent is an open_url event from the server.
type OpenURLEvent struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// CommandRequest is a process_command message sent over the realtime channel.
type CommandRequest struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandResponse is the response of the HTTP fallback path.
type CommandResponse struct {
	Success  bool            `json:"success"`
	Response string          `json:"response"`
	Data     json.RawMessage `json:"data,omitempty"`
}
