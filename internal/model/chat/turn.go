package chat

import "time"

// Turn is one user or assistant message in a session's history.
type Turn struct {
	Text           string    `json:"text"`
	IsUser         bool      `json:"isUser"`
	ScreenshotPath string    `json:"screenshotPath,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserTurn builds a turn authored by the user.
func UserTurn(text string) Turn {
	return Turn{Text: text, IsUser: true}
}

// AssistantTurn builds a turn authored by the model.
func AssistantTurn(text string) Turn {
	return Turn{Text: text}
}
