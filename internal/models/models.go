package models

import "time"

// ChatState is the per-chat conversation state of the check-in bot.
type ChatState struct {
	ChatID    int64                  `json:"chat_id"`
	Step      string                 `json:"step"`
	TempData  map[string]interface{} `json:"temp_data,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// GetString returns the string stored under key; a nil state reads as empty.
func (s *ChatState) GetString(key string) string {
	if s == nil || s.TempData == nil {
		return ""
	}
	str, _ := s.TempData[key].(string)
	return str
}

func (s *ChatState) Set(key string, value interface{}) {
	if s.TempData == nil {
		s.TempData = make(map[string]interface{})
	}
	s.TempData[key] = value
}
