package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MessageTextLimit is the maximum length of a text message in characters.
const MessageTextLimit = 4096

// Format formats user information for display, including their username if available.
func (u *User) Format() string {
	if u == nil {
		return "Unknown"
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		if name != "" {
			name = fmt.Sprintf("%s (@%s)", name, u.Username)
		} else {
			name = "@" + u.Username
		}
	}
	if name == "" {
		name = fmt.Sprintf("ID:%d", u.ID)
	}
	return name
}

// BestPhoto returns the largest size of an attached photo, or nil.
func (m *Message) BestPhoto() *PhotoSize {
	if len(m.Photo) == 0 {
		return nil
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return &best
}

// TruncateText cuts text to at most limit characters, marking the cut with an ellipsis.
// Error texts from external tools can be arbitrarily long.
func TruncateText(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
