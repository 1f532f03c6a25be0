package domain

const (
	MaxSearchHits   = 4
	MaxPassages     = 3
	MaxHistoryTurns = 10
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one conversation turn.
type ChatMessage struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	IsStreaming bool   `json:"isStreaming,omitempty"`
}

// SearchHit is one keyword search result with its structured attributes.
type SearchHit struct {
	Title      string   `json:"title"`
	URI        string   `json:"uri"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Number     int      `json:"number,omitempty"`
	Types      []string `json:"types,omitempty"`
	Species    string   `json:"species,omitempty"`
	Generation string   `json:"generation,omitempty"`
	Category   string   `json:"category,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

// Passage is a short relevant text span from an indexed document.
type Passage struct {
	DocumentTitle string  `json:"document_title"`
	DocumentURI   string  `json:"document_uri,omitempty"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// ChatContext is the evidence gathered for a single answer. It is never persisted.
type ChatContext struct {
	SearchHits []SearchHit   `json:"search_hits"`
	Passages   []Passage     `json:"passages"`
	History    []ChatMessage `json:"history"`
	// Supplied is free-text context sent by the caller.
	Supplied string `json:"supplied,omitempty"`
}

// TopHit returns the highest ranked search hit.
func (c ChatContext) TopHit() (SearchHit, bool) {
	if len(c.SearchHits) == 0 {
		return SearchHit{}, false
	}
	return c.SearchHits[0], true
}

// TrimHistory keeps the most recent max user/assistant turns with content, in order.
func TrimHistory(history []ChatMessage, max int) []ChatMessage {
	valid := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		valid = append(valid, ChatMessage{Role: m.Role, Content: m.Content})
	}
	if max >= 0 && len(valid) > max {
		valid = valid[len(valid)-max:]
	}
	return valid
}
