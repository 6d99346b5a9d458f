package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/strrl/castor/pkg/models"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message   string `json:"message"`
	Phase     string `json:"phase"`
	Project   string `json:"project"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type sessionRequest struct {
	Project string `json:"project"`
	Phase   string `json:"phase"`
}

type historyRequest struct {
	Project   string `json:"project"`
	Phase     string `json:"phase"`
	SessionID string `json:"session_id"`
}

type projectRequest struct {
	Project string `json:"project"`
}

type projectsResponse struct {
	Projects []string `json:"projects"`
}

type historiesResponse struct {
	Histories []string `json:"histories"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type rootResponse struct {
	Message string `json:"message"`
}

// storedPart is one element of a Gemini-style "parts" list
type storedPart struct {
	Text string `json:"text"`
}

// storedMessage is a message as the backend persists it. Besides the
// Gemini {role, parts} shape, plain {role, content} and {role, text}
// entries are accepted.
type storedMessage struct {
	Role    string       `json:"role"`
	Parts   []storedPart `json:"parts"`
	Content string       `json:"content"`
	Text    string       `json:"text"`
}

func (m storedMessage) toModel() models.Message {
	text := m.Text
	if len(m.Parts) > 0 {
		texts := make([]string, 0, len(m.Parts))
		for _, p := range m.Parts {
			texts = append(texts, p.Text)
		}
		text = strings.Join(texts, "")
	} else if m.Content != "" {
		text = m.Content
	}

	role := models.RoleModel
	if m.Role == string(models.RoleUser) {
		role = models.RoleUser
	}
	return models.NewMessage(role, text)
}

type historyResponse struct {
	Phase    string          `json:"phase"`
	Messages []storedMessage `json:"messages"`
}

// decodeHistory accepts either {phase, messages} or a bare message array
func decodeHistory(data []byte) (*models.History, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty history body")
	}

	var resp historyResponse
	if data[0] == '[' {
		if err := json.Unmarshal(data, &resp.Messages); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	history := &models.History{
		Phase:    resp.Phase,
		Messages: make([]models.Message, 0, len(resp.Messages)),
	}
	for _, m := range resp.Messages {
		history.Messages = append(history.Messages, m.toModel())
	}
	return history, nil
}
