package store

import (
	"fmt"
	"strings"
)

// UsersCollection is the collection holding one document per registered user.
const UsersCollection = "users"

// MessageParams are the path parameters of a message document.
type MessageParams struct {
	UserID    string
	ChatID    string
	MessageID string
}

// UserPath returns users/{id}.
func UserPath(id string) string {
	return UsersCollection + "/" + id
}

// MessagePath returns users/{user}/chats/{chat}/messages/{msg}.
func MessagePath(user, chat, msg string) string {
	return fmt.Sprintf("users/%s/chats/%s/messages/%s", user, chat, msg)
}

// Path returns the document path the parameters address.
func (p MessageParams) Path() string {
	return MessagePath(p.UserID, p.ChatID, p.MessageID)
}

// ParseMessagePath extracts the parameters of a message document path.
func ParseMessagePath(path string) (MessageParams, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 6 || parts[0] != UsersCollection || parts[2] != "chats" || parts[4] != "messages" {
		return MessageParams{}, false
	}
	for _, p := range parts {
		if p == "" {
			return MessageParams{}, false
		}
	}
	return MessageParams{UserID: parts[1], ChatID: parts[3], MessageID: parts[5]}, true
}

// splitPath returns the collection of a document path. Document paths have an
// even number of non-empty segments.
func splitPath(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), nil
}
