// Package message models direct messages and their wire records.
package message

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// TimeLayout is the canonical encoding of timeSent.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrUnknownType is returned when a record's type tag has no variant.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned when a record is missing a field or has one of the wrong kind.
	ErrMalformed = errors.New("malformed message")
)

// Message is one copy of a direct message. Values are immutable; use
// WithStatus to derive a copy in another state.
type Message struct {
	ID       string
	Sender   string
	Receiver string
	Status   Status
	TimeSent time.Time
	Content  Content
}

// Type returns the variant tag of the content.
func (m Message) Type() Type {
	return m.Content.Type()
}

// WithStatus returns a copy of m in status s.
func (m Message) WithStatus(s Status) Message {
	m.Status = s
	return m
}

// Decode builds a Message from a stored record, dispatching on "type".
// Records must be in canonical form: timeSent formatted with TimeLayout in
// UTC and no empty caption key. Use CanonicalTime and DropEmptyCaption to
// normalize client input first.
func Decode(rec map[string]any) (Message, error) {
	tag, err := requiredString(rec, "type")
	if err != nil {
		return Message{}, err
	}

	var m Message
	if m.ID, err = requiredString(rec, "id"); err != nil {
		return Message{}, err
	}
	if m.Sender, err = requiredString(rec, "sender"); err != nil {
		return Message{}, err
	}
	if m.Receiver, err = requiredString(rec, "receiver"); err != nil {
		return Message{}, err
	}
	status, err := requiredString(rec, "status")
	if err != nil {
		return Message{}, err
	}
	if m.Status, err = ParseStatus(status); err != nil {
		return Message{}, err
	}
	if m.TimeSent, err = decodeTime(rec["timeSent"]); err != nil {
		return Message{}, err
	}
	if m.Content, err = decodeContent(Type(tag), rec); err != nil {
		return Message{}, err
	}
	return m, nil
}

func decodeContent(t Type, rec map[string]any) (Content, error) {
	switch t {
	case TypeText:
		body, err := requiredString(rec, "text")
		return Text{Body: body}, err
	case TypeImage:
		uri, err := presentString(rec, "imageUri")
		if err != nil {
			return nil, err
		}
		caption, err := decodeCaption(rec)
		return Image{URI: uri, Caption: caption}, err
	case TypeVideo:
		uri, err := presentString(rec, "videoUri")
		if err != nil {
			return nil, err
		}
		caption, err := decodeCaption(rec)
		return Video{URI: uri, Caption: caption}, err
	case TypeAudio:
		title, err := presentString(rec, "audioTitle")
		if err != nil {
			return nil, err
		}
		uri, err := presentString(rec, "audioUri")
		return Audio{Title: title, URI: uri}, err
	case TypeVoice:
		uri, err := presentString(rec, "voiceUri")
		return Voice{URI: uri}, err
	case TypeDocument:
		title, err := presentString(rec, "documentTitle")
		if err != nil {
			return nil, err
		}
		uri, err := presentString(rec, "documentUri")
		return Document{Title: title, URI: uri}, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Encode returns the canonical record form of m. Decode(m.Encode()) equals
// m, and Encode(Decode(rec)) equals rec for every record Decode accepts.
func (m Message) Encode() map[string]any {
	rec := map[string]any{
		"id":       m.ID,
		"sender":   m.Sender,
		"receiver": m.Receiver,
		"status":   string(m.Status),
		"timeSent": m.TimeSent.UTC().Format(TimeLayout),
		"type":     string(m.Content.Type()),
	}
	switch c := m.Content.(type) {
	case Text:
		rec["text"] = c.Body
	case Image:
		rec["imageUri"] = c.URI
		if c.Caption != "" {
			rec["text"] = c.Caption
		}
	case Video:
		rec["videoUri"] = c.URI
		if c.Caption != "" {
			rec["text"] = c.Caption
		}
	case Audio:
		rec["audioTitle"] = c.Title
		rec["audioUri"] = c.URI
	case Voice:
		rec["voiceUri"] = c.URI
	case Document:
		rec["documentTitle"] = c.Title
		rec["documentUri"] = c.URI
	}
	return rec
}

func requiredString(rec map[string]any, key string) (string, error) {
	s, err := presentString(rec, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMalformed, key)
	}
	return s, nil
}

// presentString requires the key but allows an empty value.
func presentString(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrMalformed, key, v)
	}
	return s, nil
}

// decodeCaption reads the optional media caption. An empty caption is written by
// omitting the key.
func decodeCaption(rec map[string]any) (string, error) {
	if _, ok := rec["text"]; !ok {
		return "", nil
	}
	return requiredString(rec, "text")
}

// DropEmptyCaption removes an empty or null caption from a media record.
func DropEmptyCaption(rec map[string]any) {
	switch Type(fmt.Sprint(rec["type"])) {
	case TypeImage, TypeVideo:
		if v, ok := rec["text"]; ok && (v == nil || v == "") {
			delete(rec, "text")
		}
	}
}

// decodeTime accepts only the canonical TimeLayout form in UTC.
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		ts, err := time.Parse(TimeLayout, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timeSent: %v", ErrMalformed, err)
		}
		ts = ts.UTC()
		if ts.Format(TimeLayout) != t {
			return time.Time{}, fmt.Errorf("%w: timeSent %q is not in UTC millisecond form", ErrMalformed, t)
		}
		return ts, nil
	case nil:
		return time.Time{}, fmt.Errorf("%w: missing timeSent", ErrMalformed)
	default:
		return time.Time{}, fmt.Errorf("%w: timeSent is %T, want string", ErrMalformed, v)
	}
}

// CanonicalTime converts a client supplied timeSent, either an RFC 3339
// string or epoch milliseconds, to the TimeLayout form Decode accepts.
func CanonicalTime(v any) (string, error) {
	var ts time.Time
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return "", fmt.Errorf("%w: timeSent: %v", ErrMalformed, err)
		}
		ts = parsed
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("%w: timeSent is not finite", ErrMalformed)
		}
		ts = time.UnixMilli(int64(t))
	case int64:
		ts = time.UnixMilli(t)
	case int:
		ts = time.UnixMilli(int64(t))
	case nil:
		return "", fmt.Errorf("%w: missing timeSent", ErrMalformed)
	default:
		return "", fmt.Errorf("%w: timeSent is %T", ErrMalformed, v)
	}
	return ts.UTC().Format(TimeLayout), nil
}
