package contact

import (
	"encoding/json"

	"github.com/matheus3301/relay/internal/phone"
	"github.com/matheus3301/relay/internal/user"
)

// MatchedContact is a contact merged with the registered user it matched:
// ID is the user id, PhoneNumbers holds only the user's phone and Photo is
// the user's photo when the user has one.
type MatchedContact struct {
	Contact
}

// JSON returns the encoded object carried in registeredContacts responses.
func (m MatchedContact) JSON() (string, error) {
	data, err := json.Marshal(m.Contact)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Match reconciles contacts against the directory. For each contact, its
// numbers are tried in order against every user in directory order and the
// first hit wins. Contacts without a hit are left out of the result.
func Match(contacts []Contact, directory []user.User) []MatchedContact {
	matched := make([]MatchedContact, 0)
	for _, c := range contacts {
		if u, ok := firstMatch(c, directory); ok {
			matched = append(matched, merge(c, u))
		}
	}
	return matched
}

func firstMatch(c Contact, directory []user.User) (user.User, bool) {
	for _, n := range c.PhoneNumbers {
		for _, u := range directory {
			if phone.Matches(n.Value, u.Phone.Value) {
				return u, true
			}
		}
	}
	return user.User{}, false
}

func merge(c Contact, u user.User) MatchedContact {
	id := u.ID
	out := Contact{
		Name:         c.Name,
		PhoneNumbers: []phone.Number{u.Phone},
		ID:           &id,
		Photo:        c.Photo,
	}
	if u.Photo != "" {
		photo := u.Photo
		out.Photo = &photo
	}
	return MatchedContact{Contact: out}
}
