package contact

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/relay/internal/phone"
	"github.com/matheus3301/relay/internal/user"
)

func ptr(s string) *string { return &s }

func contactWith(name string, numbers ...string) Contact {
	c := Contact{Name: name, PhoneNumbers: []phone.Number{}}
	for _, n := range numbers {
		c.PhoneNumbers = append(c.PhoneNumbers, phone.Number{Value: n})
	}
	return c
}

func TestMatchDirect(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{Value: "+15551234567"}}}

	got := Match([]Contact{contactWith("A", "+15551234567")}, dir)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ID)
	assert.Equal(t, "u1", *got[0].ID)
	assert.Equal(t, "A", got[0].Name)
}

func TestMatchSuffix(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{ISOCode: "US", DialCode: "+1", Value: "+15551234567"}}}

	got := Match([]Contact{contactWith("A", "5551234567")}, dir)
	require.Len(t, got, 1)
	assert.Equal(t, []phone.Number{dir[0].Phone}, got[0].PhoneNumbers, "phone replaced by the user's")
}

func TestMatchShortNumbers(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{Value: "123"}}}

	assert.Len(t, Match([]Contact{contactWith("exact", "123")}, dir), 1)
	assert.Empty(t, Match([]Contact{contactWith("prefixed", "0123")}, dir))
}

func TestMatchDropsUnmatched(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{Value: "+15551234567"}}}

	got := Match([]Contact{
		contactWith("nobody", "+449999999999"),
		contactWith("A", "+15551234567"),
		contactWith("empty"),
	}, dir)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)
}

func TestMatchFirstHitWins(t *testing.T) {
	dir := []user.User{
		{ID: "u1", Phone: phone.Number{Value: "+15550000001"}},
		{ID: "u2", Phone: phone.Number{Value: "+15550000002"}},
		{ID: "u3", Phone: phone.Number{Value: "+99990000002"}},
	}

	// Second number matches u2 then u3; first number matches nothing.
	got := Match([]Contact{contactWith("multi", "+10000000000", "+15550000002", "+15550000001")}, dir)
	require.Len(t, got, 1)
	assert.Equal(t, "u2", *got[0].ID)
}

func TestMatchOnePerContact(t *testing.T) {
	dir := []user.User{
		{ID: "u1", Phone: phone.Number{Value: "+15550000001"}},
		{ID: "u2", Phone: phone.Number{Value: "+15550000002"}},
	}
	got := Match([]Contact{contactWith("both", "+15550000001", "+15550000002")}, dir)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", *got[0].ID)
}

func TestMatchPhoto(t *testing.T) {
	dir := []user.User{
		{ID: "withPhoto", Phone: phone.Number{Value: "1111111"}, Photo: "user.png"},
		{ID: "noPhoto", Phone: phone.Number{Value: "2222222"}},
	}
	a := contactWith("A", "1111111")
	a.Photo = ptr("contact.png")
	b := contactWith("B", "2222222")
	b.Photo = ptr("contact-b.png")

	got := Match([]Contact{a, b}, dir)
	require.Len(t, got, 2)
	assert.Equal(t, "user.png", *got[0].Photo)
	assert.Equal(t, "contact-b.png", *got[1].Photo)
}

func TestMatchEmptyDirectory(t *testing.T) {
	got := Match([]Contact{contactWith("A", "+15551234567")}, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchDoesNotMutateInput(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{Value: "+15551234567"}}}
	in := contactWith("A", "5551234567")

	_ = Match([]Contact{in}, dir)
	assert.Nil(t, in.ID)
	assert.Equal(t, "5551234567", in.PhoneNumbers[0].Value)
}

func TestDecode(t *testing.T) {
	obj, err := Decode(json.RawMessage(`{"name":"A","phoneNumbers":["+1555",{"phoneNumber":"42","isoCode":"BR"}],"photo":"p"}`))
	require.NoError(t, err)
	assert.Equal(t, "A", obj.Name)
	assert.Equal(t, []phone.Number{{Value: "+1555"}, {ISOCode: "BR", Value: "42"}}, obj.PhoneNumbers)
	assert.Nil(t, obj.ID)
	assert.Equal(t, "p", *obj.Photo)

	str, err := Decode(json.RawMessage(`"{\"name\":\"B\",\"phoneNumbers\":[\"1234567\"]}"`))
	require.NoError(t, err)
	assert.Equal(t, "B", str.Name)
	assert.Len(t, str.PhoneNumbers, 1)

	noPhones, err := Decode(json.RawMessage(`{"name":"C"}`))
	require.NoError(t, err)
	assert.NotNil(t, noPhones.PhoneNumbers)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{`null`, `42`, `"not json"`, `[1,2]`, `{"phoneNumbers":[null]}`, `{"name":5}`, `"\"x\""`} {
		_, err := Decode(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrMalformedInput, raw)
	}
}

func TestDecodeAllFailsWholeBatch(t *testing.T) {
	_, err := DecodeAll([]json.RawMessage{
		json.RawMessage(`{"name":"ok"}`),
		json.RawMessage(`12`),
	})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestMatchedContactJSON(t *testing.T) {
	dir := []user.User{{ID: "u1", Phone: phone.Number{ISOCode: "US", DialCode: "+1", Value: "+15551234567"}}}
	got := Match([]Contact{contactWith("A", "+15551234567")}, dir)
	require.Len(t, got, 1)

	s, err := got[0].JSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"A","phoneNumbers":[{"isoCode":"US","dialCode":"+1","phoneNumber":"+15551234567"}],"id":"u1","photo":null}`,
		s)
}

type stubDirectory struct {
	users []user.User
	err   error
	calls int
}

func (s *stubDirectory) All(context.Context) ([]user.User, error) {
	s.calls++
	return s.users, s.err
}

func TestServiceRegistered(t *testing.T) {
	dir := &stubDirectory{users: []user.User{{ID: "u1", Phone: phone.Number{Value: "+15551234567"}}}}
	svc := NewService(dir, nil)

	got, err := svc.Registered(context.Background(), []Contact{
		contactWith("A", "+15551234567"),
		contactWith("B", "000"),
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, dir.calls, "one directory read per request")
}

func TestServiceDirectoryError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&stubDirectory{err: boom}, nil)

	_, err := svc.Registered(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
