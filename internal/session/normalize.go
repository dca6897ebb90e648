package session

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// flexString decodes a JSON string or number as text. Any other JSON value
// decodes as "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = flexString(v)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*s = flexString(b)
	default:
		*s = ""
	}
	return nil
}

// flexBool decodes JSON truthiness: true, a non-zero number or a non-empty
// string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*f = true
	case len(b) > 0 && b[0] == '"':
		*f = len(b) > 2
	default:
		n, err := strconv.ParseFloat(string(b), 64)
		*f = flexBool(err == nil && n != 0)
	}
	return nil
}

type rawUser struct {
	ID                 flexString `json:"id"`
	UserID             flexString `json:"userId"`
	FullName           flexString `json:"fullName"`
	Email              flexString `json:"email"`
	Avatar             flexString `json:"avatar"`
	Timezone           flexString `json:"timezone"`
	CreatedAt          flexString `json:"createdAt"`
	HasPassword        flexBool   `json:"hasPassword"`
	CustomMapTileURL   flexString `json:"customMapTileUrl"`
	MeasureUnit        flexString `json:"measureUnit"`
	DefaultRedirectURL flexString `json:"defaultRedirectUrl"`
	DateFormat         flexString `json:"dateFormat"`
	Role               flexString `json:"role"`
}

type rawPayload struct {
	rawUser
	User json.RawMessage `json:"user"`
}

// NormalizeUser reads a user from any of the payload shapes the server and
// the local snapshot use: the user object itself or an object wrapping it
// under "user". The id may be given as "id" or "userId", as a string or a
// number. It reports false when no id can be resolved.
func NormalizeUser(raw []byte) (domain.User, bool) {
	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.User{}, false
	}
	src := p.rawUser
	if nested := bytes.TrimSpace(p.User); len(nested) > 0 && nested[0] == '{' {
		var inner rawUser
		if err := json.Unmarshal(nested, &inner); err != nil {
			return domain.User{}, false
		}
		src = inner
	}

	id := string(src.ID)
	if id == "" {
		id = string(src.UserID)
	}
	return withDefaults(domain.User{
		ID:                 id,
		FullName:           string(src.FullName),
		Email:              string(src.Email),
		Avatar:             string(src.Avatar),
		Timezone:           string(src.Timezone),
		CreatedAt:          string(src.CreatedAt),
		HasPassword:        bool(src.HasPassword),
		CustomMapTileURL:   string(src.CustomMapTileURL),
		MeasureUnit:        string(src.MeasureUnit),
		DefaultRedirectURL: string(src.DefaultRedirectURL),
		DateFormat:         string(src.DateFormat),
		Role:               string(src.Role),
	})
}

// withDefaults fills the fields every held user must have.
func withDefaults(u domain.User) (domain.User, bool) {
	if u.ID == "" {
		u.ID = u.UserID
	}
	if u.ID == "" {
		return domain.User{}, false
	}
	u.UserID = u.ID
	if u.Timezone == "" {
		u.Timezone = domain.DefaultTimezone
	}
	if u.MeasureUnit == "" {
		u.MeasureUnit = domain.MeasureMetric
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	return u, true
}
