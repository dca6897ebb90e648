package domain

const (
	// DefaultTimezone is used when a user has no time zone preference.
	DefaultTimezone = "UTC"

	// MeasureMetric and MeasureImperial are the supported measure units.
	MeasureMetric   = "METRIC"
	MeasureImperial = "IMPERIAL"

	// RoleUser and RoleAdmin are the roles a user can hold.
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is the normalized profile of the signed-in user. The same shape is
// persisted as the local snapshot, so the JSON tags are the storage format.
// ID and UserID always hold the same value.
type User struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	FullName           string `json:"fullName"`
	Email              string `json:"email"`
	Avatar             string `json:"avatar,omitempty"`
	Timezone           string `json:"timezone"`
	CreatedAt          string `json:"createdAt,omitempty"`
	HasPassword        bool   `json:"hasPassword"`
	CustomMapTileURL   string `json:"customMapTileUrl"`
	MeasureUnit        string `json:"measureUnit"`
	DefaultRedirectURL string `json:"defaultRedirectUrl"`
	DateFormat         string `json:"dateFormat,omitempty"`
	Role               string `json:"role"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FullName           string `json:"fullName"`
	Avatar             string `json:"avatar"`
	Timezone           string `json:"timezone"`
	MeasureUnit        string `json:"measureUnit"`
	DefaultRedirectURL string `json:"defaultRedirectUrl"`
}

// Registration carries the fields needed to create a password account.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Timezone string `json:"timezone"`
}

// OidcProvider is an identity provider offered on the login page.
type OidcProvider struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
}

// OidcConnection is an identity provider linked to the current user.
type OidcConnection struct {
	ProviderName string    `json:"providerName"`
	DisplayName  string    `json:"displayName,omitempty"`
	Email        string    `json:"email,omitempty"`
	LinkedAt     Timestamp `json:"linkedAt"`
}

// AuthStatus describes which login and registration methods the server allows.
type AuthStatus struct {
	PasswordRegistrationEnabled bool `json:"passwordRegistrationEnabled"`
	OidcRegistrationEnabled     bool `json:"oidcRegistrationEnabled"`
	PasswordLoginEnabled        bool `json:"passwordLoginEnabled"`
	OidcLoginEnabled            bool `json:"oidcLoginEnabled"`
	AdminLoginBypassEnabled     bool `json:"adminLoginBypassEnabled"`
}

// DefaultAuthStatus is assumed when the server cannot be asked.
func DefaultAuthStatus() AuthStatus {
	return AuthStatus{
		PasswordLoginEnabled:    true,
		OidcLoginEnabled:        true,
		AdminLoginBypassEnabled: true,
	}
}

// FriendPermissions describes what the current user shares with one friend.
type FriendPermissions struct {
	FriendID          string `json:"friendId"`
	ShareTimeline     bool   `json:"shareTimeline"`
	ShareLiveLocation bool   `json:"shareLiveLocation"`
}
