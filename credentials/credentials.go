package credentials

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Credentials holds the token pair issued by the login and refresh
// endpoints. ExpiresAt is the access token's expiry; a zero value means the
// expiry is unknown and proactive refresh is skipped for the token.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Empty reports whether no access token is held.
func (c Credentials) Empty() bool {
	return c.AccessToken == ""
}

// ExpiresWithin reports whether the access token's known expiry falls inside
// the given lookahead window. Unknown expiry never triggers a proactive
// refresh; the 401 path handles those tokens.
func (c Credentials) ExpiresWithin(window time.Duration) bool {
	if c.Empty() || c.ExpiresAt.IsZero() {
		return false
	}
	return !NowTimeFunc().Add(window).Before(c.ExpiresAt)
}

// User is the denormalized snapshot of the authenticated identity returned
// by the login and profile endpoints.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	FullName           string     `json:"full_name"`
	Phone              string     `json:"phone,omitempty"`
	Avatar             string     `json:"avatar,omitempty"`
	Department         string     `json:"department,omitempty"`
	Position           string     `json:"position,omitempty"`
	IsVerified         bool       `json:"is_verified"`
	CanUpload          bool       `json:"can_upload"`
	CanClassify        bool       `json:"can_classify"`
	CanManageWorkflows bool       `json:"can_manage_workflows"`
	DocumentsUploaded  int        `json:"documents_uploaded"`
	LastActivity       *time.Time `json:"last_activity,omitempty"`
	DateJoined         *time.Time `json:"date_joined,omitempty"`
}

// TokenExpiry extracts the exp claim from a raw JWT access token without
// verifying its signature. The client holds no verification keys; it only
// needs the expiry to schedule proactive refreshes, and a forged expiry
// costs nothing beyond an extra 401 round trip.
func TokenExpiry(rawToken string) (time.Time, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "[TokenExpiry] failed to parse token")
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, errors.New("[TokenExpiry] error extracting claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errors.New("[TokenExpiry] token missing exp claim")
	}

	return time.Unix(int64(exp), 0), nil
}
