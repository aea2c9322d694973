package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidToken is returned by ParseAccessToken when the token is
// malformed, expired, signed with another key or lacks required claims.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  The token is sent either in the Authorization
// header (JSON API) or in an HttpOnly cookie (browser UI).
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims are the values carried by an access token.  SessionID points at
// the server-side session holding the displayed conversation; the token is
// useless once that session has been deleted by logout.
type Claims struct {
	UserID    uint64
	Username  string
	SessionID string
}

// NewAccessToken builds and signs an HS256 JWT for a user session.  The
// subject (sub) is the decimal user ID; "name" carries the username and
// "sid" the session ID.  ttlMin is the lifetime in minutes.
func NewAccessToken(secret string, c Claims, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(c.UserID, 10),
		"name": c.Username,
		"sid":  c.SessionID,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates raw with the HS256 secret and extracts the
// session claims.  Any failure is reported as ErrInvalidToken.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	var out Claims
	switch sub := mc["sub"].(type) {
	case string:
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		out.UserID = id
	case float64:
		// JWT numeric values are decoded as float64.
		out.UserID = uint64(sub)
	default:
		return Claims{}, ErrInvalidToken
	}
	out.Username, _ = mc["name"].(string)
	out.SessionID, _ = mc["sid"].(string)
	if out.UserID == 0 || out.SessionID == "" {
		return Claims{}, ErrInvalidToken
	}
	return out, nil
}
