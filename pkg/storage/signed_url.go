package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// SignedURLSigner creates and validates signed share tokens binding a grant to a file.
type SignedURLSigner struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and default TTL.
func NewSignedURLSigner(secret string, defaultTTL time.Duration) *SignedURLSigner {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Generate returns a token referencing the grant and file. ttl <= 0 uses the default.
func (s *SignedURLSigner) Generate(grantID, fileID string, ttl time.Duration) (string, time.Time, error) {
	if grantID == "" || fileID == "" {
		return "", time.Time{}, fmt.Errorf("grantID and fileID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expiresAt := s.now().Add(ttl).Truncate(time.Second)
	encodedFile := base64.RawURLEncoding.EncodeToString([]byte(fileID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{grantID, ts, encodedFile, s.sign(grantID, ts, encodedFile)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (grantID, fileID string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	grantID, ts, encodedFile, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(grantID, ts, encodedFile)), []byte(signature)) {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	rawFile, err := base64.RawURLEncoding.DecodeString(encodedFile)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expiresAt = time.Unix(expUnix, 0).UTC()
	if !allowExpired && s.now().After(expiresAt) {
		return grantID, string(rawFile), expiresAt, ErrTokenExpired
	}
	return grantID, string(rawFile), expiresAt, nil
}

func (s *SignedURLSigner) sign(grantID, ts, encodedFile string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(grantID + "|" + ts + "|" + encodedFile))
	return hex.EncodeToString(mac.Sum(nil))
}
