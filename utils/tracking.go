package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// TokenBytes is the entropy of a tracking token; the hex form is twice as long
const TokenBytes = 16

// NewTrackingToken returns a fresh random lower-case hex token
func NewTrackingToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsWellFormedToken reports whether s looks like a token produced by NewTrackingToken
func IsWellFormedToken(s string) bool {
	if len(s) != TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}

// GenerateTrackingPixelURL generates the open tracking pixel URL for a token
func GenerateTrackingPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/track-open?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}

// GeneratePhishingLink generates the landing page link embedded in a simulated phishing email
func GeneratePhishingLink(landingURL, token string) string {
	sep := "?"
	if strings.Contains(landingURL, "?") {
		sep = "&"
	}
	return landingURL + sep + "token=" + url.QueryEscape(token)
}

// TrackingPixelTag returns the invisible image tag that reports an open
func TrackingPixelTag(baseURL, token string) string {
	return fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, GenerateTrackingPixelURL(baseURL, token))
}
