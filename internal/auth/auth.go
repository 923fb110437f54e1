package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session is the per-connection session state. States are Guest and Admin;
// the only transition is Guest to Admin on a PIN match, and a session never
// expires on its own. Only the owning sync loop touches it, so no locking.
type Session struct {
	UID   string
	Admin bool
}

// tokenPayload is the JSON payload embedded in an identity token.
type tokenPayload struct {
	UID string `json:"uid"`
	Exp int64  `json:"exp"`
}

// Authenticator issues and validates identity tokens and checks the admin
// PIN. Identities are opaque: nothing downstream consumes more than the uid.
type Authenticator struct {
	secret  string
	pinHash []byte
}

func New(secret, pinHash string) *Authenticator {
	return &Authenticator{secret: secret, pinHash: []byte(pinHash)}
}

// SignInAnonymously mints a fresh opaque identity and a token for it.
func (a *Authenticator) SignInAnonymously() (string, string, error) {
	uid := "anon-" + uuid.New().String()
	token, err := a.GenerateToken(uid)
	if err != nil {
		return "", "", err
	}
	return uid, token, nil
}

// SignInWithToken validates a previously issued token and returns its uid.
func (a *Authenticator) SignInWithToken(token string) (string, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != "local" {
		return "", fmt.Errorf("invalid token format")
	}

	payloadB64 := parts[1]
	sigB64 := parts[2]

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(payloadB64))
	expectedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sigB64), []byte(expectedSig)) {
		return "", fmt.Errorf("invalid token signature")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return "", fmt.Errorf("invalid token payload")
	}

	var payload tokenPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return "", fmt.Errorf("invalid token payload")
	}

	if time.Now().Unix() > payload.Exp {
		return "", fmt.Errorf("token expired")
	}

	return payload.UID, nil
}

// GenerateToken creates an HMAC-signed identity token.
// Format: local.<base64url(json-payload)>.<base64url(hmac-sha256)>
func (a *Authenticator) GenerateToken(uid string) (string, error) {
	payload := tokenPayload{
		UID: uid,
		Exp: time.Now().Add(30 * 24 * time.Hour).Unix(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadBytes)

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(payloadB64))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return "local." + payloadB64 + "." + sig, nil
}

// VerifyPIN checks the shared admin PIN against its bcrypt hash. The PIN is
// a UI convenience gate shared by all admins, but it is at least verified
// here rather than in the client.
func (a *Authenticator) VerifyPIN(pin string) bool {
	if len(a.pinHash) == 0 || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.pinHash, []byte(pin)) == nil
}

// HashPIN bcrypt-hashes a plaintext PIN, for bootstrapping config.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
