package httpserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/interview-evaluator/internal/domain"
)

// Argon2Params defines parameters for Argon2id token hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params is used by HashToken callers that have no preference.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashToken creates an Argon2id hash of an API token.
// Format: argon2id$iterations$memory$parallelism$salt$hash (raw std base64).
func HashToken(token string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyToken checks a token against its Argon2id hash.
func VerifyToken(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	par := uint8(math.MaxUint8)
	if par64 < math.MaxUint8 {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(token), salt, iters, mem, par, uint32(len(expected))) //nolint:gosec // bounded by decoded hash length
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

type tokenEntry struct {
	subject string
	hash    string
}

// TokenAuthenticator resolves bearer tokens to principals. Tokens are
// configured as "subject:argon2-hash" entries.
type TokenAuthenticator struct {
	entries []tokenEntry

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]string
}

// NewTokenAuthenticator parses the configured token entries.
func NewTokenAuthenticator(specs []string) (*TokenAuthenticator, error) {
	a := &TokenAuthenticator{verified: map[[sha256.Size]byte]string{}}
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		subject, hash, ok := strings.Cut(spec, ":")
		if !ok || subject == "" || !strings.HasPrefix(hash, "argon2id$") {
			return nil, fmt.Errorf("%w: api token entry for %q must be subject:argon2id-hash", domain.ErrInvalidArgument, subject)
		}
		a.entries = append(a.entries, tokenEntry{subject: subject, hash: hash})
	}
	return a, nil
}

// Authenticate returns the principal owning token.
func (a *TokenAuthenticator) Authenticate(token string) (domain.Principal, error) {
	if a == nil || token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	key := sha256.Sum256([]byte(token))
	a.mu.RLock()
	subject, ok := a.verified[key]
	a.mu.RUnlock()
	if ok {
		return domain.Principal{Subject: subject}, nil
	}
	for _, e := range a.entries {
		if VerifyToken(token, e.hash) {
			a.mu.Lock()
			a.verified[key] = e.subject
			a.mu.Unlock()
			return domain.Principal{Subject: e.subject}, nil
		}
	}
	return domain.Principal{}, domain.ErrUnauthenticated
}

// Middleware attaches the principal for a valid bearer token. Requests
// without one continue anonymously; RequirePrincipal rejects them where needed.
func (a *TokenAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.Authenticate(token)
		if err != nil {
			LoggerFrom(r).Debug("bearer token rejected")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), p)))
	})
}

// RequirePrincipal answers 401 for anonymous requests.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := domain.PrincipalFrom(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="interview-evaluator"`)
			writeError(w, r, fmt.Errorf("%w: bearer token required", domain.ErrUnauthenticated), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// parseUint32 parses a decimal string into uint32
func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return uint32(x), nil
}
