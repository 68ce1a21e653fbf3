package e2e

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext drives a running geoseal server over HTTP and holds the state
// a scenario accumulates: the bearer token, the last response, and the
// mapping from feature-file aliases to the unique record ids actually sent.
// Aliases keep scenarios readable while letting every run write fresh ids
// into a server whose ledger never forgets one.
type TestContext struct {
	baseURL    string
	signingKey []byte
	client     *http.Client

	token   string
	nonce   string
	aliases map[string]string

	lastStatus int
	lastJSON   map[string]interface{}
}

// NewTestContext creates a test context for the server at baseURL. The
// signing key must match the server's JWT_SIGNING_KEY so minted tokens pass
// validation.
func NewTestContext(baseURL, signingKey string) *TestContext {
	return &TestContext{
		baseURL:    baseURL,
		signingKey: []byte(signingKey),
		client:     &http.Client{Timeout: 90 * time.Second},
		aliases:    make(map[string]string),
	}
}

// Reset clears scenario state. Called from the godog Before hook so
// scenarios cannot leak tokens or record ids into each other.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.nonce = newNonce()
	tc.aliases = make(map[string]string)
	tc.lastStatus = 0
	tc.lastJSON = nil
}

// AuthenticateAs mints a bearer token for the given owner, signed with the
// server's dev signing key. There is no token endpoint; identity arrives
// from outside the registry in production too.
func (tc *TestContext) AuthenticateAs(owner string) error {
	claims := jwt.MapClaims{
		"owner_id": owner,
		"sub":      owner,
		"iss":      "geoseal",
		"aud":      []string{"geoseal-registrants"},
		"iat":      jwt.NewNumericDate(time.Now()),
		"exp":      jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.signingKey)
	if err != nil {
		return fmt.Errorf("mint bearer token: %w", err)
	}
	tc.token = token
	return nil
}

// ClearCredentials drops the bearer token for anonymous-request steps.
func (tc *TestContext) ClearCredentials() {
	tc.token = ""
}

// RecordID maps a feature-file alias to the unique record id used on the
// wire. The same alias resolves to the same id within a scenario.
func (tc *TestContext) RecordID(alias string) string {
	if actual, ok := tc.aliases[alias]; ok {
		return actual
	}
	actual := alias + "-" + tc.nonce
	tc.aliases[alias] = actual
	return actual
}

// POST sends a JSON request. A nil body still declares JSON content, which
// the server requires on every write including bodyless reveals.
func (tc *TestContext) POST(path string, body interface{}) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

// GET fetches a path without credentials; the read surface is public.
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastJSON = nil

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > 0 {
		var decoded map[string]interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("%s %s returned non-JSON body: %w", req.Method, req.URL.Path, err)
		}
		tc.lastJSON = decoded
	}
	return nil
}

// Status returns the status code of the last response.
func (tc *TestContext) Status() int {
	return tc.lastStatus
}

// Field returns a top-level field of the last JSON response. Absent fields
// are an error so steps can assert on their absence.
func (tc *TestContext) Field(name string) (interface{}, error) {
	if tc.lastJSON == nil {
		return nil, fmt.Errorf("no JSON response captured")
	}
	value, ok := tc.lastJSON[name]
	if !ok {
		return nil, fmt.Errorf("response has no field %q", name)
	}
	return value, nil
}

// NumberField returns a numeric response field as int64. JSON numbers decode
// as float64; coordinate values fit well inside the exact integer range.
func (tc *TestContext) NumberField(name string) (int64, error) {
	value, err := tc.Field(name)
	if err != nil {
		return 0, err
	}
	f, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q is %T, not a number", name, value)
	}
	return int64(f), nil
}

// ErrorCode returns the "error" field of the last response envelope.
func (tc *TestContext) ErrorCode() (string, error) {
	value, err := tc.Field("error")
	if err != nil {
		return "", err
	}
	code, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("error field is %T, not a string", value)
	}
	return code, nil
}

func newNonce() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
