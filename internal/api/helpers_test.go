package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/engine"
	"libraryhub.com/internal/infra"
)

const adminCode = "let-me-in"

var seq atomic.Int64

type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       jsoniter.RawMessage `json:"data"`
	Errors     []domain.FieldError `json:"errors"`
	Pagination *Pagination         `json:"pagination"`
}

type testServer struct {
	app *fiber.App
	eng *engine.Engine
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AdminRegistrationCode = adminCode
	cfg.Auth.AutoVerify = true
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "api.db")
	cfg.RateLimit.Max = 1000
	return cfg
}

// newTestServer boots the full HTTP stack on sqlite. rdb may be nil.
func newTestServer(t *testing.T, cfg *config.Config, rdb *redis.Client) *testServer {
	t.Helper()
	db, err := infra.NewDatabase(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db.DB))

	eng, err := engine.NewEngine(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(eng.Stop)

	return &testServer{app: NewServer(eng), eng: eng}
}

func (s *testServer) raw(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	resp := s.raw(t, method, path, token, body)
	defer resp.Body.Close()

	var env envelope
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &env), string(data))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type session struct {
	Token string
	ID    string
	Email string
}

// member registers a fresh verified member through the API.
func (s *testServer) member(t *testing.T) session {
	t.Helper()
	email := fmt.Sprintf("reader%d@example.com", seq.Add(1))
	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", domain.RegisterInput{
		Email:     email,
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Reader",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	result := decode[domain.AuthResult](t, env)
	return session{Token: result.Token, ID: result.User.ID, Email: email}
}

// admin creates an admin account directly and logs it in.
func (s *testServer) admin(t *testing.T) session {
	t.Helper()
	email := fmt.Sprintf("admin%d@example.com", seq.Add(1))
	_, err := s.eng.GetAuthService().CreateAdmin(context.Background(), domain.RegisterInput{
		Email:     email,
		Password:  "secret1",
		FirstName: "Root",
		LastName:  "Admin",
	})
	require.NoError(t, err)

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: "secret1"})
	require.Equal(t, http.StatusOK, status, env.Message)

	result := decode[domain.AuthResult](t, env)
	return session{Token: result.Token, ID: result.User.ID, Email: email}
}

type idOnly struct {
	ID string `json:"id"`
}

// book creates an author, a category and a book with the given copies.
func (s *testServer) book(t *testing.T, admin session, copies int) string {
	t.Helper()
	n := seq.Add(1)

	status, env := s.do(t, http.MethodPost, "/api/authors", admin.Token, NameRequest{Name: fmt.Sprintf("Author %d", n)})
	require.Equal(t, http.StatusCreated, status, env.Message)
	author := decode[idOnly](t, env)

	status, env = s.do(t, http.MethodPost, "/api/categories", admin.Token, NameRequest{Name: fmt.Sprintf("Category %d", n)})
	require.Equal(t, http.StatusCreated, status, env.Message)
	category := decode[idOnly](t, env)

	status, env = s.do(t, http.MethodPost, "/api/books", admin.Token, domain.BookInput{
		ISBN:        fmt.Sprintf("978-%010d", n),
		Title:       fmt.Sprintf("Book %d", n),
		TotalCopies: copies,
		AuthorIDs:   []string{author.ID},
		CategoryIDs: []string{category.ID},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	return decode[idOnly](t, env).ID
}
