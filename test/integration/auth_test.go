package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	authmw "github.com/movierec/backend/internal/auth/middleware"
	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/config"
	"github.com/movierec/backend/internal/handlers"
	"github.com/movierec/backend/internal/models"
	"github.com/movierec/backend/internal/repositories"
	"github.com/movierec/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	testDB     *sql.DB
	testRouter chi.Router
	testLogger *zap.Logger
)

// seedTestData clears users and sessions and inserts a small movie catalogue
func seedTestData(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, table := range []string{"watchlists", "user_logins", "users", "movies"} {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err, "Failed to clear %s", table)
		_, err = db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		require.NoError(t, err, "Failed to reset %s AUTO_INCREMENT", table)
	}

	query := `
		INSERT INTO movies (title, genre, rating, release_year, description) VALUES
		('Heat', 'Action, Crime', 8.3, 1995, 'A detective pursues a crew of bank robbers.'),
		('Alien', 'Horror, Sci-Fi', 8.5, 1979, 'A crew meets a deadly lifeform.'),
		('Inception', 'Action, Sci-Fi', 8.8, 2010, 'A thief steals secrets through dreams.')
	`
	_, err := db.Exec(query)
	require.NoError(t, err, "Failed to seed movies")
}

// setupTestRouter creates a test router with all handlers
func setupTestRouter(db *sql.DB, logger *zap.Logger) chi.Router {
	tokenGen := service.NewTokenGenerator("test-secret-key-for-integration-tests", time.Hour)
	hasher, err := service.NewPasswordHasher(4)
	if err != nil {
		panic(fmt.Sprintf("Failed to create password hasher: %v", err))
	}

	movieRepo := repositories.NewMovieRepository(db, logger)
	userLoginRepo := repositories.NewUserLoginRepository(db, logger)
	authSvc := services.NewAuthService(
		repositories.NewUserRepository(db, logger),
		userLoginRepo,
		tokenGen,
		hasher,
		service.StrengthPolicy(8),
		nil,
		logger,
	)
	movieSvc := services.NewMovieService(movieRepo, logger)
	watchlistSvc := services.NewWatchlistService(repositories.NewWatchlistRepository(db, logger), movieRepo, logger)
	cleanupSvc := services.NewSessionCleanupService(userLoginRepo, time.Hour, logger)

	guard := authmw.NewGuard(tokenGen, nil)

	r := chi.NewRouter()
	handlers.NewAuthHandler(authSvc, logger).RegisterRoutes(r)
	handlers.NewUserHandler(watchlistSvc, movieSvc, authmw.RoleMiddleware(guard, models.RoleUser, logger), logger).RegisterRoutes(r)
	handlers.NewAdminHandler(cleanupSvc, authmw.RoleMiddleware(guard, models.RoleAdmin, logger), logger).RegisterRoutes(r)

	return r
}

// TestMain sets up and tears down the test environment
func TestMain(m *testing.M) {
	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.LoadTestConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load test config: %v", err))
	}
	dsn := cfg.DSN()
	if dsn == "" {
		// No test database configured; every test skips itself
		os.Exit(m.Run())
	}

	testDB, err = sql.Open("mysql", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to test database: %v", err))
	}

	if err = testDB.Ping(); err != nil {
		panic(fmt.Sprintf("Failed to ping test database: %v", err))
	}

	setupTestSchemaForMain(testDB)

	testRouter = setupTestRouter(testDB, testLogger)

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

// setupTestSchemaForMain creates the test database schema (for TestMain)
func setupTestSchemaForMain(db *sql.DB) {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INT PRIMARY KEY AUTO_INCREMENT,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role ENUM('user', 'admin') NOT NULL DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS user_logins (
			id INT PRIMARY KEY AUTO_INCREMENT,
			user_id INT NOT NULL UNIQUE,
			token TEXT NOT NULL,
			status ENUM('active', 'inactive') NOT NULL DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS movies (
			id INT PRIMARY KEY AUTO_INCREMENT,
			title VARCHAR(255) NOT NULL,
			genre VARCHAR(255) NOT NULL DEFAULT '',
			rating DECIMAL(3, 1) NOT NULL DEFAULT 0,
			release_year INT NOT NULL DEFAULT 0,
			description TEXT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS watchlists (
			id INT PRIMARY KEY AUTO_INCREMENT,
			user_id INT NOT NULL,
			movie_id INT NOT NULL,
			movie_title VARCHAR(255) NOT NULL,
			status ENUM('To Watch', 'Watching', 'Watched') NOT NULL DEFAULT 'To Watch',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_user_movie (user_id, movie_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			panic(fmt.Sprintf("Failed to create test schema: %v", err))
		}
	}
}

func skipIfNoDatabase(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	if testDB == nil {
		t.Skip("Skipping integration tests: TEST_DB_HOST is not set")
	}
}

// doRequest sends a JSON request through the test router
func doRequest(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, email, password string) models.LoginResponse {
	t.Helper()
	w := doRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestIntegration_AuthFlow(t *testing.T) {
	skipIfNoDatabase(t)
	seedTestData(t, testDB)

	register := map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "Str0ng!Pass",
		"role":     "user",
	}

	w := doRequest(t, http.MethodPost, "/auth/register", register, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var registered models.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&registered))
	assert.Equal(t, "Registered", registered.Message)
	assert.Positive(t, registered.UserID)

	// Registration creates no session
	var sessions int
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM user_logins").Scan(&sessions))
	assert.Equal(t, 0, sessions)

	// Emails are normalized, so the differently cased address is a duplicate
	register["email"] = "alice@example.com"
	w = doRequest(t, http.MethodPost, "/auth/register", register, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var passwordHash string
	require.NoError(t, testDB.QueryRow("SELECT password_hash FROM users WHERE email = ?", "alice@example.com").Scan(&passwordHash))
	assert.NotEqual(t, "Str0ng!Pass", passwordHash)

	w = doRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	first := login(t, "alice@example.com", "Str0ng!Pass")
	assert.Equal(t, "bearer", first.TokenType)
	assert.Equal(t, models.RoleUser, first.Role)

	second := login(t, "alice@example.com", "Str0ng!Pass")
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.UserLoginID, second.UserLoginID)

	// A second login overwrites the single session row
	var storedToken, status string
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM user_logins").Scan(&sessions))
	assert.Equal(t, 1, sessions)
	require.NoError(t, testDB.QueryRow("SELECT token, status FROM user_logins WHERE id = ?", second.UserLoginID).Scan(&storedToken, &status))
	assert.Equal(t, second.AccessToken, storedToken)
	assert.Equal(t, "active", status)

	w = doRequest(t, http.MethodPost, "/auth/validate_token", nil, second.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var identity handlers.TokenIdentityResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&identity))
	assert.Equal(t, registered.UserID, identity.UserID)
	assert.Equal(t, "alice@example.com", identity.Email)

	w = doRequest(t, http.MethodGet, "/user/dashboard", nil, second.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, http.MethodGet, "/admin/dashboard", nil, second.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The replaced token no longer matches the session
	w = doRequest(t, http.MethodPost, "/auth/logout", nil, first.AccessToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, http.MethodPost, "/auth/logout", nil, second.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, testDB.QueryRow("SELECT status FROM user_logins WHERE id = ?", second.UserLoginID).Scan(&status))
	assert.Equal(t, "inactive", status)

	w = doRequest(t, http.MethodPost, "/auth/logout", nil, second.AccessToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Logging in again reactivates the same row
	third := login(t, "alice@example.com", "Str0ng!Pass")
	assert.Equal(t, second.UserLoginID, third.UserLoginID)
	require.NoError(t, testDB.QueryRow("SELECT status FROM user_logins WHERE id = ?", third.UserLoginID).Scan(&status))
	assert.Equal(t, "active", status)
}

func TestIntegration_ConcurrentLogins(t *testing.T) {
	skipIfNoDatabase(t)
	seedTestData(t, testDB)

	w := doRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "dave",
		"email":    "dave@example.com",
		"password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	const logins = 10
	body, err := json.Marshal(map[string]string{"email": "dave@example.com", "password": "Str0ng!Pass"})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = map[string]bool{}
		codes  []int
	)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			testRouter.ServeHTTP(rec, req)

			var resp models.LoginResponse
			decodeErr := json.NewDecoder(rec.Body).Decode(&resp)

			mu.Lock()
			defer mu.Unlock()
			codes = append(codes, rec.Code)
			if rec.Code == http.StatusOK && decodeErr == nil {
				tokens[resp.AccessToken] = true
			}
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	require.Len(t, tokens, logins, "every login must issue a distinct token")

	// Racing logins leave exactly one session row holding one of the issued tokens
	var count int
	require.NoError(t, testDB.QueryRow(
		"SELECT COUNT(*) FROM user_logins ul JOIN users u ON u.id = ul.user_id WHERE u.email = ?",
		"dave@example.com",
	).Scan(&count))
	assert.Equal(t, 1, count)

	var storedToken, status string
	require.NoError(t, testDB.QueryRow(
		"SELECT ul.token, ul.status FROM user_logins ul JOIN users u ON u.id = ul.user_id WHERE u.email = ?",
		"dave@example.com",
	).Scan(&storedToken, &status))
	assert.True(t, tokens[storedToken], "stored token was not issued by any login")
	assert.Equal(t, "active", status)
}

func TestIntegration_SessionCleanup(t *testing.T) {
	skipIfNoDatabase(t)
	seedTestData(t, testDB)

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = testDB.Exec(
		`INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?), (?, ?, ?, ?)`,
		"root", "root@example.com", string(passwordHash), models.RoleAdmin,
		"carol", "carol@example.com", string(passwordHash), models.RoleUser,
	)
	require.NoError(t, err)

	admin := login(t, "root@example.com", "Str0ng!Pass")
	carol := login(t, "carol@example.com", "Str0ng!Pass")

	// Age carol's session past the token lifetime
	_, err = testDB.Exec("UPDATE user_logins SET updated_at = NOW() - INTERVAL 2 HOUR WHERE id = ?", carol.UserLoginID)
	require.NoError(t, err)

	w := doRequest(t, http.MethodPost, "/admin/sessions/cleanup", nil, carol.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, http.MethodPost, "/admin/sessions/cleanup", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deactivated_sessions":1}`, w.Body.String())

	var status string
	require.NoError(t, testDB.QueryRow("SELECT status FROM user_logins WHERE id = ?", carol.UserLoginID).Scan(&status))
	assert.Equal(t, "inactive", status)
	require.NoError(t, testDB.QueryRow("SELECT status FROM user_logins WHERE id = ?", admin.UserLoginID).Scan(&status))
	assert.Equal(t, "active", status)
}

func TestIntegration_Watchlist(t *testing.T) {
	skipIfNoDatabase(t)
	seedTestData(t, testDB)

	w := doRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := login(t, "bob@example.com", "Str0ng!Pass").AccessToken

	w = doRequest(t, http.MethodPost, "/user/movies/search", map[string]any{"genre": "sci-fi"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var result models.MovieSearchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Movies, 2)
	assert.Equal(t, "Inception", result.Movies[0].Title)

	w = doRequest(t, http.MethodPost, "/user/watchlist", map[string]any{"movie_ids": []int{1, 2}}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var added models.WatchlistAddResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&added))
	assert.Len(t, added.AddedMovies, 2)
	assert.Equal(t, models.WatchStatusToWatch, added.Status)

	// Movies already in the watchlist are skipped
	w = doRequest(t, http.MethodPost, "/user/watchlist", map[string]any{"movie_ids": []int{2, 3}}, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&added))
	require.Len(t, added.AddedMovies, 1)
	assert.Equal(t, 3, added.AddedMovies[0].MovieID)

	w = doRequest(t, http.MethodPost, "/user/watchlist", map[string]any{"movie_ids": []int{999}}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, http.MethodPut, "/user/watchlist/1?status=Watched", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, http.MethodGet, "/user/watchlist/1/check", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var check models.WatchlistCheckResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&check))
	assert.True(t, check.InWatchlist)
	assert.Equal(t, models.WatchStatusWatched, check.Status)

	w = doRequest(t, http.MethodGet, "/user/watchlist?sort=title&order=asc", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.WatchlistItem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 3)
	assert.Equal(t, "Alien", items[0].Title)

	w = doRequest(t, http.MethodGet, "/user/watchlist/summary?status=To%20Watch", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.WatchlistSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 2, summary.Count)

	w = doRequest(t, http.MethodDelete, "/user/watchlist/1", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, http.MethodDelete, "/user/watchlist/1", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, http.MethodDelete, "/user/watchlist", []int{2, 3}, token)
	assert.Equal(t, http.StatusOK, w.Code)

	var remaining int
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM watchlists").Scan(&remaining))
	assert.Equal(t, 0, remaining)
}
