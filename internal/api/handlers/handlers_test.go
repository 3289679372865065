package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/email"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

const testPassword = "Secret123"

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Repositories) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := repository.NewMemoryRepositories()
	store := db.NewLocalStore()
	cfg := &config.Config{
		JWTSecret:            "handler-secret",
		JWTExpiry:            1,
		RefreshExpiry:        1,
		EventEligibilityMode: "hierarchy",
		PasswordResetTTL:     time.Hour,
		CatalogCacheTTL:      time.Minute,
	}
	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		NotifSvc: notification.NewService(repos.NotificationRepo, repos.UserRepo),
		EmailSvc: email.NewService(&email.Config{}),
		Tokens:   store,
		Cache:    store,
	})

	r := gin.New()
	RegisterRoutes(r.Group("/api"), NewHandlers(services), services.Auth)
	return r, repos
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
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
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func signUp(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username:  username,
		Email:     username + "@example.org",
		Password:  testPassword,
		Password2: testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.AuthResponse
	decode(t, w, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func staffToken(t *testing.T, r *gin.Engine, repos *repository.Repositories) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repos.UserRepo.Create(context.Background(), &repository.User{
		Username: "staff", Email: "staff@example.org", Password: string(hash), IsStaff: true,
	}))

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "staff", Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.AuthResponse
	decode(t, w, &resp)
	assert.True(t, resp.User.IsStaff)
	return resp.AccessToken
}

func createProfile(t *testing.T, r *gin.Engine, token string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/profile", token, models.CreateProfileRequest{
		FullName:    "Ada Lovelace",
		PhoneNumber: "+441234567890",
		Location:    "Cambridge",
		Interests:   []string{"creating"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func createEvent(t *testing.T, r *gin.Engine, token string, public bool) string {
	t.Helper()
	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	w := doJSON(t, r, http.MethodPost, "/api/admin/events", token, map[string]interface{}{
		"title":      "Open studio",
		"event_type": "workshop",
		"start_date": start,
		"end_date":   start.Add(3 * time.Hour),
		"capacity":   10,
		"is_public":  public,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ev models.EventResponse
	decode(t, w, &ev)
	return ev.ID
}

func TestAuthFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signUp(t, r, "ada")

	w := doJSON(t, r, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ada@example.org", Password: "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	r, _ := newTestRouter(t)
	signUp(t, r, "ada")

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "ada", Email: "other@example.org", Password: testPassword, Password2: testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "username_taken", resp.Reason)
}

func TestProfileValidationFields(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signUp(t, r, "ada")

	w := doJSON(t, r, http.MethodPost, "/api/profile", token, models.CreateProfileRequest{FullName: "A", PhoneNumber: "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "invalid_input", resp.Reason)
	assert.Contains(t, resp.Fields, "full_name")
	assert.Contains(t, resp.Fields, "phone_number")
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signUp(t, r, "ada")

	w := doJSON(t, r, http.MethodPost, "/api/admin/events", token, map[string]interface{}{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "admin_required", resp.Reason)
}

func TestEventRegistrationOverHTTP(t *testing.T) {
	r, repos := newTestRouter(t)
	admin := staffToken(t, r, repos)
	eventID := createEvent(t, r, admin, false)

	member := signUp(t, r, "ada")
	createProfile(t, r, member)

	w := doJSON(t, r, http.MethodPost, "/api/events/"+eventID+"/register", member, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var att models.AttendanceResponse
	decode(t, w, &att)
	assert.Regexp(t, `^TC-[0-9A-F]{10}$`, att.TicketNumber)

	w = doJSON(t, r, http.MethodPost, "/api/events/"+eventID+"/register", member, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "already_registered", resp.Reason)

	w = doJSON(t, r, http.MethodGet, "/api/events/"+eventID+"/status", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.EventStatusResponse
	decode(t, w, &status)
	assert.True(t, status.IsRegistered)

	w = doJSON(t, r, http.MethodGet, "/api/admin/events/"+eventID+"/attendees", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var attendees []models.AttendanceResponse
	decode(t, w, &attendees)
	assert.Len(t, attendees, 1)

	// Non-public events turn guests away.
	w = doJSON(t, r, http.MethodPost, "/api/events/"+eventID+"/guest-register", "", models.GuestRegisterRequest{
		Email: "visitor@example.org", FullName: "Visitor Person",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuestRegisterIsPublic(t *testing.T) {
	r, repos := newTestRouter(t)
	admin := staffToken(t, r, repos)
	eventID := createEvent(t, r, admin, true)

	body := models.GuestRegisterRequest{Email: "visitor@example.org", FullName: "Visitor Person", PhoneNumber: "+441234567890"}
	w := doJSON(t, r, http.MethodPost, "/api/events/"+eventID+"/guest-register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/events/"+eventID+"/guest-register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/events/missing/guest-register", "", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMalformedIDs(t *testing.T) {
	r, repos := newTestRouter(t)
	admin := staffToken(t, r, repos)
	eventID := createEvent(t, r, admin, true)
	member := signUp(t, r, "ada")

	for _, path := range []string{"/api/events/not-a-uuid", "/api/events/not-a-uuid/status", "/api/benefits/42"} {
		w := doJSON(t, r, http.MethodGet, path, member, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		var resp models.ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "not_found", resp.Reason, path)
	}

	w := doJSON(t, r, http.MethodPost, "/api/admin/events/"+eventID+"/bulk-check-in", admin, models.BulkCheckInRequest{
		UserIDs: []string{"abc"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Contains(t, resp.Fields, "user_ids")
}
