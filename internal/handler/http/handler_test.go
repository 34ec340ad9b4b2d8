package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/neosign/identity/pkg/errors"
	"github.com/neosign/identity/pkg/health"
	"github.com/neosign/identity/pkg/middleware"

	"github.com/neosign/identity/internal/auth"
	"github.com/neosign/identity/internal/domain"
	"github.com/neosign/identity/internal/notifier"
	"github.com/neosign/identity/internal/service"
)

// --- In-memory fakes ---

// fakeUserRepo is a map-backed user repository.
type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
	for _, u := range users {
		r.put(u)
	}
	return r
}

func (r *fakeUserRepo) put(u *domain.User) {
	cp := *u
	r.byEmail[u.Email] = &cp
	r.byID[u.ID] = &cp
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return apperrors.Conflict("email already claimed")
	}
	r.put(u)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	if _, ok := r.byID[u.ID]; !ok {
		return apperrors.NotFound("user not found")
	}
	r.put(u)
	return nil
}

// fakeOTPRepo is a slice-backed OTP repository.
type fakeOTPRepo struct {
	rows []*domain.OTP
}

func (r *fakeOTPRepo) Create(_ context.Context, o *domain.OTP) error {
	cp := *o
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeOTPRepo) Find(_ context.Context, userID string, code int) (*domain.OTP, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID && r.rows[i].Code == code {
			cp := *r.rows[i]
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeOTPRepo) MarkSeen(_ context.Context, id string) error {
	for _, o := range r.rows {
		if o.ID == id {
			o.UserSeen = true
			return nil
		}
	}
	return apperrors.NotFound("otp not found")
}

// nullPublisher drops all events.
type nullPublisher struct{}

func (nullPublisher) PublishUserClaimed(context.Context, *domain.User) error       { return nil }
func (nullPublisher) PublishUserRegistered(context.Context, *domain.User) error    { return nil }
func (nullPublisher) PublishOTPIssued(context.Context, *domain.OTP) error          { return nil }
func (nullPublisher) PublishUserPasswordChanged(context.Context, string, string) error {
	return nil
}

// nullNotifier drops all messages.
type nullNotifier struct{}

func (nullNotifier) Enqueue(notifier.Message) {}

// --- Fixture ---

type fixture struct {
	router http.Handler
	users  *fakeUserRepo
	otps   *fakeOTPRepo
	issuer *auth.TokenIssuer
}

func newFixture(t *testing.T, users ...*domain.User) *fixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	issuer := auth.NewTokenIssuer("test-secret", "identity-service", "neosign", "15")
	userRepo := newFakeUserRepo(users...)
	otpRepo := &fakeOTPRepo{}

	accountSvc := service.NewAccountService(userRepo, issuer, nullPublisher{}, nullNotifier{}, "https://id.example.com", logger)
	otpSvc := service.NewOTPService(otpRepo, userRepo, nullPublisher{}, nullNotifier{}, logger)

	router := NewRouter(accountSvc, otpSvc, issuer, health.NewHandler(), logger,
		middleware.CORSConfig{Environment: "development"}, false)

	return &fixture{router: router, users: userRepo, otps: otpRepo, issuer: issuer}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func registeredUser() *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:             "u-1",
		Email:          "alice@example.com",
		PasswordHash:   hashForTest("CurrentPass1"),
		FirstName:      "Alice",
		LastName:       "Smith",
		Status:         domain.StatusCreated,
		EmailConfirmed: true,
		Roles:          []string{domain.RoleUser},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (f *fixture) tokenFor(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := f.issuer.Issue(u)
	require.NoError(t, err)
	return token
}

// --- CreateUser / ConfirmEmail / Registre ---

func TestCreateUser_ClaimsEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/CreateUser?email=new@example.com", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := f.users.GetByEmail(context.Background(), "new@example.com")
	assert.NoError(t, err)
}

func TestCreateUser_MissingEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/CreateUser", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is required", messageOf(t, rec))
}

func TestCreateUser_AlreadyRegistered(t *testing.T) {
	f := newFixture(t, registeredUser())

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/CreateUser?email=alice@example.com", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEmail_BadToken(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/protected-resource/authen/CreateUser?email=new@example.com", nil, "")

	rec := f.do(t, http.MethodGet, "/protected-resource/authen/ConfirmEmail?email=new@example.com&token=wrong", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid or expired confirmation token", messageOf(t, rec))
}

func TestRegister_EmailNotConfirmed(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/protected-resource/authen/CreateUser?email=new@example.com", nil, "")

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/new@example.com/Registre", map[string]string{
		"firstName": "Nora",
		"lastName":  "Khalil",
		"NumeroTel": "+21612345678",
		"Password":  "SecurePass1",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email not confirmed", messageOf(t, rec))
}

func TestRegister_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/ghost@example.com/Registre", map[string]string{
		"firstName": "Nora",
		"lastName":  "Khalil",
		"Password":  "SecurePass1",
	}, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.users.put(&domain.User{
		ID:             "u-2",
		Email:          "new@example.com",
		Status:         domain.StatusTemporaryCreated,
		EmailConfirmed: true,
		Roles:          []string{domain.RoleUser},
		CreatedAt:      now,
		UpdatedAt:      now,
	})

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/new@example.com/Registre", map[string]string{
		"firstName": "Nora",
		"lastName":  "Khalil",
		"NumeroTel": "+21612345678",
		"Password":  "SecurePass1",
	}, "")

	assert.Equal(t, http.StatusOK, rec.Code)

	u, err := f.users.GetByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsRegistered())
	assert.Equal(t, "Nora", u.FirstName)
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/new@example.com/Registre", map[string]string{
		"firstName": "Nora",
		"lastName":  "Khalil",
		"Password":  "short",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, registeredUser())

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/login", map[string]string{
		"Email":    "alice@example.com",
		"Password": "CurrentPass1",
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	claims, err := f.issuer.Validate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/login", map[string]string{
		"Email":    "ghost@example.com",
		"Password": "whatever1",
	}, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", messageOf(t, rec))
}

func TestLogin_WrongPasswordIs400(t *testing.T) {
	f := newFixture(t, registeredUser())

	rec := f.do(t, http.MethodPost, "/protected-resource/authen/login", map[string]string{
		"Email":    "alice@example.com",
		"Password": "WrongPass1",
	}, "")

	// Failed credentials report 400, not 401.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "incorrect password", messageOf(t, rec))
}

func TestLogin_RequiresJSONContentType(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/protected-resource/authen/login",
		bytes.NewReader([]byte(`{"Email":"a@x.com","Password":"p"}`)))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// --- Password endpoints ---

func TestNewPassword_Success(t *testing.T) {
	f := newFixture(t, registeredUser())

	rec := f.do(t, http.MethodPut, "/protected-resource/user/newpassword", map[string]string{
		"email":   "alice@example.com",
		"newpass": "BrandNewPass1",
	}, "")

	assert.Equal(t, http.StatusOK, rec.Code)

	u, _ := f.users.GetByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("BrandNewPass1")))
}

func TestChangePassword_RequiresAuth(t *testing.T) {
	f := newFixture(t, registeredUser())

	rec := f.do(t, http.MethodPost, "/protected-resource/user/ChangePasword", map[string]string{
		"CurrentPassword": "CurrentPass1",
		"NewPassword":     "BrandNewPass1",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_Success(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)

	rec := f.do(t, http.MethodPost, "/protected-resource/user/ChangePasword", map[string]string{
		"CurrentPassword": "CurrentPass1",
		"NewPassword":     "BrandNewPass1",
	}, f.tokenFor(t, user))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Profile endpoints ---

func TestGetUser_Authenticated(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)

	rec := f.do(t, http.MethodGet, "/protected-resource/user/", nil, f.tokenFor(t, user))

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, user.Email, got.Email)
	assert.NotContains(t, rec.Body.String(), user.PasswordHash)
}

func TestUpdateProfile(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)

	rec := f.do(t, http.MethodPut, "/protected-resource/user/updateuser", map[string]string{
		"firstName": "Alicia",
	}, f.tokenFor(t, user))

	require.Equal(t, http.StatusOK, rec.Code)

	u, _ := f.users.GetByEmail(context.Background(), user.Email)
	assert.Equal(t, "Alicia", u.FirstName)
	assert.Equal(t, "Smith", u.LastName)
}

// --- OTP endpoints ---

func TestAddOTP_UnknownUserStillSucceeds(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)

	rec := f.do(t, http.MethodPost, "/protected-resource/otp/addotp/ghost", nil, f.tokenFor(t, user))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.otps.rows)
}

func TestOTPRoundTrip(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)
	token := f.tokenFor(t, user)

	rec := f.do(t, http.MethodPost, "/protected-resource/otp/addotp/"+user.ID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.otps.rows, 1)
	code := f.otps.rows[0].Code

	rec = f.do(t, http.MethodGet,
		"/protected-resource/otp/verify/"+user.ID+"/otp/"+itoa(code), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.OTP
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.UserSeen)

	// Second use of the same code reports not found.
	rec = f.do(t, http.MethodGet,
		"/protected-resource/otp/verify/"+user.ID+"/otp/"+itoa(code), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyOTP_NonNumericCode(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)

	rec := f.do(t, http.MethodGet,
		"/protected-resource/otp/verify/"+user.ID+"/otp/abcd", nil, f.tokenFor(t, user))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPassOTPFlow(t *testing.T) {
	user := registeredUser()
	f := newFixture(t, user)
	token := f.tokenFor(t, user)

	rec := f.do(t, http.MethodPost, "/protected-resource/otp/addPassOtp/"+user.Email, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.otps.rows, 1)
	assert.Equal(t, domain.OTPPurposePasswordReset, f.otps.rows[0].Purpose)

	rec = f.do(t, http.MethodGet,
		"/protected-resource/otp/verify/"+user.Email+"/Passotp/"+itoa(f.otps.rows[0].Code), nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Operational endpoints ---

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(code int) string {
	return strconv.Itoa(code)
}
