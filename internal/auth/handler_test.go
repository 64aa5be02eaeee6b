package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applelectricals/microjpeg/internal/database"
	"github.com/applelectricals/microjpeg/internal/utils"
)

var (
	testDB      *sql.DB
	testQueries *database.Queries
)

func setupTestDB(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	var err error
	testDB, err = sql.Open("postgres", dbURL)
	require.NoError(t, err, "failed to connect to test database")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = testDB.PingContext(ctx)
	require.NoError(t, err, "failed to ping test database")

	testQueries = database.New(testDB)
	cleanupTestData(t)
}

func cleanupTestData(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.ExecContext(ctx, "DELETE FROM batch_files")
	require.NoError(t, err, "failed to cleanup batch_files")

	_, err = testDB.ExecContext(ctx, "DELETE FROM batches")
	require.NoError(t, err, "failed to cleanup batches")

	_, err = testDB.ExecContext(ctx, "DELETE FROM users")
	require.NoError(t, err, "failed to cleanup users")
}

func teardownTestDB(t *testing.T) {
	if testDB != nil {
		cleanupTestData(t)
		testDB.Close()
	}
}

func createTestUser(t *testing.T, email, password string) database.User {
	hashedPassword, err := utils.HashPassword(password)
	require.NoError(t, err)

	_, err = testQueries.CreateUser(context.Background(), database.CreateUserParams{
		Email:        email,
		PasswordHash: hashedPassword,
		Tier:         "free",
	})
	require.NoError(t, err)

	fullUser, err := testQueries.GetUsersByEmail(context.Background(), email)
	require.NoError(t, err)

	return fullUser
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

func TestLogin(t *testing.T) {
	setupTestDB(t)
	defer teardownTestDB(t)

	validator := validator.New(validator.WithRequiredStructEnabled())
	jwtSecret := "test-secret-key-for-integration-tests"

	tests := []struct {
		name             string
		requestBody      any
		setupData        func(*testing.T)
		expectedStatus   int
		expectedError    string
		validateResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "successful login",
			requestBody: LoginRequest{
				Email:    "test@example.com",
				Password: "password123",
			},
			setupData: func(t *testing.T) {
				createTestUser(t, "test@example.com", "password123")
			},
			expectedStatus: http.StatusOK,
			validateResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var response utils.SuccessResponse
				err := json.Unmarshal(rec.Body.Bytes(), &response)
				assert.NoError(t, err)
				assert.Equal(t, "login success", response.Message)
				assert.NotNil(t, response.Data)

				dataMap := response.Data.(map[string]any)
				assert.NotEmpty(t, dataMap["access_token"])
				assert.NotNil(t, dataMap["user"])

				userMap := dataMap["user"].(map[string]any)
				assert.Equal(t, "test@example.com", userMap["email"])
				assert.Equal(t, "free", userMap["tier"])
				assert.NotEmpty(t, userMap["id"])
			},
		},
		{
			name:           "invalid request body",
			requestBody:    "invalid json",
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name: "missing email",
			requestBody: LoginRequest{
				Password: "password123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid email format",
			requestBody: LoginRequest{
				Email:    "invalid-email",
				Password: "password123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing password",
			requestBody: LoginRequest{
				Email: "test@example.com",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "user not found",
			requestBody: LoginRequest{
				Email:    "notfound@example.com",
				Password: "password123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid email or password",
		},
		{
			name: "wrong password",
			requestBody: LoginRequest{
				Email:    "test@example.com",
				Password: "wrongpassword",
			},
			setupData: func(t *testing.T) {
				createTestUser(t, "test@example.com", "correctpassword")
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid email or password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupTestData(t)
			tt.setupData(t)

			e := echo.New()
			e.Validator = &CustomValidator{validator: validator}

			cfg := &utils.Config{
				JwtSecret: jwtSecret,
			}

			handler := &AuthHandler{
				validator: validator,
				dbQueries: testQueries,
				config:    cfg,
			}

			var reqBody io.Reader
			if str, ok := tt.requestBody.(string); ok {
				reqBody = strings.NewReader(str)
			} else {
				bodyBytes, err := json.Marshal(tt.requestBody)
				require.NoError(t, err)
				reqBody = strings.NewReader(string(bodyBytes))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", reqBody)
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.Login(c)

			if tt.expectedError != "" {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, rec.Code)

				var errorResponse utils.ErrorResponse
				err = json.Unmarshal(rec.Body.Bytes(), &errorResponse)
				assert.NoError(t, err)
				assert.Contains(t, errorResponse.Message, tt.expectedError)
			} else if tt.validateResponse != nil {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, rec.Code)
				tt.validateResponse(t, rec)
			} else {
				if err != nil {
					he, ok := err.(*echo.HTTPError)
					if ok {
						assert.Equal(t, tt.expectedStatus, he.Code)
					} else {
						assert.Equal(t, tt.expectedStatus, rec.Code)
					}
				} else {
					assert.Equal(t, tt.expectedStatus, rec.Code)
				}
			}
		})
	}
}

func TestRegister(t *testing.T) {
	setupTestDB(t)
	defer teardownTestDB(t)

	validator := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name             string
		requestBody      any
		setupData        func(*testing.T)
		expectedStatus   int
		expectedError    string
		validateResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "invalid request body",
			requestBody:    "invalid json",
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name: "missing email",
			requestBody: RegisterRequest{
				Password:        "password123",
				ConfirmPassword: "password123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "password mismatch",
			requestBody: RegisterRequest{
				Email:           "test@mail.com",
				Password:        "password123",
				ConfirmPassword: "different123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "account already registered",
			requestBody: RegisterRequest{
				Email:           "test@mail.com",
				Password:        "password123",
				ConfirmPassword: "password123",
			},
			setupData: func(t *testing.T) {
				createTestUser(t, "test@mail.com", "password123")
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name: "register success",
			requestBody: RegisterRequest{
				Email:           "test@mail.com",
				Password:        "password123",
				ConfirmPassword: "password123",
			},
			setupData:      func(t *testing.T) {},
			expectedStatus: http.StatusCreated,
			validateResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var res utils.SuccessResponse
				err := json.Unmarshal(rec.Body.Bytes(), &res)
				assert.NoError(t, err)
				assert.Equal(t, "register success", res.Message)
				assert.NotNil(t, res.Data)

				dataMap := res.Data.(map[string]any)
				assert.NotNil(t, dataMap["id"])
				assert.NotNil(t, dataMap["email"])
				assert.Equal(t, "free", dataMap["tier"])
				assert.NotNil(t, dataMap["created_at"])
				assert.NotNil(t, dataMap["updated_at"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupTestData(t)
			tt.setupData(t)

			e := echo.New()
			e.Validator = &CustomValidator{validator: validator}

			handler := &AuthHandler{
				validator: validator,
				dbQueries: testQueries,
			}

			var reqBody io.Reader
			if str, ok := tt.requestBody.(string); ok {
				reqBody = strings.NewReader(str)
			} else {
				bodyBytes, err := json.Marshal(tt.requestBody)
				require.NoError(t, err)
				reqBody = strings.NewReader(string(bodyBytes))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/register", reqBody)
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.Register(c)

			if tt.expectedError != "" {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, rec.Code)

				var errorResponse utils.ErrorResponse
				err = json.Unmarshal(rec.Body.Bytes(), &errorResponse)
				assert.NoError(t, err)
				assert.Contains(t, errorResponse.Message, tt.expectedError)
			} else if tt.validateResponse != nil {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, rec.Code)
				tt.validateResponse(t, rec)
			} else {
				if err != nil {
					he, ok := err.(*echo.HTTPError)
					if ok {
						assert.Equal(t, tt.expectedStatus, he.Code)
					} else {
						assert.Equal(t, tt.expectedStatus, rec.Code)
					}
				} else {
					assert.Equal(t, tt.expectedStatus, rec.Code)
				}
			}
		})
	}
}

// CustomValidator is a wrapper for validator to implement echo.Validator interface
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}
