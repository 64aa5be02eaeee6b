package auth

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"

	"github.com/applelectricals/microjpeg/internal/database"
	"github.com/applelectricals/microjpeg/internal/utils"
)

type AuthHandler struct {
	validator *validator.Validate
	dbQueries *database.Queries
	config    *utils.Config
}

func NewHandler(validator *validator.Validate, dbQueries *database.Queries, config *utils.Config) *AuthHandler {
	return &AuthHandler{
		validator: validator,
		dbQueries: dbQueries,
		config:    config,
	}
}

// Login godoc
// @Summary Login
// @Description Login with email and password
// @Tags authentication
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Login Request"
// @Success 200 {object} utils.SuccessResponse{data=LoginResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var body LoginRequest
	if err := c.Bind(&body); err != nil {
		return utils.RespondError(c, http.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(body); err != nil {
		return utils.RespondError(c, http.StatusBadRequest, err.Error())
	}

	user, err := h.dbQueries.GetUsersByEmail(c.Request().Context(), body.Email)
	if err != nil {
		return utils.RespondError(c, http.StatusUnauthorized, "invalid email or password")
	}

	if err := utils.ComparePassword(user.PasswordHash, body.Password); err != nil {
		return utils.RespondError(c, http.StatusUnauthorized, "invalid email or password")
	}

	token, err := utils.GenerateJWT(user.ID, user.Tier, h.config.JwtSecret)
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	res := LoginResponse{
		AccessToken: token,
		User: User{
			ID:        user.ID.String(),
			Email:     user.Email,
			Tier:      user.Tier,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
	}

	return utils.RespondJSON(c, http.StatusOK, "login success", res)
}

// Register godoc
// @Summary Register
// @Description Register a new user
// @Tags authentication
// @Accept json
// @Produce json
// @Param register body RegisterRequest true "Register Request"
// @Success 201 {object} utils.SuccessResponse{data=User}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var body RegisterRequest
	if err := c.Bind(&body); err != nil {
		return utils.RespondError(c, http.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(body); err != nil {
		return utils.RespondError(c, http.StatusBadRequest, err.Error())
	}

	hashedPassword, err := utils.HashPassword(body.Password)
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	user, err := h.dbQueries.CreateUser(c.Request().Context(), database.CreateUserParams{
		Email:        body.Email,
		PasswordHash: hashedPassword,
		Tier:         "free",
	})
	if err != nil {
		return utils.RespondError(c, http.StatusInternalServerError, "internal server error")
	}

	resUser := User{
		ID:        user.ID.String(),
		Email:     user.Email,
		Tier:      user.Tier,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	return utils.RespondJSON(c, http.StatusCreated, "register success", resUser)
}
