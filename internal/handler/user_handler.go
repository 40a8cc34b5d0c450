package handler

import (
	"errors"
	"net/http"
	"strings"

	"todotree/internal/auth"
	"todotree/internal/middleware"
	"todotree/internal/model"
	"todotree/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserHandler struct {
	repo   repository.UserRepositoryInterface
	tokens *auth.Manager
}

func NewUserHandler(repo repository.UserRepositoryInterface, tokens *auth.Manager) *UserHandler {
	return &UserHandler{repo: repo, tokens: tokens}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

// Register godoc
// @Summary      Register a new user
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "New user"
// @Success      201 {object} Response{data=AuthResponse}
// @Failure      400 {object} Response
// @Failure      409 {object} Response
// @Router       /register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid input")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "DB error")
		return
	}
	if existing != nil {
		respondFail(c, http.StatusConflict, "User with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Hash error")
		return
	}

	user := &model.User{
		ID:             uuid.New(),
		Email:          req.Email,
		Name:           req.Name,
		HashedPassword: string(hash),
	}

	if err := h.repo.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			respondFail(c, http.StatusConflict, "User with this email already exists")
			return
		}
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "Create failed")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Token error")
		return
	}

	respondSuccess(c, http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(user)})
}

// Login godoc
// @Summary      Log in and receive a bearer token
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} Response{data=AuthResponse}
// @Failure      401 {object} Response
// @Router       /login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid input")
		return
	}

	user, err := h.repo.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "DB error")
		return
	}
	// Одинаковый ответ для неизвестного email и неверного пароля
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		respondFail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Token error")
		return
	}

	respondSuccess(c, http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
}

// Me godoc
// @Summary      Current user
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Response{data=UserResponse}
// @Failure      401 {object} Response
// @Router       /me [get]
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "DB error")
		return
	}
	if user == nil {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}

	respondSuccess(c, http.StatusOK, toUserResponse(user))
}
