package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dzaytsev/credkeeper/internal/common"
	"github.com/dzaytsev/credkeeper/internal/server/models"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateRequest struct {
	Username *string `json:"username"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// accountView is the public projection of an account; the hash never leaves
// the server.
type accountView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Username == "" || req.Password == "" || req.Role == "" {
		c.JSON(http.StatusBadRequest,
			gin.H{"error": "Username, password, and role are required"})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	_, err := s.accounts.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
		case errors.Is(err, common.ErrorValidation):
			c.JSON(http.StatusBadRequest,
				gin.H{"error": "Username, password, and role are required"})
		default:
			s.logger.Error(c.Request.Context(), "register failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest,
			gin.H{"error": "Username and password are required"})
		return
	}

	token, account, err := s.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		case errors.Is(err, common.ErrorUnauthorized):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid password"})
		default:
			s.logger.Error(c.Request.Context(), "login failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"role":    account.Role,
		"message": "Logged in successfully",
	})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	list, err := s.accounts.List(c.Request.Context())
	if err != nil {
		s.logger.Error(c.Request.Context(), "list failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	views := make([]accountView, 0, len(list))
	for _, a := range list {
		views = append(views, accountView{ID: a.ID, Username: a.Username, Role: a.Role})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleUpdateAccount(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Username == nil && req.Role == nil && req.Password == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	err := s.accounts.Update(c.Request.Context(), c.Param("id"), req.Username, req.Role, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		case errors.Is(err, common.ErrorAlreadyExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
		case errors.Is(err, common.ErrorValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		default:
			s.logger.Error(c.Request.Context(), "update failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	err := s.accounts.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		default:
			s.logger.Error(c.Request.Context(), "delete failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (s *Server) handleProtectedSample(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Protected data"})
}
