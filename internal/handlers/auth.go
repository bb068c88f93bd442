package handlers

import (
	"net/http"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	identity *services.IdentityStore
}

func NewAuthHandler(identity *services.IdentityStore) *AuthHandler {
	return &AuthHandler{identity: identity}
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusFound, "/index")
		return
	}
	Render(c, http.StatusOK, "auth/register.html", nil)
}

func (h *AuthHandler) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	confirm := c.PostForm("confirm_pw")

	if password != confirm {
		Render(c, http.StatusBadRequest, "auth/register.html", gin.H{"Error": "Passwords do not match!", "Username": username})
		return
	}

	if _, err := h.identity.Register(c.Request.Context(), username, password); err != nil {
		if services.HTTPStatus(err) >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		Render(c, services.HTTPStatus(err), "auth/register.html", gin.H{"Error": services.Message(err), "Username": username})
		return
	}

	Render(c, http.StatusOK, "auth/login.html", gin.H{"Success": "Registered successfully! You can login as " + username + " now."})
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusFound, "/index")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, ok := h.identity.Login(c.Request.Context(), username, password)
	if !ok {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{"Error": "Invalid username or password!"})
		return
	}

	if err := middleware.SignIn(c, h.identity, user); err != nil {
		logrus.WithError(err).Error("Failed to save session")
		RenderError(c, http.StatusInternalServerError, "Could not start your session, please try again.", "/login")
		return
	}
	c.Redirect(http.StatusFound, "/index")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	_ = middleware.SignOut(c)
	c.Redirect(http.StatusFound, "/login")
}
