package handlers

import (
	"net/http"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"

	"github.com/gin-gonic/gin"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user, ok := middleware.CurrentUser(c); ok {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError shows an error page with a link back to where the user can retry.
func RenderError(c *gin.Context, code int, message, retry string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Retry": retry})
}

// RenderServiceError maps a service error to its status and message.
func RenderServiceError(c *gin.Context, err error, retry string) {
	if code := services.HTTPStatus(err); code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RenderError(c, services.HTTPStatus(err), services.Message(err), retry)
}

// JSONError writes {"error": message} with the mapped status.
func JSONError(c *gin.Context, err error) {
	if code := services.HTTPStatus(err); code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
}
