package handler

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/medistore/backend/internal/domain/profile"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
)

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>MediStore | Dashboard</title></head>
<body>
<main>
<h1>Welcome, {{.Username}}</h1>
{{if .IsNewUser}}<p class="banner">Thanks for joining MediStore.</p>{{end}}
<p>Orders placed: {{.Orders}}</p>
</main>
</body>
</html>
`))

// PageHandler renders the guarded storefront pages
type PageHandler struct {
	BaseHandler
	profiles ProfileService
}

// NewPageHandler creates a new page handler
func NewPageHandler(profiles ProfileService) *PageHandler {
	return &PageHandler{profiles: profiles}
}

type dashboardData struct {
	Username  string
	IsNewUser bool
	Orders    int
}

// Dashboard renders the dashboard for a viewer the page guard authorized.
// A missing profile record still renders with the email fallback name.
func (h *PageHandler) Dashboard(c *gin.Context) {
	if g, ok := c.Get(middleware.GuardKey); !ok || !g.(*session.Guard).CanRender() {
		c.Status(http.StatusNotFound)
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	data := dashboardData{}
	view, err := h.profiles.Load(c.Request.Context(), userID)
	switch {
	case err == nil:
		data.Username = view.Username
		data.IsNewUser = view.IsNewUser
		data.Orders = view.Counters.Orders
	case errors.Is(err, shared.ErrNotFound):
		claims := middleware.GetJWTClaims(c)
		data.Username = profile.EmailLocalPart(claims.Email)
	default:
		h.HandleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{Template: dashboardTemplate, Name: "dashboard", Data: data})
}
