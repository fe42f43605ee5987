package server

import (
	"html/template"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/eduyeet/authgate/internal/domain/auth"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Form}}<form id="login" data-action="/v1/auth/login" data-redirect="{{.Redirect}}">
<input type="email" name="email" required>
<input type="password" name="password" required>
<button type="submit">Sign in</button>
</form>{{end}}
</body>
</html>`))

type page struct {
	Title    string
	Message  string
	Redirect string
	Form     bool
}

type pages struct {
	login string
	home  string
	auth  *auth.Service
}

func newPages(cfg *config.Config, svc *auth.Service) *pages {
	return &pages{login: cfg.Auth.Login(), home: cfg.Auth.Home(), auth: svc}
}

func render(c *fiber.Ctx, status int, p page) error {
	c.Type("html", "utf-8")
	c.Status(status)
	return pageTemplate.Execute(c.Response().BodyWriter(), p)
}

// Login renders the sign-in form. The gate has already sent authenticated
// clients to the landing page.
func (p *pages) Login(c *fiber.Ctx) error {
	redirect := c.Query("redirect", p.home)
	return render(c, fiber.StatusOK, page{Title: "Sign in", Redirect: redirect, Form: true})
}

// Verify confirms an account from the link sent after registration.
func (p *pages) Verify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Query("id"))
	code := c.Query("code")
	if err != nil || code == "" {
		return render(c, fiber.StatusBadRequest, page{Title: "Verify account", Message: "The verification link is incomplete."})
	}

	if err := p.auth.VerifyAccount(c.UserContext(), id, code); err != nil {
		slog.Info("Account verification failed", "user_id", id, "error", err)
		return render(c, auth.KindOf(err).Status(), page{Title: "Verify account", Message: "The verification link is invalid or has expired."})
	}
	return render(c, fiber.StatusOK, page{Title: "Verify account", Message: "Your account is verified. You can sign in now."})
}

// Home is the landing page for authenticated users.
func (p *pages) Home(c *fiber.Ctx) error {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		return c.Redirect(p.login, fiber.StatusFound)
	}
	return render(c, fiber.StatusOK, page{Title: "Home", Message: "Signed in as " + identity.Email})
}
