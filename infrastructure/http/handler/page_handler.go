package handler

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/hiprotech/portal/application/port/inbound"
	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/domain/entity"
	apperr "github.com/hiprotech/portal/domain/error"
	"github.com/hiprotech/portal/domain/valueobject"
	"github.com/hiprotech/portal/infrastructure/http/gateway"
	"github.com/hiprotech/portal/infrastructure/http/middleware"
	"github.com/hiprotech/portal/infrastructure/http/validator"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const (
	productsPath = "/products"
	ordersPath   = "/orders"
)

// product and order mirror the backend catalogue payloads.
type product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
}

type order struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	PlacedAt  time.Time `json:"placedAt"`
}

var productColumns = []column[product]{
	{key: "id", compare: func(a, b product) int { return strings.Compare(a.ID, b.ID) }, text: func(p product) string { return p.ID }},
	{key: "name", compare: func(a, b product) int { return strings.Compare(a.Name, b.Name) }, text: func(p product) string { return p.Name }},
	{key: "category", compare: func(a, b product) int { return strings.Compare(a.Category, b.Category) }, text: func(p product) string { return p.Category }},
	{key: "price", compare: func(a, b product) int { return cmp.Compare(a.Price, b.Price) }},
	{key: "stock", compare: func(a, b product) int { return cmp.Compare(a.Stock, b.Stock) }},
}

var orderColumns = []column[order]{
	{key: "id", compare: func(a, b order) int { return strings.Compare(a.ID, b.ID) }, text: func(o order) string { return o.ID }},
	{key: "productId", compare: func(a, b order) int { return strings.Compare(a.ProductID, b.ProductID) }, text: func(o order) string { return o.ProductID }},
	{key: "quantity", compare: func(a, b order) int { return cmp.Compare(a.Quantity, b.Quantity) }},
	{key: "status", compare: func(a, b order) int { return strings.Compare(a.Status, b.Status) }, text: func(o order) string { return o.Status }},
	{key: "placedAt", compare: func(a, b order) int { return a.PlacedAt.Compare(b.PlacedAt) }},
}

// PageHandler renders the portal pages. Every handler expects the request
// session attached by middleware.SessionMiddleware.
type PageHandler struct {
	gateway *gateway.Gateway
	limiter *middleware.RateLimitMiddleware
	pages   *Renderer
	logger  logger.Logger
}

func NewPageHandler(gw *gateway.Gateway, limiter *middleware.RateLimitMiddleware, log logger.Logger) (*PageHandler, error) {
	pages, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &PageHandler{gateway: gw, limiter: limiter, pages: pages, logger: log}, nil
}

// RegisterRoutes mounts the pages on r. Protected pages are re-checked
// against the hydrated session by guard.RequireSession.
func (h *PageHandler) RegisterRoutes(r *mux.Router, sessions *middleware.SessionMiddleware, guard *middleware.RouteGuardMiddleware) {
	public := func(fn http.HandlerFunc) http.Handler {
		return sessions.Attach(fn)
	}
	protected := func(fn http.HandlerFunc) http.Handler {
		return sessions.Attach(guard.RequireSession(fn))
	}
	throttled := func(fn http.HandlerFunc) http.Handler {
		if h.limiter == nil {
			return public(fn)
		}
		return h.limiter.RateLimit(public(fn))
	}

	r.Handle(valueobject.PathHome, public(h.Home)).Methods(http.MethodGet)
	r.Handle(valueobject.PathLogin, public(h.LoginForm)).Methods(http.MethodGet)
	r.Handle(valueobject.PathLogin, throttled(h.Login)).Methods(http.MethodPost)
	r.Handle(valueobject.PathRegister, public(h.RegisterForm)).Methods(http.MethodGet)
	r.Handle(valueobject.PathRegister, throttled(h.Register)).Methods(http.MethodPost)
	r.Handle(valueobject.PathLogout, public(h.Logout)).Methods(http.MethodPost)
	r.Handle(valueobject.PathUnauthorized, public(h.Unauthorized)).Methods(http.MethodGet)
	r.Handle(valueobject.PathNotFound, public(h.NotFound)).Methods(http.MethodGet)

	r.Handle(valueobject.PathDashboard, protected(h.Dashboard)).Methods(http.MethodGet)
	r.Handle(valueobject.PathProfile, protected(h.Profile)).Methods(http.MethodGet)
	r.Handle(valueobject.PathProfile, protected(h.UpdateProfile)).Methods(http.MethodPost)
	r.Handle(valueobject.PathProducts, protected(h.Products)).Methods(http.MethodGet)
	r.Handle(valueobject.PathOrders, protected(h.Orders)).Methods(http.MethodGet)
	r.Handle(valueobject.PathAdmin, protected(h.Admin)).Methods(http.MethodGet)
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", pageData{Title: "Home"})
}

func (h *PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{
		Title: "Sign in",
		Form:  map[string]string{"returnUrl": r.URL.Query().Get("returnUrl")},
	})
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", pageData{Title: "Sign in", Error: "Invalid form submission"})
		return
	}
	form := map[string]string{
		"email":     strings.TrimSpace(r.PostFormValue("email")),
		"returnUrl": r.PostFormValue("returnUrl"),
	}
	password := r.PostFormValue("password")

	if err := validator.Credentials(form["email"], password); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", pageData{Title: "Sign in", Error: formMessage(err), Form: form})
		return
	}

	auth := h.auth(r)
	if _, err := auth.Login(r.Context(), inbound.LoginRequest{Email: form["email"], Password: password}); err != nil {
		if apperr.CodeOf(err) == apperr.ErrCodeInvalidCredentials && h.limiter != nil {
			h.limiter.RecordFailure(r)
		}
		h.render(w, r, apperr.GetHTTPStatusCode(err), "login", pageData{
			Title: "Sign in",
			Error: failureMessage(auth.State().Snapshot(), err),
			Form:  form,
		})
		return
	}

	http.Redirect(w, r, usecase.SafeReturnURL(form["returnUrl"]), http.StatusSeeOther)
}

func (h *PageHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "register", pageData{Title: "Register", Error: "Invalid form submission"})
		return
	}
	form := map[string]string{
		"email":     strings.TrimSpace(r.PostFormValue("email")),
		"firstName": strings.TrimSpace(r.PostFormValue("firstName")),
		"lastName":  strings.TrimSpace(r.PostFormValue("lastName")),
	}
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirmPassword")

	if err := validator.Registration(form["email"], password, confirm, form["firstName"], form["lastName"]); err != nil {
		h.render(w, r, http.StatusBadRequest, "register", pageData{Title: "Register", Error: formMessage(err), Form: form})
		return
	}

	auth := h.auth(r)
	_, err := auth.Register(r.Context(), inbound.RegisterRequest{
		Email:     form["email"],
		Password:  password,
		FirstName: form["firstName"],
		LastName:  form["lastName"],
	})
	if err != nil {
		status := apperr.GetHTTPStatusCode(err)
		if apperr.CodeOf(err) == apperr.ErrCodeRegistration {
			status = http.StatusBadRequest
			if h.limiter != nil {
				h.limiter.RecordFailure(r)
			}
		}
		h.render(w, r, status, "register", pageData{
			Title: "Register",
			Error: failureMessage(auth.State().Snapshot(), err),
			Form:  form,
		})
		return
	}

	http.Redirect(w, r, valueobject.PathDashboard, http.StatusSeeOther)
}

func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth(r).Logout(r.Context()); err != nil {
		h.logger.Error(r.Context(), "Logout failed", err, nil)
	}
	http.Redirect(w, r, valueobject.PathLogin, http.StatusSeeOther)
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "dashboard", pageData{Title: "Dashboard"})
}

// Profile replaces the token placeholder names with the backend profile.
// When the fetch fails the placeholder is shown with a notice.
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Profile"}
	if _, err := h.auth(r).Profile(r.Context()); err != nil {
		if h.sessionEnded(w, r, err) {
			return
		}
		h.logger.Warn(r.Context(), "Profile fetch failed", map[string]interface{}{"error": err.Error()})
		data.Error = "Unable to load your full profile right now."
	}
	h.render(w, r, http.StatusOK, "profile", data)
}

func (h *PageHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "profile", pageData{Title: "Profile", Error: "Invalid form submission"})
		return
	}
	patch := entity.UserPatch{
		FirstName: strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:  strings.TrimSpace(r.PostFormValue("lastName")),
		Avatar:    strings.TrimSpace(r.PostFormValue("avatar")),
	}

	data := pageData{Title: "Profile"}
	status := http.StatusOK
	if _, err := h.auth(r).UpdateProfile(r.Context(), patch); err != nil {
		if h.sessionEnded(w, r, err) {
			return
		}
		h.logger.Warn(r.Context(), "Profile update failed", map[string]interface{}{"error": err.Error()})
		data.Error = "Your profile could not be saved."
		status = http.StatusBadGateway
	} else {
		data.Flash = "Profile updated."
	}
	h.render(w, r, status, "profile", data)
}

func (h *PageHandler) Products(w http.ResponseWriter, r *http.Request) {
	var items []product
	data := pageData{Title: "Products"}
	if err := h.fetch(r, productsPath, &items); err != nil {
		if h.sessionEnded(w, r, err) {
			return
		}
		data.Error = "Products are unavailable right now."
	}
	data.Data = buildTable(items, productColumns, parseTableQuery(r))
	h.render(w, r, http.StatusOK, "products", data)
}

func (h *PageHandler) Orders(w http.ResponseWriter, r *http.Request) {
	var items []order
	data := pageData{Title: "Orders"}
	if err := h.fetch(r, ordersPath, &items); err != nil {
		if h.sessionEnded(w, r, err) {
			return
		}
		data.Error = "Orders are unavailable right now."
	}
	data.Data = buildTable(items, orderColumns, parseTableQuery(r))
	h.render(w, r, http.StatusOK, "orders", data)
}

func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "admin", pageData{Title: "Administration"})
}

func (h *PageHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, "unauthorized", pageData{Title: "Access denied"})
}

// NotFound also serves as the route guard's handler for unknown paths, so
// it works without a request session.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", pageData{Title: "Not found"})
}

// auth binds the auth use case to this request's cookies and session.
func (h *PageHandler) auth(r *http.Request) *usecase.AuthUseCase {
	s := middleware.SessionFrom(r.Context())
	return usecase.NewAuthUseCase(h.gateway.WithStore(s.Store), s.State, h.logger)
}

func (h *PageHandler) fetch(r *http.Request, path string, v interface{}) error {
	s := middleware.SessionFrom(r.Context())
	resp, err := h.gateway.WithStore(s.Store).Do(r.Context(), &outbound.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apperr.ErrExternalService("api", resp.StatusCode, errors.New(resp.Message()))
	}
	return resp.DecodeData(v)
}

// sessionEnded redirects to login when err means the backend session is
// gone. The gateway has already cleared the cookies.
func (h *PageHandler) sessionEnded(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, gateway.ErrSessionEnded) {
		return false
	}
	http.Redirect(w, r, usecase.LoginLocation(r.URL.Path), http.StatusFound)
	return true
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	if s := middleware.SessionFrom(r.Context()); s != nil {
		data.Session = s.State.Snapshot()
	} else {
		data.Session = entity.AnonymousSession()
	}
	if err := h.pages.Render(w, status, page, data); err != nil {
		h.logger.Error(r.Context(), "Failed to render page", err, map[string]interface{}{"page": page})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func formMessage(err error) string {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" && appErr.Code == apperr.ErrCodeInvalidPassword {
			return appErr.Details
		}
		return appErr.Message
	}
	return "Please check the form and try again."
}

// failureMessage prefers the message the session state recorded, which is
// the backend's own wording when it sent one.
func failureMessage(snap entity.Session, err error) string {
	if snap.Error != "" {
		return snap.Error
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to respond. Please try again."
	}
	return "Something went wrong. Please try again."
}
