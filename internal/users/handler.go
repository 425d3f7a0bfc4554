package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/miftah-app/miftah/internal/platform/httpx"
	"github.com/miftah-app/miftah/internal/rbac"
	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers the administrative user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUserView, shared.PermUserEdit))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUserCreate))
		r.Get("/new", h.showCreateUserForm)
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUserActivate))
		r.Post("/{id}/activate", h.setActive(true))
		r.Post("/{id}/deactivate", h.setActive(false))
	})
}

// MountRegisterRoutes registers the public self-registration routes.
func (h *Handler) MountRegisterRoutes(r chi.Router) {
	r.Get("/", h.showRegisterForm)
	r.Post("/", h.register)
}

type formErrors map[string]string

type registerForm struct {
	Username string `validate:"required,min=3,max=64"`
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", "Pengguna", map[string]any{"Errors": formErrors{"general": "Gagal memuat daftar pengguna"}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", "Pengguna", map[string]any{"Users": users}, http.StatusOK)
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", "Pengguna Baru", map[string]any{"Errors": formErrors{}, "Form": registerForm{}}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseUserForm(r)
	if len(errs) > 0 {
		h.render(w, r, "pages/users/form.html", "Pengguna Baru", map[string]any{"Errors": errs, "Form": form}, http.StatusBadRequest)
		return
	}
	if _, err := h.service.CreateUser(r.Context(), form.Username, form.FullName, form.Email, form.Password, true); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			h.render(w, r, "pages/users/form.html", "Pengguna Baru", map[string]any{"Errors": formErrors{"Username": "Nama pengguna sudah digunakan"}, "Form": form}, http.StatusConflict)
			return
		}
		h.logger.Error("create user failed", slog.Any("error", err))
		h.render(w, r, "pages/users/form.html", "Pengguna Baru", map[string]any{"Errors": formErrors{"general": "Gagal menyimpan pengguna"}, "Form": form}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "Pengguna berhasil dibuat")
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := h.service.SetActive(r.Context(), id, active); err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			h.logger.Error("toggle user failed", slog.Int64("id", id), slog.Any("error", err))
			h.redirectWithFlash(w, r, "/users", "error", "Gagal mengubah status pengguna")
			return
		}
		message := "Pengguna dinonaktifkan"
		if active {
			message = "Pengguna diaktifkan"
		}
		h.redirectWithFlash(w, r, "/users", "success", message)
	}
}

func (h *Handler) showRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/register.html", "Pendaftaran", map[string]any{"Errors": formErrors{}, "Form": registerForm{}}, http.StatusOK)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseUserForm(r)
	if len(errs) > 0 {
		h.render(w, r, "pages/register.html", "Pendaftaran", map[string]any{"Errors": errs, "Form": form}, http.StatusBadRequest)
		return
	}
	if _, err := h.service.Register(r.Context(), form.Username, form.FullName, form.Email, form.Password); err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			h.render(w, r, "pages/register.html", "Pendaftaran", map[string]any{"Errors": formErrors{"Username": "Nama pengguna sudah digunakan"}, "Form": form}, http.StatusConflict)
			return
		}
		h.logger.Error("register failed", slog.Any("error", err))
		h.render(w, r, "pages/register.html", "Pendaftaran", map[string]any{"Errors": formErrors{"general": "Pendaftaran gagal, silakan coba lagi"}, "Form": form}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/login", "success", "Pendaftaran berhasil, akun menunggu persetujuan admin")
}

func (h *Handler) parseUserForm(r *http.Request) (registerForm, formErrors) {
	if err := r.ParseForm(); err != nil {
		return registerForm{}, formErrors{"general": "Formulir tidak valid"}
	}
	form := registerForm{
		Username: r.PostFormValue("username"),
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	return form, errs
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: title, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
