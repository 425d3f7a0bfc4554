package feedback

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/view"
)

// Creator abstracts the storage behind the form.
type Creator interface {
	Create(ctx context.Context, name, email, message string) error
}

// Handler serves the public feedback form.
type Handler struct {
	logger    *slog.Logger
	repo      Creator
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Creator, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountRoutes registers the feedback routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showForm)
	r.Post("/", h.submit)
}

type feedbackForm struct {
	Name    string `validate:"required,max=120"`
	Email   string `validate:"omitempty,email"`
	Message string `validate:"required,max=4000"`
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, map[string]any{"Errors": map[string]string{}, "Form": feedbackForm{}}, http.StatusOK)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := feedbackForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
	}
	errs := map[string]string{}
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.render(w, r, map[string]any{"Errors": errs, "Form": form}, http.StatusBadRequest)
		return
	}
	if err := h.repo.Create(r.Context(), form.Name, form.Email, form.Message); err != nil {
		h.logger.Error("store feedback failed", slog.Any("error", err))
		h.render(w, r, map[string]any{"Errors": map[string]string{"general": "Gagal mengirim masukan, silakan coba lagi"}, "Form": form}, http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Terima kasih atas masukan Anda"})
	}
	http.Redirect(w, r, "/feedback", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Kotak Saran", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/feedback.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
