package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/miftah-app/miftah/internal/rbac"
	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/view"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   AdminPort
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service AdminPort, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSystemConfig))
		r.Get("/", h.listRoles)
		r.Get("/new", h.showCreateRoleForm)
		r.Get("/{id}", h.showRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSystemConfig))
		r.Post("/", h.createRole)
		r.Post("/{id}", h.updateRole)
		r.Post("/{id}/permissions", h.setPermissions)
		r.Post("/{id}/delete", h.deleteRole)
		r.Post("/{id}/assign", h.assignRole)
		r.Post("/{id}/remove", h.removeRole)
	})
}

type formErrors map[string]string

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		h.render(w, r, "pages/roles/list.html", "Peran", map[string]any{"Errors": formErrors{"general": "Gagal memuat daftar peran"}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/list.html", "Peran", map[string]any{"Roles": roles}, http.StatusOK)
}

func (h *Handler) showCreateRoleForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/roles/form.html", "Peran Baru", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("get role failed", slog.Int64("id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", "Ubah Peran", map[string]any{
		"Role":        role,
		"Permissions": perms,
		"Errors":      formErrors{},
	}, http.StatusOK)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	role, err := h.service.CreateRole(r.Context(), r.PostFormValue("name"), r.PostFormValue("description"))
	if err != nil {
		h.logger.Error("create role failed", slog.Any("error", err))
		h.render(w, r, "pages/roles/form.html", "Peran Baru", map[string]any{"Errors": formErrors{"general": "Gagal menyimpan peran"}}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/system/roles/"+strconv.FormatInt(role.ID, 10), "success", "Peran berhasil dibuat")
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if _, err := h.service.UpdateRole(r.Context(), id, r.PostFormValue("name"), r.PostFormValue("description")); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("update role failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/system/roles", "error", "Gagal mengubah peran")
		return
	}
	h.redirectWithFlash(w, r, "/system/roles", "success", "Peran diperbarui")
}

// setPermissions replaces the role's grant list with the checked boxes. A
// submit with nothing checked revokes everything the role carried.
func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	var permissionIDs []int64
	for _, raw := range r.PostForm["permission_id"] {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		permissionIDs = append(permissionIDs, pid)
	}
	if err := h.service.SetRolePermissions(r.Context(), id, permissionIDs); err != nil {
		h.logger.Error("set role permissions failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/system/roles", "error", "Gagal menyimpan izin peran")
		return
	}
	h.redirectWithFlash(w, r, "/system/roles/"+strconv.FormatInt(id, 10), "success", "Izin peran diperbarui")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("delete role failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/system/roles", "error", "Gagal menghapus peran")
		return
	}
	h.redirectWithFlash(w, r, "/system/roles", "success", "Peran dihapus")
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	h.changeAssignment(w, r, h.service.AssignRole, "Peran diberikan ke pengguna")
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	h.changeAssignment(w, r, h.service.RemoveRole, "Peran dicabut dari pengguna")
}

func (h *Handler) changeAssignment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, roleID int64) error, message string) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := apply(r.Context(), userID, id); err != nil {
		h.logger.Error("change role assignment failed", slog.Int64("role", id), slog.Int64("user", userID), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/system/roles", "error", "Gagal mengubah penugasan peran")
		return
	}
	h.redirectWithFlash(w, r, "/system/roles/"+strconv.FormatInt(id, 10), "success", message)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
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
