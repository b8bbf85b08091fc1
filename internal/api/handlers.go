package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdnotebook/internal/commands"
	"github.com/starford/mdnotebook/internal/lifecycle"
	"github.com/starford/mdnotebook/internal/window"
)

// Shell receives the OS events the webview shell forwards.
type Shell interface {
	HandleMenu(id string) error
	HandleTrayClick(button lifecycle.MouseButton, state lifecycle.ButtonState)
	HandleCloseRequested() bool
}

// WindowState exposes the mirrored window state.
type WindowState interface {
	Snapshot() window.State
}

// TrayState exposes the built tray menu.
type TrayState interface {
	Menu() window.TrayMenu
}

// Handler holds API route handlers.
type Handler struct {
	svc   *commands.Service
	shell Shell
	win   WindowState
	tray  TrayState
}

// NewHandler creates a new Handler.
func NewHandler(svc *commands.Service, shell Shell, win WindowState, tray TrayState) *Handler {
	return &Handler{svc: svc, shell: shell, win: win, tray: tray}
}

func folderParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "folder is required", Kind: "validation"})
		return "", false
	}
	return folder, true
}

// SetTheme handles POST /api/window/theme.
//
//	@Summary	Switch the window between dark and light
//	@Tags		window
//	@Accept		json
//	@Param		body	body	ThemeRequest	true	"Theme"
//	@Success	204
//	@Router		/window/theme [post]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetWindowTheme(r.Context(), req.Dark); err != nil {
		writeError(w, "set theme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWindow handles GET /api/window.
func (h *Handler) GetWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.win.Snapshot())
}

// PickVaultFolder handles POST /api/dialog/vault-folder.
//
//	@Summary	Ask the user for a vault folder
//	@Tags		dialog
//	@Produce	json
//	@Success	200	{object}	FolderRequest
//	@Failure	409	{object}	errResponse	"dialog cancelled"
//	@Router		/dialog/vault-folder [post]
func (h *Handler) PickVaultFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.svc.PickVaultFolder(r.Context())
	if err != nil {
		writeError(w, "pick vault folder", err)
		return
	}
	writeJSON(w, http.StatusOK, FolderRequest{Folder: folder})
}

// ReadVault handles GET /api/vault.
//
//	@Summary	Read vault.json
//	@Tags		vault
//	@Produce	json
//	@Param		folder	query		string	true	"Vault folder"
//	@Success	200		{object}	VaultDataResponse
//	@Router		/vault [get]
func (h *Handler) ReadVault(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	data, found, err := h.svc.ReadVaultFile(r.Context(), folder)
	if err != nil {
		writeError(w, "read vault", err, "folder", folder)
		return
	}
	resp := VaultDataResponse{}
	if found {
		resp.Data = &data
	}
	writeJSON(w, http.StatusOK, resp)
}

// WriteVault handles PUT /api/vault.
//
//	@Summary	Replace vault.json atomically
//	@Tags		vault
//	@Accept		json
//	@Param		body	body	WriteVaultRequest	true	"Vault content"
//	@Success	204
//	@Router		/vault [put]
func (h *Handler) WriteVault(w http.ResponseWriter, r *http.Request) {
	var req WriteVaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.WriteVaultFile(r.Context(), req.Folder, req.Data); err != nil {
		writeError(w, "write vault", err, "folder", req.Folder)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VaultExists handles GET /api/vault/exists.
func (h *Handler) VaultExists(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	exists, err := h.svc.VaultFileExists(r.Context(), folder)
	if err != nil {
		writeError(w, "vault exists", err, "folder", folder)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// ReadMarkdown handles GET /api/markdown.
//
//	@Summary	Read a markdown file opened from outside the vault
//	@Tags		files
//	@Produce	json
//	@Param		path	query		string	true	"File path"
//	@Success	200		{object}	map[string]string
//	@Failure	400		{object}	errResponse	"disallowed extension"
//	@Failure	404		{object}	errResponse
//	@Router		/markdown [get]
func (h *Handler) ReadMarkdown(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	content, err := h.svc.ReadMarkdownFile(r.Context(), path)
	if err != nil {
		writeError(w, "read markdown", err, "path", path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// ListAssets handles GET /api/assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	ids, err := h.svc.ListVaultAssets(r.Context(), folder)
	if err != nil {
		writeError(w, "list assets", err, "folder", folder)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

// ReadAsset handles GET /api/assets/{id}.
func (h *Handler) ReadAsset(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	data, err := h.svc.ReadVaultAsset(r.Context(), folder, id)
	if err != nil {
		writeError(w, "read asset", err, "folder", folder, "asset_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": data})
}

// WriteAsset handles PUT /api/assets/{id}.
//
//	@Summary	Store an encrypted asset
//	@Tags		assets
//	@Accept		json
//	@Param		id		path	string				true	"Asset id"
//	@Param		body	body	WriteAssetRequest	true	"Asset"
//	@Success	204
//	@Failure	400	{object}	errResponse	"invalid asset id"
//	@Router		/assets/{id} [put]
func (h *Handler) WriteAsset(w http.ResponseWriter, r *http.Request) {
	var req WriteAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.WriteVaultAsset(r.Context(), req.Folder, id, req.Data); err != nil {
		writeError(w, "write asset", err, "folder", req.Folder, "asset_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAsset handles DELETE /api/assets/{id}.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteVaultAsset(r.Context(), folder, id); err != nil {
		writeError(w, "delete asset", err, "folder", folder, "asset_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveFile handles POST /api/save-file.
//
//	@Summary	Ask for a destination and save content there
//	@Tags		files
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SaveFileRequest	true	"File"
//	@Success	200		{object}	map[string]bool	"saved is false when cancelled"
//	@Router		/save-file [post]
func (h *Handler) SaveFile(w http.ResponseWriter, r *http.Request) {
	var req SaveFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := h.svc.SaveFile(r.Context(), commands.SaveRequest{
		DefaultName:      req.DefaultName,
		Content:          req.Content,
		FilterName:       req.FilterName,
		FilterExtensions: req.FilterExtensions,
	})
	if err != nil {
		writeError(w, "save file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// Export handles POST /api/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ExportNotesToFolder(r.Context(), req.Folder, req.Notes); err != nil {
		writeError(w, "export notes", err, "folder", req.Folder)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStoredVault handles GET /api/vaults/stored.
func (h *Handler) GetStoredVault(w http.ResponseWriter, r *http.Request) {
	folder, ok, err := h.svc.GetStoredVault(r.Context())
	if err != nil {
		writeError(w, "get stored vault", err)
		return
	}
	resp := StoredVaultResponse{}
	if ok {
		resp.Folder = &folder
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetStoredVault handles PUT /api/vaults/stored.
func (h *Handler) SetStoredVault(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetStoredVault(r.Context(), req.Folder); err != nil {
		writeError(w, "set stored vault", err, "folder", req.Folder)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearStoredVault handles DELETE /api/vaults/stored.
func (h *Handler) ClearStoredVault(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearStoredVault(r.Context()); err != nil {
		writeError(w, "clear stored vault", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecentVaults handles GET /api/vaults/recent.
func (h *Handler) RecentVaults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	vaults, err := h.svc.ListRecentVaults(r.Context(), limit)
	if err != nil {
		writeError(w, "list recent vaults", err)
		return
	}
	writeJSON(w, http.StatusOK, RecentVaultsResponse{Vaults: vaults})
}

// ForgetRecentVault handles DELETE /api/vaults/recent?folder=.
func (h *Handler) ForgetRecentVault(w http.ResponseWriter, r *http.Request) {
	folder, ok := folderParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.ForgetRecentVault(r.Context(), folder); err != nil {
		writeError(w, "forget recent vault", err, "folder", folder)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrayMenu handles POST /api/shell/tray/menu/{id}.
func (h *Handler) TrayMenu(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.HandleMenu(chi.URLParam(r, "id")); err != nil {
		writeError(w, "tray menu", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrayClick handles POST /api/shell/tray/click.
func (h *Handler) TrayClick(w http.ResponseWriter, r *http.Request) {
	var req TrayClickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.shell.HandleTrayClick(req.Button, req.State)
	w.WriteHeader(http.StatusNoContent)
}

// GetTray handles GET /api/shell/tray.
func (h *Handler) GetTray(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.tray.Menu())
}

// WindowClose handles POST /api/shell/window/close. The shell must not close
// the window when prevent_close is true.
func (h *Handler) WindowClose(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"prevent_close": h.shell.HandleCloseRequested()})
}
