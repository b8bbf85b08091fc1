package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdnotebook/internal/commands"
)

// RouterConfig wires the API to its collaborators.
type RouterConfig struct {
	Service *commands.Service
	Shell   Shell
	Window  WindowState
	Tray    TrayState
	// AllowedHosts lists the accepted Host headers; empty skips the check.
	AllowedHosts []string
	// AllowedOrigins lists the accepted Origin headers. Requests without an
	// Origin header are not affected.
	AllowedOrigins []string
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service, cfg.Shell, cfg.Window, cfg.Tray)

	r := chi.NewRouter()
	r.Use(LoopbackGuard(cfg.AllowedHosts, cfg.AllowedOrigins))
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Window and dialogs.
	r.Post("/window/theme", h.SetTheme)
	r.Get("/window", h.GetWindow)
	r.Post("/dialog/vault-folder", h.PickVaultFolder)

	// Vault document.
	r.Get("/vault", h.ReadVault)
	r.Put("/vault", h.WriteVault)
	r.Get("/vault/exists", h.VaultExists)

	// Files outside the vault.
	r.Get("/markdown", h.ReadMarkdown)
	r.Post("/save-file", h.SaveFile)
	r.Post("/export", h.Export)

	// Assets.
	r.Get("/assets", h.ListAssets)
	r.Get("/assets/{id}", h.ReadAsset)
	r.Put("/assets/{id}", h.WriteAsset)
	r.Delete("/assets/{id}", h.DeleteAsset)

	// Stored and recent vaults.
	r.Get("/vaults/stored", h.GetStoredVault)
	r.Put("/vaults/stored", h.SetStoredVault)
	r.Delete("/vaults/stored", h.ClearStoredVault)
	r.Get("/vaults/recent", h.RecentVaults)
	r.Delete("/vaults/recent", h.ForgetRecentVault)

	// Shell bridge.
	r.Get("/shell/tray", h.GetTray)
	r.Post("/shell/tray/menu/{id}", h.TrayMenu)
	r.Post("/shell/tray/click", h.TrayClick)
	r.Post("/shell/window/close", h.WindowClose)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
