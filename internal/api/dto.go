package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdnotebook/internal/export"
	"github.com/starford/mdnotebook/internal/lifecycle"
	"github.com/starford/mdnotebook/internal/recent"
)

type validatable interface {
	Validate() error
}

// ThemeRequest is the request body for setting the window theme.
type ThemeRequest struct {
	Dark bool `json:"dark"`
}

func (r *ThemeRequest) Validate() error { return nil }

// FolderRequest carries a vault folder.
type FolderRequest struct {
	Folder string `json:"folder" example:"/home/me/Notes"`
}

func (r *FolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Folder, validation.Required),
	)
}

// WriteVaultRequest is the request body for replacing vault.json.
type WriteVaultRequest struct {
	Folder string `json:"folder"`
	Data   string `json:"data"`
}

func (r *WriteVaultRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Folder, validation.Required),
	)
}

// WriteAssetRequest is the request body for storing an asset.
type WriteAssetRequest struct {
	Folder string `json:"folder"`
	Data   string `json:"data"`
}

func (r *WriteAssetRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Folder, validation.Required),
	)
}

// SaveFileRequest is the request body for the save-file dialog.
type SaveFileRequest struct {
	DefaultName      string   `json:"default_name" example:"note.md"`
	Content          string   `json:"content"`
	FilterName       string   `json:"filter_name" example:"Markdown"`
	FilterExtensions []string `json:"filter_extensions" example:"md,markdown"`
}

func (r *SaveFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FilterExtensions, validation.Each(validation.Required)),
	)
}

// ExportRequest is the request body for exporting notes.
type ExportRequest struct {
	Folder string        `json:"folder"`
	Notes  []export.Note `json:"notes"`
}

func (r *ExportRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Folder, validation.Required),
	)
}

// TrayClickRequest is forwarded by the shell when the tray icon is clicked.
type TrayClickRequest struct {
	Button lifecycle.MouseButton `json:"button" example:"left"`
	State  lifecycle.ButtonState `json:"state" example:"up"`
}

func (r *TrayClickRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Button, validation.Required,
			validation.In(lifecycle.ButtonLeft, lifecycle.ButtonRight, lifecycle.ButtonMiddle)),
		validation.Field(&r.State, validation.Required,
			validation.In(lifecycle.StateUp, lifecycle.StateDown)),
	)
}

// VaultDataResponse carries vault.json. Data is null for a new vault.
type VaultDataResponse struct {
	Data *string `json:"data"`
}

// RecentVaultsResponse lists recently opened vaults.
type RecentVaultsResponse struct {
	Vaults []recent.Vault `json:"vaults"`
}

// StoredVaultResponse carries the stored vault. Folder is null when unset.
type StoredVaultResponse struct {
	Folder *string `json:"folder"`
}
