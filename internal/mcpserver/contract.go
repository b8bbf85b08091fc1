package mcpserver

// LayoutURI identifies the vault layout resource.
const LayoutURI = "mdnotebook://vault-layout"

// VaultLayout describes the on-disk layout that every tool reads and writes.
const VaultLayout = `# MDNotebook Vault Layout

A vault is a folder chosen by the user. The notebook UI owns its content; the
host only stores what it is given.

## Files

| Path | Content |
|---|---|
| ` + "`vault.json`" + ` | The vault document. Usually encrypted by the UI. |
| ` + "`vault-assets/<id>.enc`" + ` | One opaque encrypted asset per file. |

- Asset ids are 1 to 64 characters from ` + "`A-Z a-z 0-9 _ -`" + `.
- Writes go to ` + "`<file>.tmp`" + ` next to the target and are renamed into
  place, so readers never see a partial file. A leftover ` + "`.tmp`" + ` file
  is not part of the vault.

## Export naming

` + "`export_notes`" + ` writes ` + "`<name>.md`" + ` files into an existing folder:

1. Every character other than letters, digits, space, ` + "`-`" + ` and ` + "`_`" + `
   is removed, then the name is trimmed. An empty result becomes ` + "`Untitled`" + `.
2. Names are compared case-insensitively with the ` + "`.md`" + ` files
   already in the folder and with the notes exported before in the same call.
3. A taken name gets ` + "` (2)`" + `, ` + "` (3)`" + `, and so on.

Existing files are never overwritten. A failed write stops the export; notes
written before it stay on disk.
`
