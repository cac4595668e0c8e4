// Package catalog indexes uploaded files for the lifetime of the process.
// Entries are append-only; the remote message is the source of truth and a
// restart simply starts over with an empty index.
package catalog

// Entry describes one stored file.
type Entry struct {
	ID          int    `json:"id"`
	OwnerID     int64  `json:"-"`
	Title       string `json:"title"`
	MimeType    string `json:"mimeType"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

type Repo interface {
	Insert(entry Entry) error
	// ByOwner returns the entries owned by ownerID, oldest first.
	ByOwner(ownerID int64) []Entry
	ByID(id int) (Entry, bool)
}
