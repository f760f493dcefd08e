package types

// RemoteFile identifies a candidate spreadsheet discovered in the remote
// document store. Identity is the store-relative path.
type RemoteFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Ext  string `json:"ext"` // lowercase, including the dot
}

// ChangeState classifies a remote file against the processed-files ledger.
type ChangeState string

const (
	// ChangeNew means the file has no ledger entry.
	ChangeNew ChangeState = "new"
	// ChangeModified means the remote timestamp differs from the ledger entry.
	ChangeModified ChangeState = "modified"
	// ChangeUnchanged means the remote timestamp equals the ledger entry.
	ChangeUnchanged ChangeState = "unchanged"
	// ChangeSkipped means the remote timestamp could not be fetched this run.
	// Skipped files keep their ledger entry untouched and are retried on the
	// next run.
	ChangeSkipped ChangeState = "skipped"
)

func (s ChangeState) String() string {
	return string(s)
}
