package models

// SourceKind tags the origin adapter of a DocumentRecord. Dispatch from
// configuration to adapters is keyed by this enum, never by name lookup.
type SourceKind string

const (
	SourceRecordsAPI   SourceKind = "records_api"
	SourceAgencyLogs   SourceKind = "agency_logs"
	SourceReadingRooms SourceKind = "reading_rooms"
	SourceBulkDatasets SourceKind = "bulk_datasets"
)

// ParseSourceKind resolves a configured source name to its kind.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch SourceKind(s) {
	case SourceRecordsAPI, SourceAgencyLogs, SourceReadingRooms, SourceBulkDatasets:
		return SourceKind(s), true
	}
	return "", false
}

// FileDescriptor carries the metadata needed to materialize one attachment.
// LocalPath is filled in once the download cache has resolved it.
type FileDescriptor struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Filename        string `json:"filename,omitempty"`
	Filetype        string `json:"filetype,omitempty"`
	SizeHint        int64  `json:"size_hint,omitempty"`
	CommunicationID string `json:"communication_id,omitempty"`
	LocalPath       string `json:"-"`
}

// DocumentRecord is the normalized shape every source adapter emits. It is
// ephemeral: consumed once by the labeling stage, never persisted as-is.
// RequestID is unique within its source and participates in cache keys and
// output row identity.
type DocumentRecord struct {
	Source        SourceKind
	RequestID     string
	Agency        string
	Title         string
	Description   string
	DateSubmitted string
	DateDone      string
	Requester     string
	Files         []FileDescriptor

	// MetadataOnly records bypass the classification cascade and always
	// receive the stub neutral label.
	MetadataOnly bool
}
