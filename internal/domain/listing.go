package domain

type DownloadKind string

const (
	DownloadDirect  DownloadKind = "direct"
	DownloadTorrent DownloadKind = "torrent"
)

func NormalizeDownloadKind(raw string) DownloadKind {
	switch DownloadKind(raw) {
	case DownloadTorrent:
		return DownloadTorrent
	default:
		return DownloadDirect
	}
}

// SourceDescriptor is the static configuration of one catalog provider.
type SourceDescriptor struct {
	Name         string       `json:"name"`
	Label        string       `json:"label"`
	SourceURL    string       `json:"sourceUrl"`
	DownloadKind DownloadKind `json:"downloadKind"`
	LogoURL      string       `json:"logoUrl,omitempty"`
}

// RawListing is one record of a catalog's "downloads" array.
type RawListing struct {
	Title      string   `json:"title"`
	FileSize   string   `json:"fileSize"`
	URIs       []string `json:"uris"`
	UploadDate string   `json:"uploadDate,omitempty"`
}

type Listing struct {
	Title         string       `json:"title"`
	FileSize      string       `json:"fileSize"`
	SizeBytes     int64        `json:"sizeBytes,omitempty"`
	URIs          []string     `json:"uris"`
	DownloadKind  DownloadKind `json:"downloadKind"`
	ProviderLogo  string       `json:"providerLogo,omitempty"`
	Source        string       `json:"source,omitempty"`
	UploadDate    string       `json:"uploadDate,omitempty"`
	StrippedTitle string       `json:"strippedTitle"`
}
