// Package media tracks attachments through the compression and upload
// pipeline: content normalization, the per-attachment container state
// machine, the upload service with retry and concurrency capping, and the
// attachment URL refresh poller.
package media

// ContentKind discriminates the media content union.
type ContentKind int

const (
	KindImage ContentKind = iota
	KindVideo
	KindGIF
)

func (k ContentKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindGIF:
		return "gif"
	default:
		return "unknown"
	}
}

// Content is the uniform representation of captured media, immutable once
// built. Images and clipboard GIFs carry raw bytes; videos (and picked GIF
// files) carry an on-disk handle. Preview holds a representative frame for
// video/GIF so the UI can render something before upload completes.
type Content struct {
	Kind     ContentKind
	Data     []byte
	FilePath string
	Preview  []byte
}

// ImageContent builds image content from raw bytes.
func ImageContent(data []byte) Content {
	return Content{Kind: KindImage, Data: data}
}

// VideoContent builds video content from a file handle and optional
// preview frame.
func VideoContent(path string, preview []byte) Content {
	return Content{Kind: KindVideo, FilePath: path, Preview: preview}
}

// GIFContent builds GIF content from raw bytes and optional preview frame.
func GIFContent(data []byte, preview []byte) Content {
	return Content{Kind: KindGIF, Data: data, Preview: preview}
}

// MimeType returns the upload MIME type for the content as ingested.
// Images are re-encoded to JPEG during compression, so their effective
// upload type is decided by the upload service, not here.
func (c Content) MimeType() string {
	switch c.Kind {
	case KindVideo:
		return "video/mp4"
	case KindGIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
