// internal/organize/manifest/mime.go
package manifest

// mimeTypes maps lowercased extensions to content types. Anything not
// listed resolves to application/octet-stream.
var mimeTypes = map[string]string{
	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"bmp":  "image/bmp",
	// Documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
	"csv":  "text/csv",
	// Code
	"js":   "text/javascript",
	"ts":   "text/typescript",
	"jsx":  "text/javascript",
	"tsx":  "text/typescript",
	"json": "application/json",
	"html": "text/html",
	"css":  "text/css",
	"py":   "text/x-python",
	"rb":   "text/x-ruby",
	"java": "text/x-java",
	"cpp":  "text/x-c++",
	"c":    "text/x-c",
	// Archives
	"zip": "application/zip",
	"rar": "application/x-rar-compressed",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
	// Audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	// Video
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	// Other
	"xml":  "application/xml",
	"md":   "text/markdown",
	"yaml": "text/yaml",
	"yml":  "text/yaml",
}

// MimeType infers a content type from a path's extension.
func MimeType(path string) string {
	if mt, ok := mimeTypes[Extension(path)]; ok {
		return mt
	}
	return "application/octet-stream"
}
