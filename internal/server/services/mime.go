package services

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mimeExtensions is the fixed set of accepted document types and the
// extension each one is served with.
var mimeExtensions = map[string]string{
	"application/pdf":               ".pdf",
	"application/msword":            ".doc",
	"application/vnd.ms-excel":      ".xls",
	"application/vnd.ms-powerpoint": ".ppt",
	"image/jpeg":                    ".jpg",
	"image/png":                     ".png",
	"text/plain":                    ".txt",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
}

// ExtensionFor returns the extension for a stored MIME type, or "" when the
// type is not in the table.
func ExtensionFor(mimeType string) string {
	return mimeExtensions[baseMIME(mimeType)]
}

// MIMEForExtension is the reverse of ExtensionFor. Unknown extensions map
// to application/octet-stream.
func MIMEForExtension(ext string) string {
	ext = strings.ToLower(ext)
	for m, e := range mimeExtensions {
		if e == ext {
			return m
		}
	}
	return "application/octet-stream"
}

// AllowedMIMETypes lists the accepted types.
func AllowedMIMETypes() []string {
	out := make([]string, 0, len(mimeExtensions))
	for m := range mimeExtensions {
		out = append(out, m)
	}
	return out
}

// markupTypes are text formats a browser would render as active content.
// They are refused even though they descend from text/plain.
var markupTypes = map[string]struct{}{
	"text/html":       {},
	"image/svg+xml":   {},
	"text/xml":        {},
	"application/xml": {},
}

// detectMIME sniffs content and returns the closest accepted type, walking
// up the detection tree so that e.g. CSV or JSON count as text/plain.
// ok is false when nothing in the chain is accepted.
func detectMIME(content []byte) (string, bool) {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		base := baseMIME(m.String())
		if _, bad := markupTypes[base]; bad {
			return "", false
		}
		if _, ok := mimeExtensions[base]; ok {
			return base, true
		}
	}
	return "", false
}

// baseMIME drops parameters such as "; charset=utf-8".
func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
