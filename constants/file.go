package constants

import "strings"

// ImageFormat is the encoding used for debug image dumps.
type ImageFormat string

const (
	PNG  ImageFormat = "PNG"
	JPEG ImageFormat = "JPEG"
)

// ImageFormats holds the accepted values for RL_DEBUG_IMAGE_FORMAT.
var ImageFormats = []string{string(PNG), string(JPEG)}

// AllowedExtensions holds the screenshot extensions the CLI will decode.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ParseImageFormat accepts any casing of PNG/JPEG (and JPG).
func ParseImageFormat(s string) (ImageFormat, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PNG":
		return PNG, true
	case "JPEG", "JPG":
		return JPEG, true
	}
	return "", false
}

// Ext is the file extension written for the format, without the dot.
func (f ImageFormat) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}
