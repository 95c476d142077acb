package constants

import "strings"

// AllowedImageExtensions holds the accepted upload extensions.
var AllowedImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ImageFormat maps an extension to the format tag the vision API expects.
// Returns "" for extensions outside the allow-list.
func ImageFormat(ext string) string {
	e := NormalizeExt(ext)
	if _, ok := AllowedImageExtensions[e]; !ok {
		return ""
	}
	if e == "jpg" {
		return "jpeg"
	}
	return e
}

const (
	// SheetNameMaxLen is the XLSX sheet-name limit.
	SheetNameMaxLen = 31

	// WorkbookFilename is the download name offered to the caller.
	WorkbookFilename = "Data.xlsx"
)

// SheetNameIllegalChars are stripped from sheet names before export.
const SheetNameIllegalChars = `\/?*[]:`
