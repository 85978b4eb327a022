package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// allowedPhotoTypes are the MIME types accepted for listing photos.
var allowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic", // iPhone photos
}

// PhotoContentType resolves the MIME type of an uploaded photo from the
// client-provided type, falling back to the file extension.
func PhotoContentType(provided, filename string) string {
	if t := baseType(provided); t != "" && t != "application/octet-stream" {
		if t == "image/jpg" {
			return "image/jpeg"
		}
		return t
	}
	return baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))))
}

// IsAllowedPhotoType reports whether contentType may be stored as a listing photo.
func IsAllowedPhotoType(contentType string) bool {
	_, ok := allowedPhotoTypes[baseType(contentType)]
	return ok
}

func extensionForContentType(contentType string) string {
	if ext, ok := allowedPhotoTypes[baseType(contentType)]; ok {
		return ext
	}
	return ".bin"
}

// baseType strips parameters such as charset and lowercases the type.
func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}
