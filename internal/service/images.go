package service

import (
	"encoding/json"
	"strings"

	"dormdesk/internal/models"
)

// normalizeImages flattens every image shape tickets have been stored with
// into []ImageRef. Accepted: URL strings, bare file IDs, JSON arrays or
// objects encoded in a string, {id,url}, {fileId,url} and {$id,href}. Bare
// IDs get their URL from preview.
func normalizeImages(raw any, preview func(fileID string) string) []models.ImageRef {
	out := []models.ImageRef{}
	seen := make(map[string]bool)
	collectImages(raw, preview, func(ref models.ImageRef) {
		key := ref.ID + "|" + ref.URL
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, ref)
	})
	return out
}

func collectImages(raw any, preview func(string) string, emit func(models.ImageRef)) {
	switch v := raw.(type) {
	case nil:
	case models.ImageRef:
		if v.ID != "" || v.URL != "" {
			emit(v)
		}
	case []models.ImageRef:
		for _, ref := range v {
			collectImages(ref, preview, emit)
		}
	case []string:
		for _, s := range v {
			collectImages(s, preview, emit)
		}
	case []any:
		for _, el := range v {
			collectImages(el, preview, emit)
		}
	case map[string]any:
		ref := models.ImageRef{ID: firstString(v, "id", "fileId", "$id"), URL: firstString(v, "url", "href")}
		if ref.ID == "" && ref.URL != "" {
			ref.ID = fileIDFromURL(ref.URL)
		}
		if ref.URL == "" && ref.ID != "" && preview != nil {
			ref.URL = preview(ref.ID)
		}
		if ref.ID != "" || ref.URL != "" {
			emit(ref)
		}
	case string:
		s := strings.TrimSpace(v)
		switch {
		case s == "":
		case strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{"):
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				collectImages(decoded, preview, emit)
			}
		case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/"):
			emit(models.ImageRef{ID: fileIDFromURL(s), URL: s})
		default:
			ref := models.ImageRef{ID: s}
			if preview != nil {
				ref.URL = preview(s)
			}
			emit(ref)
		}
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// fileIDFromURL extracts the file ID from a hosted preview URL
// (.../buckets/{bucket}/files/{id}/preview) or a local one (/api/v1/files/{bucket}/{id}).
func fileIDFromURL(u string) string {
	if i := strings.Index(u, "/api/v1/files/"); i >= 0 {
		parts := strings.Split(stripQuery(u[i+len("/api/v1/files/"):]), "/")
		if len(parts) >= 2 {
			return parts[1]
		}
		return ""
	}
	i := strings.Index(u, "/files/")
	if i < 0 {
		return ""
	}
	rest := stripQuery(u[i+len("/files/"):])
	if j := strings.Index(rest, "/"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func stripQuery(s string) string {
	if j := strings.IndexAny(s, "?#"); j >= 0 {
		return s[:j]
	}
	return s
}
