package services

import (
	"fmt"
	"strings"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/storage"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// populateScoresheetURL заполняет публичный URL фотографии протокола.
// Ключ в БД, URL — производное, наружу ключ не отдаём.
func populateScoresheetURL(match *models.Match, uploader storage.FileUploader) {
	if match == nil || match.ScoresheetKey == nil || *match.ScoresheetKey == "" || uploader == nil {
		return
	}
	url := uploader.GetPublicURL(*match.ScoresheetKey)
	if url != "" {
		match.ScoresheetURL = &url
	}
}

func populateScoresheetURLs(matches []*models.Match, uploader storage.FileUploader) {
	if uploader == nil {
		return
	}
	for _, m := range matches {
		populateScoresheetURL(m, uploader)
	}
}

// populateCourtManagerURL формирует ссылку судьи корта — капабилити-URL,
// владение которым и есть право судить этот корт.
func populateCourtManagerURL(court *models.Court, publicBaseURL string) {
	if court == nil || publicBaseURL == "" {
		return
	}
	court.ManagerURL = strings.TrimSuffix(publicBaseURL, "/") + "/court/" + court.ManagerToken
}

func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	case "image/heic":
		return ".heic", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && parts[0] == "image" && parts[1] != "" {
			// Отрезаем суффиксы вида "+xml" (например, "image/svg+xml").
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: %q", contentType)
	}
}
