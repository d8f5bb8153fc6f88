package httpadapter

import (
	"net/http"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrFileRead):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrUpdateCheck),
		domain.IsKind(err, domain.ErrUpdateDownload),
		domain.IsKind(err, domain.ErrUpdateInstall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if kind := domain.KindOf(err); kind != nil {
		return kind.Error()
	}
	if domain.IsKind(err, domain.ErrExtractionFailed) {
		return domain.ErrExtractionFailed.Error()
	}
	return "internal"
}
