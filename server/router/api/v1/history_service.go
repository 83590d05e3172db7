package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DeleteHistoryResponse is the body returned by DELETE /historial/:name.
type DeleteHistoryResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// ListHistory lists stored transcripts.
// GET /historial/archivos
func (s *APIV1Service) ListHistory(c echo.Context) error {
	infos, err := s.Transcripts.ListTranscripts(c.Request().Context())
	if err != nil {
		slog.Error("failed to list transcripts", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list transcripts"})
	}
	return c.JSON(http.StatusOK, infos)
}

// DeleteHistory removes one transcript. A missing transcript is not an error.
// DELETE /historial/:name
func (s *APIV1Service) DeleteHistory(c echo.Context) error {
	name := c.Param("name")

	deleted, err := s.Transcripts.DeleteTranscript(c.Request().Context(), name)
	if err != nil {
		slog.Error("failed to delete transcript", "name", name, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete transcript"})
	}
	if !deleted {
		return c.JSON(http.StatusOK, DeleteHistoryResponse{Message: "⚠️ No se encontró el historial solicitado."})
	}
	return c.JSON(http.StatusOK, DeleteHistoryResponse{
		Message: fmt.Sprintf("✅ Historial %s eliminado correctamente.", name),
		Deleted: true,
	})
}
