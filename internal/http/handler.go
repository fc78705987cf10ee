package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"infraction-report-service/internal/domain/report"
	"infraction-report-service/internal/service"
)

const (
	fieldPlatePhoto      = "placa_foto"
	fieldInfractionPhoto = "infraccion_foto"
	fieldDescription     = "descripcion"

	maxUploadBytes  = 20 << 20
	multipartMemory = 8 << 20
	headerRequestID = "X-Request-ID"
	msgUploadTooBig = "Las imágenes superan el tamaño máximo permitido."
)

type Handler struct {
	reportService  *service.ReportService
	log            zerolog.Logger
	maxUploadBytes int64
}

func NewHandler(reportService *service.ReportService, log zerolog.Logger) *Handler {
	return &Handler{
		reportService:  reportService,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.POST("/reportar-infraccion/", h.createReport)
	r.GET("/reportes/", h.listReports)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.reportService.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "ocr": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ocr": "ready"})
}

func (h *Handler) createReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, detailResponse(msgUploadTooBig))
			return
		}
		c.JSON(http.StatusBadRequest, detailResponse(fmt.Sprintf("invalid multipart form: %v", err)))
		return
	}

	description, ok := c.GetPostForm(fieldDescription)
	if !ok {
		c.JSON(http.StatusBadRequest, detailResponse(fmt.Sprintf("missing form field %q", fieldDescription)))
		return
	}
	plate, err := readUpload(c, fieldPlatePhoto)
	if err != nil {
		c.JSON(http.StatusBadRequest, detailResponse(err.Error()))
		return
	}
	infraction, err := readUpload(c, fieldInfractionPhoto)
	if err != nil {
		c.JSON(http.StatusBadRequest, detailResponse(err.Error()))
		return
	}

	result, err := h.reportService.ProcessReport(c.Request.Context(), report.Submission{
		PlatePhoto:      plate,
		InfractionPhoto: infraction,
		Description:     description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header(headerRequestID, result.RequestID)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listReports(c *gin.Context) {
	reports, err := h.reportService.ListReports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, detailResponse("Fallo al conectar con la base de datos para obtener reportes."))
		return
	}

	if len(reports) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"data":    []report.ReportWithOwner{},
			"mensaje": "No hay reportes registrados.",
		})
		return
	}
	c.JSON(http.StatusOK, successResponse(reports))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var reportErr *service.ReportError
	if errors.As(err, &reportErr) {
		c.Header(headerRequestID, reportErr.RequestID)
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, detailResponse(err.Error()))
	case errors.Is(err, service.ErrOCRUnavailable):
		c.JSON(http.StatusInternalServerError, detailResponse("El lector OCR no está inicializado."))
	case errors.Is(err, service.ErrEvidenceUpload):
		c.JSON(http.StatusInternalServerError, detailResponse("Fallo al subir imágenes de evidencia a Storage."))
	default:
		h.log.Error().Err(err).Msg("failed to process report")
		c.JSON(http.StatusInternalServerError, detailResponse("Ocurrió un error interno."))
	}
}

func readUpload(c *gin.Context, field string) (report.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return report.Image{}, fmt.Errorf("missing file field %q", field)
	}
	content, err := readFileHeader(fh)
	if err != nil {
		return report.Image{}, fmt.Errorf("read %q: %w", field, err)
	}
	return report.Image{Filename: fh.Filename, Content: content}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"status": "success",
		"data":   data,
	}
}

func detailResponse(message string) gin.H {
	return gin.H{
		"detail": message,
	}
}
