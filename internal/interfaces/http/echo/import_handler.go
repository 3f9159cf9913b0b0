package echo

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/site-import/internal/application/importer"
)

const (
	headerUserID    = "X-User-ID"
	mimeTextCSV     = "text/csv; charset=utf-8"
	templateCSVName = "project-sites-template.csv"
)

type ImportUseCases struct {
	Start  app.StartImport
	Detect app.DetectConflicts
	Status app.GetImportStatus
	Report app.DownloadErrorReport
	List   app.ListImports
	Delete app.DeleteImport
}

type ImportHandler struct {
	useCases ImportUseCases
	logger   *slog.Logger
}

func NewImportHandler(useCases ImportUseCases, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{useCases: useCases, logger: logger}
}

func (h *ImportHandler) StartImport(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "bad_request", "multipart field \"file\" is required")
	}

	skipDuplicates, err := formBool(c, "skipDuplicates", true)
	if err != nil {
		return badRequest(c, "bad_request", err.Error())
	}
	updateExisting, err := formBool(c, "updateExisting", false)
	if err != nil {
		return badRequest(c, "bad_request", err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "bad_request", "uploaded file could not be read")
	}
	defer file.Close()

	out, err := h.useCases.Start.Execute(c.Request().Context(), app.StartImportInput{
		Filename:        fileHeader.Filename,
		Content:         file,
		SkipDuplicates:  skipDuplicates,
		UpdateExisting:  updateExisting,
		ResolutionsJSON: c.FormValue("resolutions"),
		SubmittedBy:     userID(c),
	})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to start import")
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *ImportHandler) DetectConflicts(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "bad_request", "multipart field \"file\" is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "bad_request", "uploaded file could not be read")
	}
	defer file.Close()

	out, err := h.useCases.Detect.Execute(c.Request().Context(), app.DetectConflictsInput{
		Filename: fileHeader.Filename,
		Content:  file,
	})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to detect conflicts")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) GetImport(c echo.Context) error {
	out, err := h.useCases.Status.Execute(c.Request().Context(), app.GetImportStatusInput{ID: c.Param("id")})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to get import")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) ListImports(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "bad_request", err.Error())
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return badRequest(c, "bad_request", err.Error())
	}

	out, err := h.useCases.List.Execute(c.Request().Context(), app.ListImportsInput{Limit: limit, Offset: offset})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to list imports")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) DownloadErrorReport(c echo.Context) error {
	out, err := h.useCases.Report.Execute(c.Request().Context(), app.DownloadErrorReportInput{ID: c.Param("id")})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to build error report")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", out.Filename))
	return c.Blob(http.StatusOK, mimeTextCSV, out.Content)
}

func (h *ImportHandler) DeleteImport(c echo.Context) error {
	err := h.useCases.Delete.Execute(c.Request().Context(), app.DeleteImportInput{ID: c.Param("id")})
	if err != nil {
		return writeImportError(c, h.logger, err, "failed to delete import")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) DownloadTemplate(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", templateCSVName))
	return c.Blob(http.StatusOK, mimeTextCSV, app.TemplateCSV())
}

func formBool(c echo.Context, name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func userID(c echo.Context) *string {
	id := strings.TrimSpace(c.Request().Header.Get(headerUserID))
	if id == "" {
		return nil
	}
	return &id
}
