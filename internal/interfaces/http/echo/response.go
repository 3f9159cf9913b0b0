package echo

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/site-import/internal/application/importer"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type conflictDetails struct {
	Rows      []int `json:"rows"`
	Conflicts any   `json:"conflicts"`
}

type missingColumnsDetails struct {
	Columns []string `json:"columns"`
}

// writeImportError maps use case errors to a status and error body. Unknown
// errors are logged and reported as 500 with the fallback message.
func writeImportError(c echo.Context, logger *slog.Logger, err error, fallback string) error {
	status, body := importErrorBody(err, fallback)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, "error", err, "path", c.Path(), "request_id", c.Response().Header().Get(echo.HeaderXRequestID))
	}
	return c.JSON(status, apiResponse{Error: &body})
}

func importErrorBody(err error, fallback string) (int, errorBody) {
	var missing *app.MissingColumnsError
	var conflicts *app.ConflictsError

	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, errorBody{
			Code:    "missing_columns",
			Message: missing.Error(),
			Details: missingColumnsDetails{Columns: missing.Columns},
		}
	case errors.As(err, &conflicts):
		code := "conflicts_require_resolution"
		if errors.Is(err, app.ErrUnresolvedConflicts) {
			code = "unresolved_conflicts"
		}
		return http.StatusConflict, errorBody{
			Code:    code,
			Message: conflicts.Error(),
			Details: conflictDetails{Rows: conflicts.Rows, Conflicts: conflicts.Conflicts},
		}
	case errors.Is(err, app.ErrInvalidImportFile):
		return http.StatusBadRequest, errorBody{Code: "invalid_file", Message: "file must be a .csv upload"}
	case errors.Is(err, app.ErrInvalidCSV):
		return http.StatusBadRequest, errorBody{Code: "invalid_csv", Message: err.Error()}
	case errors.Is(err, app.ErrTooManyRows):
		return http.StatusBadRequest, errorBody{Code: "too_many_rows", Message: err.Error()}
	case errors.Is(err, app.ErrInvalidResolutions):
		return http.StatusBadRequest, errorBody{Code: "invalid_resolutions", Message: err.Error()}
	case errors.Is(err, app.ErrInvalidImportID):
		return http.StatusBadRequest, errorBody{Code: "invalid_import_id", Message: "id must be a valid UUID"}
	case errors.Is(err, app.ErrImportNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "import not found"}
	case errors.Is(err, app.ErrImportNotFinished):
		return http.StatusConflict, errorBody{Code: "import_not_finished", Message: "import has not finished"}
	case errors.Is(err, app.ErrNoImportErrors):
		return http.StatusConflict, errorBody{Code: "no_import_errors", Message: "import has no errors to report"}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: fallback}
	}
}

func badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{Code: code, Message: message}})
}
