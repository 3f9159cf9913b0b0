package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, progressHandler *ProgressHandler) {
	imports := server.Group("/api/v1/imports")

	if importHandler != nil {
		imports.POST("", importHandler.StartImport)
		imports.POST("/conflicts", importHandler.DetectConflicts)
		imports.GET("", importHandler.ListImports)
		imports.GET("/template.csv", importHandler.DownloadTemplate)
		imports.GET("/:id", importHandler.GetImport)
		imports.GET("/:id/errors.csv", importHandler.DownloadErrorReport)
		imports.DELETE("/:id", importHandler.DeleteImport)
	}

	if progressHandler != nil {
		imports.GET("/:id/progress", progressHandler.StreamProgress)
	}
}
