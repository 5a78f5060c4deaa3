package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gospc/adapters/excel"
	"gospc/app"
	"gospc/domain/core"
	"gospc/domain/spc"
	apperrors "gospc/internal/errors"
	"gospc/internal/solver"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) analyzeSeries(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	opts, err := analysisOptions(req.TimeFrame, req.SampleSize, req.Persist)
	if err != nil {
		s.writeError(c, err)
		return
	}

	analysis, err := s.service.AnalyzeSeries(c.Request.Context(), app.SeriesRequest{
		AnalysisOptions: opts,
		Dataset:         core.DatasetKey(strings.TrimSpace(req.Dataset)),
		Metric:          core.MetricKey(strings.TrimSpace(req.Metric)),
		DateTexts:       req.Dates,
		Values:          req.Values,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if req.Persist {
		status = http.StatusCreated
	}
	c.JSON(status, newAnalysisResponse(analysis))
}

func (s *Server) stageDataset(c *gin.Context) {
	dataset, err := core.ParseDatasetKey(c.Param("dataset"))
	if err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, apperrors.InvalidInput("multipart field \"file\" is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	defer file.Close()

	cfg := s.reader
	cfg.DateColumn = c.Query("date_column")
	if metrics := c.Query("metrics"); metrics != "" {
		cfg.Metrics = strings.Split(metrics, ",")
	}

	table, err := excel.NewStreamReader(file, excel.FileType(header.Filename), cfg).ReadTable()
	if err != nil {
		s.writeError(c, err)
		return
	}

	written, err := s.service.StageTable(c.Request.Context(), dataset, table)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"dataset":      dataset,
		"metrics":      table.Metrics(),
		"rows":         table.Len(),
		"observations": written,
	})
}

func (s *Server) listDatasets(c *gin.Context) {
	datasets, err := s.service.ListDatasets(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

func (s *Server) analyzeDataset(c *gin.Context) {
	dataset, err := core.ParseDatasetKey(c.Param("dataset"))
	if err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	var req StagedRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, apperrors.InvalidInput(err.Error()))
			return
		}
	}

	opts, err := analysisOptions(req.TimeFrame, req.SampleSize, req.Persist)
	if err != nil {
		s.writeError(c, err)
		return
	}

	outcomes, err := s.service.AnalyzeStaged(c.Request.Context(), dataset, req.Metrics, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset":  dataset,
		"outcomes": newOutcomeResponses(outcomes),
	})
}

func (s *Server) listAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	analyses, err := s.service.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (s *Server) getAnalysis(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newAnalysisResponse(analysis))
}

func (s *Server) deleteAnalysis(c *gin.Context) {
	id, err := core.ParseAnalysisID(c.Param("id"))
	if err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	if err := s.service.DeleteAnalysis(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getRows(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": newRowResponses(analysis.Result.Rows)})
}

func (s *Server) getSegments(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": analysis.Result.Segments})
}

func (s *Server) getBands(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"bands": solver.Bands(analysis.Result.Rows)})
}

func (s *Server) getReport(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}

	title := fmt.Sprintf("SPC report %s", analysis.Metric)
	analyses := []*spc.Analysis{analysis}
	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", app.RenderMarkdown(title, analyses))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", app.RenderHTML(title, analyses))
}

func (s *Server) exportWorkbook(c *gin.Context) {
	analysis, ok := s.loadAnalysis(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteWorkbook(&buf, []*spc.Analysis{analysis}); err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", analysis.ID.String()+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) loadAnalysis(c *gin.Context) (*spc.Analysis, bool) {
	id, err := core.ParseAnalysisID(c.Param("id"))
	if err != nil {
		s.writeError(c, apperrors.InvalidInput(err.Error()))
		return nil, false
	}
	analysis, err := s.service.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if analysis.Result == nil {
		s.writeError(c, core.ErrNotSolved)
		return nil, false
	}
	return analysis, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, errorBody(err))
}

func errorBody(err error) ErrorResponse {
	classified := apperrors.FromDomain(err)
	return ErrorResponse{Error: err.Error(), Code: apperrors.GetCode(classified)}
}

func analysisOptions(timeFrame *string, sampleSize int, persist bool) (app.AnalysisOptions, error) {
	opts := app.AnalysisOptions{SampleSize: sampleSize, Persist: persist}
	if sampleSize < 0 {
		return opts, core.NewValidationError("sample_size", "must be positive")
	}
	if timeFrame != nil {
		tf, err := spc.ParseTimeFrame(*timeFrame)
		if err != nil {
			return opts, err
		}
		opts.TimeFrame = &tf
	}
	return opts, nil
}
