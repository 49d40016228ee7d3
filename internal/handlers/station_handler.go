package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

// StationHandler serves the supervisor dashboard: stations and session code history
type StationHandler struct {
	BaseHandler
	stations services.StationService
	export   services.ExportService
}

func NewStationHandler(stations services.StationService, export services.ExportService, logger utils.Logger) *StationHandler {
	return &StationHandler{
		BaseHandler: NewBaseHandler(logger),
		stations:    stations,
		export:      export,
	}
}

// ListStations returns the station pool in order
// @Summary List stations
// @Tags stations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /stations [get]
func (h *StationHandler) ListStations(c *gin.Context) {
	h.LogRequest(c, "Listing stations")

	stations, err := h.stations.List(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

// AssignStation issues a session code and occupies the station
// @Summary Assign station
// @Tags stations
// @Accept json
// @Produce json
// @Param station_id path string true "Station ID"
// @Param assignment body services.AssignStationRequest true "Student to seat"
// @Success 200 {object} services.AssignmentResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /stations/{station_id}/assign [post]
func (h *StationHandler) AssignStation(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	stationID := c.Param("station_id")

	var req services.AssignStationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Assigning station", "station_id", stationID, "student_id", req.StudentID)

	issuedBy := ""
	if ident := sess.Identity(); ident != nil {
		issuedBy = ident.Email
	}

	result, err := h.stations.Assign(c.Request.Context(), stationID, &req, issuedBy)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReleaseStation frees the station; releasing a free station is a no-op
// @Summary Release station
// @Tags stations
// @Produce json
// @Param station_id path string true "Station ID"
// @Success 200 {object} models.Station
// @Failure 404 {object} ErrorResponse
// @Router /stations/{station_id}/release [post]
func (h *StationHandler) ReleaseStation(c *gin.Context) {
	stationID := c.Param("station_id")

	h.LogRequest(c, "Releasing station", "station_id", stationID)

	station, err := h.stations.Release(c.Request.Context(), stationID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, station)
}

// ListSessionCodes returns issued codes, newest first
// @Summary Session code history
// @Tags stations
// @Produce json
// @Param station query string false "Station ID"
// @Param student query string false "Student ID"
// @Param since query string false "RFC3339 lower bound"
// @Param limit query int false "Max records"
// @Success 200 {object} map[string]interface{}
// @Router /session-codes [get]
func (h *StationHandler) ListSessionCodes(c *gin.Context) {
	filters, err := parseCodeFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Listing session codes")

	records, err := h.stations.CodeHistory(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// ExportSessionCodes downloads the code history as a spreadsheet
// @Summary Export session codes
// @Tags stations
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /session-codes/export [get]
func (h *StationHandler) ExportSessionCodes(c *gin.Context) {
	filters, err := parseCodeFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Exporting session codes")

	file, err := h.export.SessionCodes(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func parseCodeFilters(c *gin.Context) (repositories.SessionCodeFilters, error) {
	filters := repositories.SessionCodeFilters{
		Station: c.Query("station"),
		Student: c.Query("student"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filters, fmt.Errorf("since: %w", err)
		}
		filters.Since = &t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filters, fmt.Errorf("limit must be a non-negative integer")
		}
		filters.Limit = n
	}
	return filters, nil
}
