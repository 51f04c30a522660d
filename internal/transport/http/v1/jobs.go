package v1

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/geo"
)

// NearbyJobs ranks open jobs around a point for the calling helper.
// GET /v1/jobs/nearby?lat=&lng=&max_distance=&skills=a,b
func (h *Handler) NearbyJobs(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	lat, errLat := parseCoordinate(c.QueryParam("lat"))
	lng, errLng := parseCoordinate(c.QueryParam("lng"))
	if errLat != nil || errLng != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "lat and lng are required"})
	}
	maxDistance, err := parseDistance(c.QueryParam("max_distance"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid max_distance"})
	}

	criteria := geo.JobCriteria{MaxDistanceKm: maxDistance, Skills: splitSkills(c.QueryParam("skills"))}
	matches, err := h.service.NearbyJobs(c.Request().Context(), userID, domain.Location{Latitude: lat, Longitude: lng}, criteria)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": matches,
	})
}

// NearbyHelpers ranks helpers around a job.
// GET /v1/jobs/:job_id/helpers?max_distance=
func (h *Handler) NearbyHelpers(c echo.Context) error {
	maxDistance, err := parseDistance(c.QueryParam("max_distance"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid max_distance"})
	}

	matches, err := h.service.NearbyHelpers(c.Request().Context(), c.Param("job_id"), maxDistance)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"helpers": matches,
	})
}

var errNotFinite = errors.New("value must be a finite number")

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func parseCoordinate(s string) (float64, error) {
	return parseFinite(s)
}

func parseDistance(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return parseFinite(s)
}

func splitSkills(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
