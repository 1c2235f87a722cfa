package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const dateLayout = "2006-01-02"

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalidInput("invalid id")
	}
	return id, nil
}

// parseDate parses a YYYY-MM-DD date in UTC.
func parseDate(field, s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, invalidInput(field + " must be a YYYY-MM-DD date")
	}
	return t, nil
}

// optionalDate is parseDate for an optional value; empty yields nil.
func optionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryUint reads an optional unsigned query parameter.
func queryUint(c echo.Context, name string) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, invalidInput(name + " must be a positive integer")
	}
	return n, nil
}

// pageParams reads limit and offset.  Bounds are enforced by the
// repositories.
func pageParams(c echo.Context) (limit, offset int, err error) {
	l, err := queryUint(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	o, err := queryUint(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	return int(l), int(o), nil
}

// listResult wraps collection responses.
type listResult[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
