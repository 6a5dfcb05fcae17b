package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hma-go/actioner/actioner/matchstore"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type MatchSummariesResponse struct {
	MatchSummaries []matchstore.MatchSummary `json:"match_summaries"`
}

type MatchDetailsResponse struct {
	MatchDetails []matchstore.MatchDetail `json:"match_details"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		s.logger.Warn("actioner-http-internal-error", "err", err)
	}
	if err := c.JSON(code, GenericStatus{Status: "error", Daemon: "actioner", Message: errorMessage}); err != nil {
		s.logger.Error("failed to write error response", "err", err)
	}
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "actioner"})
}

// GET /matches: filtered by `content_id`, or `signal_id` (plus optional `signal_source`), or a `since`/`until` time range
func (s *Server) HandleMatches(c echo.Context) error {
	ctx := c.Request().Context()
	apiRequests.WithLabelValues("matches").Inc()

	q := matchstore.Query{
		ContentID:    c.QueryParam("content_id"),
		SignalID:     c.QueryParam("signal_id"),
		SignalSource: c.QueryParam("signal_source"),
	}
	var err error
	if q.Since, err = parseTimeParam(c.QueryParam("since")); err != nil {
		return c.JSON(400, GenericError{Error: "InvalidSince", Message: err.Error()})
	}
	if q.Until, err = parseTimeParam(c.QueryParam("until")); err != nil {
		return c.JSON(400, GenericError{Error: "InvalidUntil", Message: err.Error()})
	}
	if raw := c.QueryParam("limit"); raw != "" {
		q.Limit, err = strconv.Atoi(raw)
		if err != nil || q.Limit < 1 || q.Limit > 1000 {
			return c.JSON(400, GenericError{Error: "InvalidLimit", Message: "limit must be between 1 and 1000"})
		}
	}

	out, err := s.matches.MatchSummaries(ctx, q)
	if errors.Is(err, matchstore.ErrInvalidQuery) {
		return c.JSON(400, GenericError{Error: "InvalidQuery", Message: err.Error()})
	} else if err != nil {
		return err
	}
	return c.JSON(200, MatchSummariesResponse{MatchSummaries: out})
}

// GET /matches/details?content_id=
func (s *Server) HandleMatchDetails(c echo.Context) error {
	ctx := c.Request().Context()
	apiRequests.WithLabelValues("match_details").Inc()

	contentID := c.QueryParam("content_id")
	if contentID == "" {
		return c.JSON(400, GenericError{Error: "MissingContentID", Message: "content_id query parameter is required"})
	}
	out, err := s.matches.MatchDetails(ctx, contentID)
	if err != nil {
		return err
	}
	return c.JSON(200, MatchDetailsResponse{MatchDetails: out})
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	// ambiguous mm/dd vs dd/mm forms are rejected
	return dateparse.ParseStrict(raw)
}
