package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/groupwarden/groupwarden/countstore"
	"github.com/groupwarden/groupwarden/settings"
	"github.com/groupwarden/groupwarden/vote"
)

// RunAdminAPI serves the operator HTTP surface: health, raw group settings,
// and ban vote control. It is meant to be bound to an internal address.
func (s *Server) RunAdminAPI(listen string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status} latency=${latency_human}\n",
	}))

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		msg := any(err.Error())
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
		}
		if err2 := ctx.JSON(code, map[string]any{"error": msg}); err2 != nil {
			s.logger.Error("failed to write http error", "err", err2)
		}
	}

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/admin/groups/:group/counts", s.handleGetCounts)
	e.GET("/admin/groups/:group/settings/:key", s.handleGetSetting)
	e.PUT("/admin/groups/:group/settings/:key", s.handlePutSetting)
	e.DELETE("/admin/groups/:group/settings/:key", s.handleDeleteSetting)
	e.GET("/admin/groups/:group/vote", s.handleGetVote)
	e.POST("/admin/groups/:group/vote", s.handleStartVote)
	e.POST("/admin/groups/:group/vote/cast", s.handleCastVote)

	return e.Start(listen)
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(200, HealthStatus{Status: "ok"})
}

type groupCountsView struct {
	// Messages is the group's processed message count per period.
	Messages map[string]int `json:"messages"`
	// FloodSpammers is the distinct count of flood-muted senders per period.
	FloodSpammers map[string]int `json:"flood_spammers"`
}

func (s *Server) handleGetCounts(c echo.Context) error {
	ctx := c.Request().Context()
	group := c.Param("group")
	out := groupCountsView{
		Messages:      make(map[string]int),
		FloodSpammers: make(map[string]int),
	}
	for _, period := range []string{countstore.PeriodTotal, countstore.PeriodDay, countstore.PeriodHour} {
		n, err := s.engine.Counters.GetCount(ctx, "message", group, period)
		if err != nil {
			return err
		}
		out.Messages[period] = n
		d, err := s.engine.Counters.GetCountDistinct(ctx, "flood-spammers", group, period)
		if err != nil {
			return err
		}
		out.FloodSpammers[period] = d
	}
	return c.JSON(200, out)
}

// Settings values are raw JSON documents; the admin surface passes them
// through untouched so that any key the engine understands can be managed.

func (s *Server) handleGetSetting(c echo.Context) error {
	val, err := s.engine.Settings.Store.Get(c.Request().Context(), c.Param("group"), c.Param("key"))
	if errors.Is(err, settings.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "setting not configured")
	}
	if err != nil {
		return err
	}
	return c.JSONBlob(200, val)
}

func (s *Server) handlePutSetting(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	if !json.Valid(body) {
		return echo.NewHTTPError(http.StatusBadRequest, "setting value must be valid JSON")
	}
	if err := s.engine.Settings.Store.Set(c.Request().Context(), c.Param("group"), c.Param("key"), body); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteSetting(c echo.Context) error {
	if err := s.engine.Settings.Store.Delete(c.Request().Context(), c.Param("group"), c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type voteProgressView struct {
	Target      string `json:"target"`
	Agree       int    `json:"agree"`
	Disagree    int    `json:"disagree"`
	Threshold   int    `json:"threshold"`
	BanDuration int    `json:"ban_duration_sec"`
	ClosesAt    string `json:"closes_at,omitempty"`
	Outcome     string `json:"outcome"`
}

func progressView(p vote.Progress) voteProgressView {
	v := voteProgressView{
		Target:      p.Target,
		Agree:       p.Agree,
		Disagree:    p.Disagree,
		Threshold:   p.Threshold,
		BanDuration: int(p.BanDuration / time.Second),
		Outcome:     p.Outcome.String(),
	}
	if !p.ExpiresAt.IsZero() {
		v.ClosesAt = p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

func (s *Server) handleGetVote(c echo.Context) error {
	p, ok := s.engine.Votes.Active(c.Param("group"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no active ban vote")
	}
	return c.JSON(200, progressView(p))
}

type startVoteBody struct {
	Target      string `json:"target"`
	DurationSec int    `json:"duration_sec"`
}

func (s *Server) handleStartVote(c echo.Context) error {
	var body startVoteBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	err := s.engine.StartBanVote(c.Request().Context(), c.Param("group"),
		body.Target, time.Duration(body.DurationSec)*time.Second)
	if errors.Is(err, vote.ErrAlreadyActive) {
		return echo.NewHTTPError(http.StatusConflict, "a ban vote is already active")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

type castVoteBody struct {
	Voter string `json:"voter"`
	Agree bool   `json:"agree"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	var body castVoteBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Voter == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "voter is required")
	}
	p, err := s.engine.CastBanVote(c.Request().Context(), c.Param("group"), body.Voter, body.Agree)
	if errors.Is(err, vote.ErrNoActiveSession) {
		return echo.NewHTTPError(http.StatusNotFound, "no active ban vote")
	}
	if err != nil {
		return err
	}
	return c.JSON(200, progressView(p))
}
