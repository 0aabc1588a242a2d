package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/telemetry"
	"github.com/weiihann/hotloop/wire"
)

const linkShutdownTimeout = 5 * time.Second

// session is the parent's side of one fork.
type session struct {
	plan     wire.Plan
	params   infra.BenchmarkParams
	listener Listener
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	measured []*results.IterationResult
	allOps   int64
	failure  string
	badInput error
	done     bool
}

func (s *session) addIteration(ir *results.IterationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allOps += ir.Meta.AllOps
	if !ir.Warmup {
		s.measured = append(s.measured, ir)
	}
	s.metrics.IterationFinished(ir.Warmup)
	s.listener.IterationFinished(ir)
}

// outcome returns what the fork reported. err is set when the child
// reported a failure or sent something the parent could not accept.
func (s *session) outcome() (measured []*results.IterationResult, allOps int64, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.badInput != nil:
		err = s.badInput
	case s.failure != "":
		err = errors.New(s.failure)
	}

	return s.measured, s.allOps, s.done, err
}

// linkServer is the endpoint forked children report to. One server serves
// every fork of a run; the token in each request picks the session.
type linkServer struct {
	echo   *echo.Echo
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func startLink(logger *slog.Logger) (*linkServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for forks: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = ln

	l := &linkServer{
		echo:     e,
		url:      "http://" + ln.Addr().String(),
		logger:   logger,
		sessions: make(map[string]*session),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("fork request failed",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("error", v.Error.Error()),
				)

				return nil
			}
			logger.Debug("fork request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)

			return nil
		},
	}))

	e.GET(wire.PathPlan, l.handlePlan)
	e.POST(wire.PathIteration, l.handleIteration)
	e.POST(wire.PathFailure, l.handleFailure)
	e.POST(wire.PathDone, l.handleDone)

	go func() {
		if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fork link stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Debug("fork link listening", slog.String("url", l.url))

	return l, nil
}

func (l *linkServer) open(token string, s *session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sessions[token] = s
}

func (l *linkServer) drop(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.sessions, token)
}

func (l *linkServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), linkShutdownTimeout)
	defer cancel()

	if err := l.echo.Shutdown(ctx); err != nil {
		l.logger.Warn("fork link shutdown", slog.String("error", err.Error()))
	}
}

func (l *linkServer) session(c echo.Context) (*session, error) {
	token := c.Request().Header.Get(wire.HeaderToken)

	l.mu.Lock()
	s, ok := l.sessions[token]
	l.mu.Unlock()

	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown fork token")
	}

	return s, nil
}

func (l *linkServer) handlePlan(c echo.Context) error {
	s, err := l.session(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, s.plan)
}

func (l *linkServer) handleIteration(c echo.Context) error {
	s, err := l.session(c)
	if err != nil {
		return err
	}

	var msg wire.IterationResult
	if err := c.Bind(&msg); err != nil {
		return err
	}

	ir, err := wire.ToIterationResult(s.params, msg)
	if err != nil {
		s.mu.Lock()
		if s.badInput == nil {
			s.badInput = err
		}
		s.mu.Unlock()

		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.addIteration(ir)

	return c.NoContent(http.StatusNoContent)
}

func (l *linkServer) handleFailure(c echo.Context) error {
	s, err := l.session(c)
	if err != nil {
		return err
	}

	var msg wire.Failure
	if err := c.Bind(&msg); err != nil {
		return err
	}
	if err := wire.CheckVersion(msg.Version); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	s.failure = msg.Message
	s.mu.Unlock()

	return c.NoContent(http.StatusNoContent)
}

func (l *linkServer) handleDone(c echo.Context) error {
	s, err := l.session(c)
	if err != nil {
		return err
	}

	var msg wire.Done
	if err := c.Bind(&msg); err != nil {
		return err
	}
	if err := wire.CheckVersion(msg.Version); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()

	return c.NoContent(http.StatusNoContent)
}
