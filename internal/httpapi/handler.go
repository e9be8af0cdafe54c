// Package httpapi exposes the batch pipeline and payment calendar over JSON.
package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"repo-pretrade/internal/calendar"
	"repo-pretrade/internal/engine"
	"repo-pretrade/internal/export"
	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/isin"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/risk"
	"repo-pretrade/internal/store"
	"repo-pretrade/internal/types"
)

const basePath = "/api/v1"

var (
	errNoIdentifiers = errors.New("no identifiers given")
	errNoPositions   = errors.New("no positions given")
)

type Handler struct {
	router   *gin.Engine
	cfg      *store.Config
	engine   interfaces.Engine
	calendar interfaces.CalendarBuilder
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewHandler builds the router. cache may be nil to disable response
// caching.
func NewHandler(cfg *store.Config, eng interfaces.Engine, cal interfaces.CalendarBuilder, cache *redis.Client) *Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &Handler{
		router:   router,
		cfg:      cfg,
		engine:   eng,
		calendar: cal,
		cache:    cache,
		cacheTTL: cfg.HTTPCacheTTL(),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)

	api := h.router.Group(basePath)
	bonds := api.Group("/bonds")
	{
		bonds.POST("/batch", h.runBatch)
		bonds.GET("/export.csv", h.exportCSV)
		if h.cache != nil {
			bonds.GET("/:isin", h.cacheMiddleware(), h.getBond)
		} else {
			bonds.GET("/:isin", h.getBond)
		}
	}
	api.POST("/calendar", h.buildCalendar)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getBond(c *gin.Context) {
	rec, err := h.engine.Lookup(c.Request.Context(), c.Param("isin"))
	if err != nil {
		if errors.Is(err, engine.ErrInvalidISIN) {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if rec.Status == types.StatusUnresolved {
		c.JSON(http.StatusNotFound, rec)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type batchPayload struct {
	ISINs       []string `json:"isins"`
	Text        string   `json:"text"`
	Overnight   bool     `json:"overnight"`
	ExtraDays   int      `json:"extra_days"`
	Workers     int      `json:"workers"`
	OnlyFlagged bool     `json:"only_flagged"`
}

func (p batchPayload) identifiers() []string {
	ids := append([]string{}, p.ISINs...)
	return append(ids, isin.Split(p.Text)...)
}

func (h *Handler) horizon(overnight bool, extraDays int) (int, error) {
	if !overnight && extraDays == 0 {
		extraDays = h.cfg.Risk.DefaultExtraDays
	}
	return risk.Horizon(overnight, extraDays, h.cfg)
}

func (h *Handler) runBatch(c *gin.Context) {
	var p batchPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ids := p.identifiers()
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, errNoIdentifiers)
		return
	}
	horizon, err := h.horizon(p.Overnight, p.ExtraDays)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	res := h.engine.Run(c.Request.Context(), ids,
		interfaces.WithHorizon(horizon),
		interfaces.WithWorkers(p.Workers),
	)
	if p.OnlyFlagged {
		res.Records = res.FlaggedRecords()
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) exportCSV(c *gin.Context) {
	ids := isin.Split(c.Query("isins"))
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, errNoIdentifiers)
		return
	}
	overnight, _ := strconv.ParseBool(c.DefaultQuery("overnight", "false"))
	extraDays := 0
	if v := c.Query("extra_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("extra_days: %w", err))
			return
		}
		extraDays = n
	}
	horizon, err := h.horizon(overnight, extraDays)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	onlyFlagged, _ := strconv.ParseBool(c.DefaultQuery("only_flagged", "false"))

	res := h.engine.Run(c.Request.Context(), ids, interfaces.WithHorizon(horizon))

	var buf bytes.Buffer
	if err := export.Records(&buf, export.FormatCSV, res, onlyFlagged); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="bonds-%s.csv"`, res.Today))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type calendarPayload struct {
	Text      string           `json:"text"`
	Positions []types.Position `json:"positions"`
}

func (h *Handler) buildCalendar(c *gin.Context) {
	var p calendarPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var res *types.CalendarResult
	switch {
	case strings.TrimSpace(p.Text) != "":
		res = h.calendar.Build(c.Request.Context(), p.Text)
	case len(p.Positions) > 0:
		positions, invalid := normalizePositions(p.Positions)
		res = h.calendar.BuildPositions(c.Request.Context(), positions)
		res.Invalid = append(invalid, res.Invalid...)
	default:
		writeError(c, http.StatusBadRequest, errNoPositions)
		return
	}
	c.JSON(http.StatusOK, res)
}

// normalizePositions applies the same rules as free-text input to JSON
// positions.
func normalizePositions(in []types.Position) ([]types.Position, []string) {
	var b strings.Builder
	for _, p := range in {
		fmt.Fprintf(&b, "%s | %s\n", p.ISIN, p.Amount.String())
	}
	return calendar.ParsePositions(b.String())
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
