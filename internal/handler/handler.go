package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"subsidy-engine/internal/engine"
	"subsidy-engine/internal/model"
	"subsidy-engine/internal/plans"
	"subsidy-engine/internal/policy"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	engine  *engine.Engine
	store   Pinger
	logger  *zap.Logger
	timeout time.Duration
}

// New builds the HTTP surface. store may be nil when no plan data is loaded.
func New(e *engine.Engine, store Pinger, logger *zap.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{engine: e, store: store, logger: logger, timeout: timeout}
}

// Handle routes a request and logs its outcome.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	h.route(ctx)
	h.logger.Info("request",
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
}

func (h *Handler) route(ctx *fasthttp.RequestCtx) {
	var (
		method string
		serve  func(*fasthttp.RequestCtx)
	)
	switch string(ctx.Path()) {
	case "/v1/estimate":
		method, serve = fasthttp.MethodPost, h.handleEstimate
	case "/v1/plans":
		method, serve = fasthttp.MethodGet, h.handlePlans
	case "/v1/counties":
		method, serve = fasthttp.MethodGet, h.handleCounties
	case "/v1/policies":
		method, serve = fasthttp.MethodGet, h.handlePolicies
	case "/healthz":
		method, serve = fasthttp.MethodGet, h.handleHealth
	default:
		writeError(ctx, fasthttp.StatusNotFound, "Not found")
		return
	}
	if string(ctx.Method()) != method {
		ctx.Response.Header.Set("Allow", method)
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	serve(ctx)
}

func (h *Handler) handleEstimate(ctx *fasthttp.RequestCtx) {
	var req model.EstimateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	writeJSON(ctx, fasthttp.StatusOK, h.engine.Process(reqCtx, &req))
}

func (h *Handler) handlePlans(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	req := engine.SearchRequest{
		State:      string(args.Peek("state")),
		CountyFIPS: string(args.Peek("county_fips")),
		Zip:        string(args.Peek("zip")),
		Tobacco:    args.GetBool("tobacco"),
		Filter: plans.Filter{
			MetalLevel: string(args.Peek("metal")),
			Issuer:     string(args.Peek("issuer")),
		},
		Sort:          string(args.Peek("sort")),
		HouseholdSize: 1,
	}

	var err error
	if req.Year, err = intArg(args, "year", 0); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if !args.Has("age") {
		writeError(ctx, fasthttp.StatusBadRequest, "age is required")
		return
	}
	if req.Age, err = intArg(args, "age", 0); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if req.HouseholdSize, err = intArg(args, "household_size", 1); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if req.RatingArea, err = intArg(args, "rating_area", 0); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if args.Has("income") {
		income, err := strconv.ParseFloat(string(args.Peek("income")), 64)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "income must be a number")
			return
		}
		req.Income = &income
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.engine.Search(reqCtx, req)
	if err != nil {
		h.writeEngineError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (h *Handler) handleCounties(ctx *fasthttp.RequestCtx) {
	zip := strings.TrimSpace(string(ctx.QueryArgs().Peek("zip")))
	if zip == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "zip is required")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	counties, err := h.engine.CountiesByZip(reqCtx, zip)
	if err != nil {
		h.writeEngineError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"counties": counties})
}

func (h *Handler) handlePolicies(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"default_year": h.engine.DefaultYear(),
		"policies":     h.engine.Policies(),
	})
}

func (h *Handler) handleHealth(ctx *fasthttp.RequestCtx) {
	checks := map[string]string{"policies": "ok"}
	status, state := fasthttp.StatusOK, "ok"

	if h.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.store.Ping(pingCtx); err != nil {
			h.logger.Warn("plan store health check failed", zap.Error(err))
			checks["plan_store"] = "unhealthy"
			status, state = fasthttp.StatusServiceUnavailable, "degraded"
		} else {
			checks["plan_store"] = "ok"
		}
	}

	writeJSON(ctx, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

func (h *Handler) writeEngineError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, engine.ErrBadSearch), errors.Is(err, engine.ErrAmbiguousZip):
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrUnknownCounty), errors.Is(err, policy.ErrUnknownYear):
		writeError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNoPlanData):
		writeError(ctx, fasthttp.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("request failed", zap.ByteString("path", ctx.Path()), zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "Internal error")
	}
}

func intArg(args *fasthttp.Args, key string, def int) (int, error) {
	if !args.Has(key) {
		return def, nil
	}
	v, err := strconv.Atoi(string(args.Peek(key)))
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Encoding response failed")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	body, _ := json.Marshal(model.ErrorResponse{
		Status:  status,
		Message: message,
	})
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
