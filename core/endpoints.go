package core

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mc.service/api"
	sm "mc.service/models"
)

type ServerOptions struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer // nil serves the default registry
}

type handler struct {
	sc       *ServiceContext
	validate *validator.Validate
}

func GetHttpServer(sc *ServiceContext, opts ServerOptions) *http.Server {
	return &http.Server{
		Addr:           opts.Addr,
		Handler:        NewRouter(sc, opts),
		ReadTimeout:    opts.ReadTimeout,
		WriteTimeout:   opts.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func NewRouter(sc *ServiceContext, opts ServerOptions) http.Handler {
	h := &handler{sc: sc, validate: newValidator()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/ping", h.ping)
		r.Get("/simulation/settings", h.getSimulationSettings)
		r.Post("/forecast", h.postForecast)
		r.Get("/forecast/runs", h.getForecastRuns)
		r.Post("/symbols/{symbol}/sync", h.postSymbolSync)
	})

	return r
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so messages line up with the payload
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.sc.Store.Ping(r.Context()); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"message": "store unavailable"})
		return
	}
	render.JSON(w, r, map[string]string{"message": "pong"})
}

func (h *handler) getSimulationSettings(w http.ResponseWriter, r *http.Request) {
	res := h.sc.GetSimulationSettingsResources()
	render.JSON(w, r, sm.GetServiceResponseOk(&res))
}

func (h *handler) postForecast(w http.ResponseWriter, r *http.Request) {
	var req sm.ForecastRequestSettings
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := h.validateStruct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.sc.WithContext(r.Context()).RunForecast(req)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	render.JSON(w, r, sm.GetServiceResponseOk(res))
}

func (h *handler) getForecastRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw))
			return
		}
		limit = v
	}

	runs, err := h.sc.WithContext(r.Context()).GetSimulationRuns(r.URL.Query().Get("symbol"), limit)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	render.JSON(w, r, sm.GetServiceResponseOk(&runs))
}

func (h *handler) postSymbolSync(w http.ResponseWriter, r *http.Request) {
	sc := h.sc.WithContext(r.Context())
	symbol := chi.URLParam(r, "symbol")

	sync := sc.SyncSymbolPriceHistory
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		sync = sc.ForceSyncSymbolPriceHistory
	}

	res, err := sync(symbol)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	render.JSON(w, r, sm.GetServiceResponseOk(res))
}

func (h *handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = formatValidationError(fe)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// statusForError maps the error taxonomy onto http status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrStatisticsUndefined):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, sm.GetServiceResponseError(err, middleware.GetReqID(r.Context())))
}
