package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/assoforge/cotiz/internal/config"
	"github.com/assoforge/cotiz/internal/log"
	"github.com/assoforge/cotiz/internal/rest/apierror"
	"github.com/assoforge/cotiz/internal/rest/middleware"
	"github.com/assoforge/cotiz/pkg/dtree"
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/assoforge/cotiz/pkg/dtree/runtime"
	"github.com/assoforge/cotiz/pkg/ptr"
	"github.com/assoforge/cotiz/pkg/storage"
)

type Server struct {
	sync.RWMutex
	engine *dtree.Engine
	addr   string
	server *http.Server
}

func NewServer(engine *dtree.Engine, conf config.Config) *Server {
	r := chi.NewRouter()
	s := Server{
		engine: engine,
		addr:   conf.Server.Addr,
		server: &http.Server{
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           r,
			Addr:              conf.Server.Addr,
		},
	}
	r.Use(middleware.Cors())
	r.Use(middleware.Opentelemetry(conf))
	r.Use(middleware.StripEmptyQueryParams())
	r.Route("/v1", func(r chi.Router) {
		r.Route("/tariffs", func(r chi.Router) {
			r.Post("/", s.createTariff)
			r.Get("/", s.listTariffs)
			r.Route("/{tariffKey}", func(r chi.Router) {
				r.Get("/", s.getTariff)
				r.Get("/tree", s.getTree)
				r.Put("/tree", s.putTree)
				r.Post("/tree/lock", s.lockTree)
				r.Post("/tree/duplicate", s.duplicateTree)
				r.Post("/evaluate", s.evaluate)
				r.Get("/bounds", s.bounds)
			})
		})
	})
	// register system endpoints
	r.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"name":   engine.Name(),
				"status": "UP",
			})
		})
	})
	return &s
}

func (s *Server) Start() net.Listener {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Error("failed to listen: %v", err)
	}
	log.Info("Tariff REST server listening on %s", s.addr)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Error starting server: %s", err)
		}
	}()
	return listener
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

type tariffResponse struct {
	Key           int64           `json:"key"`
	Name          string          `json:"name"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	ActiveTreeKey *int64          `json:"activeTreeKey,omitempty"`
}

type treeResponse struct {
	Key         int64             `json:"key"`
	TariffKey   int64             `json:"tariffKey"`
	Version     int32             `json:"version"`
	DisplayMode string            `json:"displayMode"`
	Locked      bool              `json:"locked"`
	Checksum    string            `json:"checksum"`
	Document    tree.TreeDocument `json:"document"`
}

func toTariffResponse(t runtime.Tariff) tariffResponse {
	resp := tariffResponse{
		Key:       t.Key,
		Name:      t.Name,
		BasePrice: t.BasePrice,
	}
	if t.ActiveTreeKey != 0 {
		resp.ActiveTreeKey = ptr.To(t.ActiveTreeKey)
	}
	return resp
}

func toTreeResponse(t runtime.DecisionTree) treeResponse {
	return treeResponse{
		Key:         t.Key,
		TariffKey:   t.TariffKey,
		Version:     t.Version,
		DisplayMode: string(t.DisplayMode),
		Locked:      t.Locked,
		Checksum:    fmt.Sprintf("%x", t.Checksum),
		Document:    t.Document,
	}
}

type createTariffRequest struct {
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
}

func (s *Server) createTariff(w http.ResponseWriter, r *http.Request) {
	var req createTariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if req.Name == "" {
		writeBadRequest(w, r, errors.New("tariff name must not be empty"))
		return
	}
	tariff, err := s.engine.CreateTariff(r.Context(), req.Name, req.BasePrice)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTariffResponse(tariff))
}

func (s *Server) listTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs, err := s.engine.ListTariffs(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	items := make([]tariffResponse, 0, len(tariffs))
	for _, t := range tariffs {
		items = append(items, toTariffResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getTariff(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	tariff, err := s.engine.GetTariff(r.Context(), key)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariffResponse(tariff))
}

func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	tariff, err := s.engine.GetTariff(r.Context(), key)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if tariff.ActiveTreeKey == 0 {
		writeError(w, r, http.StatusNotFound, apierror.ApiError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("tariff %d has no decision tree yet", key),
		})
		return
	}
	decisionTree, err := s.engine.GetTree(r.Context(), tariff.ActiveTreeKey)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreeResponse(decisionTree))
}

type putTreeRequest struct {
	DisplayMode *string            `json:"displayMode,omitempty"`
	Document    *tree.TreeDocument `json:"document,omitempty"`
}

// putTree creates the tariff's tree on first use and applies the requested
// changes: a new document, a new display mode, or both.
func (s *Server) putTree(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	var req putTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	mode := runtime.DisplayModeMinimum
	if req.DisplayMode != nil {
		var ok bool
		if mode, ok = parseDisplayMode(*req.DisplayMode); !ok {
			writeBadRequest(w, r, fmt.Errorf("unknown display mode %q", *req.DisplayMode))
			return
		}
	}

	tariff, err := s.engine.GetTariff(r.Context(), key)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var decisionTree runtime.DecisionTree
	if tariff.ActiveTreeKey == 0 {
		decisionTree, err = s.engine.CreateTree(r.Context(), key, mode)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
	} else {
		decisionTree, err = s.engine.GetTree(r.Context(), tariff.ActiveTreeKey)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		if req.DisplayMode != nil && decisionTree.DisplayMode != mode {
			decisionTree, err = s.engine.SetDisplayMode(r.Context(), decisionTree.Key, mode)
			if err != nil {
				writeEngineError(w, r, err)
				return
			}
		}
	}
	if req.Document != nil {
		decisionTree, err = s.engine.UpdateTreeDocument(r.Context(), decisionTree.Key, *req.Document)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toTreeResponse(decisionTree))
}

func (s *Server) lockTree(w http.ResponseWriter, r *http.Request) {
	s.withActiveTree(w, r, func(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
		return s.engine.LockTree(ctx, treeKey)
	})
}

func (s *Server) duplicateTree(w http.ResponseWriter, r *http.Request) {
	s.withActiveTree(w, r, func(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
		return s.engine.DuplicateTree(ctx, treeKey)
	})
}

func (s *Server) withActiveTree(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, treeKey int64) (runtime.DecisionTree, error)) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	tariff, err := s.engine.GetTariff(r.Context(), key)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if tariff.ActiveTreeKey == 0 {
		writeError(w, r, http.StatusNotFound, apierror.ApiError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("tariff %d has no decision tree yet", key),
		})
		return
	}
	decisionTree, err := op(r.Context(), tariff.ActiveTreeKey)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreeResponse(decisionTree))
}

type evaluateRequest struct {
	Age             *int             `json:"age,omitempty"`
	BirthDate       *string          `json:"birthDate,omitempty"` // YYYY-MM-DD, alternative to age
	QF              *decimal.Decimal `json:"qf,omitempty"`
	ResidenceId     int64            `json:"residenceId"`
	SocialStatus    *string          `json:"socialStatus,omitempty"`
	MembershipYears int              `json:"membershipYears"`
	HouseholdCount  int              `json:"householdCount"`
}

type evaluateResponse struct {
	FinalPrice     decimal.Decimal `json:"finalPrice"`
	TotalReduction decimal.Decimal `json:"totalReduction"`
	Trail          []trailStep     `json:"trail"`
}

type trailStep struct {
	NodeType   string          `json:"nodeType"`
	BranchCode string          `json:"branchCode"`
	Reduction  decimal.Decimal `json:"reduction"`
}

func (req evaluateRequest) subject() (dtree.Subject, error) {
	subject := dtree.Subject{
		Age:             ptr.Deref(req.Age, 0),
		QF:              req.QF,
		ResidenceId:     req.ResidenceId,
		SocialStatus:    req.SocialStatus,
		MembershipYears: req.MembershipYears,
		HouseholdCount:  req.HouseholdCount,
	}
	if req.Age == nil && req.BirthDate != nil {
		birthDate, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			return dtree.Subject{}, fmt.Errorf("invalid birth date %q: %w", *req.BirthDate, err)
		}
		subject.Age = dtree.AgeAt(birthDate, time.Now())
	}
	return subject, nil
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	subject, err := req.subject()
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	result, err := s.engine.Evaluate(r.Context(), key, subject)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	trail := make([]trailStep, 0, len(result.Trail))
	for _, step := range result.Trail {
		trail = append(trail, trailStep{
			NodeType:   string(step.NodeType),
			BranchCode: step.BranchCode,
			Reduction:  step.Reduction,
		})
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		FinalPrice:     result.FinalPrice,
		TotalReduction: result.TotalReduction,
		Trail:          trail,
	})
}

func (s *Server) bounds(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "tariffKey")
	if !ok {
		return
	}
	bounds, err := s.engine.Bounds(r.Context(), key)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"min": bounds.Min,
		"max": bounds.Max,
	})
}

func pathKey(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	key, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeBadRequest(w, r, fmt.Errorf("invalid %s: %w", param, err))
		return 0, false
	}
	return key, true
}

func parseDisplayMode(s string) (runtime.DisplayMode, bool) {
	switch runtime.DisplayMode(s) {
	case runtime.DisplayModeMinimum:
		return runtime.DisplayModeMinimum, true
	case runtime.DisplayModeMaximum:
		return runtime.DisplayModeMaximum, true
	}
	return "", false
}

// writeEngineError maps engine failures onto HTTP statuses: domain conflicts
// are the client's fault, missing records are 404, the rest is a 500.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *dtree.TreeLockedError
	var malformed *dtree.MalformedTreeError
	var noBranch *dtree.NoMatchingBranchError
	switch {
	case errors.As(err, &locked):
		writeError(w, r, http.StatusConflict, apierror.ApiError{Type: "TREE_LOCKED", Message: err.Error()})
	case errors.As(err, &malformed):
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Type: "MALFORMED_TREE", Message: err.Error()})
	case errors.As(err, &noBranch):
		writeError(w, r, http.StatusUnprocessableEntity, apierror.ApiError{Type: "NO_MATCHING_BRANCH", Message: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, apierror.ApiError{Type: "NOT_FOUND", Message: err.Error()})
	default:
		var engineErr *dtree.EngineError
		if errors.As(err, &engineErr) {
			writeError(w, r, http.StatusBadRequest, apierror.ApiError{Type: "BAD_REQUEST", Message: err.Error()})
			return
		}
		writeError(w, r, http.StatusInternalServerError, apierror.ApiError{Type: "ERROR", Message: err.Error()})
	}
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, apierror.ApiError{
		Type:    "BAD_REQUEST",
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, resp interface{}) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Server error: %s", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp interface{}) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("Server error: %s", err)
	} else {
		w.Write(body)
	}
}
