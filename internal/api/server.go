package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/model"
	"EarningsScreener/internal/strategy"
)

const dateLayout = "2006-01-02"

// RecommendationStore reads recorded recommendations.
type RecommendationStore interface {
	Recommendations(date time.Time) ([]model.ResultRow, error)
}

// Server exposes recorded and live recommendations over HTTP.
type Server struct {
	Recorder RecommendationStore
	Engine   strategy.Recommender
	Now      func() time.Time

	decoder *schema.Decoder
	router  *mux.Router
}

type route struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// NewServer builds the router.
func NewServer(rec RecommendationStore, engine strategy.Recommender) *Server {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	s := &Server{Recorder: rec, Engine: engine, Now: time.Now, decoder: dec, router: mux.NewRouter()}

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api/v1").Subrouter()
	for _, r := range s.routes() {
		api.HandleFunc(r.Path, r.Handler).Methods(r.Method)
	}
	return s
}

func (s *Server) routes() []route {
	return []route{
		{Path: "/recommendations", Method: http.MethodGet, Handler: s.listRecommendations},
		{Path: "/recommendations/{symbol}", Method: http.MethodGet, Handler: s.computeRecommendation},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type listQuery struct {
	Date   string `schema:"date"`
	Rating string `schema:"rating"`
}

type listResponse struct {
	Date            string            `json:"date"`
	Recommendations []model.ResultRow `json:"recommendations"`
}

func (s *Server) listRecommendations(w http.ResponseWriter, r *http.Request) {
	var q listQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	date := s.Now()
	if q.Date != "" {
		d, err := time.Parse(dateLayout, q.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		date = d
	}

	rows, err := s.Recorder.Recommendations(date)
	if err != nil {
		log.Errorf("load recommendations: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load recommendations")
		return
	}
	out := make([]model.ResultRow, 0, len(rows))
	for _, row := range rows {
		if q.Rating == "" || strings.EqualFold(q.Rating, string(row.Rating)) {
			out = append(out, row)
		}
	}
	writeJSON(w, http.StatusOK, listResponse{Date: date.Format(dateLayout), Recommendations: out})
}

type recommendationResponse struct {
	Symbol          string       `json:"symbol"`
	Rating          model.Rating `json:"rating"`
	AvgVolume       bool         `json:"avg_volume"`
	IV30RV30        bool         `json:"iv30_rv30"`
	Slope           bool         `json:"ts_slope_0_45"`
	ExpectedMove    *string      `json:"expected_move"`
	AvgVolumeValue  *float64     `json:"avg_volume_value,omitempty"`
	IV30            float64      `json:"iv30"`
	RV30            *float64     `json:"rv30,omitempty"`
	IV30RV30Value   *float64     `json:"iv30_rv30_value,omitempty"`
	TSSlope045      *float64     `json:"ts_slope_0_45_value,omitempty"`
	UnderlyingPrice float64      `json:"underlying_price"`
	Straddle        *float64     `json:"straddle,omitempty"`
	ComputedAt      time.Time    `json:"computed_at"`
}

func (s *Server) computeRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	rec, err := s.Engine.Compute(r.Context(), symbol)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recommendationResponse{
		Symbol:          symbol,
		Rating:          rec.Rating,
		AvgVolume:       rec.AvgVolume,
		IV30RV30:        rec.IV30RV30,
		Slope:           rec.Slope,
		ExpectedMove:    rec.ExpectedMove,
		AvgVolumeValue:  rec.AvgVolumeValue,
		IV30:            rec.IV30,
		RV30:            rec.RV30,
		IV30RV30Value:   rec.IV30RV30Value,
		TSSlope045:      rec.TSSlope045,
		UnderlyingPrice: rec.UnderlyingPrice,
		Straddle:        rec.Straddle,
		ComputedAt:      rec.ComputedAt,
	})
}

// statusFor maps data shortfalls to 422 and everything else to 502.
func statusFor(err error) int {
	switch strategy.ErrorKind(err) {
	case strategy.KindNoExpirations, strategy.KindInsufficientExpirations,
		strategy.KindNoViableChain, strategy.KindInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
