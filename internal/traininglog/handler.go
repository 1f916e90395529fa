package traininglog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/traininglog/internal/auth"
	"github.com/2beens/traininglog/internal/middleware"
	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/telemetry/tracing"
	"github.com/2beens/traininglog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const dateLayout = "2006-01-02"

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=traininglog_test

type entriesService interface {
	CreateEntry(ctx context.Context, params CreateParams) (*CreateResult, error)
	EditEntry(ctx context.Context, id, requesterUserID string, fields EditFields) (*Entry, error)
	DeleteEntry(ctx context.Context, id, requesterUserID string) error
	GetEntry(ctx context.Context, id, requesterUserID string) (*Entry, error)
	CurrentPR(ctx context.Context, userID, exerciseID string) (*Entry, error)
	History(ctx context.Context, userID, exerciseID string, limit int) ([]Entry, error)
	OneRepMax(ctx context.Context, userID, exerciseID string) (*OneRepMaxSummary, error)
	ListEntries(ctx context.Context, userID string) ([]Entry, error)
	ListPRs(ctx context.Context, userID string) ([]Entry, error)
	ListByExercise(ctx context.Context, userID, exerciseID string) ([]Entry, error)
	ListByDay(ctx context.Context, userID string, day time.Time) ([]Entry, error)
}

type EditEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type DeleteEntryResponse struct {
	DeletedID string `json:"deletedId"`
}

type CurrentPRResponse struct {
	PR *Entry `json:"pr"`
}

type EntriesResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

type Handler struct {
	service entriesService
}

func NewHandler(service entriesService) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	allowedWritesPerMin int,
) {
	logsRouter := mainRouter.PathPrefix("/logs").Subrouter()

	// fixed paths first, /{id} would swallow them otherwise
	logsRouter.HandleFunc("", handler.HandleCreate).Methods("POST", "OPTIONS").Name("create-entry")
	logsRouter.HandleFunc("/all", handler.HandleListAll).Methods("GET", "OPTIONS").Name("list-entries")
	logsRouter.HandleFunc("/pr", handler.HandleListPRs).Methods("GET", "OPTIONS").Name("list-prs")
	logsRouter.HandleFunc("/pr/{exerciseId}", handler.HandleCurrentPR).Methods("GET", "OPTIONS").Name("current-pr")
	logsRouter.HandleFunc("/history/{exerciseId}", handler.HandleHistory).Methods("GET", "OPTIONS").Name("history")
	logsRouter.HandleFunc("/1rm/{exerciseId}", handler.HandleOneRepMax).Methods("GET", "OPTIONS").Name("one-rep-max")
	logsRouter.HandleFunc("/exercise/{exerciseId}", handler.HandleListByExercise).Methods("GET", "OPTIONS").Name("list-by-exercise")
	logsRouter.HandleFunc("/date/{date}", handler.HandleListByDate).Methods("GET", "OPTIONS").Name("list-by-date")
	logsRouter.HandleFunc("/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("get-entry")
	logsRouter.HandleFunc("/{id}", handler.HandleEdit).Methods("PUT", "OPTIONS").Name("edit-entry")
	logsRouter.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-entry")

	logsRouter.Use(middleware.RateLimitWrites(rateLimiter, "logs", allowedWritesPerMin, metricsManager))
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.create")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var params CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Errorf("create entry, unmarshal json params: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if params.UserID != "" && params.UserID != userID {
		http.Error(w, "userId does not match the caller", http.StatusForbidden)
		return
	}
	params.UserID = userID
	span.SetAttributes(attribute.String("exercise_id", params.ExerciseID))

	result, err := handler.service.CreateEntry(ctx, params)
	if err != nil {
		writeError(w, "create entry", err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(attribute.Bool("is_new_pr", result.IsNewPR))
	pkg.WriteJSON(w, result, http.StatusCreated)
}

func (handler *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.edit")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("entry.id", id))

	var fields EditFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		log.Errorf("edit entry [%s], unmarshal json params: %s", id, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	edited, err := handler.service.EditEntry(ctx, id, userID, fields)
	if err != nil {
		writeError(w, "edit entry", err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	pkg.WriteJSON(w, EditEntryResponse{Entry: edited}, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.delete")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("entry.id", id))

	if err := handler.service.DeleteEntry(ctx, id, userID); err != nil {
		writeError(w, "delete entry", err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	pkg.WriteJSON(w, DeleteEntryResponse{DeletedID: id}, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.get")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	entry, err := handler.service.GetEntry(ctx, id, userID)
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	pkg.WriteJSON(w, entry, http.StatusOK)
}

func (handler *Handler) HandleCurrentPR(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.current-pr")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	pr, err := handler.service.CurrentPR(ctx, userID, mux.Vars(r)["exerciseId"])
	if err != nil {
		writeError(w, "current pr", err)
		return
	}
	pkg.WriteJSON(w, CurrentPRResponse{PR: pr}, http.StatusOK)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.history")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	limit := DefaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit: must be a positive number", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := handler.service.History(ctx, userID, mux.Vars(r)["exerciseId"], limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeEntries(w, history)
}

func (handler *Handler) HandleOneRepMax(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.one-rep-max")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	summary, err := handler.service.OneRepMax(ctx, userID, mux.Vars(r)["exerciseId"])
	if err != nil {
		writeError(w, "one rep max", err)
		return
	}
	pkg.WriteJSON(w, summary, http.StatusOK)
}

func (handler *Handler) HandleListByExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.list-by-exercise")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	entries, err := handler.service.ListByExercise(ctx, userID, mux.Vars(r)["exerciseId"])
	if err != nil {
		writeError(w, "list by exercise", err)
		return
	}
	writeEntries(w, entries)
}

func (handler *Handler) HandleListByDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.list-by-date")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	dateStr := mux.Vars(r)["date"]
	day, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	entries, err := handler.service.ListByDay(ctx, userID, day)
	if err != nil {
		writeError(w, "list by date", err)
		return
	}
	writeEntries(w, entries)
}

func (handler *Handler) HandleListPRs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.list-prs")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	prs, err := handler.service.ListPRs(ctx, userID)
	if err != nil {
		writeError(w, "list prs", err)
		return
	}
	writeEntries(w, prs)
}

func (handler *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.traininglog.list-all")
	defer span.End()

	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	entries, err := handler.service.ListEntries(ctx, userID)
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeEntries(w, entries)
}

func requestUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func writeEntries(w http.ResponseWriter, entries []Entry) {
	if entries == nil {
		entries = []Entry{}
	}
	pkg.WriteJSON(w, EntriesResponse{
		Entries: entries,
		Total:   len(entries),
	}, http.StatusOK)
}

// writeError maps service errors to status codes. Only unexpected failures
// are logged as errors; the rest describe the request.
func writeError(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "training entry not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "no can do", http.StatusForbidden)
	case errors.Is(err, ErrTransactionFailed):
		log.Errorf("%s: %s", op, err)
		http.Error(w, "temporarily unavailable, try again", http.StatusServiceUnavailable)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
