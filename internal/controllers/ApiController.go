package controllers

import (
	"errors"
	"fmt"
	json "github.com/goccy/go-json"
	"net/http"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/services"
	"strconv"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	defaultHistoryDays = 7
)

// RevisionSourceInterface reports a counter that changes with every
// persisted write.
type RevisionSourceInterface interface {
	Revision() uint64
}

type ApiController struct {
	logger    providers.Logger
	authority services.StateAuthorityInterface
	cache     providers.CacheProviderInterface
	revisions RevisionSourceInterface
	clock     services.ClockInterface
}

func NewApiController(logger providers.Logger, authority services.StateAuthorityInterface, cache providers.CacheProviderInterface, revisions RevisionSourceInterface, clock services.ClockInterface) *ApiController {
	return &ApiController{
		logger:    logger,
		authority: authority,
		cache:     cache,
		revisions: revisions,
		clock:     clock,
	}
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		providers.WriteJSON(w, statusForError(err), models.ErrorResponse(err.Error()))
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// statusForError maps request errors to 400. Failures of a well-formed
// operation still answer 200 with an error-tagged body, so observers only
// need to look at the tag.
func statusForError(err error) int {
	if errors.Is(err, models.ErrInvalidArgument) || errors.Is(err, models.ErrUnknownMessage) ||
		errors.Is(err, models.ErrUnknownAchievement) || errors.Is(err, models.ErrNotNamedAchievement) {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

// PostMessage handles one sync-channel request and always answers with
// exactly one tagged response.
func (ac *ApiController) PostMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		providers.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse("malformed request: "+err.Error()))
		return
	}

	snap, err := services.Dispatch(r.Context(), ac.authority, req)
	if err != nil {
		ac.logger.Warnf(providers.TypePost, "Request %s failed: %s", req.Type, err)
		providers.WriteJSON(w, statusForError(err), models.ErrorResponse(err.Error()))
		return
	}
	providers.WriteJSON(w, http.StatusOK, models.StateResponse(snap))
}

func (ac *ApiController) GetState(w http.ResponseWriter, r *http.Request) {
	snap, err := ac.authority.GetSnapshot(r.Context())
	if err != nil {
		ac.logger.Warnf(providers.TypeGet, "Snapshot failed: %s", err)
		providers.WriteJSON(w, http.StatusOK, models.ErrorResponse(err.Error()))
		return
	}
	providers.WriteJSON(w, http.StatusOK, models.StateResponse(snap))
}

func (ac *ApiController) GetCatalog(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "catalog", func() (any, error) {
		return models.NewCatalog(), nil
	})
}

// GetHistory is cached per store revision and calendar day, so a cached
// body never outlives the data it was built from.
func (ac *ApiController) GetHistory(w http.ResponseWriter, r *http.Request) {
	days := defaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			providers.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse("days must be an integer"))
			return
		}
		days = n
	}
	key := fmt.Sprintf("history:%d:%s:%d", ac.revisions.Revision(), models.FormatDate(ac.clock.Now()), days)
	ac.serveFromCacheOrCompute(w, key, func() (any, error) {
		return ac.authority.History(r.Context(), days)
	})
}
