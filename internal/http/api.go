package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/internal/player"
	"statisfy/internal/queue"
	"statisfy/internal/ratelimit"
)

// maxBodyBytes bounds API request bodies; context requests carry whole track lists.
const maxBodyBytes = 1 << 20

// Controller is the queue control surface the API drives.
type Controller interface {
	Snapshot() queue.Snapshot
	Label(item core.TrackMetadata) string
	DescribeStatus(status core.DeviceStatus) string
	Find(query string) []int

	SetContext(sourceType core.SourceType, sourceID string, uris []string, currentURI string) int
	LoadContext(ctx context.Context, sourceType core.SourceType, sourceID, currentURI string) (int, error)
	PlayContext(ctx context.Context) error
	PlayIndex(ctx context.Context, index int) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	AddNext(raw string) (bool, error)
	AddToEnd(raw string) (bool, error)
	RemoveAt(index int) bool
	Clear()
	ClearContext()
	SetShuffle(enabled bool)
	SetCircular(enabled bool)
}

type TrackResponse struct {
	Index       int      `json:"index"`
	URI         string   `json:"uri"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	DurationMs  int64    `json:"durationMs"`
	Placeholder bool     `json:"placeholder"`
	Manual      bool     `json:"manual"`
	Label       string   `json:"label"`
}

type QueueResponse struct {
	Tracks       []TrackResponse `json:"tracks"`
	CurrentIndex int             `json:"currentIndex"`
	IsShuffle    bool            `json:"isShuffle"`
	IsCircular   bool            `json:"isCircular"`
	SourceType   core.SourceType `json:"sourceType"`
	SourceID     string          `json:"sourceId"`
}

type StatusResponse struct {
	Status        string         `json:"status"`
	Description   string         `json:"description"`
	Message       string         `json:"message,omitempty"`
	NowPlayingURI string         `json:"nowPlayingUri,omitempty"`
	IsPlaying     bool           `json:"isPlaying"`
	ProgressMs    int64          `json:"progressMs"`
	DurationMs    int64          `json:"durationMs"`
	Volume        int            `json:"volume"`
	FetchedAt     time.Time      `json:"fetchedAt,omitzero"`
	Current       *TrackResponse `json:"current,omitempty"`
}

type trackRequest struct {
	URI string `json:"uri"`
}

type indexRequest struct {
	Index *int `json:"index"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type contextRequest struct {
	SourceType string   `json:"sourceType"`
	SourceID   string   `json:"sourceId"`
	URIs       []string `json:"uris"`
	CurrentURI string   `json:"currentUri"`
	Play       bool     `json:"play"`
}

type apiHandler struct {
	logger     *zap.Logger
	controller Controller
	// limiter may be nil
	limiter *ratelimit.Limiter
}

func (h *apiHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/queue", h.getQueue)
	mux.HandleFunc("GET /api/queue/find", h.findTracks)
	mux.HandleFunc("GET /api/status", h.getStatus)
	mux.HandleFunc("POST /api/queue/play", h.limited(h.play))
	mux.HandleFunc("POST /api/queue/next", h.limited(h.next))
	mux.HandleFunc("POST /api/queue/previous", h.limited(h.previous))
	mux.HandleFunc("POST /api/queue/shuffle", h.limited(h.shuffle))
	mux.HandleFunc("POST /api/queue/circular", h.limited(h.circular))
	mux.HandleFunc("POST /api/queue/add-next", h.limited(h.addNext))
	mux.HandleFunc("POST /api/queue/add-end", h.limited(h.addToEnd))
	mux.HandleFunc("POST /api/queue/remove", h.limited(h.remove))
	mux.HandleFunc("POST /api/queue/clear", h.limited(h.clear))
	mux.HandleFunc("POST /api/queue/context", h.limited(h.setContext))
	mux.HandleFunc("POST /api/queue/context/clear", h.limited(h.clearContext))
}

// limited rejects commands from a client that exceeded its per-minute allowance.
func (h *apiHandler) limited(next http.HandlerFunc) http.HandlerFunc {
	if h.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !h.limiter.Allow(client) {
			h.logger.Warn("Command rate limit exceeded",
				zap.String("client", client),
				zap.String("path", r.URL.Path))
			h.writeError(w, http.StatusTooManyRequests, errors.New("too many commands, slow down"))
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *apiHandler) getQueue(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queueResponse(h.controller.Snapshot()))
}

func (h *apiHandler) getStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.controller.Snapshot()
	resp := StatusResponse{
		Status:        snap.Status.String(),
		Description:   h.controller.DescribeStatus(snap.Status),
		Message:       snap.StatusMessage,
		NowPlayingURI: snap.NowPlayingURI,
		IsPlaying:     snap.IsPlaying,
		ProgressMs:    snap.Progress.Milliseconds(),
		DurationMs:    snap.Duration.Milliseconds(),
		Volume:        snap.Volume,
		FetchedAt:     snap.FetchedAt,
	}
	if item, ok := snap.Current(); ok {
		track := h.trackResponse(snap, snap.CurrentIndex, item)
		resp.Current = &track
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) findTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	snap := h.controller.Snapshot()
	matches := h.controller.Find(query)

	tracks := make([]TrackResponse, 0, len(matches))
	for _, idx := range matches {
		if idx < len(snap.TrackItems) {
			tracks = append(tracks, h.trackResponse(snap, idx, snap.TrackItems[idx]))
		}
	}
	h.writeJSON(w, http.StatusOK, tracks)
}

func (h *apiHandler) play(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !h.decode(w, r, &req) {
		return
	}
	var err error
	if req.Index != nil {
		err = h.controller.PlayIndex(r.Context(), *req.Index)
	} else {
		err = h.controller.PlayContext(r.Context())
	}
	h.respondQueue(w, err)
}

func (h *apiHandler) next(w http.ResponseWriter, r *http.Request) {
	h.respondQueue(w, h.controller.Next(r.Context()))
}

func (h *apiHandler) previous(w http.ResponseWriter, r *http.Request) {
	h.respondQueue(w, h.controller.Previous(r.Context()))
}

func (h *apiHandler) shuffle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.controller.SetShuffle(req.Enabled)
	h.respondQueue(w, nil)
}

func (h *apiHandler) circular(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.controller.SetCircular(req.Enabled)
	h.respondQueue(w, nil)
}

func (h *apiHandler) addNext(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, h.controller.AddNext)
}

func (h *apiHandler) addToEnd(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, h.controller.AddToEnd)
}

func (h *apiHandler) add(w http.ResponseWriter, r *http.Request, fn func(string) (bool, error)) {
	var req trackRequest
	if !h.decode(w, r, &req) {
		return
	}
	added, err := fn(req.URI)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !added {
		h.writeError(w, http.StatusConflict, errors.New("track is already in the queue"))
		return
	}
	h.respondQueue(w, nil)
}

func (h *apiHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Index == nil || !h.controller.RemoveAt(*req.Index) {
		h.writeError(w, http.StatusBadRequest, player.ErrInvalidIndex)
		return
	}
	h.respondQueue(w, nil)
}

func (h *apiHandler) clear(w http.ResponseWriter, _ *http.Request) {
	h.controller.Clear()
	h.respondQueue(w, nil)
}

func (h *apiHandler) clearContext(w http.ResponseWriter, _ *http.Request) {
	h.controller.ClearContext()
	h.respondQueue(w, nil)
}

func (h *apiHandler) setContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !h.decode(w, r, &req) {
		return
	}
	sourceType := core.ParseSourceType(req.SourceType)

	if len(req.URIs) > 0 {
		h.controller.SetContext(sourceType, req.SourceID, req.URIs, req.CurrentURI)
	} else if _, err := h.controller.LoadContext(r.Context(), sourceType, req.SourceID, req.CurrentURI); err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}

	if req.Play {
		h.respondQueue(w, h.controller.PlayContext(r.Context()))
		return
	}
	h.respondQueue(w, nil)
}

func (h *apiHandler) respondQueue(w http.ResponseWriter, err error) {
	if err != nil {
		h.logger.Debug("Queue request failed", zap.Error(err))
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.queueResponse(h.controller.Snapshot()))
}

func (h *apiHandler) queueResponse(snap queue.Snapshot) QueueResponse {
	tracks := make([]TrackResponse, 0, len(snap.TrackItems))
	for i, item := range snap.TrackItems {
		tracks = append(tracks, h.trackResponse(snap, i, item))
	}
	return QueueResponse{
		Tracks:       tracks,
		CurrentIndex: snap.CurrentIndex,
		IsShuffle:    snap.IsShuffle,
		IsCircular:   snap.IsCircular,
		SourceType:   snap.SourceType,
		SourceID:     snap.SourceID,
	}
}

func (h *apiHandler) trackResponse(snap queue.Snapshot, index int, item core.TrackMetadata) TrackResponse {
	artists := item.Artists
	if artists == nil {
		artists = []string{}
	}
	return TrackResponse{
		Index:       index,
		URI:         item.URI,
		ID:          item.ID,
		Name:        item.Name,
		Artists:     artists,
		Album:       item.Album,
		ImageURL:    item.ImageURL,
		DurationMs:  item.Duration.Milliseconds(),
		Placeholder: item.Placeholder,
		Manual:      slices.Contains(snap.ManuallyAdded, item.URI),
		Label:       h.controller.Label(item),
	}
}

// decode reads an optional JSON body into v and reports whether the handler may continue.
func (h *apiHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, player.ErrInvalidIndex), errors.Is(err, player.ErrEmptyContext):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrNoContextSource):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("Failed to write response", zap.Error(err))
	}
}
