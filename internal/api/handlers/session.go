package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"route-tracker/internal/adapters/stopfile"
	"route-tracker/internal/api/dto"
	"route-tracker/internal/auth"
	"route-tracker/internal/domain"
	"route-tracker/internal/session"
)

// SessionHandler exposes the driver session events over HTTP. Every method
// except Login expects the auth middleware to have stored the token claims.
type SessionHandler struct {
	Controller *session.Controller
	Auth       *auth.Authenticator
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, snap, err := h.Controller.OnLogin(r.Context(), req.UserID, req.AccessKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.LoginResponse{
		Token:            token,
		SessionID:        snap.SessionID,
		ExpiresInSeconds: int(h.Auth.TTL().Seconds()),
	})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.OnLogout(r.Context(), sessionID(r)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req dto.PositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pos := domain.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	snap, err := h.Controller.OnPositionUpdate(r.Context(), sessionID(r), pos)
	h.respond(w, r, snap, err)
}

// ClearPosition is sent when the client loses its location fix.
func (h *SessionHandler) ClearPosition(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Controller.OnPositionLost(r.Context(), sessionID(r))
	h.respond(w, r, snap, err)
}

// UploadStops accepts the stop file either as the raw request body or as the
// "file" field of a multipart form.
func (h *SessionHandler) UploadStops(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, stopfile.MaxFileBytes+1<<16)
	defer r.Body.Close()

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer f.Close()
		body = f
	}

	snap, err := h.Controller.OnFileUploaded(r.Context(), sessionID(r), body)
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Controller.OnComputeRoute(r.Context(), sessionID(r))
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Controller.Snapshot(r.Context(), sessionID(r))
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) ResetRoute(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Controller.OnReset(r.Context(), sessionID(r))
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	i, ok := stopIndex(w, r)
	if !ok {
		return
	}
	snap, err := h.Controller.OnManualComplete(r.Context(), sessionID(r), i)
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) SkipStop(w http.ResponseWriter, r *http.Request) {
	i, ok := stopIndex(w, r)
	if !ok {
		return
	}
	snap, err := h.Controller.OnSkip(r.Context(), sessionID(r), i)
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) Tick(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Controller.OnTimerTick(r.Context(), sessionID(r))
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req dto.ViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mode := session.ViewMode(req.Mode)
	snap, err := h.Controller.OnSetViewMode(r.Context(), sessionID(r), mode)
	h.respond(w, r, snap, err)
}

func (h *SessionHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	link, err := h.Controller.NavigationLink(r.Context(), sessionID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NavigationResponse{URL: link})
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, snap session.Snapshot, err error) {
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewSnapshotResponse(snap))
}

func sessionID(r *http.Request) string {
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		return c.SessionID
	}
	return ""
}

func stopIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "stop index must be an integer")
		return 0, false
	}
	return i, true
}
