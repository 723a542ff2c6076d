package api

import (
	"net/http"
	"time"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/foundation"
	"github.com/MalithGihan/rabbitflow/internal/refresh"
	"github.com/MalithGihan/rabbitflow/internal/render"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

type statusResponse struct {
	State      refresh.State   `json:"state"`
	Generation uint64          `json:"generation"`
	Vhost      string          `json:"vhost"`
	LastError  string          `json:"lastError,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	View       types.ViewState `json:"view"`
	StatusLine string          `json:"statusLine"`
}

type vhostRequest struct {
	Name string `json:"name" validate:"required"`
}

type viewRequest struct {
	Mode   types.MetricMode `json:"mode"`
	Filter string           `json:"filter"`
}

type viewResponse struct {
	State types.ViewState `json:"state"`
	View  types.View      `json:"view"`
}

func (h *handlers) currentStatus() statusResponse {
	st := h.snapshots.Status()
	return statusResponse{
		State:      st.State,
		Generation: st.Generation,
		Vhost:      st.Vhost,
		LastError:  st.LastError,
		UpdatedAt:  st.UpdatedAt,
		View:       h.session.State(),
		StatusLine: h.session.StatusLine(),
	}
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	foundation.Respond(w, http.StatusOK, h.currentStatus())
}

func (h *handlers) vhosts(w http.ResponseWriter, r *http.Request) {
	vhosts, err := h.catalog.ListVhosts(r.Context())
	if err != nil {
		foundation.RespondError(w, http.StatusBadGateway, broker.Message(err))
		return
	}
	foundation.Respond(w, http.StatusOK, nonNil(vhosts))
}

func (h *handlers) exchanges(w http.ResponseWriter, r *http.Request) {
	exchanges, err := h.catalog.ListExchanges(r.Context())
	if err != nil {
		foundation.RespondError(w, http.StatusBadGateway, broker.Message(err))
		return
	}
	foundation.Respond(w, http.StatusOK, nonNil(exchanges))
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		foundation.RespondError(w, http.StatusBadGateway, broker.Message(err))
		return
	}
	foundation.Respond(w, http.StatusOK, h.currentStatus())
}

func (h *handlers) setVhost(w http.ResponseWriter, r *http.Request) {
	req, err := foundation.Decode[vhostRequest](w, r)
	if err != nil {
		foundation.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.session.SetVhost(r.Context(), req.Name); err != nil {
		foundation.RespondError(w, http.StatusBadGateway, broker.Message(err))
		return
	}
	foundation.Respond(w, http.StatusOK, h.currentStatus())
}

func (h *handlers) graph(w http.ResponseWriter, _ *http.Request) {
	snap := h.snapshots.Current()
	if snap == nil {
		foundation.RespondError(w, http.StatusNotFound, "no graph yet")
		return
	}
	foundation.Respond(w, http.StatusOK, snap)
}

// view renders the session view. The mode and filter query parameters
// project the current graph differently without changing the session.
func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := render.FormatJSON
	if f := q.Get("format"); f != "" {
		format = render.DetectFormat(f)
		if format == render.FormatUnknown {
			foundation.RespondError(w, http.StatusBadRequest, "unsupported format "+`"`+f+`"`)
			return
		}
	}

	state, view := h.session.StateAndView()
	if q.Has("mode") || q.Has("filter") {
		if q.Has("mode") {
			state.Mode = types.MetricMode(q.Get("mode"))
		}
		if q.Has("filter") {
			state.Filter = q.Get("filter")
		}
		v, err := h.session.Preview(state)
		if err != nil {
			foundation.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		view = v
		state.Mode, _ = types.ParseMetricMode(string(state.Mode))
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if err := render.Write(w, format, view, render.Options{Mode: state.Mode, Layout: h.layout}); err != nil {
		foundation.LoggerFromContext(r.Context(), nil).Error("render view", "format", format, "error", err)
	}
}

func (h *handlers) setView(w http.ResponseWriter, r *http.Request) {
	req, err := foundation.Decode[viewRequest](w, r)
	if err != nil {
		foundation.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode == "" {
		req.Mode = h.session.State().Mode
	}

	// an invalid mode or filter leaves the session untouched; the mode is
	// parsed the same way as the mode query parameter
	if err := h.session.SetViewState(types.ViewState{Mode: req.Mode, Filter: req.Filter}); err != nil {
		foundation.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, view := h.session.StateAndView()
	foundation.Respond(w, http.StatusOK, viewResponse{State: state, View: view})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
