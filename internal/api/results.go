package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/rurair-map/internal/charts"
	"github.com/mohammed-shakir/rurair-map/internal/core/apperr"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/params"
)

// envelope is the dashboard response shape.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (a *API) respond(w http.ResponseWriter, status int, ok bool, data any, msg string) {
	writeJSON(w, status, envelope{Success: ok, Data: data, Message: msg, Timestamp: a.Now().Format(time.RFC3339)})
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("action") {
	case "get_signal_charts":
		call, err := signalCall(q.Get("signal_type"), q.Get("days_back"))
		if err != nil {
			a.respond(w, http.StatusBadRequest, false, nil, validationMessage(err))
			return
		}
		a.passthrough(w, r, call, "Signal chart data retrieved successfully")
	case "get_pollution_charts":
		call, err := dispatch.PollutionChartsCall(q.Get("pollutant_code"), atoiOr(q.Get("months_back"), dispatch.DefaultMonthsBack), q.Get("group_by"))
		if err != nil {
			a.respond(w, http.StatusBadRequest, false, nil, "Pollutant code is required")
			return
		}
		a.passthrough(w, r, call, "Pollution chart data retrieved successfully")
	case "health_check":
		if a.DB != nil {
			if err := a.DB.Ping(r.Context()); err != nil {
				a.logFailure(r.Context(), http.StatusInternalServerError, err)
				a.respond(w, http.StatusInternalServerError, false, nil, "Error connecting to database")
				return
			}
		}
		a.respond(w, http.StatusOK, true, map[string]string{
			"status":      "OK",
			"database":    "connected",
			"server_time": a.Now().Format(time.RFC3339),
		}, "API is working correctly")
	default:
		a.respond(w, http.StatusBadRequest, false, nil, "Invalid action parameter")
	}
}

func (a *API) passthrough(w http.ResponseWriter, r *http.Request, call dispatch.FunctionCall, msg string) {
	raw, err := a.Exec.Execute(r.Context(), call)
	if err != nil {
		a.logFailure(r.Context(), http.StatusInternalServerError, err)
		a.respond(w, http.StatusInternalServerError, false, nil, "Internal server error: "+err.Error())
		return
	}
	var data any
	if len(bytes.TrimSpace(raw)) > 0 {
		data = json.RawMessage(raw)
	}
	a.respond(w, http.StatusOK, true, data, msg)
}

func signalCall(signalType, daysBack string) (dispatch.FunctionCall, error) {
	if strings.TrimSpace(signalType) == "" {
		return dispatch.FunctionCall{}, &params.InvalidParameterError{Field: "signal_type", Reason: "is required"}
	}
	var days *int
	if daysBack != "" {
		n, err := strconv.Atoi(strings.TrimSpace(daysBack))
		if err != nil {
			return dispatch.FunctionCall{}, &params.InvalidParameterError{Field: "days_back", Reason: "must be an integer"}
		}
		days = &n
	}
	return dispatch.SignalChartsCall(signalType, days)
}

func validationMessage(err error) string {
	var ipe *params.InvalidParameterError
	if errors.As(err, &ipe) && ipe.Field == "signal_type" {
		return "Signal type is required"
	}
	return err.Error()
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func viewport(r *http.Request) charts.Viewport {
	return charts.Viewport{Width: atoiOr(r.URL.Query().Get("width"), 0)}
}

func (a *API) signalCharts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	call, err := signalCall(q.Get("signal_type"), q.Get("days_back"))
	if err != nil {
		a.respond(w, http.StatusBadRequest, false, nil, validationMessage(err))
		return
	}
	raw, err := a.Exec.Execute(r.Context(), call)
	if err != nil {
		a.chartFailure(w, r, err)
		return
	}
	data, err := charts.ParseSignal(orEmpty(raw))
	if err != nil {
		a.chartFailure(w, r, errors.Join(apperr.ErrUpstream, err))
		return
	}
	dash, err := charts.BuildSignalChart(data, viewport(r))
	a.chartResult(w, r, dash, err)
}

func (a *API) pollutionCharts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months := atoiOr(q.Get("months_back"), dispatch.DefaultMonthsBack)
	grouping := charts.ResolveGrouping(months, q.Get("group_by"))
	call, err := dispatch.PollutionChartsCall(q.Get("pollutant_code"), months, grouping.Selected)
	if err != nil {
		a.respond(w, http.StatusBadRequest, false, nil, "Pollutant code is required")
		return
	}
	raw, err := a.Exec.Execute(r.Context(), call)
	if err != nil {
		a.chartFailure(w, r, err)
		return
	}
	data, err := charts.ParsePollution(orEmpty(raw))
	if err != nil {
		a.chartFailure(w, r, errors.Join(apperr.ErrUpstream, err))
		return
	}
	name := q.Get("pollutant_name")
	if name == "" {
		name = q.Get("pollutant_code")
	}
	dash, err := charts.BuildPollutionChart(data, charts.PollutionOptions{
		MonthsBack:    months,
		GroupBy:       q.Get("group_by"),
		PollutantName: name,
		Viewport:      viewport(r),
	})
	a.chartResult(w, r, dash, err)
}

// chartResult reports an empty dashboard as an unsuccessful 200 carrying the
// summary cards and the empty-state message.
func (a *API) chartResult(w http.ResponseWriter, r *http.Request, dash any, err error) {
	var empty *charts.EmptyDataError
	switch {
	case err == nil:
		a.respond(w, http.StatusOK, true, dash, "")
	case errors.As(err, &empty):
		a.respond(w, http.StatusOK, false, dash, empty.Error())
	default:
		a.chartFailure(w, r, err)
	}
}

func (a *API) chartFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	a.logFailure(r.Context(), status, err)
	a.respond(w, status, false, nil, err.Error())
}

func orEmpty(raw []byte) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}")
	}
	return raw
}
