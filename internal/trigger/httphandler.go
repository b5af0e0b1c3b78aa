package trigger

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const caseIDParam = "caseid"

// HTTPHandler receives notifications from the issue tracker about changed
// cases.
// The id of the case is passed in the caseid query parameter. The case is
// retrieved from the tracker and forwarded as Event to the event channel.
type HTTPHandler struct {
	provider string
	cases    tracker.CaseLookup
	ch       chan<- *Event
	logger   *zap.Logger
}

func NewHTTPHandler(provider string, cases tracker.CaseLookup, ch chan<- *Event) *HTTPHandler {
	return &HTTPHandler{
		provider: provider,
		cases:    cases,
		ch:       ch,
		logger:   zap.L().Named("trigger_http_handler").With(logfields.EventProvider(provider)),
	}
}

func (h *HTTPHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		resp.Header().Set("Allow", "GET, POST")
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := req.FormValue(caseIDParam)
	logger := h.logger.With(zap.String("http.remote_addr", req.RemoteAddr))

	caseID, err := strconv.Atoi(idStr)
	if err != nil || caseID < 0 {
		metrics.eventProcessed(resultLabelInvalid)
		logger.Info(
			"ignoring event with invalid case id",
			logfields.Event("trigger_event_invalid"),
			zap.String("case_id_param", idStr),
		)
		http.Error(resp, "invalid caseid parameter", http.StatusBadRequest)

		return
	}

	if caseID == 0 {
		metrics.eventProcessed(resultLabelIgnored)
		logger.Debug("ignoring event for case 0", logfields.Event("trigger_event_ignored"))
		resp.WriteHeader(http.StatusNoContent)

		return
	}

	logger = logger.With(logfields.CaseID(caseID))

	c, err := h.cases.CaseByID(req.Context(), caseID)
	if err != nil {
		metrics.eventProcessed(resultLabelLookupError)
		logger.Error("retrieving case failed", logfields.Event("trigger_case_lookup_failed"), zap.Error(err))

		if errors.Is(err, tracker.ErrCaseNotFound) {
			http.Error(resp, "case not found", http.StatusNotFound)
			return
		}

		http.Error(resp, "retrieving case failed", http.StatusBadGateway)

		return
	}

	ev, err := EventFromCase(h.provider, c)
	if err != nil {
		metrics.eventProcessed(resultLabelInvalid)
		logger.Warn(
			"dropping event, case data is invalid",
			logfields.Event("trigger_event_dropped"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusUnprocessableEntity)

		return
	}

	select {
	case h.ch <- ev:
	default:
		metrics.eventProcessed(resultLabelDropped)
		logger.Error("dropping event, event queue is full", logfields.Event("trigger_event_dropped"))
		http.Error(resp, "event queue is full", http.StatusServiceUnavailable)

		return
	}

	metrics.eventProcessed(resultLabelAccepted)
	logger.Info("event queued", logfields.Event("trigger_event_queued"))
	resp.WriteHeader(http.StatusAccepted)
}
