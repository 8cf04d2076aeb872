package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/stats"
)

// defaultWindowMonths is how many months before the end month a query
// without "from" reaches back.
const defaultWindowMonths = 5

// StatsHandler serves dashboard statistics.
type StatsHandler struct {
	Engine *stats.Engine

	// Now defaults to time.Now and decides the default "to".
	Now func() time.Time
}

// Get handles GET /api/stats?from=YYYY-MM-DD&to=YYYY-MM-DD&granularity=day|week|month.
// Without "to" the range ends today; without "from" it starts on the first
// day of the month five months before "to".
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	to := model.DateOf(now())
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := model.ParseDate(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid 'to' date format, use YYYY-MM-DD")
			return
		}
		to = parsed
	}

	from := stats.MonthStart(to).AddMonths(-defaultWindowMonths)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := model.ParseDate(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid 'from' date format, use YYYY-MM-DD")
			return
		}
		from = parsed
	}

	resp, err := h.Engine.Stats(r.Context(), UserID(r.Context()), from.Time, to.Time, q.Get("granularity"))
	if err != nil {
		slog.Error("failed to compute stats", "from", from.String(), "to", to.String(), "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}
