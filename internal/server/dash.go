package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/technojoe/claude-token-share/internal/locallog"
	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/usage"
	"github.com/technojoe/claude-token-share/internal/version"
	"github.com/technojoe/claude-token-share/internal/xapi"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.store.Healthy(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

// handleDash renders a curl-friendly text dashboard of local usage. It
// prefers the watcher's live aggregate and falls back to a one-shot scan.
func (s *Server) handleDash(w http.ResponseWriter, r *http.Request) {
	data := s.live.get()
	if data == nil {
		records, err := locallog.NewScanner(s.cfg.LocalLogsRoot).Scan()
		if err != nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if errors.Is(err, locallog.ErrNoFiles) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintln(w, "no conversation log files found")
				return
			}
			logger.Error("dashboard scan failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintln(w, "failed to scan conversation logs")
			return
		}
		agg := usage.Aggregate(records, s.cfg.TargetYear, models.SourceLocalFiles, localSourceLabel)
		data = &agg
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, renderDash(*data))
}

func renderDash(data models.UsageData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Claude Token Share - %d (%s)\n\n", data.Year, data.DataSourceLabel)
	fmt.Fprintf(&b, "Total tokens: %s  (in %s / out %s)\n",
		xapi.FormatTokenCount(data.TotalTokens),
		xapi.FormatTokenCount(data.TotalInputTokens),
		xapi.FormatTokenCount(data.TotalOutputTokens))
	fmt.Fprintf(&b, "Total cost:   $%.2f\n\n", data.TotalCost)

	if len(data.MonthlyBreakdown) > 0 {
		series := make([]float64, len(models.MonthLabels))
		for _, m := range data.MonthlyBreakdown {
			if i := models.MonthIndex(m.Month); i > 0 {
				series[i-1] = float64(m.TotalTokens)
			}
		}
		b.WriteString("Tokens per month (Jan-Dec):\n")
		b.WriteString(asciigraph.Plot(series, asciigraph.Height(10), asciigraph.Width(60)))
		b.WriteString("\n\n")
	}

	if len(data.ModelBreakdown) > 0 {
		b.WriteString("By model:\n")
		for _, m := range data.ModelBreakdown {
			fmt.Fprintf(&b, "  %-40s %10s  $%.2f\n",
				m.Model, xapi.FormatTokenCount(m.TotalTokens), m.Cost)
		}
	}

	return b.String()
}
