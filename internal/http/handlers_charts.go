package http

import (
	"fmt"
	"net/http"

	"financeangle/internal/charts"
	"financeangle/internal/log"
)

func chartOptions(r *http.Request) (charts.Options, error) {
	var dims [3]int
	for i, name := range []string{"width", "height", "dpi"} {
		v, err := queryInt(r, name)
		if err != nil {
			return charts.Options{}, err
		}
		if v != nil {
			dims[i] = *v
		}
	}
	return charts.ClampOptions(dims[0], dims[1], dims[2]), nil
}

func (s *Server) handleSpendingChart(w http.ResponseWriter, r *http.Request) {
	o, err := chartOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stacked, err := queryBool(r, "stacked", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months, err := queryInt(r, "months")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := fmt.Sprintf("spending|stacked=%t", stacked)
	if months != nil {
		name += fmt.Sprintf("|months=%d", *months)
	}
	s.renderChart(w, r, name, o, func() ([]byte, error) {
		points, err := s.dashboard.SpendingSummary(r.Context(), months)
		if err != nil {
			return nil, err
		}
		return charts.Spending(points, stacked, o), nil
	})
}

func (s *Server) handleBalanceChart(w http.ResponseWriter, r *http.Request) {
	o, err := chartOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderChart(w, r, "balance", o, func() ([]byte, error) {
		snaps, err := s.dashboard.ListSnapshots(r.Context())
		if err != nil {
			return nil, err
		}
		return charts.NetPosition(snaps, o), nil
	})
}

func (s *Server) handleBalanceByAccountChart(w http.ResponseWriter, r *http.Request) {
	o, err := chartOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderChart(w, r, "balance-by-account", o, func() ([]byte, error) {
		snaps, err := s.dashboard.ListSnapshots(r.Context())
		if err != nil {
			return nil, err
		}
		return charts.BalanceByAccount(snaps, o), nil
	})
}

func (s *Server) renderChart(w http.ResponseWriter, r *http.Request, name string, o charts.Options, draw func() ([]byte, error)) {
	svg, err := s.charts.Render(name, o, draw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Chart served",
		log.FieldOperation, log.OpRender, "chart", name, "bytes", len(svg))
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}
