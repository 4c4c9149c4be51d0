package bridge

import (
	"encoding/json"
	"net/http"
	"time"
)

// Status is a point-in-time snapshot of the supervisor for the health
// endpoint.
type Status struct {
	Subscribed     bool    `json:"subscribed"`
	MarketOpen     bool    `json:"market_open"`
	Holiday        string  `json:"holiday,omitempty"`
	TickSilenceSec float64 `json:"tick_silence_sec"`
	TimeoutRetries int     `json:"timeout_retries"`
	SlowWarnLevel  int     `json:"slow_warn_level"`
}

// Status returns the current supervisor snapshot.
func (s *Service) Status() Status {
	now := s.clock()

	s.mu.Lock()
	holiday := s.holiday
	retries := s.timeoutRetries
	level := s.slowWarnLevel
	s.mu.Unlock()

	st := Status{
		Subscribed:     s.session.Subscribed(),
		MarketOpen:     s.hours.IsTradingTime(now, holiday),
		TickSilenceSec: now.Sub(time.Unix(0, s.lastTick.Load())).Seconds(),
		TimeoutRetries: retries,
		SlowWarnLevel:  level,
	}
	if !holiday.IsZero() {
		st.Holiday = holiday.String()
	}
	return st
}

// HealthHandler serves the monitoring surface: 200 while healthy, 503 when
// the market is open but no subscription is live.
func (s *Service) HealthHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := s.Status()

		health := struct {
			Status string `json:"status"`
			Bridge Status `json:"bridge"`
		}{
			Status: "healthy",
			Bridge: st,
		}
		if st.MarketOpen && !st.Subscribed {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
