package api

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

const latencyWindow = 1024

// actionMetrics counts emitted actions per kind and keeps a ring of recent
// planning latencies.
type actionMetrics struct {
	mu        sync.Mutex
	actions   map[string]int
	faults    int
	latencies []int64
	next      int
}

func newActionMetrics() *actionMetrics {
	counts := make(map[string]int)
	for _, kind := range []action.Kind{
		action.KindSpeak, action.KindSpotlightClick, action.KindSecureAutofill, action.KindAskCredentials,
		action.KindAskDynamicCredentials, action.KindOpenAndFill, action.KindDirectTeleport,
		action.KindGoogleClick, action.KindForceExpand, action.KindChatResponse,
	} {
		counts[string(kind)] = 0
	}
	return &actionMetrics{actions: counts, latencies: make([]int64, 0, latencyWindow)}
}

func (m *actionMetrics) observe(kind action.Kind, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[string(kind)]++
	ms := elapsed.Milliseconds()
	if len(m.latencies) < latencyWindow {
		m.latencies = append(m.latencies, ms)
		return
	}
	m.latencies[m.next] = ms
	m.next = (m.next + 1) % latencyWindow
}

func (m *actionMetrics) fault() {
	m.mu.Lock()
	m.faults++
	m.mu.Unlock()
}

type metricsSnapshot struct {
	actions   map[string]int
	faults    int
	total     int
	p95       int64
	windowLen int
}

func (m *actionMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := metricsSnapshot{actions: make(map[string]int, len(m.actions)), faults: m.faults, windowLen: len(m.latencies)}
	for kind, count := range m.actions {
		snap.actions[kind] = count
		snap.total += count
	}
	snap.p95 = percentile(m.latencies, 95)
	return snap
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	snap := s.metrics.snapshot()

	var b strings.Builder
	fmt.Fprintln(&b, "# HELP sitesherpa_requests_total Navigate requests answered")
	fmt.Fprintln(&b, "# TYPE sitesherpa_requests_total counter")
	fmt.Fprintf(&b, "sitesherpa_requests_total %d\n", snap.total)

	fmt.Fprintln(&b, "# HELP sitesherpa_actions_total Actions emitted by kind")
	fmt.Fprintln(&b, "# TYPE sitesherpa_actions_total counter")
	for _, key := range sortedIntMapKeys(snap.actions) {
		fmt.Fprintf(&b, "sitesherpa_actions_total{action=%q} %d\n", metricLabelEscape(key), snap.actions[key])
	}

	fmt.Fprintln(&b, "# HELP sitesherpa_planner_faults_total Planner faults mapped to a system error")
	fmt.Fprintln(&b, "# TYPE sitesherpa_planner_faults_total counter")
	fmt.Fprintf(&b, "sitesherpa_planner_faults_total %d\n", snap.faults)

	fmt.Fprintln(&b, "# HELP sitesherpa_plan_latency_window_size Recent requests used for latency")
	fmt.Fprintln(&b, "# TYPE sitesherpa_plan_latency_window_size gauge")
	fmt.Fprintf(&b, "sitesherpa_plan_latency_window_size %d\n", snap.windowLen)
	fmt.Fprintln(&b, "# HELP sitesherpa_plan_p95_latency_ms p95 planning latency in milliseconds")
	fmt.Fprintln(&b, "# TYPE sitesherpa_plan_p95_latency_ms gauge")
	fmt.Fprintf(&b, "sitesherpa_plan_p95_latency_ms %d\n", snap.p95)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func sortedIntMapKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func metricLabelEscape(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(escaped, `"`, `\"`)
}

func percentile(values []int64, p int) int64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		p = 1
	}
	if p > 100 {
		p = 100
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(math.Ceil((float64(p)/100.0)*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
