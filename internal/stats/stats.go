package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const mapName = "forum-stats"

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type StatsUpdater struct {
	log        zerolog.Logger
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
	done       chan struct{}
}

type metricsUpdateReq struct {
	name  string
	value int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	if err := json.NewEncoder(w).Encode(expvarData); err != nil {
		su.log.Error().Err(err).Msg("encode stats")
	}
}

// NewStatsUpdater creates a stats updater and serves its metrics on
// GET /debug/vars. The expvar map is process wide, so later updaters share
// the counters of earlier ones.
func NewStatsUpdater(logger zerolog.Logger, mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		log:        logger,
		updateChan: make(chan *metricsUpdateReq, 512),
		done:       make(chan struct{}),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	if existing, ok := expvar.Get(mapName).(*expvar.Map); ok {
		su.vars = existing
	} else {
		su.vars = expvar.NewMap(mapName)
	}
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (su *StatsUpdater) updateMetrics() {
	defer close(su.done)

	for req := range su.updateChan {
		metric, ok := su.vars.Get(req.name).(*expvar.Int)
		if !ok {
			su.log.Warn().Str("metric", req.name).Msg("metric not registered")
			continue
		}

		metric.Add(int64(req.value))
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

// RegisterMetric adds a counter. Registering an existing name keeps its value.
func (su *StatsUpdater) RegisterMetric(name string) {
	if _, ok := su.vars.Get(name).(*expvar.Int); ok {
		return
	}
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

// Stop drains pending updates and stops the updater.
func (su *StatsUpdater) Stop() {
	close(su.updateChan)
	<-su.done
}
