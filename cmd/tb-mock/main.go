// Command tb-mock — автономная имитация ThingsBoard для отладки tb-export
// без доступа к настоящему серверу. Отдаёт детерминированную телеметрию,
// поэтому результаты выгрузки воспроизводимы от запуска к запуску.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pv/tb-telemetry-export-go/internal/thingsboard"
)

type options struct {
	addr    string
	devices int
	keys    string
	step    time.Duration
	verbose bool
}

const mockToken = "tb-mock-token"

func main() {
	opts := parseFlags()

	srv := newMockServer(opts)
	log.Printf("tb-mock: %d devices, keys [%s], step %s, listening on %s",
		len(srv.devices), opts.keys, opts.step, opts.addr)
	if err := http.ListenAndServe(opts.addr, srv.routes()); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

func parseFlags() options {
	var opt options
	flag.StringVar(&opt.addr, "addr", ":8089", "listen address")
	flag.IntVar(&opt.devices, "devices", 3, "number of fake devices")
	flag.StringVar(&opt.keys, "keys", "temperature,humidity,pressure", "telemetry keys every device reports")
	flag.DurationVar(&opt.step, "step", time.Minute, "time delta between generated points")
	flag.BoolVar(&opt.verbose, "v", false, "log every request")
	flag.Parse()
	return opt
}

type mockServer struct {
	asset   thingsboard.Asset
	root    thingsboard.Asset
	devices []thingsboard.Device
	byID    map[string]int
	keys    []string
	step    time.Duration
	verbose bool
}

// newMockServer генерирует набор устройств с детерминированными UUID:
// uuid.NewMD5 от имени, так что адреса не меняются между запусками.
func newMockServer(opts options) *mockServer {
	s := &mockServer{
		byID:    make(map[string]int, opts.devices),
		keys:    splitKeys(opts.keys),
		step:    opts.step,
		verbose: opts.verbose,
	}
	s.asset = thingsboard.Asset{
		ID:   assetID("Site_A"),
		Name: "Site_A",
		Type: "site",
	}
	s.root = thingsboard.Asset{
		ID:   assetID("Main_Root"),
		Name: "Main_Root",
		Type: "root",
	}
	for i := 0; i < opts.devices; i++ {
		name := fmt.Sprintf("sensor-%02d", i+1)
		devType := "default"
		if i == 0 {
			devType = "gps"
		}
		dev := thingsboard.Device{
			ID: thingsboard.EntityID{
				ID:         uuid.NewMD5(uuid.NameSpaceOID, []byte("device/"+name)),
				EntityType: "DEVICE",
			},
			Name: name,
			Type: devType,
		}
		s.byID[dev.ID.ID.String()] = i
		s.devices = append(s.devices, dev)
	}
	return s
}

func assetID(name string) thingsboard.EntityID {
	return thingsboard.EntityID{
		ID:         uuid.NewMD5(uuid.NameSpaceOID, []byte("asset/"+name)),
		EntityType: "ASSET",
	}
}

func splitKeys(raw string) []string {
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *mockServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", s.withLog(s.handleLogin))
	mux.HandleFunc("/api/auth/login/public", s.withLog(s.handleLogin))
	mux.HandleFunc("/api/auth/user", s.withLog(s.authorized(s.handleUser)))
	mux.HandleFunc("/api/tenant/devices", s.withLog(s.authorized(s.handleDevices)))
	mux.HandleFunc("/api/tenant/assets", s.withLog(s.authorized(s.handleAssets)))
	mux.HandleFunc("/api/customer/", s.withLog(s.authorized(s.handleCustomer)))
	mux.HandleFunc("/api/relations", s.withLog(s.authorized(s.handleRelations)))
	mux.HandleFunc("/api/device/", s.withLog(s.authorized(s.handleDevice)))
	mux.HandleFunc("/api/plugins/telemetry/", s.withLog(s.authorized(s.handleTelemetry)))
	return mux
}

func (s *mockServer) withLog(next http.HandlerFunc) http.HandlerFunc {
	if !s.verbose {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.RequestURI())
		next(w, r)
	}
}

func (s *mockServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Authorization") != "Bearer "+mockToken {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		next(w, r)
	}
}

func (s *mockServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST expected")
		return
	}
	writeJSON(w, map[string]string{"token": mockToken})
}

func (s *mockServer) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"authority": "TENANT_ADMIN",
		"customerId": thingsboard.EntityID{
			ID:         uuid.NewMD5(uuid.NameSpaceOID, []byte("customer/mock")),
			EntityType: "CUSTOMER",
		},
	})
}

// handleCustomer обслуживает customer-варианты перечисления: те же данные,
// что и у tenant-ручек, различается только путь.
func (s *mockServer) handleCustomer(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/devices"):
		s.handleDevices(w, r)
	case strings.HasSuffix(r.URL.Path, "/assets"):
		s.handleAssets(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *mockServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(r.URL.Query().Get("textSearch"))
	var matched []thingsboard.Device
	for _, dev := range s.devices {
		if search == "" || strings.Contains(strings.ToLower(dev.Name), search) {
			matched = append(matched, dev)
		}
	}
	writeJSON(w, thingsboard.DevicePage{
		Data:          matched,
		TotalElements: int64(len(matched)),
		HasNext:       false,
	})
}

func (s *mockServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, thingsboard.AssetPage{
		Data:          []thingsboard.Asset{s.root, s.asset},
		TotalElements: 2,
		HasNext:       false,
	})
}

func (s *mockServer) handleRelations(w http.ResponseWriter, r *http.Request) {
	fromID := r.URL.Query().Get("fromId")
	if fromID != s.asset.ID.ID.String() {
		writeJSON(w, []thingsboard.Relation{})
		return
	}
	relations := make([]thingsboard.Relation, 0, len(s.devices))
	for _, dev := range s.devices {
		relations = append(relations, thingsboard.Relation{
			From: s.asset.ID,
			To:   dev.ID,
			Type: "Contains",
		})
	}
	writeJSON(w, relations)
}

func (s *mockServer) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/device/")
	idx, ok := s.byID[id]
	if !ok {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, s.devices[idx])
}

// handleTelemetry разбирает /api/plugins/telemetry/{type}/{id}/{rest...}.
func (s *mockServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/plugins/telemetry/")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] != "DEVICE" {
		http.NotFound(w, r)
		return
	}
	idx, ok := s.byID[parts[1]]
	if !ok {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	switch parts[2] {
	case "keys/timeseries":
		writeJSON(w, s.keys)
	case "values/timeseries":
		s.handleTimeseries(w, r, idx)
	case "values/attributes":
		s.handleAttributes(w, r, idx)
	default:
		http.NotFound(w, r)
	}
}

func (s *mockServer) handleTimeseries(w http.ResponseWriter, r *http.Request, idx int) {
	q := r.URL.Query()
	startTs, err1 := strconv.ParseInt(q.Get("startTs"), 10, 64)
	endTs, err2 := strconv.ParseInt(q.Get("endTs"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "startTs/endTs must be epoch-ms integers")
		return
	}
	limit := thingsboard.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	requested := splitKeys(q.Get("keys"))

	out := make(map[string][]tsPoint)
	for keyIdx, key := range s.keys {
		if !contains(requested, key) {
			continue
		}
		points := s.generate(idx, keyIdx, startTs, endTs, limit)
		if len(points) > 0 {
			out[key] = points
		}
	}
	// ThingsBoard на пустом интервале отвечает пустым объектом, не null.
	if len(out) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
		return
	}
	writeJSON(w, out)
}

type tsPoint struct {
	TS    int64  `json:"ts"`
	Value string `json:"value"`
}

// generate отдаёт точки на сетке step внутри [startTs, endTs].
// Формула повторяема: значение зависит только от устройства, ключа
// и секунды таймстемпа.
func (s *mockServer) generate(devIdx, keyIdx int, startTs, endTs int64, limit int) []tsPoint {
	stepMs := s.step.Milliseconds()
	if stepMs <= 0 {
		stepMs = time.Minute.Milliseconds()
	}
	first := startTs
	if rem := first % stepMs; rem != 0 {
		first += stepMs - rem
	}
	var points []tsPoint
	for ts := first; ts <= endTs && len(points) < limit; ts += stepMs {
		sec := time.UnixMilli(ts).UTC().Second()
		val := float64(devIdx%100) + float64(keyIdx)*10 + float64(sec)/100
		points = append(points, tsPoint{
			TS:    ts,
			Value: strconv.FormatFloat(val, 'f', 2, 64),
		})
	}
	return points
}

func (s *mockServer) handleAttributes(w http.ResponseWriter, r *http.Request, idx int) {
	dev := s.devices[idx]
	attrs := []thingsboard.Attribute{
		{Key: "station_label", Value: dev.Name + "-station", LastUpdateTs: time.Now().UnixMilli()},
		{Key: "station_location", Value: "56.32,44.00", LastUpdateTs: time.Now().UnixMilli()},
		{Key: "active", Value: true, LastUpdateTs: time.Now().UnixMilli()},
		{Key: "lastActivityTime", Value: time.Now().Add(-time.Minute).UnixMilli(), LastUpdateTs: time.Now().UnixMilli()},
	}
	writeJSON(w, attrs)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
	})
}
