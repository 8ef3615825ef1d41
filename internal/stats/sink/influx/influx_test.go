package influx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BR88C/discord-boilerplate/internal/gateway"
	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
)

func lines(points []*write.Point) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)))
	}
	return out
}

func byMeasurement(ls []string, m string) []string {
	var out []string
	for _, l := range ls {
		if strings.HasPrefix(l, m+",") || strings.HasPrefix(l, m+" ") {
			out = append(out, l)
		}
	}
	return out
}

func ms(v float64) *float64 { return &v }

func sampleReport() *domain.Report {
	return &domain.Report{
		CPUPercent:   0.15,
		MemoryBytes:  1024,
		ShardCount:   2,
		GuildCount:   30,
		AvgLatencyMs: 45,
		Shards: []domain.ShardSnapshot{
			{ID: 0, Guilds: 10, LatencyMs: ms(45), State: gateway.StateReady},
			{ID: 1, Guilds: 20, State: gateway.StateIdentifying},
		},
		Commands:      map[string]uint64{"ping": 3, "help": 1},
		CommandErrors: map[string]uint64{"ban": 2},
		ResponseCodes: map[int]uint64{200: 9, 429: 1},
		Extensions: []domain.Record{
			{Measurement: "music", Tags: map[string]string{"node": "a"}, Fields: map[string]any{"players": 4}},
		},
		CollectedAt: time.Unix(1700000000, 0),
	}
}

func TestEncode_Records(t *testing.T) {
	ls := lines(Encode(sampleReport(), map[string]string{"bot": "demo"}))

	if len(ls) != 1+2+1+2+2+1 {
		t.Fatalf("got %d lines, want 9:\n%s", len(ls), strings.Join(ls, "\n"))
	}
	for _, l := range ls {
		if !strings.Contains(l, "bot=demo") {
			t.Errorf("line %q is missing the fixed tag", l)
		}
	}

	proc := byMeasurement(ls, MeasurementProcess)
	if len(proc) != 1 {
		t.Fatalf("process lines = %v", proc)
	}
	for _, want := range []string{"cpu_percent=0.15", "memory_bytes=1024i", "shards=2i", "guilds=30i", "avg_ping_ms=45"} {
		if !strings.Contains(proc[0], want) {
			t.Errorf("process line %q missing %q", proc[0], want)
		}
	}

	cmds := byMeasurement(ls, MeasurementCommand)
	if len(cmds) != 2 {
		t.Errorf("command lines = %v, want 2", cmds)
	}
	errs := byMeasurement(ls, MeasurementCommandError)
	if len(errs) != 1 || !strings.Contains(errs[0], "command=ban") || !strings.Contains(errs[0], "count=2i") {
		t.Errorf("command_error lines = %v, want ban count=2i from the error tally", errs)
	}

	codes := byMeasurement(ls, MeasurementHTTPResponse)
	if len(codes) != 2 {
		t.Errorf("http_response lines = %v, want 2", codes)
	}

	shards := byMeasurement(ls, MeasurementShard)
	if len(shards) != 2 {
		t.Fatalf("shard lines = %v", shards)
	}
	if !strings.Contains(shards[0], "ping_ms=45") || !strings.Contains(shards[0], `state="ready"`) {
		t.Errorf("shard 0 line = %q", shards[0])
	}
	if strings.Contains(shards[1], "ping_ms") {
		t.Errorf("shard 1 line %q should omit ping while latency is pending", shards[1])
	}

	ext := byMeasurement(ls, "music")
	if len(ext) != 1 || !strings.Contains(ext[0], "node=a") || !strings.Contains(ext[0], "players=4i") {
		t.Errorf("extension lines = %v", ext)
	}
}

func TestEncode_EmptyReport(t *testing.T) {
	ls := lines(Encode(&domain.Report{}, nil))
	if len(ls) != 1 {
		t.Fatalf("got %d lines, want only the process record: %v", len(ls), ls)
	}
	if !strings.HasPrefix(ls[0], MeasurementProcess+" ") {
		t.Errorf("line = %q, want process record", ls[0])
	}
	if !strings.Contains(ls[0], "avg_ping_ms=0") {
		t.Errorf("line = %q, want avg_ping_ms=0", ls[0])
	}
}

func TestEncode_RecordTagsOverrideFixed(t *testing.T) {
	r := &domain.Report{Commands: map[string]uint64{"ping": 1}}
	ls := byMeasurement(lines(Encode(r, map[string]string{"command": "fixed", "env": "prod"})), MeasurementCommand)
	if len(ls) != 1 || !strings.Contains(ls[0], "command=ping") || !strings.Contains(ls[0], "env=prod") {
		t.Errorf("command line = %v, want command=ping with env=prod", ls)
	}
}

func TestEncode_DropsEmptyTags(t *testing.T) {
	r := &domain.Report{
		Commands: map[string]uint64{"": 1},
		Extensions: []domain.Record{
			{Measurement: "queue", Tags: map[string]string{"node": "", "": "x", "env": ""}, Fields: map[string]any{"depth": 2}},
		},
	}
	ls := lines(Encode(r, map[string]string{"bot": "x", "region": ""}))
	for _, l := range ls {
		head := strings.SplitN(l, " ", 2)[0]
		if strings.HasSuffix(head, "=") || strings.Contains(head, "=,") || strings.Contains(head, ",=") {
			t.Errorf("line %q carries an empty tag", l)
		}
		if strings.Contains(head, "region") {
			t.Errorf("line %q carries the empty fixed tag", l)
		}
	}
	queue := byMeasurement(ls, "queue")
	if len(queue) != 1 || !strings.HasPrefix(queue[0], "queue,bot=x depth=2i") {
		t.Errorf("queue line = %v, want only the bot tag", queue)
	}
	cmd := byMeasurement(ls, MeasurementCommand)
	if len(cmd) != 1 || !strings.HasPrefix(cmd[0], "command,bot=x count=1i") {
		t.Errorf("command line = %v", cmd)
	}
}

func TestMergeTags_EmptyRecordValueRemovesFixed(t *testing.T) {
	got := mergeTags(map[string]string{"env": "prod", "node": "a"}, map[string]string{"node": ""})
	if len(got) != 1 || got["env"] != "prod" {
		t.Errorf("mergeTags = %v, want only env=prod", got)
	}
}

func TestEncode_SkipsEmptyExtensions(t *testing.T) {
	r := &domain.Report{Extensions: []domain.Record{
		{Measurement: "", Fields: map[string]any{"x": 1}},
		{Measurement: "nofields"},
	}}
	if n := len(Encode(r, nil)); n != 1 {
		t.Errorf("got %d points, want 1 (invalid extension records skipped)", n)
	}
}

func TestNew_MissingConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{"no url", Config{Token: "t", Org: "o", Bucket: "b"}},
		{"no token", Config{URL: "http://x", Org: "o", Bucket: "b"}},
		{"no org", Config{URL: "http://x", Token: "t", Bucket: "b"}},
		{"no bucket", Config{URL: "http://x", Token: "t", Org: "o"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); !errors.Is(err, ErrMissingConfig) {
				t.Errorf("New err = %v, want ErrMissingConfig", err)
			}
		})
	}
}

type writeCapture struct {
	mu       sync.Mutex
	requests int
	body     string
	query    string
	auth     string
}

func TestSend_SingleBatch(t *testing.T) {
	capture := &writeCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b, _ := io.ReadAll(r.Body)
		capture.mu.Lock()
		capture.requests++
		capture.body = string(b)
		capture.query = r.URL.RawQuery
		capture.auth = r.Header.Get("Authorization")
		capture.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink, err := New(Config{URL: server.URL, Token: "tok", Org: "org", Bucket: "stats", Tags: map[string]string{"bot": "demo"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sink.Close()

	if err := sink.Send(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if capture.requests != 1 {
		t.Errorf("requests = %d, want 1 batch", capture.requests)
	}
	if got := len(strings.Split(strings.TrimSpace(capture.body), "\n")); got != 9 {
		t.Errorf("body has %d lines, want 9:\n%s", got, capture.body)
	}
	if !strings.Contains(capture.query, "bucket=stats") || !strings.Contains(capture.query, "org=org") {
		t.Errorf("query = %q, want org and bucket", capture.query)
	}
	if capture.auth != "Token tok" {
		t.Errorf("Authorization = %q, want Token tok", capture.auth)
	}
}

func TestSend_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid","message":"bad line protocol"}`))
	}))
	defer server.Close()

	sink, err := New(Config{URL: server.URL, Token: "tok", Org: "org", Bucket: "stats"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sink.Close()

	err = sink.Send(context.Background(), &domain.Report{})
	if err == nil {
		t.Fatal("Send should fail when the server rejects the batch")
	}
	if !strings.Contains(err.Error(), "influx: write") {
		t.Errorf("err = %q, want influx: write prefix", err.Error())
	}
}
