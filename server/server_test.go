package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/engine/enginetest"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/pagemap"
	"github.com/wudi/pdfoverlay/raster"
	"github.com/wudi/pdfoverlay/security"
)

const fakePDF = "%PDF-1.7 fake\n"

var letter = coords.Size{W: 612, H: 792}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *enginetest.Fake) {
	t.Helper()
	fake := enginetest.New(letter, letter)
	opts = append([]Option{WithTempDir(t.TempDir())}, opts...)
	s, err := New(fake, t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, fake
}

func upload(t *testing.T, ts *httptest.Server) documentInfo {
	t.Helper()
	resp, err := http.Post(ts.URL+"/documents", "application/pdf", strings.NewReader(fakePDF))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	var info documentInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	return info
}

func textOn(page int) overlay.Overlay {
	o := overlay.New(overlay.KindText)
	o.PageIndex = page
	o.Position = coords.Point{X: 100, Y: 100}
	o.ReferenceCanvasSize = coords.Size{W: 800, H: 1000}
	o.Text.Content = "Approved"
	return o
}

func postCompose(t *testing.T, ts *httptest.Server, req ComposeRequest) (*http.Response, string) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/compose", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(data)
}

func TestDocuments(t *testing.T) {
	ts, _ := newTestServer(t)
	info := upload(t, ts)
	want := documentInfo{ID: info.ID, PageCount: 2, Pages: []pageInfo{{612, 792}, {612, 792}}}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("upload (-want +got):\n%s", diff)
	}

	resp, err := http.Get(ts.URL + "/documents/" + info.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/documents/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing document status %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/documents", "application/pdf", strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty upload status %d", resp.StatusCode)
	}
}

func TestCompose(t *testing.T) {
	ts, fake := newTestServer(t)
	info := upload(t, ts)

	resp, body := postCompose(t, ts, ComposeRequest{DocumentID: info.ID, Overlays: []overlay.Overlay{textOn(1)}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type %q", ct)
	}
	if resp.Header.Get("X-Compose-Job") == "" {
		t.Fatalf("missing job header")
	}
	if body != fakePDF+"text page=2\n" {
		t.Fatalf("body = %q", body)
	}
	if calls := fake.Calls(); len(calls) != 1 || calls[0].Content != "Approved" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestComposeReordered(t *testing.T) {
	ts, fake := newTestServer(t)
	info := upload(t, ts)
	req := ComposeRequest{
		DocumentID:    info.ID,
		Overlays:      []overlay.Overlay{textOn(0)},
		PageOrder:     pagemap.FromOrder([]int{2, 1}),
		HasReordering: true,
	}
	resp, body := postCompose(t, ts, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(body, "part [2 1]\n"+fakePDF) || !strings.HasSuffix(body, "text page=1\n") {
		t.Fatalf("body = %q", body)
	}
	if got := fake.Assembled(); len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("assembled = %+v", got)
	}

	req.PageOrder = []pagemap.Entry{{Original: 1, Source: "missing"}}
	if resp, _ := postCompose(t, ts, req); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown source status %d", resp.StatusCode)
	}
	req.PageOrder = pagemap.FromOrder([]int{9})
	if resp, _ := postCompose(t, ts, req); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("page beyond document status %d", resp.StatusCode)
	}
}

func imageOn(t *testing.T, page, w, h int) overlay.Overlay {
	t.Helper()
	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	o := overlay.New(overlay.KindImage)
	o.PageIndex = page
	o.Image.Src = raster.EncodeDataURL("image/png", buf.Bytes())
	o.Position = coords.Point{X: 100, Y: 100}
	o.Size = &overlay.Size{Width: 80, Height: 40}
	o.ReferenceCanvasSize = coords.Size{W: 800, H: 1000}
	return o
}

func TestComposeErrors(t *testing.T) {
	limits := security.DefaultLimits()
	limits.MaxOverlays = 2
	limits.MaxPayloadPixels = 1000
	ts, fake := newTestServer(t, WithLimits(limits))
	info := upload(t, ts)

	cases := []struct {
		name   string
		req    ComposeRequest
		failAt int
		status int
	}{
		{"engine failure", ComposeRequest{DocumentID: info.ID, Overlays: []overlay.Overlay{textOn(0)}}, 0, http.StatusUnprocessableEntity},
		{"too many overlays", ComposeRequest{DocumentID: info.ID, Overlays: []overlay.Overlay{textOn(0), textOn(0), textOn(1)}}, -1, http.StatusRequestEntityTooLarge},
		{"unknown document", ComposeRequest{DocumentID: "nope"}, -1, http.StatusNotFound},
		{"image too many pixels", ComposeRequest{DocumentID: info.ID, Overlays: []overlay.Overlay{imageOn(t, 0, 200, 100)}}, -1, http.StatusRequestEntityTooLarge},
		{"reordering without pages", ComposeRequest{DocumentID: info.ID, HasReordering: true, Overlays: []overlay.Overlay{textOn(0)}}, -1, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake.FailAt = tc.failAt
			resp, body := postCompose(t, ts, tc.req)
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d: %s", resp.StatusCode, tc.status, body)
			}
			var e errorBody
			if err := json.Unmarshal([]byte(body), &e); err != nil || e.Status != tc.status {
				t.Fatalf("error body %q (%v)", body, err)
			}
		})
	}

	resp, err := http.Post(ts.URL+"/compose", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status %d", resp.StatusCode)
	}
}

func TestEventsStream(t *testing.T) {
	ts, _ := newTestServer(t)
	info := upload(t, ts)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events?job=j1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, body := postCompose(t, ts, ComposeRequest{DocumentID: info.ID, JobID: "j1", Overlays: []overlay.Overlay{textOn(0), textOn(1)}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []Event
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v (have %+v)", err, got)
		}
		got = append(got, ev)
		if ev.Done {
			break
		}
	}
	want := []Event{
		{Job: "j1", Index: 0, Total: 2, Kind: "text"},
		{Job: "j1", Index: 1, Total: 2, Kind: "text"},
		{Job: "j1", Index: 2, Total: 2, Done: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestServeHealth(t *testing.T) {
	s, err := New(enginetest.New(letter), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if Port(ln.Addr()) == 0 {
		t.Fatalf("no port in %v", ln.Addr())
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
