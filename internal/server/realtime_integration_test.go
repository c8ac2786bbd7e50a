package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRealtimeStreamEmitsOptionsSavedEvents(t *testing.T) {
	env := newTestEnvironment(t, 0)
	env.login(t)
	nonces := env.nonces(t)

	streamResp, err := env.client.Get(env.server.URL + "/admin/api/events")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if !strings.HasPrefix(streamResp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", streamResp.Header.Get("Content-Type"))
	}

	// The subscription is registered before the headers are flushed.
	saveResp := env.post(t, "/admin/api/options", "application/json", nonces["save"], `{"options":{"profile_title":"Saved"}}`)
	_ = saveResp.Body.Close()
	if saveResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected save status: %d", saveResp.StatusCode)
	}

	type eventPayload struct {
		Source    string `json:"source"`
		SessionID string `json:"sessionId"`
		Timestamp int64  `json:"timestamp"`
	}
	type readResult struct {
		line string
		err  error
	}

	streamReader := bufio.NewReader(streamResp.Body)
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") || currentEventType != RealtimeEventOptionsSaved {
				continue
			}
			var payload eventPayload
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &payload); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if payload.Source != realtimeSourceBackend || payload.SessionID == "" || payload.Timestamp == 0 {
				t.Fatalf("unexpected event payload: %#v", payload)
			}
			return
		}
	}
}
