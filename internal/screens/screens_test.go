package screens

import (
	"sync"
	"testing"
	"time"

	"guidedesk/internal/auth"
	"guidedesk/internal/config"
	"guidedesk/internal/repositories/memory"
	"guidedesk/internal/services"

	"github.com/stretchr/testify/require"
)

var (
	guideA = auth.Session{UID: "guide-a"}
	guideB = auth.Session{UID: "guide-b"}
	t0     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

type recordingView struct {
	mu      sync.Mutex
	states  []State
	notices []Notice
}

func (v *recordingView) Render(state State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, state)
}

func (v *recordingView) Notify(notice Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, notice)
}

func (v *recordingView) last() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.states) == 0 {
		return State{}
	}
	return v.states[len(v.states)-1]
}

func (v *recordingView) renders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.states)
}

func (v *recordingView) noticeList() []Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Notice(nil), v.notices...)
}

func newTestSync(t *testing.T, cfg *config.SyncConfig) (*memory.DocumentStore, services.SyncService) {
	t.Helper()
	store := memory.NewDocumentStore()
	t.Cleanup(func() { store.Close() })
	return store, services.NewSyncService(store, cfg, nil)
}

func seedRequest(store *memory.DocumentStore, id, status string, created time.Time) {
	store.Insert("requests", id, map[string]interface{}{
		"touristId":   "t-" + id,
		"touristName": "Tourist " + id,
		"location":    "Old Town",
		"destination": "Castle",
		"requestDate": "2024-03-11",
		"status":      status,
		"createdAt":   created,
	})
}

func seedAlert(store *memory.DocumentStore, id, status string, created time.Time, responder string) {
	data := map[string]interface{}{
		"touristId":   "t-" + id,
		"touristName": "Tourist " + id,
		"location":    "Harbour",
		"message":     "help",
		"status":      status,
		"createdAt":   created,
	}
	if responder != "" {
		data["respondingGuideId"] = responder
	}
	store.Insert("sosAlerts", id, data)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
