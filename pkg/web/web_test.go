package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/teslashibe/reachy-voice/internal/log"
	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/conversation"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/hub"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/web"
)

type fakeConversation struct {
	mu          sync.Mutex
	user        string
	forgotten   []string
	interrupted bool
}

func (f *fakeConversation) Status() conversation.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return conversation.Status{State: conversation.StateListening, User: f.user, TurnsCompleted: 3}
}

func (f *fakeConversation) Interrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupted
}

func (f *fakeConversation) SetUser(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = id
}

func (f *fakeConversation) ForgetUser(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
	if f.user == id {
		f.user = ""
	}
}

type fixture struct {
	conv  *fakeConversation
	reg   *faceid.Registry
	ext   *faceid.MockExtractor
	audio *audioio.PushSource
	mem   *memory.Memory
	srv   *web.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg, err := faceid.NewRegistry(ctx, faceid.NewMemoryStore(), faceid.WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	mem, err := memory.New(memory.WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		conv: &fakeConversation{},
		reg:  reg,
		ext: &faceid.MockExtractor{ExtractFunc: func(ctx context.Context, jpeg []byte) (faceid.Embedding, error) {
			if string(jpeg) == "no face" {
				return nil, faceid.ErrNoFace
			}
			return faceid.Embedding{0.6, 0.8}, nil
		}},
		audio: audioio.NewPushSource(audioio.DefaultConfig(), log.Discard()),
		mem:   mem,
	}
	f.srv = web.NewServer(web.DefaultConfig(), web.Deps{
		Conversation: f.conv,
		Users:        reg,
		Extractor:    f.ext,
		Audio:        f.audio,
		Memory:       mem,
		Hub:          hub.New(log.Discard()),
		Logger:       log.Discard(),
	})
	return f
}

func do(t *testing.T, s *web.Server, method, path string, body []byte) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealthAndStatus(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.reg.RegisterUser(context.Background(), "kaya", faceid.Embedding{1, 0})

	resp, _ := do(t, f.srv, http.MethodGet, "/health", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	resp, body := do(t, f.srv, http.MethodGet, "/status", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body["users"], 1.0)
	is.Equal(body["registry_degraded"], false)
	conv := body["conversation"].(map[string]any)
	is.Equal(conv["state"], "listening")
	is.Equal(conv["turns_completed"], 3.0)
}

func TestAudioIngress(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	// 40 ms of 48 kHz stereo becomes two 20 ms frames at 16 kHz mono.
	wav := audioio.EncodeWAV(make([]int16, 48000*2/25), 48000, 2)
	resp, _ := do(t, f.srv, http.MethodPost, "/audio", wav)
	is.Equal(resp.StatusCode, http.StatusAccepted)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		frame, err := f.audio.Read(ctx)
		is.NoErr(err)
		is.Equal(len(frame.Samples), 320)
		is.Equal(frame.SampleRate, 16000)
	}

	resp, _ = do(t, f.srv, http.MethodPost, "/audio", []byte("not a wav"))
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	for _, rate := range []int{0, 1} {
		bad := audioio.EncodeWAV(make([]int16, 320), rate, 1)
		resp, _ = do(t, f.srv, http.MethodPost, "/audio", bad)
		is.Equal(resp.StatusCode, http.StatusBadRequest)
	}

	resp, _ = do(t, f.srv, http.MethodPost, "/audio", nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	f.audio.Close()
	resp, _ = do(t, f.srv, http.MethodPost, "/audio", wav)
	is.Equal(resp.StatusCode, http.StatusServiceUnavailable)
}

func TestInterrupt(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	_, body := do(t, f.srv, http.MethodPost, "/api/interrupt", nil)
	is.Equal(body["interrupted"], false)

	f.conv.interrupted = true
	_, body = do(t, f.srv, http.MethodPost, "/api/interrupt", nil)
	is.Equal(body["interrupted"], true)
}

func TestEnrollListDelete(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t)

	resp, body := do(t, f.srv, http.MethodPost, "/api/users/kaya/enroll", []byte("jpeg"))
	is.Equal(resp.StatusCode, http.StatusCreated)
	is.Equal(body["user_id"], "kaya")
	is.Equal(f.reg.Identify(ctx, faceid.Embedding{0.6, 0.8}), "kaya")
	is.Equal(f.conv.Status().User, "kaya")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	r, err := f.srv.App().Test(req)
	is.NoErr(err)
	var users []faceid.UserSummary
	is.NoErr(json.NewDecoder(r.Body).Decode(&users))
	// The confirmed match above appended a second embedding.
	is.Equal(users, []faceid.UserSummary{{UserID: "kaya", Embeddings: 2}})

	is.NoErr(f.mem.Conclude(ctx, "kaya", "Likes tea"))
	resp, body = do(t, f.srv, http.MethodDelete, "/api/users/kaya", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body["deleted"], "kaya")
	is.Equal(f.reg.Len(), 0)
	is.True(f.mem.Person("kaya") == nil)
	is.Equal(f.conv.forgotten, []string{"kaya"})

	resp, _ = do(t, f.srv, http.MethodDelete, "/api/users/kaya", nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestEnrollErrors(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	resp, _ := do(t, f.srv, http.MethodPost, "/api/users/kaya/enroll", nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	resp, body := do(t, f.srv, http.MethodPost, "/api/users/kaya/enroll", []byte("no face"))
	is.Equal(resp.StatusCode, http.StatusUnprocessableEntity)
	is.True(body["error"] != nil)
	is.Equal(f.reg.Len(), 0)
}

func TestUnwiredRoutes(t *testing.T) {
	is := is.New(t)
	srv := web.NewServer(web.DefaultConfig(), web.Deps{Logger: log.Discard()})

	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, "/audio"},
		{http.MethodPost, "/api/interrupt"},
		{http.MethodGet, "/api/users"},
		{http.MethodDelete, "/api/users/kaya"},
		{http.MethodPost, "/api/users/kaya/enroll"},
	} {
		resp, _ := do(t, srv, tt.method, tt.path, []byte("x"))
		is.Equal(resp.StatusCode, http.StatusServiceUnavailable)
	}

	resp, body := do(t, srv, http.MethodGet, "/status", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body["conversation"], nil)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	resp, _ := do(t, f.srv, http.MethodGet, "/ws/events", nil)
	is.Equal(resp.StatusCode, http.StatusUpgradeRequired)
}
