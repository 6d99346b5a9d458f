package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/strrl/castor/internal/api"
	"github.com/strrl/castor/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend records calls and answers with the configured functions
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	newSession func(project, phase string) error
	chat       func(ctx context.Context, req api.ChatRequest) (string, error)
	load       func(project, phase, sessionID string) (*models.History, error)
	resume     func(project, phase, sessionID string) error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) NewSession(ctx context.Context, project, phase string) error {
	f.record("new_session")
	if f.newSession != nil {
		return f.newSession(project, phase)
	}
	return nil
}

func (f *fakeBackend) Chat(ctx context.Context, req api.ChatRequest) (string, error) {
	f.record("chat")
	if f.chat != nil {
		return f.chat(ctx, req)
	}
	return "ok", nil
}

func (f *fakeBackend) LoadHistory(ctx context.Context, project, phase, sessionID string) (*models.History, error) {
	f.record("load_history")
	if f.load != nil {
		return f.load(project, phase, sessionID)
	}
	return &models.History{Phase: phase}, nil
}

func (f *fakeBackend) ResumeSession(ctx context.Context, project, phase, sessionID string) error {
	f.record("resume_session")
	if f.resume != nil {
		return f.resume(project, phase, sessionID)
	}
	return nil
}

// sequentialIDs returns a generator yielding id-1, id-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestController(t *testing.T, backend Backend) *Controller {
	t.Helper()
	c := New(backend, WithIDGenerator(sequentialIDs()))
	t.Cleanup(c.Close)
	return c
}

func storedHistory() *models.History {
	return &models.History{
		Phase: "4_Exploitation",
		Messages: []models.Message{
			{ID: "h1", Role: models.RoleUser, Text: "which exploit for vsftpd 2.3.4?"},
			{ID: "h2", Role: models.RoleModel, Text: "The backdoor, CVE-2011-2523."},
		},
	}
}

func TestController_StartsIdle(t *testing.T) {
	c := newTestController(t, &fakeBackend{})

	s := c.Snapshot()
	assert.False(t, s.Active())
	assert.False(t, s.InputEnabled())
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.SessionID)
	assert.Nil(t, s.Preview)
}

func TestController_StartNewChat(t *testing.T) {
	t.Run("success resets the live session", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)

		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "1_Recon_Enumeration"))
		first := c.Snapshot()

		assert.Equal(t, "THM_OWASP", first.Project)
		assert.Equal(t, "1_Recon_Enumeration", first.Phase)
		assert.NotNil(t, first.Messages)
		assert.Empty(t, first.Messages)
		assert.NotEmpty(t, first.SessionID)
		assert.Nil(t, first.Preview)

		c.Submit(context.Background(), "hello")
		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "2_Vulnerability_Identification"))
		second := c.Snapshot()

		assert.Empty(t, second.Messages)
		assert.NotEqual(t, first.SessionID, second.SessionID)
		assert.Equal(t, "2_Vulnerability_Identification", second.Phase)
	})

	t.Run("clears a preview", func(t *testing.T) {
		c := newTestController(t, &fakeBackend{})

		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "sid"))
		require.NotNil(t, c.Snapshot().Preview)

		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "default"))
		assert.Nil(t, c.Snapshot().Preview)
	})

	t.Run("blank phase falls back to default", func(t *testing.T) {
		c := newTestController(t, &fakeBackend{})

		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", ""))
		assert.Equal(t, models.DefaultPhase, c.Snapshot().Phase)
	})

	t.Run("failure leaves state unchanged", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "default"))
		c.Submit(context.Background(), "hello")
		before := c.Snapshot()

		backend.newSession = func(project, phase string) error {
			return errors.New("connection refused")
		}
		err := c.StartNewChat(context.Background(), "HTB_Lame", "4_Exploitation")

		require.Error(t, err)
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("blank project is rejected without a call", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)

		err := c.StartNewChat(context.Background(), "  ", "default")
		assert.ErrorIs(t, err, ErrNoProject)
		assert.Empty(t, backend.Calls())
	})
}

func TestController_SubmitExample(t *testing.T) {
	var seen api.ChatRequest
	backend := &fakeBackend{
		chat: func(ctx context.Context, req api.ChatRequest) (string, error) {
			seen = req
			return "Open ports: 22,80", nil
		},
	}
	c := newTestController(t, backend)

	require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "1_Recon_Enumeration"))
	s := c.Snapshot()
	assert.Equal(t, "THM_OWASP", s.Project)
	assert.Equal(t, "1_Recon_Enumeration", s.Phase)
	assert.Empty(t, s.Messages)

	reply, ok := c.Submit(context.Background(), "scan results?")
	require.True(t, ok)
	assert.Equal(t, "Open ports: 22,80", reply.Text)

	s = c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, models.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "scan results?", s.Messages[0].Text)
	assert.False(t, s.Messages[0].Pending)
	assert.Equal(t, models.RoleModel, s.Messages[1].Role)
	assert.Equal(t, "Open ports: 22,80", s.Messages[1].Text)
	assert.False(t, s.Loading)

	assert.Equal(t, api.ChatRequest{
		Message:   "scan results?",
		Phase:     "1_Recon_Enumeration",
		Project:   "THM_OWASP",
		SessionID: s.SessionID,
	}, seen)
}

func TestController_SubmitBackendErrorBecomesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"LLM unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	c := New(client)
	defer c.Close()

	require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "default"))
	reply, ok := c.Submit(context.Background(), "scan results?")
	require.True(t, ok)

	s := c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, models.RoleUser, s.Messages[0].Role)
	assert.Equal(t, models.RoleModel, s.Messages[1].Role)
	assert.Contains(t, s.Messages[1].Text, "LLM unavailable")
	assert.Equal(t, reply, s.Messages[1])
	assert.False(t, s.Loading)

	client.CloseIdleConnections()
}

func TestController_SubmitErrorTexts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "backend detail",
			err:  &api.Error{Kind: api.KindBackend, Status: 400, Detail: "session error"},
			want: "Error: session error",
		},
		{
			name: "backend without detail",
			err:  &api.Error{Kind: api.KindBackend, Status: 502},
			want: "Error: failed to reach the backend",
		},
		{
			name: "network",
			err:  &api.Error{Kind: api.KindNetwork, Err: errors.New("connection refused")},
			want: "Communication error: connection refused",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "Communication error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				chat: func(ctx context.Context, req api.ChatRequest) (string, error) {
					return "", tt.err
				},
			}
			c := newTestController(t, backend)
			require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

			c.Submit(context.Background(), "hi")

			s := c.Snapshot()
			require.Len(t, s.Messages, 2)
			assert.Equal(t, "hi", s.Messages[0].Text)
			assert.False(t, s.Messages[0].Pending)
			assert.Equal(t, models.RoleModel, s.Messages[1].Role)
			assert.Equal(t, tt.want, s.Messages[1].Text)
			assert.False(t, s.Loading)
		})
	}
}

func TestController_SubmitGuards(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)

		_, ok := c.Submit(context.Background(), "hello")
		assert.False(t, ok)

		s := c.Snapshot()
		assert.Empty(t, s.Messages)
		assert.Empty(t, s.SessionID)
		assert.Empty(t, backend.Calls())
	})

	t.Run("blank text", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))
		before := c.Snapshot()

		for _, text := range []string{"", "   ", "\n\t"} {
			_, ok := c.Submit(context.Background(), text)
			assert.False(t, ok)
		}

		assert.Equal(t, before, c.Snapshot())
		assert.Equal(t, []string{"new_session"}, backend.Calls())
	})

	t.Run("preview shown", func(t *testing.T) {
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				return storedHistory(), nil
			},
		}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))
		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "p", "4_Exploitation", "old"))
		before := c.Snapshot()
		assert.False(t, before.InputEnabled())

		_, ok := c.Submit(context.Background(), "hello")
		assert.False(t, ok)
		assert.Equal(t, before, c.Snapshot())
		assert.NotContains(t, backend.Calls(), "chat")
	})
}

func TestController_SessionIDAssignedOnFirstSubmit(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

	// A session restored without an id still gets one before the first send.
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()

	pending, ok := c.Begin("hello")
	require.True(t, ok)
	assert.NotEmpty(t, pending.SessionID)
	sessionID := c.Snapshot().SessionID
	assert.Equal(t, pending.SessionID, sessionID)

	c.Complete(context.Background(), pending)
	c.Submit(context.Background(), "again")
	assert.Equal(t, sessionID, c.Snapshot().SessionID)
}

func TestController_AppendOrder(t *testing.T) {
	backend := &fakeBackend{
		chat: func(ctx context.Context, req api.ChatRequest) (string, error) {
			return "re: " + req.Message, nil
		},
	}
	c := newTestController(t, backend)
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

	inputs := []string{"one", "two", "three"}
	for i, text := range inputs {
		before := len(c.Snapshot().Messages)
		c.Submit(context.Background(), text)
		assert.Len(t, c.Snapshot().Messages, before+2, "submission %d", i)
	}

	var got []string
	for _, m := range c.Snapshot().Messages {
		got = append(got, m.Text)
	}
	assert.Equal(t, []string{"one", "re: one", "two", "re: two", "three", "re: three"}, got)
}

func TestController_TwoPhaseAppend(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		chat: func(ctx context.Context, req api.ChatRequest) (string, error) {
			<-release
			return "", &api.Error{Kind: api.KindNetwork, Err: errors.New("reset by peer")}
		},
	}
	c := newTestController(t, backend)
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

	pending, ok := c.Begin("nmap -sV 10.10.10.3")
	require.True(t, ok)

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.True(t, s.Messages[0].Pending)
	assert.Equal(t, pending.Message.ID, s.Messages[0].ID)
	assert.True(t, s.Loading)
	assert.False(t, s.InputEnabled())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Complete(context.Background(), pending)
	}()
	close(release)
	<-done

	s = c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, pending.Message.ID, s.Messages[0].ID)
	assert.Equal(t, "nmap -sV 10.10.10.3", s.Messages[0].Text)
	assert.False(t, s.Messages[0].Pending)
	assert.Equal(t, "Communication error: reset by peer", s.Messages[1].Text)
	assert.False(t, s.Loading)
}

func TestController_PreviewAndResume(t *testing.T) {
	t.Run("preview does not touch the live session", func(t *testing.T) {
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				return storedHistory(), nil
			},
		}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "live", "default"))
		c.Submit(context.Background(), "hello")
		live := c.Snapshot()

		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "HTB_Lame", "4_Exploitation", "old-sid"))

		s := c.Snapshot()
		require.NotNil(t, s.Preview)
		assert.Equal(t, "HTB_Lame", s.Preview.Project)
		assert.Equal(t, "4_Exploitation", s.Preview.Phase)
		assert.Equal(t, "old-sid", s.Preview.SessionID)
		assert.Equal(t, storedHistory().Messages, s.Preview.Messages)
		assert.False(t, s.PreviewLoading)

		assert.Equal(t, live.Project, s.Project)
		assert.Equal(t, live.SessionID, s.SessionID)
		assert.Equal(t, live.Messages, s.Messages)
	})

	t.Run("preview failure keeps state", func(t *testing.T) {
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				return nil, &api.Error{Kind: api.KindBackend, Status: 500, Detail: "not found"}
			},
		}
		c := newTestController(t, backend)
		before := c.Snapshot()

		err := c.DisplayHistoryPreview(context.Background(), "p", "default", "sid")
		require.Error(t, err)
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("preview loading flag is independent", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				close(entered)
				<-release
				return storedHistory(), nil
			},
		}
		c := newTestController(t, backend)

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(context.Background(), "p", "default", "sid")
		}()
		<-entered

		s := c.Snapshot()
		assert.True(t, s.PreviewLoading)
		assert.False(t, s.Loading)

		close(release)
		require.NoError(t, <-done)
		assert.False(t, c.Snapshot().PreviewLoading)
	})

	t.Run("resume success replaces the live session", func(t *testing.T) {
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				return storedHistory(), nil
			},
		}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "live", "default"))
		c.Submit(context.Background(), "hello")

		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "HTB_Lame", "4_Exploitation", "old-sid"))
		require.NoError(t, c.ResumeDisplayedHistory(context.Background()))

		s := c.Snapshot()
		assert.Nil(t, s.Preview)
		assert.Equal(t, "HTB_Lame", s.Project)
		assert.Equal(t, "4_Exploitation", s.Phase)
		assert.Equal(t, "old-sid", s.SessionID)
		assert.Equal(t, storedHistory().Messages, s.Messages)
		assert.True(t, s.InputEnabled())

		c.Submit(context.Background(), "continue")
		s = c.Snapshot()
		assert.Len(t, s.Messages, 4)
		assert.Equal(t, "old-sid", s.SessionID)
	})

	t.Run("resume failure is a no-op", func(t *testing.T) {
		backend := &fakeBackend{
			load: func(project, phase, sessionID string) (*models.History, error) {
				return storedHistory(), nil
			},
			resume: func(project, phase, sessionID string) error {
				return &api.Error{Kind: api.KindBackend, Status: 500, Detail: "resume failed"}
			},
		}
		c := newTestController(t, backend)
		require.NoError(t, c.StartNewChat(context.Background(), "live", "default"))
		c.Submit(context.Background(), "hello")
		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "HTB_Lame", "4_Exploitation", "old-sid"))
		before := c.Snapshot()

		err := c.ResumeDisplayedHistory(context.Background())

		require.Error(t, err)
		assert.Equal(t, before, c.Snapshot())
		assert.NotNil(t, c.Snapshot().Preview)
	})

	t.Run("resume without preview makes no call", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)

		require.NoError(t, c.ResumeDisplayedHistory(context.Background()))
		assert.Empty(t, backend.Calls())
	})
}

func TestController_CancelHistoryDisplay(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)

	c.CancelHistoryDisplay()
	assert.Nil(t, c.Snapshot().Preview)

	require.NoError(t, c.DisplayHistoryPreview(context.Background(), "p", "default", "sid"))
	require.NotNil(t, c.Snapshot().Preview)
	calls := len(backend.Calls())

	c.CancelHistoryDisplay()
	assert.Nil(t, c.Snapshot().Preview)
	assert.Len(t, backend.Calls(), calls)
}

// blockingLoad holds LoadHistory for the session "slow" until release is closed
func blockingLoad(entered, release chan struct{}) func(project, phase, sessionID string) (*models.History, error) {
	return func(project, phase, sessionID string) (*models.History, error) {
		if sessionID == "slow" {
			close(entered)
			<-release
		}
		h := storedHistory()
		h.Messages[0].Text = "history of " + sessionID
		return h, nil
	}
}

func TestController_LatePreviewIsDropped(t *testing.T) {
	t.Run("cancel while loading keeps the live session usable", func(t *testing.T) {
		entered, release := make(chan struct{}), make(chan struct{})
		c := newTestController(t, &fakeBackend{load: blockingLoad(entered, release)})
		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "default"))

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "slow")
		}()
		<-entered
		c.CancelHistoryDisplay()
		close(release)

		assert.ErrorIs(t, <-done, ErrPreviewSuperseded)
		s := c.Snapshot()
		assert.Nil(t, s.Preview)
		assert.False(t, s.PreviewLoading)
		assert.True(t, s.InputEnabled())

		reply, ok := c.Submit(context.Background(), "hello")
		require.True(t, ok)
		assert.Equal(t, "ok", reply.Text)
	})

	t.Run("new chat while loading", func(t *testing.T) {
		entered, release := make(chan struct{}), make(chan struct{})
		c := newTestController(t, &fakeBackend{load: blockingLoad(entered, release)})

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "slow")
		}()
		<-entered
		require.NoError(t, c.StartNewChat(context.Background(), "THM_OWASP", "default"))
		close(release)

		assert.ErrorIs(t, <-done, ErrPreviewSuperseded)
		assert.Nil(t, c.Snapshot().Preview)
		assert.True(t, c.Snapshot().InputEnabled())
	})

	t.Run("older preview does not replace a newer one", func(t *testing.T) {
		entered, release := make(chan struct{}), make(chan struct{})
		c := newTestController(t, &fakeBackend{load: blockingLoad(entered, release)})

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "slow")
		}()
		<-entered
		require.NoError(t, c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "fast"))
		assert.True(t, c.Snapshot().PreviewLoading)
		close(release)

		assert.ErrorIs(t, <-done, ErrPreviewSuperseded)
		s := c.Snapshot()
		require.NotNil(t, s.Preview)
		assert.Equal(t, "fast", s.Preview.SessionID)
		assert.Equal(t, "history of fast", s.Preview.Messages[0].Text)
		assert.False(t, s.PreviewLoading)
	})

	t.Run("cancelled context", func(t *testing.T) {
		entered, release := make(chan struct{}), make(chan struct{})
		c := newTestController(t, &fakeBackend{load: blockingLoad(entered, release)})
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(ctx, "THM_OWASP", "default", "slow")
		}()
		<-entered
		cancel()
		close(release)

		assert.ErrorIs(t, <-done, ErrPreviewSuperseded)
		assert.Nil(t, c.Snapshot().Preview)
	})

	t.Run("reset while loading", func(t *testing.T) {
		entered, release := make(chan struct{}), make(chan struct{})
		c := newTestController(t, &fakeBackend{load: blockingLoad(entered, release)})

		done := make(chan error, 1)
		go func() {
			done <- c.DisplayHistoryPreview(context.Background(), "THM_OWASP", "default", "slow")
		}()
		<-entered
		c.Reset()
		close(release)

		assert.ErrorIs(t, <-done, ErrPreviewSuperseded)
		assert.Nil(t, c.Snapshot().Preview)
	})
}

func TestController_Reset(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))
	c.Submit(context.Background(), "hello")

	c.Reset()

	s := c.Snapshot()
	assert.False(t, s.Active())
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.SessionID)

	_, ok := c.Submit(context.Background(), "hello")
	assert.False(t, ok)
}

func TestController_SnapshotIsACopy(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))
	c.Submit(context.Background(), "hello")

	s := c.Snapshot()
	s.Messages[0].Text = "tampered"

	assert.Equal(t, "hello", c.Snapshot().Messages[0].Text)
}

func TestController_CloseDropsLateReply(t *testing.T) {
	entered := make(chan struct{})
	backend := &fakeBackend{
		chat: func(ctx context.Context, req api.ChatRequest) (string, error) {
			close(entered)
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	c := New(backend)
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Submit(context.Background(), "hello")
	}()
	<-entered
	c.Close()
	<-done

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "hello", s.Messages[0].Text)
	assert.False(t, s.Loading)

	err := c.StartNewChat(context.Background(), "p", "default")
	assert.Error(t, err)
}

func TestController_ReplyForReplacedSessionIsDropped(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	require.NoError(t, c.StartNewChat(context.Background(), "p", "default"))

	pending, ok := c.Begin("hello")
	require.True(t, ok)

	require.NoError(t, c.StartNewChat(context.Background(), "p", "2_Vulnerability_Identification"))
	c.Complete(context.Background(), pending)

	s := c.Snapshot()
	assert.Empty(t, s.Messages)
	assert.False(t, s.Loading)
}
