package txtype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
	"github.com/FACorreiaa/ledger-bot/internal/chat/chattest"
)

const chatID int64 = 42

type mapSessions struct {
	mu sync.Mutex
	m  map[int64]Session
}

func newMapSessions() *mapSessions {
	return &mapSessions{m: make(map[int64]Session)}
}

func (s *mapSessions) TypeSession(id int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	return sess, ok
}

func (s *mapSessions) SaveTypeSession(id int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = sess
}

func (s *mapSessions) ClearTypeSession(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

type selectorFixture struct {
	selector  *Selector
	sessions  *mapSessions
	messenger *chattest.Recorder
	store     *countingStore
}

func newSelectorFixture(t *testing.T, pageSize int, names ...string) *selectorFixture {
	t.Helper()
	s := newTypeStore(names...)
	sessions := newMapSessions()
	messenger := chattest.NewRecorder()
	catalog := NewCatalog(s, typesTable, "Name", testLogger())
	return &selectorFixture{
		selector:  NewSelector(catalog, sessions, messenger, pageSize, testLogger()),
		sessions:  sessions,
		messenger: messenger,
		store:     s,
	}
}

func numberedTypes(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Вид %02d", i+1)
	}
	return names
}

func buttonData(kb *chat.Keyboard) []string {
	var out []string
	if kb == nil {
		return nil
	}
	for _, row := range kb.Rows {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestSelector_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("first page with next and filter controls", func(t *testing.T) {
		f := newSelectorFixture(t, 20, numberedTypes(25)...)
		require.NoError(t, f.selector.Open(ctx, chatID))

		sent := f.messenger.CallsOf(chattest.OpSend)
		require.Len(t, sent, 1)
		kb := sent[0].Keyboard
		require.NotNil(t, kb)

		// 20 options two per row, then next, then filter
		require.Len(t, kb.Rows, 12)
		assert.Len(t, kb.Rows[0], 2)
		assert.Equal(t, []chat.Button{{Text: "Напред ➡️", Data: "__next"}}, kb.Rows[10])
		assert.Equal(t, "__filter", kb.Rows[11][0].Data)
		assert.NotContains(t, buttonData(kb), "__prev")

		sess, ok := f.sessions.TypeSession(chatID)
		require.True(t, ok)
		assert.Equal(t, sent[0].MessageID, sess.MenuMessageID)
		assert.Len(t, sess.Options, 25)
		assert.Zero(t, sess.Page)
	})

	t.Run("single page has no navigation", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM", "Такси", "Други")
		require.NoError(t, f.selector.Open(ctx, chatID))

		data := buttonData(f.messenger.Last(chattest.OpSend).Keyboard)
		assert.Equal(t, []string{"GSM", "Такси", "Други", "__filter"}, data)
	})

	t.Run("reopen replaces the previous menu", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		first := f.messenger.Last(chattest.OpSend).MessageID

		require.NoError(t, f.selector.Open(ctx, chatID))
		deleted := f.messenger.CallsOf(chattest.OpDelete)
		require.Len(t, deleted, 1)
		assert.Equal(t, first, deleted[0].MessageID)
	})

	t.Run("catalog failure sends nothing", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		f.store.err = errors.New("unavailable")

		require.Error(t, f.selector.Open(ctx, chatID))
		assert.Empty(t, f.messenger.Calls())
		_, ok := f.sessions.TypeSession(chatID)
		assert.False(t, ok)
	})
}

func TestSelector_Navigate(t *testing.T) {
	ctx := context.Background()
	f := newSelectorFixture(t, 20, numberedTypes(45)...)
	require.NoError(t, f.selector.Open(ctx, chatID))

	step := func(action Action) (deleted, sent []chattest.Call) {
		f.messenger.Reset()
		out, err := f.selector.HandleCallback(ctx, chatID, Callback{Action: action})
		require.NoError(t, err)
		require.Equal(t, OutcomeUpdated, out.Kind)
		return f.messenger.CallsOf(chattest.OpDelete), f.messenger.CallsOf(chattest.OpSend)
	}

	t.Run("next deletes one menu and sends one", func(t *testing.T) {
		before, _ := f.sessions.TypeSession(chatID)
		deleted, sent := step(ActionNext)
		require.Len(t, deleted, 1)
		require.Len(t, sent, 1)
		assert.Equal(t, before.MenuMessageID, deleted[0].MessageID)

		data := buttonData(sent[0].Keyboard)
		assert.Contains(t, data, "Вид 21")
		assert.Contains(t, data, "__prev")
		assert.Contains(t, data, "__next")
	})

	t.Run("last page has no next", func(t *testing.T) {
		_, sent := step(ActionNext)
		data := buttonData(sent[0].Keyboard)
		assert.Contains(t, data, "Вид 45")
		assert.NotContains(t, data, "__next")
	})

	t.Run("past the end renders an empty page", func(t *testing.T) {
		_, sent := step(ActionNext)
		assert.Equal(t, []string{"__prev", "__filter"}, buttonData(sent[0].Keyboard))

		sess, _ := f.sessions.TypeSession(chatID)
		assert.Equal(t, 3, sess.Page)
	})

	t.Run("prev clamps at zero", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			step(ActionPrev)
		}
		sess, _ := f.sessions.TypeSession(chatID)
		assert.Zero(t, sess.Page)
	})

	t.Run("failed delete is tolerated", func(t *testing.T) {
		f.messenger.FailOn(chattest.OpDelete, chat.ErrMessageGone)
		defer f.messenger.FailOn(chattest.OpDelete, nil)

		_, sent := step(ActionNext)
		assert.Len(t, sent, 1)
	})
}

func TestSelector_Filter(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword narrows options and pagination keeps the subset", func(t *testing.T) {
		names := append(numberedTypes(3), "GSM", "New SIM card UK", "gsm UK")
		f := newSelectorFixture(t, 1, names...)
		require.NoError(t, f.selector.Open(ctx, chatID))

		out, err := f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionFilter})
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out.Kind)
		assert.True(t, f.selector.AwaitingFilter(chatID))

		require.NoError(t, f.selector.ApplyFilter(ctx, chatID, "GSM"))
		assert.False(t, f.selector.AwaitingFilter(chatID))

		sess, _ := f.sessions.TypeSession(chatID)
		assert.Equal(t, "GSM", sess.Filter)
		assert.Equal(t, []Option{{Name: "GSM", ID: "rectyped"}, {Name: "gsm UK", ID: "rectypef"}}, sess.Options)

		data := buttonData(f.messenger.Last(chattest.OpSend).Keyboard)
		assert.Equal(t, []string{"GSM", "__next", "__filter", "__reset"}, data)

		_, err = f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionNext})
		require.NoError(t, err)
		data = buttonData(f.messenger.Last(chattest.OpSend).Keyboard)
		assert.Equal(t, []string{"gsm UK", "__prev", "__filter", "__reset"}, data)
	})

	t.Run("no match offers retry, reset and suggestions", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "Proxy", "Такси", "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		_, err := f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionFilter})
		require.NoError(t, err)

		require.NoError(t, f.selector.ApplyFilter(ctx, chatID, "proxi"))

		last := f.messenger.Last(chattest.OpSend)
		assert.Contains(t, last.Text, "Няма вид")
		data := buttonData(last.Keyboard)
		assert.Equal(t, "Proxy", data[0])
		assert.Contains(t, data, "__filter")
		assert.Contains(t, data, "__reset")

		// a suggestion is selectable
		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("Proxy"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeSelected, out.Kind)
	})

	t.Run("reset restores the full catalog", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "Proxy", "Такси", "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		_, _ = f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionFilter})
		require.NoError(t, f.selector.ApplyFilter(ctx, chatID, "так"))

		out, err := f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionReset})
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out.Kind)

		sess, _ := f.sessions.TypeSession(chatID)
		assert.Empty(t, sess.Filter)
		assert.Len(t, sess.Options, 3)
	})

	t.Run("keyword without a prompt", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		assert.ErrorIs(t, f.selector.ApplyFilter(ctx, chatID, "gsm"), ErrNoFilterPending)
	})
}

func TestSelector_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("valid option is confirmed in place", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM", "Такси")
		require.NoError(t, f.selector.Open(ctx, chatID))
		menuID := f.messenger.Last(chattest.OpSend).MessageID

		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("Такси"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeSelected, out.Kind)
		assert.Equal(t, Option{Name: "Такси", ID: "rectypeb"}, out.Option)

		edit := f.messenger.Last(chattest.OpEditText)
		assert.Equal(t, menuID, edit.MessageID)
		assert.Equal(t, "✅ Избра вид: Такси", edit.Text)

		selected, ok := f.selector.Selected(chatID)
		require.True(t, ok)
		assert.Equal(t, "Такси", selected.Name)
	})

	t.Run("selection by id", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("#rectypea"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeSelected, out.Kind)
	})

	t.Run("option off the current page is rejected without change", func(t *testing.T) {
		f := newSelectorFixture(t, 20, numberedTypes(25)...)
		require.NoError(t, f.selector.Open(ctx, chatID))
		before, _ := f.sessions.TypeSession(chatID)
		f.messenger.Reset()

		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("Вид 22"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, out.Kind)
		assert.NotEmpty(t, out.Toast)

		after, _ := f.sessions.TypeSession(chatID)
		assert.Equal(t, before, after)
		assert.Empty(t, f.messenger.Calls())
	})

	t.Run("no session answers without crashing", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("GSM"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoSession, out.Kind)
	})

	t.Run("stale confirm edit is tolerated", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		f.messenger.FailOn(chattest.OpEditText, chat.ErrMessageGone)

		out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("GSM"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeSelected, out.Kind)
	})

	t.Run("clear ends the session", func(t *testing.T) {
		f := newSelectorFixture(t, 20, "GSM")
		require.NoError(t, f.selector.Open(ctx, chatID))
		f.selector.Clear(chatID)

		_, ok := f.selector.Selected(chatID)
		assert.False(t, ok)
		out, _ := f.selector.HandleCallback(ctx, chatID, ParseCallback("GSM"))
		assert.Equal(t, OutcomeNoSession, out.Kind)
	})
}

func TestSelector_OpenEmptyCatalog(t *testing.T) {
	f := newSelectorFixture(t, 20)
	assert.ErrorIs(t, f.selector.Open(context.Background(), chatID), ErrEmptyCatalog)
	assert.Empty(t, f.messenger.Calls())
}

// levelRecorder keeps the level of the last log record per message.
type levelRecorder struct {
	mu     sync.Mutex
	levels map[string]slog.Level
}

func (h *levelRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *levelRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.levels[r.Message] = r.Level
	return nil
}

func (h *levelRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelRecorder) WithGroup(string) slog.Handler      { return h }

func (h *levelRecorder) Level(msg string) (slog.Level, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	level, ok := h.levels[msg]
	return level, ok
}

func TestSelector_MessageFailureLogLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		op      chattest.Op
		err     error
		trigger func(f *selectorFixture) error
		logMsg  string
		want    slog.Level
	}{
		{
			name: "vanished menu on delete",
			op:   chattest.OpDelete,
			err:  fmt.Errorf("wrapped: %w", chat.ErrMessageGone),
			trigger: func(f *selectorFixture) error {
				return f.selector.Open(ctx, chatID)
			},
			logMsg: "failed to delete previous type menu",
			want:   slog.LevelDebug,
		},
		{
			name: "transport failure on delete",
			op:   chattest.OpDelete,
			err:  errors.New("connection reset"),
			trigger: func(f *selectorFixture) error {
				return f.selector.Open(ctx, chatID)
			},
			logMsg: "failed to delete previous type menu",
			want:   slog.LevelWarn,
		},
		{
			name: "vanished menu on confirm",
			op:   chattest.OpEditText,
			err:  chat.ErrMessageGone,
			trigger: func(f *selectorFixture) error {
				_, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("GSM"))
				return err
			},
			logMsg: "failed to confirm type selection",
			want:   slog.LevelDebug,
		},
		{
			name: "transport failure on confirm",
			op:   chattest.OpEditText,
			err:  errors.New("timeout"),
			trigger: func(f *selectorFixture) error {
				_, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("GSM"))
				return err
			},
			logMsg: "failed to confirm type selection",
			want:   slog.LevelWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSelectorFixture(t, 20, "GSM")
			logs := &levelRecorder{levels: make(map[string]slog.Level)}
			f.selector = NewSelector(f.selector.catalog, f.sessions, f.messenger, 20, slog.New(logs))

			require.NoError(t, f.selector.Open(ctx, chatID))
			f.messenger.FailOn(tt.op, tt.err)

			require.NoError(t, tt.trigger(f))

			level, ok := logs.Level(tt.logMsg)
			require.True(t, ok)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestSelector_CancelFilter(t *testing.T) {
	ctx := context.Background()
	f := newSelectorFixture(t, 20, "GSM", "Такси")

	f.selector.CancelFilter(chatID) // no session: no-op
	_, ok := f.sessions.TypeSession(chatID)
	assert.False(t, ok)

	require.NoError(t, f.selector.Open(ctx, chatID))
	_, err := f.selector.HandleCallback(ctx, chatID, Callback{Action: ActionFilter})
	require.NoError(t, err)
	require.True(t, f.selector.AwaitingFilter(chatID))

	f.selector.CancelFilter(chatID)
	assert.False(t, f.selector.AwaitingFilter(chatID))
	assert.ErrorIs(t, f.selector.ApplyFilter(ctx, chatID, "так"), ErrNoFilterPending)

	out, err := f.selector.HandleCallback(ctx, chatID, ParseCallback("Такси"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSelected, out.Kind)
}
