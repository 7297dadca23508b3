package txtype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/ledger-bot/internal/chat"
)

// DefaultPageSize is the number of options per menu page.
const DefaultPageSize = 20

const (
	optionsPerRow  = 2
	maxSuggestions = 6
)

var (
	// ErrNoFilterPending is returned by ApplyFilter when the user was not
	// asked for a keyword.
	ErrNoFilterPending = errors.New("no filter prompt pending")
	// ErrEmptyCatalog is returned by Open when there is nothing to choose.
	ErrEmptyCatalog = errors.New("type catalog is empty")
)

// Session is one user's type menu state
type Session struct {
	MenuMessageID  int
	Options        []Option // full catalog or the active filter subset
	Filter         string
	Page           int
	AwaitingFilter bool
	Selected       *Option
	UpdatedAt      time.Time
}

// PageOptions returns the options rendered on the current page. A page past
// the end is empty.
func (s Session) PageOptions(pageSize int) []Option {
	start := s.Page * pageSize
	if start < 0 || start >= len(s.Options) {
		return nil
	}
	return s.Options[start:min(start+pageSize, len(s.Options))]
}

// HasNext reports whether options exist beyond the current page.
func (s Session) HasNext(pageSize int) bool {
	return (s.Page+1)*pageSize < len(s.Options)
}

// Sessions stores type menu sessions per chat
type Sessions interface {
	TypeSession(chatID int64) (Session, bool)
	SaveTypeSession(chatID int64, s Session)
	ClearTypeSession(chatID int64)
}

// OutcomeKind classifies the result of a menu callback
type OutcomeKind int

const (
	OutcomeUpdated   OutcomeKind = iota // menu re-rendered or prompt sent
	OutcomeSelected                     // an option was chosen
	OutcomeRejected                     // option not on the current page
	OutcomeNoSession                    // no menu is expected for this chat
)

// Outcome is what a callback did
type Outcome struct {
	Kind   OutcomeKind
	Option Option
	Toast  string // short text for the callback acknowledgement
}

// Selector drives the type menu: open, paginate, filter, reset and select.
type Selector struct {
	catalog   *Catalog
	sessions  Sessions
	messenger chat.Messenger
	pageSize  int
	now       func() time.Time
	logger    *slog.Logger
}

// NewSelector creates a selector
func NewSelector(catalog *Catalog, sessions Sessions, messenger chat.Messenger, pageSize int, logger *slog.Logger) *Selector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Selector{
		catalog:   catalog,
		sessions:  sessions,
		messenger: messenger,
		pageSize:  pageSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Open sends a fresh menu with the full catalog, replacing any menu the
// chat already has.
func (s *Selector) Open(ctx context.Context, chatID int64) error {
	opts, err := s.catalog.Get(ctx)
	if err != nil {
		return err
	}
	if len(opts) == 0 {
		return ErrEmptyCatalog
	}

	oldMenu := 0
	if prev, ok := s.sessions.TypeSession(chatID); ok {
		oldMenu = prev.MenuMessageID
	}

	sess := Session{Options: opts}
	text, kb := s.menu(sess)
	return s.replace(ctx, chatID, sess, oldMenu, text, kb)
}

// AwaitingFilter reports whether the chat's next text message is a filter
// keyword.
func (s *Selector) AwaitingFilter(chatID int64) bool {
	sess, ok := s.sessions.TypeSession(chatID)
	return ok && sess.AwaitingFilter
}

// CancelFilter withdraws an open filter prompt. The menu stays usable.
func (s *Selector) CancelFilter(chatID int64) {
	sess, ok := s.sessions.TypeSession(chatID)
	if !ok || !sess.AwaitingFilter {
		return
	}
	sess.AwaitingFilter = false
	sess.UpdatedAt = s.now()
	s.sessions.SaveTypeSession(chatID, sess)
}

// Selected returns the option chosen in the chat's session, if any.
func (s *Selector) Selected(chatID int64) (Option, bool) {
	sess, ok := s.sessions.TypeSession(chatID)
	if !ok || sess.Selected == nil {
		return Option{}, false
	}
	return *sess.Selected, true
}

// Clear ends the chat's session.
func (s *Selector) Clear(chatID int64) {
	s.sessions.ClearTypeSession(chatID)
}

// HandleCallback applies one menu button press.
func (s *Selector) HandleCallback(ctx context.Context, chatID int64, cb Callback) (Outcome, error) {
	sess, ok := s.sessions.TypeSession(chatID)
	if !ok {
		return Outcome{Kind: OutcomeNoSession, Toast: "Няма очакван избор на вид."}, nil
	}

	switch cb.Action {
	case ActionPrev, ActionNext:
		return s.navigate(ctx, chatID, sess, cb.Action)
	case ActionFilter:
		return s.openFilter(ctx, chatID, sess)
	case ActionReset:
		return s.reset(ctx, chatID, sess)
	default:
		return s.selectOption(ctx, chatID, sess, cb)
	}
}

// ApplyFilter consumes keyword as the answer to a filter prompt. Matching
// is a case-insensitive substring test on type names. A keyword matching
// nothing gets a retry/reset choice and the closest names.
func (s *Selector) ApplyFilter(ctx context.Context, chatID int64, keyword string) error {
	sess, ok := s.sessions.TypeSession(chatID)
	if !ok || !sess.AwaitingFilter {
		return ErrNoFilterPending
	}

	// one-shot prompt
	sess.AwaitingFilter = false
	sess.UpdatedAt = s.now()
	s.sessions.SaveTypeSession(chatID, sess)

	all, err := s.catalog.Get(ctx)
	if err != nil {
		return err
	}

	sess.Filter = keyword
	sess.Page = 0

	if matches := Filter(all, keyword); len(matches) > 0 {
		sess.Options = matches
		text, kb := s.menu(sess)
		return s.replace(ctx, chatID, sess, sess.MenuMessageID, text, kb)
	}

	suggestions := Suggest(keyword, all, maxSuggestions, SuggestThreshold)
	sess.Options = make([]Option, len(suggestions))
	for i, sg := range suggestions {
		sess.Options[i] = sg.Option
	}

	text := fmt.Sprintf("🤷 Няма вид, съдържащ „%s“.", keyword)
	if len(suggestions) > 0 {
		text += "\nМоже би имаше предвид:"
	}
	kb := (&chat.Keyboard{}).Grid(optionsPerRow, s.optionButtons(sess.Options)...)
	kb.Row(
		chat.Button{Text: "🔁 Опитай пак", Data: Callback{Action: ActionFilter}.Data()},
		chat.Button{Text: "↩️ Всички", Data: Callback{Action: ActionReset}.Data()},
	)
	return s.replace(ctx, chatID, sess, sess.MenuMessageID, text, kb)
}

func (s *Selector) navigate(ctx context.Context, chatID int64, sess Session, action Action) (Outcome, error) {
	if action == ActionPrev {
		sess.Page = max(0, sess.Page-1)
	} else {
		sess.Page++
	}

	text, kb := s.menu(sess)
	if err := s.replace(ctx, chatID, sess, sess.MenuMessageID, text, kb); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeUpdated}, nil
}

func (s *Selector) openFilter(ctx context.Context, chatID int64, sess Session) (Outcome, error) {
	sess.AwaitingFilter = true
	sess.UpdatedAt = s.now()
	s.sessions.SaveTypeSession(chatID, sess)

	if _, err := s.messenger.Send(ctx, chatID, "🔍 Напиши дума, по която да филтрирам видовете:", nil); err != nil {
		return Outcome{}, fmt.Errorf("send filter prompt: %w", err)
	}
	return Outcome{Kind: OutcomeUpdated}, nil
}

func (s *Selector) reset(ctx context.Context, chatID int64, sess Session) (Outcome, error) {
	all, err := s.catalog.Get(ctx)
	if err != nil {
		return Outcome{}, err
	}

	sess.Options = all
	sess.Filter = ""
	sess.Page = 0
	sess.AwaitingFilter = false

	text, kb := s.menu(sess)
	if err := s.replace(ctx, chatID, sess, sess.MenuMessageID, text, kb); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeUpdated}, nil
}

// selectOption accepts only options rendered on the current page; anything
// else leaves the session untouched.
func (s *Selector) selectOption(ctx context.Context, chatID int64, sess Session, cb Callback) (Outcome, error) {
	var chosen *Option
	for _, o := range sess.PageOptions(s.pageSize) {
		if cb.Matches(o) {
			chosen = &o
			break
		}
	}
	if chosen == nil {
		return Outcome{Kind: OutcomeRejected, Toast: "Този вид не е в текущото меню."}, nil
	}

	sess.Selected = chosen
	sess.AwaitingFilter = false
	sess.UpdatedAt = s.now()
	s.sessions.SaveTypeSession(chatID, sess)

	if err := s.messenger.EditText(ctx, chatID, sess.MenuMessageID, "✅ Избра вид: "+chosen.Name, nil); err != nil {
		s.logMessageFailure(ctx, "failed to confirm type selection", chatID, sess.MenuMessageID, err)
	}
	return Outcome{Kind: OutcomeSelected, Option: *chosen}, nil
}

// replace deletes the previous menu message (if any) and sends a new one.
// A failed delete is logged and ignored.
func (s *Selector) replace(ctx context.Context, chatID int64, sess Session, oldMenu int, text string, kb *chat.Keyboard) error {
	if oldMenu != 0 {
		if err := s.messenger.Delete(ctx, chatID, oldMenu); err != nil {
			s.logMessageFailure(ctx, "failed to delete previous type menu", chatID, oldMenu, err)
		}
	}

	id, err := s.messenger.Send(ctx, chatID, text, kb)
	if err != nil {
		s.sessions.ClearTypeSession(chatID)
		return fmt.Errorf("send type menu: %w", err)
	}

	sess.MenuMessageID = id
	sess.UpdatedAt = s.now()
	s.sessions.SaveTypeSession(chatID, sess)
	return nil
}

// logMessageFailure logs a failed edit or delete of a menu message. A message
// that is already gone (duplicate callback, user deleted it) is expected and
// only logged at debug level.
func (s *Selector) logMessageFailure(ctx context.Context, msg string, chatID int64, messageID int, err error) {
	level := slog.LevelWarn
	if errors.Is(err, chat.ErrMessageGone) {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, msg,
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", messageID),
		slog.Any("error", err),
	)
}

func (s *Selector) menu(sess Session) (string, *chat.Keyboard) {
	text := "📌 Избери вид на транзакцията:"
	if sess.Filter != "" {
		text = fmt.Sprintf("📌 Избери вид на транзакцията (филтър „%s“):", sess.Filter)
	}
	if sess.Page > 0 || sess.HasNext(s.pageSize) {
		text += fmt.Sprintf("\nСтраница %d", sess.Page+1)
	}

	kb := (&chat.Keyboard{}).Grid(optionsPerRow, s.optionButtons(sess.PageOptions(s.pageSize))...)

	var nav []chat.Button
	if sess.Page > 0 {
		nav = append(nav, chat.Button{Text: "⬅️ Назад", Data: Callback{Action: ActionPrev}.Data()})
	}
	if sess.HasNext(s.pageSize) {
		nav = append(nav, chat.Button{Text: "Напред ➡️", Data: Callback{Action: ActionNext}.Data()})
	}
	kb.Row(nav...)

	controls := []chat.Button{{Text: "🔍 Филтър", Data: Callback{Action: ActionFilter}.Data()}}
	if sess.Filter != "" {
		controls = append(controls, chat.Button{Text: "↩️ Всички", Data: Callback{Action: ActionReset}.Data()})
	}
	kb.Row(controls...)

	return text, kb
}

func (s *Selector) optionButtons(opts []Option) []chat.Button {
	buttons := make([]chat.Button, len(opts))
	for i, o := range opts {
		buttons[i] = chat.Button{Text: o.Name, Data: SelectCallback(o).Data()}
	}
	return buttons
}
