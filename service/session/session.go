package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"CareChat/logger"
	"CareChat/model"
	"CareChat/service/api"

	"github.com/pkg/errors"
)

// API is the slice of the backend's request/response surface the session
// consumes. *api.Client satisfies it; tests substitute fakes.
type API interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	CreateMessage(ctx context.Context, conversationID, content string, attachments []string) (*model.Message, error)
	AddReaction(ctx context.Context, conversationID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error
	LeaveConversation(ctx context.Context, conversationID, userID string) error
}

// Streamer opens the push-event channel for one conversation and carries the
// outbound typing signal.
type Streamer interface {
	Subscribe(ctx context.Context, conversationID string) (<-chan model.Event, error)
	SendTyping(conversationID string, typing bool) error
}

// Conf tunes one conversation session.
type Conf struct {
	UserID     string
	UserName   string
	PageSize   int              // initial history fetch size
	TypingIdle time.Duration    // quiet period before typing-stop
	BannerTTL  time.Duration    // transient error banner lifetime
	Clock      func() time.Time // injectable clock (tests); nil => time.Now
}

func (c *Conf) norm() {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.TypingIdle <= 0 {
		c.TypingIdle = 3 * time.Second
	}
	if c.BannerTTL <= 0 {
		c.BannerTTL = 5 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Session owns every piece of state behind one open conversation view: the
// ordered message list, the reaction ledger, the typing set, the connection
// flag, the composer, and the error surface. All state is private to the
// instance; switching conversations resets it wholesale.
//
// Failures never escape: every error resolves to a rollback, a degraded
// view, or a transient banner.
type Session struct {
	mu   sync.Mutex
	conf Conf
	api  API
	str  Streamer

	// epoch increments on every Switch. Async continuations capture the
	// epoch they were issued under and drop their result if it moved on,
	// so stale responses cannot mutate the next conversation's state.
	epoch int

	convID    string
	conv      *model.Conversation
	messages  []model.Message
	ledger    *Ledger
	typing    map[string]Indicator
	connState model.ConnState
	loaded    bool

	input       string
	attachments []string

	banner      string
	bannerSeq   int
	bannerTimer *time.Timer

	fatal    error
	notifier *TypingNotifier
	cancel   context.CancelFunc
}

func New(a API, s Streamer, conf Conf) *Session {
	conf.norm()
	return &Session{
		api:    a,
		str:    s,
		conf:   conf,
		ledger: NewLedger(),
		typing: make(map[string]Indicator),
	}
}

// Switch points the session at a conversation. All per-conversation state is
// reset before the fresh fetch so nothing bleeds across navigations, then
// conversation metadata and the first history page are fetched in parallel.
//
// A failed conversation fetch is fatal to the view (typed by status). A
// failed history fetch only degrades it: the conversation still renders with
// an empty list and sending keeps working.
func (s *Session) Switch(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.resetLocked(conversationID)
	e := s.epoch
	s.mu.Unlock()

	var (
		wg      sync.WaitGroup
		conv    *model.Conversation
		convErr error
		msgs    []model.Message
		msgErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		conv, convErr = s.api.GetConversation(ctx, conversationID)
	}()
	go func() {
		defer wg.Done()
		msgs, msgErr = s.api.ListMessages(ctx, conversationID, s.conf.PageSize)
	}()
	wg.Wait()

	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return nil // user already navigated on; this result is stale
	}
	if convErr != nil {
		s.fatal = convErr
		s.mu.Unlock()
		return convErr
	}
	s.conv = conv
	if msgErr != nil {
		logger.Warnf("history fetch failed for conversation %s, rendering empty: %v", conversationID, msgErr)
		s.messages = nil
	} else {
		s.messages = Dedupe(msgs)
		for i := range s.messages {
			s.ledger.Seed(s.messages[i].ID, s.messages[i].Metadata.Reactions)
		}
	}
	s.loaded = true
	s.mu.Unlock()

	s.openStream(e, conversationID)
	return nil
}

// resetLocked clears every piece of per-conversation state and invalidates
// outstanding continuations.
func (s *Session) resetLocked(conversationID string) {
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.notifier != nil {
		s.notifier.Quiet()
	}
	s.convID = conversationID
	s.conv = nil
	s.messages = nil
	s.ledger.Reset()
	s.typing = make(map[string]Indicator)
	s.connState = model.Disconnected
	s.loaded = false
	s.fatal = nil
	s.banner = ""
	s.input = ""
	s.attachments = nil
	s.notifier = NewTypingNotifier(s.conf.TypingIdle,
		func() { s.sendTyping(conversationID, true) },
		func() { s.sendTyping(conversationID, false) },
	)
}

func (s *Session) sendTyping(conversationID string, typing bool) {
	if s.str == nil {
		return
	}
	if err := s.str.SendTyping(conversationID, typing); err != nil {
		logger.Debugf("typing signal dropped for conversation %s: %v", conversationID, err)
	}
}

func (s *Session) openStream(e int, conversationID string) {
	if s.str == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.str.Subscribe(ctx, conversationID)
	if err != nil {
		cancel()
		logger.Warnf("subscribe failed for conversation %s: %v", conversationID, err)
		s.mu.Lock()
		if s.epoch == e {
			s.setBannerLocked(bannerConnectivity)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
	go func() {
		for ev := range events {
			s.apply(e, ev)
		}
	}()
}

// apply dispatches one inbound stream event. Events for a conversation the
// session already left are dropped by the epoch guard.
func (s *Session) apply(e int, ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != e {
		return
	}
	switch v := ev.(type) {
	case model.MessageCreated:
		s.messages = Dedupe(Merge(s.messages, v.Message))
		s.ledger.Seed(v.Message.ID, v.Message.Metadata.Reactions)
	case model.MessageUpdated:
		s.messages = Dedupe(Merge(s.messages, v.Message))
	case model.MessageDeleted:
		ts := v.Ts
		if ts == 0 {
			ts = s.conf.Clock().UnixMilli()
		}
		for i := range s.messages {
			if s.messages[i].ID == v.MessageID {
				s.messages[i].MarkDeleted(ts)
				break
			}
		}
	case model.ReactionAdded:
		s.ledger.Add(v.MessageID, v.Emoji, v.Reactor)
	case model.ReactionRemoved:
		s.ledger.Remove(v.MessageID, v.Emoji, v.UserID)
	case model.TypingStart:
		if v.UserID != s.conf.UserID {
			s.typing[v.UserID] = Indicator{UserID: v.UserID, UserName: v.UserName, LastSeen: s.conf.Clock()}
		}
	case model.TypingStop:
		delete(s.typing, v.UserID)
	case model.ConnectionChanged:
		// Connection transitions touch the indicator only; message and
		// reaction state stay untouched.
		s.connState = v.State
	}
}

// SetInput updates the composer and drives the outbound typing debounce.
func (s *Session) SetInput(content string) {
	s.mu.Lock()
	if s.fatal != nil {
		s.mu.Unlock()
		return
	}
	s.input = content
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.InputChanged(content)
	}
}

// AttachFile adds an uploaded file id to the pending send.
func (s *Session) AttachFile(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, fileID)
}

// Send runs the optimistic send protocol: provisional insert under a temp
// id, composer cleared, then the create request. Failure evicts the temp
// entry, restores composer content and attachment selection, and raises a
// banner. Success reconciles against a possible stream echo of the same
// confirmed id (the one documented race).
func (s *Session) Send(ctx context.Context) {
	s.mu.Lock()
	if s.fatal != nil || s.conv == nil {
		s.mu.Unlock()
		return
	}
	content := strings.TrimSpace(s.input)
	if content == "" && len(s.attachments) == 0 {
		s.mu.Unlock()
		return
	}
	now := s.conf.Clock()
	op := pendingSend{
		tempID:      model.NewTempID(now),
		input:       s.input,
		attachments: append([]string(nil), s.attachments...),
	}
	provisional := model.Message{
		ID:             op.tempID,
		ConversationID: s.convID,
		SenderID:       s.conf.UserID,
		SenderName:     s.conf.UserName,
		Content:        content,
		AttachmentIDs:  op.attachments,
		CreatedAt:      now.UnixMilli(),
		UpdatedAt:      now.UnixMilli(),
	}
	s.messages = Dedupe(Merge(s.messages, provisional))
	s.input = ""
	s.attachments = nil
	e := s.epoch
	convID := s.convID
	notifier := s.notifier
	s.mu.Unlock()

	if notifier != nil {
		notifier.Quiet() // sending counts as going idle
	}

	created, err := s.api.CreateMessage(ctx, convID, content, op.attachments)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != e {
		return
	}
	if err != nil {
		s.rollbackSendLocked(op)
		s.setBannerLocked(bannerFor(err, bannerSendFailed))
		return
	}
	s.reconcileSendLocked(op.tempID, *created)
}

func (s *Session) rollbackSendLocked(op pendingSend) {
	out := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != op.tempID {
			out = append(out, m)
		}
	}
	s.messages = out
	s.input = op.input
	s.attachments = op.attachments
}

// reconcileSendLocked resolves the confirmed message against the list. The
// stream echo may have landed first (legitimate race): then the temp entry
// is simply dropped. Otherwise the temp entry is replaced in place.
func (s *Session) reconcileSendLocked(tempID string, confirmed model.Message) {
	echoed := false
	for i := range s.messages {
		if s.messages[i].ID == confirmed.ID {
			echoed = true
			break
		}
	}
	out := s.messages[:0]
	for _, m := range s.messages {
		if m.ID == tempID {
			if echoed {
				continue // confirmed copy already present
			}
			m = confirmed
		}
		out = append(out, m)
	}
	s.messages = Dedupe(out)
	s.ledger.Seed(confirmed.ID, confirmed.Metadata.Reactions)
}

// ToggleReaction applies the toggle-inference rule: if the acting user is
// already present for (messageID, emoji) the call removes, otherwise it adds.
func (s *Session) ToggleReaction(ctx context.Context, messageID, emoji string) {
	s.mu.Lock()
	if s.fatal != nil || s.conv == nil {
		s.mu.Unlock()
		return
	}
	e := s.epoch
	convID := s.convID
	op := reactionOp{
		messageID: messageID,
		emoji:     emoji,
		reactor:   model.Reactor{UserID: s.conf.UserID, UserName: s.conf.UserName},
	}
	reacted := s.ledger.Has(messageID, emoji, op.reactor.UserID)
	s.mu.Unlock()

	if reacted {
		s.removeReaction(ctx, e, convID, op)
	} else {
		s.addReaction(ctx, e, convID, op)
	}
}

func (s *Session) addReaction(ctx context.Context, e int, convID string, op reactionOp) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.ledger.Add(op.messageID, op.emoji, op.reactor)
	s.mu.Unlock()

	err := s.api.AddReaction(ctx, convID, op.messageID, op.emoji)
	if err == nil {
		return
	}
	if errors.Is(err, api.ErrAlreadyReacted) {
		// The server already held this reaction while the ledger thought it
		// was absent. Take the server's word as confirmation and toggle off
		// instead of surfacing an error.
		s.removeReaction(ctx, e, convID, op)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != e {
		return
	}
	s.ledger.Remove(op.messageID, op.emoji, op.reactor.UserID)
	s.setBannerLocked(bannerFor(err, bannerReactFailed))
}

func (s *Session) removeReaction(ctx context.Context, e int, convID string, op reactionOp) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.ledger.Remove(op.messageID, op.emoji, op.reactor.UserID)
	s.mu.Unlock()

	err := s.api.RemoveReaction(ctx, convID, op.messageID, op.emoji)
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != e {
		return
	}
	s.ledger.Add(op.messageID, op.emoji, op.reactor)
	s.setBannerLocked(bannerFor(err, bannerReactFailed))
}

// Leave removes the current user from the conversation and closes the view.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return nil
	}
	e := s.epoch
	convID := s.convID
	s.mu.Unlock()

	if err := s.api.LeaveConversation(ctx, convID, s.conf.UserID); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch == e {
			s.setBannerLocked(bannerFor(err, bannerLeaveFailed))
		}
		return err
	}
	s.Close()
	return nil
}

// Close tears the session down: stream cancelled, typing quieted, timers
// stopped. The instance can be reused via Switch.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	notifier := s.notifier
	if s.bannerTimer != nil {
		s.bannerTimer.Stop()
		s.bannerTimer = nil
	}
	s.mu.Unlock()
	if notifier != nil {
		notifier.Quiet()
	}
}

func (s *Session) setBannerLocked(msg string) {
	s.banner = msg
	s.bannerSeq++
	seq := s.bannerSeq
	if s.bannerTimer != nil {
		s.bannerTimer.Stop()
	}
	s.bannerTimer = time.AfterFunc(s.conf.BannerTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.bannerSeq == seq {
			s.banner = ""
		}
	})
}

// ---- read-side accessors (copies, safe for rendering) ----

func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	c := *s.conv
	return &c
}

func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

func (s *Session) Reactions(messageID string) map[string][]model.Reactor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Reactions(messageID)
}

// Typing lists remote participants active within the idle window. Indicators
// that stopped arriving expire passively instead of by timer.
func (s *Session) Typing() []Indicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.conf.Clock().Add(-s.conf.TypingIdle)
	out := make([]Indicator, 0, len(s.typing))
	for _, ind := range s.typing {
		if ind.LastSeen.After(cutoff) {
			out = append(out, ind)
		}
	}
	return out
}

func (s *Session) ConnectionState() model.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// Err returns the fatal view error, if any (not found / access denied /
// auth required / generic).
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) Attachments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attachments...)
}
