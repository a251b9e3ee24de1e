// Package roster is the authoritative in-memory character collection.
//
// A Roster owns every character together with its conversations and messages.
// All mutations are serialized and written through to a store.Storer before
// they return. A failed write is reported but never rolls back the in-memory
// change, so the session keeps working when storage is full.
package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/reply"
)

// DefaultKey is the storage key of the durable record.
const DefaultKey = "roleforge-storage"

// Default avatar settings for characters created without one.
const (
	DefaultAvatar      = "👤"
	DefaultAvatarColor = "#00ff41"
)

// Replier turns a reply request into character text.
// *chat.Dispatcher is the production implementation.
type Replier interface {
	Dispatch(ctx context.Context, req reply.Request) (string, error)
}

// Options configures a Roster.
type Options struct {
	Storer  store.Storer
	Key     string
	Replier Replier
	Logger  *logger.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Fields are the user-supplied attributes of a new character.
// Personality is free text; unknown values fall back to friendly.
type Fields struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
	Backstory   string `json:"backstory"`
	Avatar      string `json:"avatar"`
	AvatarColor string `json:"avatarColor"`
	IsFavorite  bool   `json:"isFavorite"`
}

// Patch holds the attributes to change in UpdateCharacter. Nil fields are left
// untouched.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Personality *string `json:"personality,omitempty"`
	Backstory   *string `json:"backstory,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	AvatarColor *string `json:"avatarColor,omitempty"`
	IsFavorite  *bool   `json:"isFavorite,omitempty"`
}

// Exchange is the outcome of SendMessage. Reply is nil when generation failed.
type Exchange struct {
	CharacterID    string         `json:"characterId"`
	ConversationID string         `json:"conversationId"`
	User           store.Message  `json:"user"`
	Reply          *store.Message `json:"reply,omitempty"`
}

// Roster is the Entity Store.
type Roster struct {
	mu       sync.Mutex
	chars    []*store.Character
	index    map[string]int
	active   string
	inflight map[string]bool

	storer  store.Storer
	key     string
	replier Replier
	log     *logger.Logger
	now     func() time.Time
}

// New creates an empty roster. Call Open to hydrate it from storage.
func New(opts Options) *Roster {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Roster{
		chars:    []*store.Character{},
		index:    make(map[string]int),
		inflight: make(map[string]bool),
		storer:   opts.Storer,
		key:      opts.Key,
		replier:  opts.Replier,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

// Open loads the durable record. A missing record yields an empty roster.
// A corrupt record is reported as a SERIALIZATION error and the roster stays
// empty.
func (r *Roster) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storer == nil {
		return nil
	}
	data, err := r.storer.Load(ctx, r.key)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "load "+r.key)
	}
	if data == nil {
		r.log.Debug("no stored state, starting empty", "key", r.key)
		return nil
	}

	snap, err := store.DecodeSnapshot(data)
	if err != nil {
		r.log.LogError(err, "stored state is corrupt", "key", r.key)
		return err
	}
	r.replaceLocked(snap.Characters)
	r.log.Info("roster loaded", "characters", len(r.chars))
	return nil
}

// =============================================================================
// Character lifecycle
// =============================================================================

// AddCharacter creates a character and returns its id. The id is valid even
// when the returned error reports a persistence failure.
func (r *Roster) AddCharacter(f Fields) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.newCharacterLocked(f)
	return c.ID, r.persistLocked()
}

func (r *Roster) newCharacterLocked(f Fields) *store.Character {
	now := r.now().UnixMilli()
	c := &store.Character{
		ID:            uuid.NewString(),
		Name:          f.Name,
		Personality:   store.ParsePersonality(f.Personality),
		Backstory:     f.Backstory,
		Avatar:        f.Avatar,
		AvatarColor:   f.AvatarColor,
		IsFavorite:    f.IsFavorite,
		CreatedAt:     now,
		UpdatedAt:     now,
		Conversations: []store.Conversation{},
	}
	if c.Avatar == "" {
		c.Avatar = DefaultAvatar
	}
	if c.AvatarColor == "" {
		c.AvatarColor = DefaultAvatarColor
	}

	r.index[c.ID] = len(r.chars)
	r.chars = append(r.chars, c)
	return c
}

// UpdateCharacter merges p into the character and bumps UpdatedAt.
func (r *Roster) UpdateCharacter(id string, p Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Personality != nil {
		c.Personality = store.ParsePersonality(*p.Personality)
	}
	if p.Backstory != nil {
		c.Backstory = *p.Backstory
	}
	if p.Avatar != nil {
		c.Avatar = *p.Avatar
	}
	if p.AvatarColor != nil {
		c.AvatarColor = *p.AvatarColor
	}
	if p.IsFavorite != nil {
		c.IsFavorite = *p.IsFavorite
	}
	r.touchLocked(c)
	return r.persistLocked()
}

// DeleteCharacter removes the character and everything it owns.
func (r *Roster) DeleteCharacter(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return notFound(id)
	}
	r.chars = append(r.chars[:i], r.chars[i+1:]...)
	r.reindexLocked()
	if r.active == id {
		r.active = ""
	}
	return r.persistLocked()
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (r *Roster) ToggleFavorite(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return false, err
	}
	c.IsFavorite = !c.IsFavorite
	r.touchLocked(c)
	return c.IsFavorite, r.persistLocked()
}

// SetActiveCharacter points the next SendMessage at id. An empty id clears
// the pointer. The pointer is never persisted.
func (r *Roster) SetActiveCharacter(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		r.active = ""
		return nil
	}
	if _, ok := r.index[id]; !ok {
		return notFound(id)
	}
	r.active = id
	return nil
}

// ActiveCharacter returns a copy of the active character, or nil.
func (r *Roster) ActiveCharacter() *store.Character {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[r.active]; ok {
		return r.chars[i].Clone()
	}
	return nil
}

// =============================================================================
// Conversations
// =============================================================================

// StartConversation opens a fresh, empty conversation for the character so
// the next message begins a new session.
func (r *Roster) StartConversation(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return "", err
	}
	conv := r.openConversationLocked(c)
	r.touchLocked(c)
	return conv.ID, r.persistLocked()
}

// SendMessage appends a user message to the active character's current
// conversation, waits for a generated reply and appends it.
//
// The roster lock is released while the reply is generated. Only one reply
// may be pending per character; a second call meanwhile fails with
// REPLY_PENDING. When generation fails the user message stays and no reply is
// appended. A reply for a character deleted meanwhile is dropped.
func (r *Roster) SendMessage(ctx context.Context, text string) (*Exchange, error) {
	r.mu.Lock()
	id := r.active
	if id == "" {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeValidation, "no active character")
	}
	c, err := r.lookupLocked(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeValidation, "message text is empty")
	}
	if r.inflight[id] {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeReplyPending, "a reply is already pending").
			WithMetadata("character_id", id)
	}
	if r.replier == nil {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeGenerationFailed, "no reply generator configured")
	}

	conv := r.currentConversationLocked(c)
	userMsg := r.appendLocked(conv, store.SenderUser, text)
	r.touchLocked(c)
	r.inflight[id] = true

	req := reply.Request{
		CharacterID: c.ID,
		Name:        c.Name,
		Personality: c.Personality,
		Backstory:   c.Backstory,
		History:     append([]store.Message{}, conv.Messages...),
	}
	ex := &Exchange{CharacterID: id, ConversationID: conv.ID, User: userMsg}
	firstErr := r.persistLocked()
	r.mu.Unlock()

	out, genErr := r.replier.Dispatch(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)

	if genErr != nil {
		return ex, errors.Join(genErr, firstErr)
	}

	c, err = r.lookupLocked(id)
	if err != nil {
		r.log.WithCharacter(id).Warn("dropping reply for deleted character")
		return ex, err
	}
	conv = r.conversationLocked(c, ex.ConversationID)
	if conv == nil {
		// Cleared while the reply was pending.
		conv = r.openConversationLocked(c)
		ex.ConversationID = conv.ID
	}
	msg := r.appendLocked(conv, store.SenderCharacter, out)
	r.touchLocked(c)
	ex.Reply = &msg
	return ex, r.persistLocked()
}

// GetMessages returns every message of the character across all of its
// conversations, stably sorted by timestamp.
func (r *Roster) GetMessages(id string) ([]store.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return c.Messages(), nil
}

// ClearConversation discards all of the character's conversations. The
// character itself, including UpdatedAt, is left as is.
func (r *Roster) ClearConversation(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	c.Conversations = []store.Conversation{}
	return r.persistLocked()
}

// =============================================================================
// Queries
// =============================================================================

// Get returns a copy of the character.
func (r *Roster) Get(id string) (*store.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// List returns copies of all characters in insertion order.
func (r *Roster) List() []*store.Character {
	return r.Snapshot().Characters
}

// Len returns the number of characters.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chars)
}

// Snapshot returns a deep copy of the collection for read-side engines.
func (r *Roster) Snapshot() *store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &store.Snapshot{Characters: r.chars}
	return snap.Clone()
}

// =============================================================================
// Import / export
// =============================================================================

// ExportData serializes the whole collection in the durable record format.
func (r *Roster) ExportData() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return store.EncodeSnapshot(&store.Snapshot{Characters: r.chars})
}

// ImportData replaces the collection with the blob's characters. An invalid
// blob leaves the roster untouched.
func (r *Roster) ImportData(blob []byte) error {
	snap, err := store.DecodeSnapshot(blob)
	if err != nil {
		r.log.LogError(err, "import rejected")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.replaceLocked(snap.Characters)
	r.log.Info("import applied", "characters", len(r.chars))
	return r.persistLocked()
}

// Reset removes every character.
func (r *Roster) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.replaceLocked(nil)
	return r.persistLocked()
}

// =============================================================================
// Internals (callers hold r.mu)
// =============================================================================

func (r *Roster) lookupLocked(id string) (*store.Character, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.chars[i], nil
}

func (r *Roster) replaceLocked(chars []*store.Character) {
	if chars == nil {
		chars = []*store.Character{}
	}
	r.chars = chars
	r.reindexLocked()
	if _, ok := r.index[r.active]; !ok {
		r.active = ""
	}
}

func (r *Roster) reindexLocked() {
	r.index = make(map[string]int, len(r.chars))
	for i, c := range r.chars {
		r.index[c.ID] = i
	}
}

func (r *Roster) touchLocked(c *store.Character) {
	now := r.now().UnixMilli()
	if now < c.UpdatedAt {
		now = c.UpdatedAt
	}
	c.UpdatedAt = now
}

// currentConversationLocked returns the last conversation, opening one when
// the character has none.
func (r *Roster) currentConversationLocked(c *store.Character) *store.Conversation {
	if n := len(c.Conversations); n > 0 {
		return &c.Conversations[n-1]
	}
	return r.openConversationLocked(c)
}

func (r *Roster) openConversationLocked(c *store.Character) *store.Conversation {
	c.Conversations = append(c.Conversations, store.Conversation{
		ID:        ulid.Make().String(),
		CreatedAt: r.now().UnixMilli(),
		Messages:  []store.Message{},
	})
	return &c.Conversations[len(c.Conversations)-1]
}

func (r *Roster) conversationLocked(c *store.Character, id string) *store.Conversation {
	for i := range c.Conversations {
		if c.Conversations[i].ID == id {
			return &c.Conversations[i]
		}
	}
	return nil
}

// appendLocked adds a message stamped no earlier than the conversation's last
// message.
func (r *Roster) appendLocked(conv *store.Conversation, sender store.Sender, text string) store.Message {
	ts := r.now().UnixMilli()
	if last := conv.LastMessage(); last != nil && last.Timestamp > ts {
		ts = last.Timestamp
	}
	msg := store.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: ts,
	}
	conv.Messages = append(conv.Messages, msg)
	return msg
}

func (r *Roster) persistLocked() error {
	if r.storer == nil {
		return nil
	}
	data, err := store.EncodeSnapshot(&store.Snapshot{Characters: r.chars})
	if err != nil {
		return err
	}
	if err := r.storer.Save(context.Background(), r.key, data); err != nil {
		r.log.LogError(err, "persist failed, change kept in memory", "key", r.key, "bytes", len(data))
		return apperrors.Wrap(err, apperrors.CodePersistence, "save "+r.key)
	}
	return nil
}

func notFound(id string) error {
	return apperrors.Newf(apperrors.CodeNotFound, "character %q not found", id).
		WithMetadata("character_id", id)
}
