// Package session owns the authenticated connection to the board service
// and the fetched snapshot of boards, lists and cards.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lherron/ttags/internal/auth"
	"github.com/lherron/ttags/internal/domain"
	"github.com/lherron/ttags/internal/logging"
	"github.com/lherron/ttags/internal/trello"
)

// ErrAuthenticationRequired is returned by data access before a login.
var ErrAuthenticationRequired = errors.New("authentication required: run login first")

const defaultConcurrency = 4

// Remote is the part of the board service a session talks to.
type Remote interface {
	ListBoards(ctx context.Context) ([]trello.RawBoard, error)
	ListCards(ctx context.Context, listID string) ([]trello.RawCard, error)
	AddLabel(ctx context.Context, cardID, labelID string) error
	RemoveLabel(ctx context.Context, cardID, labelID string) error
}

// ClientFactory builds a Remote for a set of credentials.
type ClientFactory func(creds auth.Credentials) Remote

// Options tune a Session.
type Options struct {
	// Concurrency bounds parallel card fetches during a refresh.
	Concurrency int
	Log         logrus.FieldLogger
}

// Snapshot is a copy of the fetched data.
type Snapshot struct {
	Boards []domain.Board `json:"boards" yaml:"boards"`
	Lists  []domain.List  `json:"lists" yaml:"lists"`
	Cards  []domain.Card  `json:"cards" yaml:"cards"`
}

// Session holds credentials, the snapshot and the dirty flag. A refresh
// takes the session lock for its whole duration.
type Session struct {
	mu          sync.Mutex
	newClient   ClientFactory
	concurrency int
	log         logrus.FieldLogger

	creds  auth.Credentials
	client Remote

	boards []domain.Board
	lists  []domain.List
	cards  []domain.Card
	dirty  bool
	loaded bool
}

// New returns an unauthenticated session.
func New(factory ClientFactory, opts Options) *Session {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Session{
		newClient:   factory,
		concurrency: concurrency,
		log:         logging.OrDiscard(opts.Log),
	}
}

// Login runs the authorizer and, on success, fetches the initial snapshot.
// A failed handshake leaves the session as it was.
func (s *Session) Login(ctx context.Context, a auth.Authorizer) error {
	creds, err := a.Authorize(ctx)
	if err != nil {
		return err
	}
	if err := s.UseCredentials(creds); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// UseCredentials authenticates the session without fetching anything.
// The snapshot is dropped so the next read refreshes.
func (s *Session) UseCredentials(creds auth.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("%w: incomplete credentials", auth.ErrAuthDenied)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.client = s.newClient(creds)
	s.reset()
	return nil
}

// Logout forgets the credentials and the snapshot.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = auth.Credentials{}
	s.client = nil
	s.reset()
}

func (s *Session) reset() {
	s.boards, s.lists, s.cards = nil, nil, nil
	s.dirty = false
	s.loaded = false
}

// Authenticated reports whether a login succeeded.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Credentials returns the active credentials.
func (s *Session) Credentials() auth.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// Refresh clears the snapshot and fetches it again: boards first, then the
// cards of every list. Dirty is cleared only when everything arrived.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.client == nil {
		return ErrAuthenticationRequired
	}
	s.boards, s.lists, s.cards = nil, nil, nil
	s.loaded = false

	rawBoards, err := s.client.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("fetch boards: %w", err)
	}
	boards := trello.NormalizeBoards(rawBoards)

	var lists []domain.List
	for _, b := range boards {
		lists = append(lists, trello.ExtractLists(b)...)
	}

	perList := make([][]domain.Card, len(lists))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, l := range lists {
		g.Go(func() error {
			raw, err := s.client.ListCards(gctx, l.ID)
			if err != nil {
				return fmt.Errorf("fetch cards for list %s: %w", l.ID, err)
			}
			perList[i] = trello.NormalizeCards(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var cards []domain.Card
	for _, cs := range perList {
		cards = append(cards, cs...)
	}

	s.boards, s.lists, s.cards = boards, lists, cards
	s.dirty = false
	s.loaded = true
	s.log.WithFields(logrus.Fields{
		"boards": len(boards),
		"lists":  len(lists),
		"cards":  len(cards),
	}).Info("snapshot refreshed")
	return nil
}

// EnsureFresh refreshes when the snapshot is dirty or was never fetched.
func (s *Session) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return ErrAuthenticationRequired
	}
	if s.loaded && !s.dirty {
		return nil
	}
	return s.refreshLocked(ctx)
}

// MarkDirty flags the snapshot as possibly stale.
func (s *Session) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Dirty reports whether a write happened since the last refresh.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Snapshot returns a copy of the fetched data.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Boards: append([]domain.Board(nil), s.boards...),
		Lists:  append([]domain.List(nil), s.lists...),
		Cards:  append([]domain.Card(nil), s.cards...),
	}
}

// Cards returns a copy of the fetched cards.
func (s *Session) Cards() []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Card(nil), s.cards...)
}

func (s *Session) remote() (Remote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrAuthenticationRequired
	}
	return s.client, nil
}

// AddLabel attaches a label through the active client.
func (s *Session) AddLabel(ctx context.Context, cardID, labelID string) error {
	client, err := s.remote()
	if err != nil {
		return err
	}
	return client.AddLabel(ctx, cardID, labelID)
}

// RemoveLabel detaches a label through the active client.
func (s *Session) RemoveLabel(ctx context.Context, cardID, labelID string) error {
	client, err := s.remote()
	if err != nil {
		return err
	}
	return client.RemoveLabel(ctx, cardID, labelID)
}
