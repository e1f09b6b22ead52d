package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
	"github.com/aristath/poefixer/internal/modules/stash"
	"github.com/aristath/poefixer/internal/stashapi"
)

// Service pulls the public stash feed page by page and persists each page in
// one transaction. The feed cursor is saved after every committed page, so a
// restart resumes at the first page it has not durably stored.
type Service struct {
	db      *database.DB
	client  *stashapi.Client
	cursors *stashapi.CursorStore
	log     zerolog.Logger
}

// NewService creates a feed ingestion service.
func NewService(db *database.DB, client *stashapi.Client, cursors *stashapi.CursorStore, log zerolog.Logger) *Service {
	return &Service{
		db:      db,
		client:  client,
		cursors: cursors,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Run ingests feed pages until the context is cancelled. An empty page means
// we have caught up with the head of the feed; the client's rate limiting
// already spaces out the polling, so we just keep asking.
func (s *Service) Run(ctx context.Context) error {
	cursor, err := s.cursors.Load()
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		envelope, err := s.client.Next(ctx, cursor)
		if err != nil {
			return err
		}

		start := time.Now()
		stashes, items, err := s.storePage(envelope)
		if err != nil {
			return err
		}

		s.log.Info().
			Str("cursor", cursor).
			Int("stashes", stashes).
			Int("items", items).
			Dur("took", time.Since(start)).
			Msg("Stored feed page")

		cursor = envelope.NextChangeID
		if err := s.cursors.Save(cursor); err != nil {
			return err
		}
	}
}

// storePage writes every stash of one feed page inside a single transaction
// and returns the stash and item counts. Stashes the upstream rejects as
// structurally invalid are skipped with a warning rather than poisoning the
// page.
func (s *Service) storePage(envelope *stashapi.Envelope) (int, int, error) {
	stashes := 0
	items := 0

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		repo := stash.NewRepository(tx, s.log)
		for i := range envelope.Stashes {
			st := &envelope.Stashes[i]
			if err := st.Validate(); err != nil {
				s.log.Warn().Err(err).Msg("Skipping malformed stash")
				continue
			}
			if _, err := repo.UpsertStash(st, true, false); err != nil {
				return err
			}
			stashes++
			items += len(st.Items)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return stashes, items, nil
}
