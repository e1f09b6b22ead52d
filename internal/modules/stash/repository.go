package stash

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
	"github.com/aristath/poefixer/internal/stashapi"
)

// Repository handles stash and item database operations.
type Repository struct {
	db  database.DBTX
	log zerolog.Logger
	now func() int64
}

// NewRepository creates a new stash repository.
func NewRepository(db database.DBTX, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "stash").Logger(),
		now: func() int64 { return time.Now().Unix() },
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	bound := *r
	bound.db = tx
	return &bound
}

// WithClock overrides the repository clock. Tests use it to pin timestamps.
func (r *Repository) WithClock(now func() int64) *Repository {
	bound := *r
	bound.now = now
	return &bound
}

// UpsertStash inserts or updates a stash row from the feed. When withItems is
// set it recurses into the stash's items; unless keepItems is set, every item
// previously recorded for the stash is first marked inactive, so that items
// absent from this version of the stash stay inactive while re-observed ones
// flip back to active.
func (r *Repository) UpsertStash(s *stashapi.Stash, withItems, keepItems bool) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, fmt.Errorf("invalid stash: %w", err)
	}

	now := r.now()
	_, err := r.db.Exec(`
		INSERT INTO stash (api_id, account_name, last_character_name, stash_name,
			stash_type, public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(api_id) DO UPDATE SET
			account_name = excluded.account_name,
			last_character_name = excluded.last_character_name,
			stash_name = excluded.stash_name,
			stash_type = excluded.stash_type,
			public = excluded.public,
			updated_at = excluded.updated_at`,
		*s.ID, s.AccountName, s.LastCharacterName, s.Name,
		*s.Type, boolToInt(*s.Public), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert stash %s: %w", *s.ID, err)
	}

	var stashID int64
	err = r.db.QueryRow("SELECT id FROM stash WHERE api_id = ?", *s.ID).Scan(&stashID)
	if err != nil {
		return 0, fmt.Errorf("failed to read back stash %s: %w", *s.ID, err)
	}

	r.log.Debug().Int64("stash_id", stashID).Str("api_id", *s.ID).Msg("Stash upsert complete")

	if withItems {
		if !keepItems {
			if err := r.invalidateStashItems(stashID); err != nil {
				return 0, err
			}
		}
		for idx := range s.Items {
			if _, err := r.UpsertItem(&s.Items[idx], stashID); err != nil {
				return 0, err
			}
		}
	}

	return stashID, nil
}

// invalidateStashItems marks all items in this stash as inactive, pending update.
func (r *Repository) invalidateStashItems(stashID int64) error {
	_, err := r.db.Exec("UPDATE item SET active = 0 WHERE stash_id = ?", stashID)
	if err != nil {
		return fmt.Errorf("failed to invalidate items of stash %d: %w", stashID, err)
	}
	return nil
}

// UpsertItem inserts or updates one item row. Leading markup is stripped from
// name and typeLine before persisting; re-observed items are set active.
func (r *Repository) UpsertItem(item *stashapi.Item, stashID int64) (int64, error) {
	if err := item.Validate(); err != nil {
		return 0, fmt.Errorf("invalid item: %w", err)
	}

	now := r.now()
	_, err := r.db.Exec(`
		INSERT INTO item (api_id, stash_id, h, w, x, y,
			abyss_jewel, art_filename, category, corrupted, cosmetic_mods,
			crafted_mods, descr_text, duplicated, elder, enchant_mods,
			explicit_mods, flavour_text, frame_type, icon, identified, ilvl,
			implicit_mods, inventory_id, is_relic, league, locked_to_character,
			max_stack_size, name, next_level_requirements, note, properties,
			prophecy_diff_text, prophecy_text, requirements, sec_descr_text,
			shaper, sockets, stack_size, support, talisman_tier, type_line,
			utility_mods, verified, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, 1, ?, ?)
		ON CONFLICT(api_id) DO UPDATE SET
			stash_id = excluded.stash_id,
			h = excluded.h, w = excluded.w, x = excluded.x, y = excluded.y,
			abyss_jewel = excluded.abyss_jewel,
			art_filename = excluded.art_filename,
			category = excluded.category,
			corrupted = excluded.corrupted,
			cosmetic_mods = excluded.cosmetic_mods,
			crafted_mods = excluded.crafted_mods,
			descr_text = excluded.descr_text,
			duplicated = excluded.duplicated,
			elder = excluded.elder,
			enchant_mods = excluded.enchant_mods,
			explicit_mods = excluded.explicit_mods,
			flavour_text = excluded.flavour_text,
			frame_type = excluded.frame_type,
			icon = excluded.icon,
			identified = excluded.identified,
			ilvl = excluded.ilvl,
			implicit_mods = excluded.implicit_mods,
			inventory_id = excluded.inventory_id,
			is_relic = excluded.is_relic,
			league = excluded.league,
			locked_to_character = excluded.locked_to_character,
			max_stack_size = excluded.max_stack_size,
			name = excluded.name,
			next_level_requirements = excluded.next_level_requirements,
			note = excluded.note,
			properties = excluded.properties,
			prophecy_diff_text = excluded.prophecy_diff_text,
			prophecy_text = excluded.prophecy_text,
			requirements = excluded.requirements,
			sec_descr_text = excluded.sec_descr_text,
			shaper = excluded.shaper,
			sockets = excluded.sockets,
			stack_size = excluded.stack_size,
			support = excluded.support,
			talisman_tier = excluded.talisman_tier,
			type_line = excluded.type_line,
			utility_mods = excluded.utility_mods,
			verified = excluded.verified,
			active = 1,
			updated_at = excluded.updated_at`,
		*item.ID, stashID, *item.H, *item.W, *item.X, *item.Y,
		boolToInt(item.AbyssJewel), item.ArtFilename, jsonOrNil(item.Category),
		boolToInt(item.Corrupted), jsonOrNil(item.CosmeticMods),
		jsonOrNil(item.CraftedMods), item.DescrText, boolToInt(item.Duplicated),
		boolToInt(item.Elder), jsonOrNil(item.EnchantMods),
		jsonOrNil(item.ExplicitMods), jsonOrNil(item.FlavourText),
		*item.FrameType, *item.Icon, boolToInt(*item.Identified), *item.Ilvl,
		jsonOrNil(item.ImplicitMods), item.InventoryID, boolToInt(item.IsRelic),
		*item.League, boolToInt(item.LockedToCharacter),
		item.MaxStackSize, item.CleanName(), jsonOrNil(item.NextLevelRequirements),
		item.Note, jsonOrNil(item.Properties),
		item.ProphecyDiffText, item.ProphecyText, jsonOrNil(item.Requirements),
		item.SecDescrText,
		boolToInt(item.Shaper), jsonOrNil(item.Sockets), item.StackSize,
		boolToInt(item.Support), item.TalismanTier, item.CleanTypeLine(),
		jsonOrNil(item.UtilityMods), boolToInt(*item.Verified), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert item %s: %w", *item.ID, err)
	}

	var itemID int64
	err = r.db.QueryRow("SELECT id FROM item WHERE api_id = ?", *item.ID).Scan(&itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to read back item %s: %w", *item.ID, err)
	}

	return itemID, nil
}

// GetByAPIID returns a stash by its external id, or nil when absent.
func (r *Repository) GetByAPIID(apiID string) (*Stash, error) {
	row := r.db.QueryRow(`
		SELECT id, api_id, account_name, last_character_name, stash_name,
			stash_type, public, created_at, updated_at
		FROM stash WHERE api_id = ?`, apiID)

	var s Stash
	var accountName, lastCharacter, name sql.NullString
	err := row.Scan(&s.ID, &s.APIID, &accountName, &lastCharacter, &name,
		&s.Type, &s.Public, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stash by api_id: %w", err)
	}
	s.AccountName = accountName.String
	s.LastCharacterName = lastCharacter.String
	s.Name = name.String
	return &s, nil
}

// GetItemByAPIID returns the fields of an item the processor cares about,
// or nil when absent.
func (r *Repository) GetItemByAPIID(apiID string) (*Item, error) {
	row := r.db.QueryRow(`
		SELECT id, api_id, stash_id, name, type_line, league,
			COALESCE(note, ''), COALESCE(category, ''), active,
			created_at, updated_at
		FROM item WHERE api_id = ?`, apiID)

	var it Item
	err := row.Scan(&it.ID, &it.APIID, &it.StashID, &it.Name, &it.TypeLine,
		&it.League, &it.Note, &it.Category, &it.Active, &it.CreatedAt,
		&it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item by api_id: %w", err)
	}
	return &it, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonOrNil renders a raw JSON bag as text for storage, NULL when absent.
func jsonOrNil(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
