package testing

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/poefixer/internal/stashapi"
)

// NewStashFixture returns a valid public stash with no items. Callers append
// items as needed.
func NewStashFixture(apiID string) *stashapi.Stash {
	stashType := "PremiumStash"
	public := true
	return &stashapi.Stash{
		ID:                &apiID,
		AccountName:       "testacct",
		LastCharacterName: "TestChar",
		Name:              "shop",
		Type:              &stashType,
		Public:            &public,
	}
}

// NewItemFixture returns a valid item with every required field populated.
// The note is empty; price tests set it explicitly.
func NewItemFixture(apiID, name, typeLine string) stashapi.Item {
	h, w, x, y := 1, 1, 0, 0
	frameType, ilvl := 0, 1
	icon := "https://web.poecdn.com/image/test.png"
	identified, verified := true, false
	league := "Standard"
	return stashapi.Item{
		ID:         &apiID,
		H:          &h,
		W:          &w,
		X:          &x,
		Y:          &y,
		FrameType:  &frameType,
		Icon:       &icon,
		Identified: &identified,
		Ilvl:       &ilvl,
		League:     &league,
		Name:       &name,
		TypeLine:   &typeLine,
		Verified:   &verified,
	}
}

// NewCurrencyItemFixture returns an item categorized as currency, the shape
// the sale extractor keys on.
func NewCurrencyItemFixture(apiID, typeLine, note string) stashapi.Item {
	item := NewItemFixture(apiID, "", typeLine)
	item.Category = json.RawMessage(`{"currency":[]}`)
	item.Note = note
	stack, max := 7, 10
	item.StackSize = &stack
	item.MaxStackSize = &max
	return item
}

// FeedPage builds a one-stash feed envelope around the given items.
func FeedPage(nextChangeID string, items ...stashapi.Item) *stashapi.Envelope {
	st := NewStashFixture(fmt.Sprintf("stash-%s", nextChangeID))
	st.Items = items
	return &stashapi.Envelope{
		NextChangeID: nextChangeID,
		Stashes:      []stashapi.Stash{*st},
	}
}
