// Package stashapi provides the client for the public stash tab feed of the
// upstream trade API, plus the wire types the rest of the system consumes.
//
// Field names follow the API. Unknown fields are ignored on decode; the
// handful of fields the store depends on are validated explicitly.
package stashapi

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Envelope is the top-level feed response.
type Envelope struct {
	NextChangeID string  `json:"next_change_id"`
	Stashes      []Stash `json:"stashes"`
}

// Stash is a stash tab: a collection of items in an x/y grid. The display
// name ("stash") is free text and may itself carry a price tag.
type Stash struct {
	ID                *string `json:"id"`
	AccountName       string  `json:"accountName"`
	LastCharacterName string  `json:"lastCharacterName"`
	Name              string  `json:"stash"`
	Type              *string `json:"stashType"`
	Public            *bool   `json:"public"`
	Items             []Item  `json:"items"`
}

// Validate checks the fields the store requires on every stash.
func (s *Stash) Validate() error {
	switch {
	case s.ID == nil || *s.ID == "":
		return fmt.Errorf("stash missing required field id")
	case s.Type == nil:
		return fmt.Errorf("stash %s missing required field stashType", *s.ID)
	case s.Public == nil:
		return fmt.Errorf("stash %s missing required field public", *s.ID)
	}
	return nil
}

// Item is the core item structure. JSON-bag fields (mods, sockets,
// requirements, category) are carried as raw JSON and passed through to the
// store unchanged.
type Item struct {
	ID        *string `json:"id"`
	H         *int    `json:"h"`
	W         *int    `json:"w"`
	X         *int    `json:"x"`
	Y         *int    `json:"y"`
	FrameType *int    `json:"frameType"`
	Icon      *string `json:"icon"`
	Identified *bool  `json:"identified"`
	Ilvl      *int    `json:"ilvl"`
	League    *string `json:"league"`
	Name      *string `json:"name"`
	TypeLine  *string `json:"typeLine"`
	Verified  *bool   `json:"verified"`

	AbyssJewel            bool            `json:"abyssJewel"`
	ArtFilename           string          `json:"artFilename"`
	Category              json.RawMessage `json:"category"`
	Corrupted             bool            `json:"corrupted"`
	CosmeticMods          json.RawMessage `json:"cosmeticMods"`
	CraftedMods           json.RawMessage `json:"craftedMods"`
	DescrText             string          `json:"descrText"`
	Duplicated            bool            `json:"duplicated"`
	Elder                 bool            `json:"elder"`
	EnchantMods           json.RawMessage `json:"enchantMods"`
	ExplicitMods          json.RawMessage `json:"explicitMods"`
	FlavourText           json.RawMessage `json:"flavourText"`
	ImplicitMods          json.RawMessage `json:"implicitMods"`
	InventoryID           string          `json:"inventoryId"`
	IsRelic               bool            `json:"isRelic"`
	LockedToCharacter     bool            `json:"lockedToCharacter"`
	MaxStackSize          *int            `json:"maxStackSize"`
	NextLevelRequirements json.RawMessage `json:"nextLevelRequirements"`
	Note                  string          `json:"note"`
	Properties            json.RawMessage `json:"properties"`
	ProphecyDiffText      string          `json:"prophecyDiffText"`
	ProphecyText          string          `json:"prophecyText"`
	Requirements          json.RawMessage `json:"requirements"`
	SecDescrText          string          `json:"secDescrText"`
	Shaper                bool            `json:"shaper"`
	Sockets               json.RawMessage `json:"sockets"`
	StackSize             *int            `json:"stackSize"`
	Support               bool            `json:"support"`
	TalismanTier          *int            `json:"talismanTier"`
	UtilityMods           json.RawMessage `json:"utilityMods"`
}

// Validate checks the fields the store requires on every item.
func (i *Item) Validate() error {
	if i.ID == nil || *i.ID == "" {
		return fmt.Errorf("item missing required field id")
	}
	required := map[string]bool{
		"h":          i.H != nil,
		"w":          i.W != nil,
		"x":          i.X != nil,
		"y":          i.Y != nil,
		"frameType":  i.FrameType != nil,
		"icon":       i.Icon != nil,
		"identified": i.Identified != nil,
		"ilvl":       i.Ilvl != nil,
		"league":     i.League != nil,
		"name":       i.Name != nil,
		"typeLine":   i.TypeLine != nil,
		"verified":   i.Verified != nil,
	}
	for field, present := range required {
		if !present {
			return fmt.Errorf("item %s missing required field %s", *i.ID, field)
		}
	}
	return nil
}

// Item names arrive wrapped in presentation markup like
// "<<set:MS>><<set:M>><<set:S>>The Goddess Bound".
var markupRe = regexp.MustCompile(`^<<.*>>`)

// CleanName returns the item name with leading markup stripped.
func (i *Item) CleanName() string {
	if i.Name == nil {
		return ""
	}
	return markupRe.ReplaceAllString(*i.Name, "")
}

// CleanTypeLine returns the item type line with leading markup stripped.
func (i *Item) CleanTypeLine() string {
	if i.TypeLine == nil {
		return ""
	}
	return markupRe.ReplaceAllString(*i.TypeLine, "")
}
