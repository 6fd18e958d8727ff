// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. The `json:"..."` tags decide
// the wire shape that the Unity client parses.
package model

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Default values of a Progress Record field that the client left out.
const (
	DefaultUpgradeCost             = 200
	DefaultUpgradeLevel            = 1
	DefaultFireType                = "Basic"
	DefaultClickBonus              = 0
	DefaultAdRewardMultiplier      = 1.75
	DefaultOfflineRewardMultiplier = 46
)

// ProgressRecord is the typed view of a player's game state.
//
// SCHEMA IS ADVISORY:
// The server never stores a ProgressRecord. It stores the exact JSON object
// the client pushed (see RawProgress) so unknown fields survive a round trip
// and missing fields are not silently filled in. ProgressRecord only exists
// for code that wants to READ the state: DecodeProgress applies the defaults
// at that moment.
type ProgressRecord struct {
	UpgradeCost             float64          `json:"upgradeCost"`
	UpgradeLevel            int64            `json:"upgradeLevel"`
	CurrentFireType         string           `json:"currentFireType"`
	ClickBonus              float64          `json:"clickBonus"`
	AdRewardMultiplier      float64          `json:"adRewardMultiplier"`
	OfflineRewardMultiplier float64          `json:"offlineRewardMultiplier"`
	FireCounts              []FireCount      `json:"fireCounts"`
	UnlockedArtifacts       []ArtifactUnlock `json:"unlockedArtifacts"`
	EquippedArtifacts       []string         `json:"equippedArtifacts"`
}

// FireCount is how many fires of one type the player owns.
type FireCount struct {
	FireType string  `json:"fireType"`
	Count    float64 `json:"count"`
}

// ArtifactUnlock records whether an artifact type has been unlocked.
type ArtifactUnlock struct {
	ArtifactType string `json:"artifactType"`
	IsUnlocked   bool   `json:"isUnlocked"`
}

// RawProgress is a progress payload exactly as the client sent it.
// It is always a JSON object; anything else is rejected before storage.
type RawProgress = json.RawMessage

// EmptyProgress is what a progress pull returns when nothing was ever synced.
// Callers must read it as "no saved progress", not as a zeroed record.
var EmptyProgress = RawProgress(`{}`)

// DefaultProgress returns a record with every field at its default.
func DefaultProgress() ProgressRecord {
	return ProgressRecord{
		UpgradeCost:             DefaultUpgradeCost,
		UpgradeLevel:            DefaultUpgradeLevel,
		CurrentFireType:         DefaultFireType,
		ClickBonus:              DefaultClickBonus,
		AdRewardMultiplier:      DefaultAdRewardMultiplier,
		OfflineRewardMultiplier: DefaultOfflineRewardMultiplier,
		FireCounts:              []FireCount{},
		UnlockedArtifacts:       []ArtifactUnlock{},
		EquippedArtifacts:       []string{},
	}
}

// IsProgressObject reports whether raw is a syntactically valid JSON object.
// No field is inspected: an empty object is a valid progress payload.
func IsProgressObject(raw []byte) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	return gjson.ParseBytes(raw).IsObject()
}

// DecodeProgress reads the known fields out of a stored payload, falling
// back to the defaults for anything missing or of the wrong JSON type.
//
// WHY gjson AND NOT json.Unmarshal?
// Unmarshal into ProgressRecord fails as a whole when a single field has an
// unexpected type (e.g. "upgradeLevel": "3"). gjson lets us look at one path
// at a time and default only the broken field.
func DecodeProgress(raw []byte) ProgressRecord {
	rec := DefaultProgress()
	if !IsProgressObject(raw) {
		return rec
	}
	doc := gjson.ParseBytes(raw)

	rec.UpgradeCost = number(doc, "upgradeCost", rec.UpgradeCost)
	rec.UpgradeLevel = int64(number(doc, "upgradeLevel", float64(rec.UpgradeLevel)))
	rec.ClickBonus = number(doc, "clickBonus", rec.ClickBonus)
	rec.AdRewardMultiplier = number(doc, "adRewardMultiplier", rec.AdRewardMultiplier)
	rec.OfflineRewardMultiplier = number(doc, "offlineRewardMultiplier", rec.OfflineRewardMultiplier)
	if v := doc.Get("currentFireType"); v.Type == gjson.String {
		rec.CurrentFireType = v.String()
	}

	doc.Get("fireCounts").ForEach(func(_, v gjson.Result) bool {
		rec.FireCounts = append(rec.FireCounts, FireCount{
			FireType: v.Get("fireType").String(),
			Count:    v.Get("count").Float(),
		})
		return true
	})
	doc.Get("unlockedArtifacts").ForEach(func(_, v gjson.Result) bool {
		rec.UnlockedArtifacts = append(rec.UnlockedArtifacts, ArtifactUnlock{
			ArtifactType: v.Get("artifactType").String(),
			IsUnlocked:   v.Get("isUnlocked").Bool(),
		})
		return true
	})
	doc.Get("equippedArtifacts").ForEach(func(_, v gjson.Result) bool {
		rec.EquippedArtifacts = append(rec.EquippedArtifacts, v.String())
		return true
	})

	return rec
}

func number(doc gjson.Result, path string, def float64) float64 {
	v := doc.Get(path)
	if v.Type != gjson.Number {
		return def
	}
	return v.Float()
}
