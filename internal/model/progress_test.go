package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProgressObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"empty object", `{}`, true},
		{"full record", `{"upgradeCost":250,"fireCounts":[{"fireType":"Blue","count":3}]}`, true},
		{"unknown fields", `{"somethingNew":true}`, true},
		{"array", `[1,2,3]`, false},
		{"string", `"progress"`, false},
		{"null", `null`, false},
		{"truncated", `{"upgradeCost":`, false},
		{"empty body", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProgressObject([]byte(tt.raw)))
		})
	}
}

func TestDecodeProgress_EmptyObjectGetsDefaults(t *testing.T) {
	rec := DecodeProgress([]byte(`{}`))

	assert.Equal(t, DefaultProgress(), rec)
	assert.Equal(t, float64(200), rec.UpgradeCost)
	assert.Equal(t, int64(1), rec.UpgradeLevel)
	assert.Equal(t, "Basic", rec.CurrentFireType)
	assert.Equal(t, 1.75, rec.AdRewardMultiplier)
	assert.Equal(t, float64(46), rec.OfflineRewardMultiplier)
}

func TestDecodeProgress_ReadsEveryField(t *testing.T) {
	raw := []byte(`{
		"upgradeCost": 1250.5,
		"upgradeLevel": 7,
		"currentFireType": "Blue",
		"clickBonus": 12,
		"adRewardMultiplier": 2,
		"offlineRewardMultiplier": 60,
		"fireCounts": [{"fireType": "Basic", "count": 40}, {"fireType": "Blue", "count": 3}],
		"unlockedArtifacts": [{"artifactType": "Wick", "isUnlocked": true}],
		"equippedArtifacts": ["Wick"]
	}`)

	rec := DecodeProgress(raw)

	assert.Equal(t, 1250.5, rec.UpgradeCost)
	assert.Equal(t, int64(7), rec.UpgradeLevel)
	assert.Equal(t, "Blue", rec.CurrentFireType)
	assert.Equal(t, float64(12), rec.ClickBonus)
	assert.Equal(t, float64(2), rec.AdRewardMultiplier)
	assert.Equal(t, float64(60), rec.OfflineRewardMultiplier)
	assert.Equal(t, []FireCount{{"Basic", 40}, {"Blue", 3}}, rec.FireCounts)
	assert.Equal(t, []ArtifactUnlock{{"Wick", true}}, rec.UnlockedArtifacts)
	assert.Equal(t, []string{"Wick"}, rec.EquippedArtifacts)
}

func TestDecodeProgress_WrongTypeFallsBackPerField(t *testing.T) {
	rec := DecodeProgress([]byte(`{"upgradeLevel":"3","upgradeCost":900}`))

	assert.Equal(t, int64(DefaultUpgradeLevel), rec.UpgradeLevel)
	assert.Equal(t, float64(900), rec.UpgradeCost)
}

func TestDecodeProgress_NotAnObject(t *testing.T) {
	assert.Equal(t, DefaultProgress(), DecodeProgress([]byte(`[1,2]`)))
}
