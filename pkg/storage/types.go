package storage

import "time"

// Profile is a saved program source: the sheet URL plus cached
// display metadata. At most one profile exists per URL.
type Profile struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	UnitName  string    `json:"unitName"`
	StakeName string    `json:"stakeName"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Settings keys. String-valued, one row per key.
const (
	settingSelectedProfile = "selected_profile_id"
	settingLegacySheetURL  = "sheet_url"
	settingLastRenderAt    = "last_render_at"
)

// Name defaults used when a sheet doesn't carry its own metadata.
const (
	DefaultUnitName  = "Unknown Unit"
	DefaultStakeName = "Unknown Stake"
)
