package domain

import "time"

// AssetType classifies a scan target. Closed enumeration.
type AssetType string

const (
	AssetServer        AssetType = "server"
	AssetAPI           AssetType = "api"
	AssetLoadBalancer  AssetType = "load_balancer"
	AssetApplication   AssetType = "application"
	AssetNetworkDevice AssetType = "network_device"
	AssetDependency    AssetType = "dependency"
	AssetContainer     AssetType = "container"
	AssetCode          AssetType = "code"
	AssetOther         AssetType = "other"
)

// Asset is a unique scan target owned by a user. The natural key is
// (UserID, Identifier); re-ingestion advances LastSeen instead of
// duplicating the row.
type Asset struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Identifier string         `json:"asset_identifier"`
	Type       AssetType      `json:"asset_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	FirstSeen  time.Time      `json:"first_seen"`
	LastSeen   time.Time      `json:"last_seen"`
}
