package websocket

// NIP11RelayInfo is the relay information document served to clients that
// ask for application/nostr+json.
type NIP11RelayInfo struct {
	Name          string      `json:"name,omitempty"`
	Description   string      `json:"description,omitempty"`
	Pubkey        string      `json:"pubkey,omitempty"`
	Contact       string      `json:"contact,omitempty"`
	Icon          string      `json:"icon,omitempty"`
	SupportedNIPs []int       `json:"supported_nips,omitempty"`
	Software      string      `json:"software,omitempty"`
	Version       string      `json:"version,omitempty"`
	Limitation    *Limitation `json:"limitation,omitempty"`
}

type Limitation struct {
	MaxSubidLength   int  `json:"max_subid_length,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MinPowDifficulty int  `json:"min_pow_difficulty"`
	RestrictedWrites bool `json:"restricted_writes"`
}
