package badges

// Audio configures the audio-codec badge.
type Audio struct {
	Enabled      bool `json:"enabled" toml:"enabled"`
	ShowCodec    bool `json:"show_codec" toml:"show_codec"`
	ShowChannels bool `json:"show_channels" toml:"show_channels"`
}

// Resolution configures the resolution badge.
type Resolution struct {
	Enabled bool `json:"enabled" toml:"enabled"`
	ShowHDR bool `json:"show_hdr" toml:"show_hdr"`
}

// Review configures the critic/audience review badge.
type Review struct {
	Enabled   bool    `json:"enabled" toml:"enabled"`
	Source    string  `json:"source" toml:"source"`
	MinRating float64 `json:"min_rating" toml:"min_rating"`
}

// Awards configures the awards badge.
type Awards struct {
	Enabled         bool `json:"enabled" toml:"enabled"`
	ShowNominations bool `json:"show_nominations" toml:"show_nominations"`
}

// Options is the full processing configuration for one run. A copy is
// serialized onto every job at trigger time so later schedule edits never
// rewrite history.
type Options struct {
	Audio             Audio      `json:"audio" toml:"audio"`
	Resolution        Resolution `json:"resolution" toml:"resolution"`
	Review            Review     `json:"review" toml:"review"`
	Awards            Awards     `json:"awards" toml:"awards"`
	ForceRefresh      bool       `json:"force_refresh" toml:"force_refresh"`
	TargetDirectories []string   `json:"target_directories" toml:"target_directories"`
}

// AnyEnabled reports whether at least one badge category is selected.
func (o Options) AnyEnabled() bool {
	return o.Audio.Enabled || o.Resolution.Enabled || o.Review.Enabled || o.Awards.Enabled
}

// EnabledCategories returns the names of selected badge categories in a
// fixed order, for log lines and job summaries.
func (o Options) EnabledCategories() []string {
	var names []string
	if o.Audio.Enabled {
		names = append(names, "audio")
	}
	if o.Resolution.Enabled {
		names = append(names, "resolution")
	}
	if o.Review.Enabled {
		names = append(names, "review")
	}
	if o.Awards.Enabled {
		names = append(names, "awards")
	}
	return names
}
