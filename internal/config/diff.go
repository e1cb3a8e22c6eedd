package config

// ConfigDiff describes what changed between two configs, split into changes
// that can be applied to a running server and changes that need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DialogChanged is true when max_failures or failure_cooldown_ms changed.
	// Applies to sessions created after the reload.
	DialogChanged bool

	// VADChanged is true when any VAD tuning value changed.
	// Applies to sessions created after the reload.
	VADChanged bool

	// ScriptChanged is true when the script path changed.
	// Applies to sessions created after the reload.
	ScriptChanged bool

	// RestartRequired is true when server, provider, or audio settings
	// changed. Those are bound at startup and cannot be hot-applied.
	RestartRequired bool
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return d == ConfigDiff{}
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Dialog != new.Dialog {
		d.DialogChanged = true
	}
	if old.VAD != new.VAD {
		d.VADChanged = true
	}
	if old.Script != new.Script {
		d.ScriptChanged = true
	}

	// Log level is the only hot-applicable server field.
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !serverEqual(oldServer, newServer) || !providersEqual(old.Providers, new.Providers) ||
		old.Audio != new.Audio {
		d.RestartRequired = true
	}

	return d
}

func serverEqual(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr || a.PublicHost != b.PublicHost || a.WSPath != b.WSPath {
		return false
	}
	if (a.TLS == nil) != (b.TLS == nil) {
		return false
	}
	if a.TLS != nil && *a.TLS != *b.TLS {
		return false
	}
	return true
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.STT, b.STT) && entryEqual(a.TTS, b.TTS) &&
		entryPtrEqual(a.STTFallback, b.STTFallback) &&
		entryPtrEqual(a.TTSFallback, b.TTSFallback)
}

func entryPtrEqual(a, b *ProviderEntry) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || entryEqual(*a, *b)
}

// entryEqual ignores the free-form Options map: options are provider-bound at
// startup anyway, and the maps are not comparable. A changed option without
// any other change goes unnoticed until restart.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		a.Voice == b.Voice &&
		a.TimeoutMs == b.TimeoutMs &&
		len(a.Options) == len(b.Options)
}
