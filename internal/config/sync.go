package config

type StoreConfig struct {
	Backend            string `yaml:"backend"` // firestore, mongodb, memory
	RequestsCollection string `yaml:"requests_collection"`
	SOSCollection      string `yaml:"sos_collection"`
}

type SyncConfig struct {
	RequestsCollection string `yaml:"requests_collection"`
	SOSCollection      string `yaml:"sos_collection"`

	// EnforceTransitions guards every status write with the status the
	// transition starts from, so a second guide gets a conflict instead of
	// silently overwriting the first.
	EnforceTransitions bool `yaml:"enforce_transitions"`

	// ResolveResponderOnly lets only the responding guide resolve an alert.
	ResolveResponderOnly bool `yaml:"resolve_responder_only"`

	SOSPushTopic string `yaml:"sos_push_topic"`
}

func loadStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend:            getEnv("STORE_BACKEND", "firestore"),
		RequestsCollection: getEnv("STORE_REQUESTS_COLLECTION", "requests"),
		SOSCollection:      getEnv("STORE_SOS_COLLECTION", "sosAlerts"),
	}
}

func loadSyncConfig(store *StoreConfig) *SyncConfig {
	return &SyncConfig{
		RequestsCollection:   store.RequestsCollection,
		SOSCollection:        store.SOSCollection,
		EnforceTransitions:   getEnvAsBool("SYNC_ENFORCE_TRANSITIONS", true),
		ResolveResponderOnly: getEnvAsBool("SYNC_RESOLVE_RESPONDER_ONLY", false),
		SOSPushTopic:         getEnv("SYNC_SOS_PUSH_TOPIC", "sos-alerts"),
	}
}

// DefaultSyncConfig is the configuration used when nothing is set.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		RequestsCollection: "requests",
		SOSCollection:      "sosAlerts",
		EnforceTransitions: true,
		SOSPushTopic:       "sos-alerts",
	}
}
