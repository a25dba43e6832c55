package topics

const (
	// Fila de resolução (decisões terminais das apostas)
	ResolutionJobs    = "resolution_jobs"
	ResolutionJobsDLQ = "resolution_jobs_dlq"

	// Canal Redis Pub/Sub com transições de ciclo de vida das apostas
	BetLifecycleChannel = "bet_lifecycle_events"
)
