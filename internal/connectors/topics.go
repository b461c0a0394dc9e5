package connectors

const (
	TopicConnStatus    = "conn.status"
	TopicFrame         = "sim.frame"
	TopicStatusMessage = "status.message"
	TopicReplaySession = "replay.session"
)
