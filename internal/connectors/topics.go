package connectors

const (
	TopicConnStatus  = "conn.status"
	TopicJobResult   = "job.result"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
)
