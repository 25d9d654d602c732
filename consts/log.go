package consts

const (
	LogFieldComponent = "component"
	LogFieldParams    = "params"
	LogFieldValue     = "value"
	LogFieldFd        = "fd"
	LogFieldTag       = "tag"
	LogFieldPeer      = "peer"
	LogFieldLocal     = "local"
	LogFieldWorker    = "worker"
	LogFieldEvent     = "event"
	LogFieldBytes     = "bytes"
)
