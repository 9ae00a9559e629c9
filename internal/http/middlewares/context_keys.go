package middlewares

const (
	CtxRequestID = "request_id"

	ctxCallerKey = "auth.caller"
	ctxTargetKey = "auth.target"
	ctxTokenKey  = "auth.token"
)
