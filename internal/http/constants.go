package http

const (
	KeyHeaderContentType       = "Content-Type"
	ValueHeaderApplicationJson = "application/json"
	KeyHeaderRequestID         = "X-Request-Id"
	KeyHeaderCartToken         = "X-Cart-Token"
	KeyCookieCartToken         = "cart_token"
)
