package log

const (
	KeyAppName            = "app"
	KeyRequestID          = "requestId"
	KeyProcess            = "process"
	KeyTag                = "tag"
	KeyConfig             = "config"
	KeyRequest            = "request"
	KeyRequestBody        = "requestBody"
	KeyRequestHeader      = "requestHeader"
	KeyRequestHost        = "host"
	KeyRequestIp          = "requesterIP"
	KeyRequestMethod      = "requestMethod"
	KeyRequestURI         = "requestURI"
	KeyRequestURL         = "requestURL"
	KeyTraceID            = "traceId"
	KeySpanID             = "spanId"
	KeyPathValues         = "pathValues"
	KeyUserID             = "userId"
	KeyRole               = "role"
	KeyDbURL              = "dbUrl"
	KeyCacheKey           = "cacheKey"
	KeyOwner              = "owner"
	KeyCart               = "cart"
	KeyCartID             = "cartId"
	KeyCartItem           = "cartItem"
	KeyCartItemID         = "cartItemId"
	KeyCartItemsMoved     = "cartItemsMoved"
	KeyQuantity           = "quantity"
	KeyQuantityDelta      = "quantityDelta"
	KeyProductID          = "productId"
	KeyCustomSpec         = "customSpec"
	KeyPrice              = "price"
	KeyCountryCode        = "countryCode"
	KeySubtotal           = "subtotal"
	KeyShippingResult     = "shippingResult"
	KeyCurrency           = "currency"
	KeyAmount             = "amount"
	KeyRatesFetchedAt     = "ratesFetchedAt"
	KeyRatesCount         = "ratesCount"
	KeyQuoteID            = "quoteId"
	KeyQuoteStatus        = "quoteStatus"
	KeyQuoteItems         = "quoteItems"
	KeyRecipient          = "recipient"
	KeyRequestProcessedAt = "requestProcessedAt"
)
