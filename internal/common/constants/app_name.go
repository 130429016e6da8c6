package constants

const (
	AppStorefront         = "storefront"
	AppCartService        = "cart-service"
	AppQuoteService       = "quote-service"
	AppShippingService    = "shipping-service"
	AppCurrencyService    = "currency-service"
	AppCatalogService     = "catalog-service"
	AppNotificationWorker = "notification-worker"
	AudienceUser          = "audience-user"
	IssuerUserService     = "user-service"
	RoleAdmin             = "admin"
	EnvDevelopment        = "development"
)
