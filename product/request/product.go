package request

// FindProduct carries the path parameter of GET /products/{productId}.
type FindProduct struct {
	ProductID string `validate:"required,uuid" json:"productId"`
}
