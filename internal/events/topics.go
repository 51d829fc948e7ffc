package events

// Topics emitted by the POS backend.
const (
	TopicSaleCompleted = "sale.completed"
	TopicPriceUpdated  = "price.updated"
	TopicStockAdjusted = "stock.adjusted"
)
