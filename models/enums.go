package models

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// StockReferenceType identifies the source-document type an event refers to.
type StockReferenceType string

const (
	StockReferenceTypeImportVehicles  StockReferenceType = "importVehicles"
	StockReferenceTypeImportParts     StockReferenceType = "importParts"
	StockReferenceTypeImportLog       StockReferenceType = "importLog"
	StockReferenceTypeBooking         StockReferenceType = "bookings"
	StockReferenceTypeTransfer        StockReferenceType = "transfer"
	StockReferenceTypeSaleOut         StockReferenceType = "saleOut"
	StockReferenceTypeOtherVehicleOut StockReferenceType = "otherVehicleOut"
	StockReferenceTypeOtherVehicleIn  StockReferenceType = "otherVehicleIn"
	StockReferenceTypeDecal           StockReferenceType = "decal"
	StockReferenceTypeDeliver         StockReferenceType = "deliver"
	StockReferenceTypeLeave           StockReferenceType = "leave"
	StockReferenceTypeProduct         StockReferenceType = "products"
	StockReferenceTypeService         StockReferenceType = "services"
	StockReferenceTypeCustomer        StockReferenceType = "customers"
	StockReferenceTypeRecheck         StockReferenceType = "recheck"
)

// StockTransactionType labels one entry of a stock item's history.
type StockTransactionType string

const (
	StockTransactionTypeImport      StockTransactionType = "import"
	StockTransactionTypeImportOther StockTransactionType = "importOther"
	StockTransactionTypeReserve     StockTransactionType = "reserve"
	StockTransactionTypeSaleOut     StockTransactionType = "saleOut"
	StockTransactionTypeTransfer    StockTransactionType = "transfer"
	StockTransactionTypeExport      StockTransactionType = "export"
	StockTransactionTypeDecal       StockTransactionType = "decal"
	StockTransactionTypeDecalTaken  StockTransactionType = "decalTaken"
)

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
