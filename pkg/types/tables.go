package types

// Standard table names for Store.GetTable.
const (
	TableParties    = "parties"
	TableChannels   = "contact_channels"
	TableAddresses  = "addresses"
	TableAttributes = "attributes"
)

// StandardTableNames lists the tables in parent-first order. Loaders insert
// in this order and the foreign keys depend on it.
var StandardTableNames = []string{
	TableParties,
	TableChannels,
	TableAddresses,
	TableAttributes,
}
