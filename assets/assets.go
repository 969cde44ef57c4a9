package assets

import "embed"

// DataFS embeds the bundled default dataset used to seed first-time
// persistence.
//
//go:embed data/transactions.json
var DataFS embed.FS
