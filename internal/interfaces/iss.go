package interfaces

import (
	"context"

	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/types"
)

// SecuritySource is the exchange data surface the pipeline reads from.
type SecuritySource interface {
	SearchSecurities(ctx context.Context, query string) (iss.Table, error)
	Description(ctx context.Context, isin string) (types.Attrs, error)
	DescriptionXML(ctx context.Context, isin string) (types.Attrs, error)
	BondSecurity(ctx context.Context, secid string) (types.Attrs, error)
	Bondization(ctx context.Context, id string) (*iss.Bondization, error)
}

// BoardLookup finds an ISIN in the cached board snapshots.
type BoardLookup interface {
	Warm(ctx context.Context)
	Lookup(ctx context.Context, isin string) (row types.Attrs, board string, ok bool)
}

// IssuerDirectory maps issuer codes to display names.
type IssuerDirectory interface {
	Warm(ctx context.Context)
	Name(ctx context.Context, code string) (string, bool)
}
