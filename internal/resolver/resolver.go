package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

// Field-name spellings seen across ISS endpoints and API versions.
var (
	secidKeys  = []string{"SECID"}
	issuerKeys = []string{"EMITTER_ID", "EMITTERID", "EMITENT_ID"}
)

// Resolver maps an ISIN to its secid and issuer code through the
// search, description and board tiers.
type Resolver struct {
	src        interfaces.SecuritySource
	boards     interfaces.BoardLookup
	strategies []Strategy
}

var _ interfaces.Resolver = (*Resolver)(nil)

func New(src interfaces.SecuritySource, boards interfaces.BoardLookup) *Resolver {
	r := &Resolver{src: src, boards: boards}
	r.strategies = []Strategy{
		{Name: types.SourceSearch, Resolve: r.bySearch},
		{Name: types.SourceDescription, Resolve: r.byDescription},
		{Name: types.SourceBoard, Resolve: r.byBoard},
	}
	return r
}

// Warm preloads the board snapshots so workers only ever read them.
func (r *Resolver) Warm(ctx context.Context) {
	if r.boards != nil {
		r.boards.Warm(ctx)
	}
}

func (r *Resolver) Resolve(ctx context.Context, isin string) types.ResolvedSecurity {
	res := FirstSuccess(ctx, isin, r.strategies...)
	logger.Resolution(ctx, isin, string(res.Source), res.SecID, "issuer_code", res.IssuerCode)
	return res
}

// bySearch matches the search table row whose ISIN equals the input; the
// first such row wins.
func (r *Resolver) bySearch(ctx context.Context, isin string) (types.ResolvedSecurity, error) {
	table, err := r.src.SearchSecurities(ctx, isin)
	if err != nil {
		return types.ResolvedSecurity{}, err
	}
	for _, row := range table.Rows() {
		if !strings.EqualFold(row.First("ISIN"), isin) {
			continue
		}
		return types.ResolvedSecurity{
			ISIN:       isin,
			SecID:      row.First(secidKeys...),
			IssuerCode: row.First(issuerKeys...),
		}, nil
	}
	return types.ResolvedSecurity{}, fmt.Errorf("search %s: %w", isin, ErrNoMatch)
}

// byDescription reads the attribute-list XML, then the JSON transport of
// the same endpoint if the XML carried no secid.
func (r *Resolver) byDescription(ctx context.Context, isin string) (types.ResolvedSecurity, error) {
	res := types.ResolvedSecurity{ISIN: isin}
	var errs []error
	for _, fetch := range []func(context.Context, string) (types.Attrs, error){r.src.DescriptionXML, r.src.Description} {
		attrs, err := fetch(ctx, isin)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.IssuerCode == "" {
			res.IssuerCode = attrs.First(issuerKeys...)
		}
		if res.SecID = attrs.First(secidKeys...); res.SecID != "" {
			return res, nil
		}
	}
	if res.IssuerCode != "" {
		return res, nil
	}
	for _, err := range errs {
		if !errors.Is(err, iss.ErrNotFound) {
			return res, errors.Join(errs...)
		}
	}
	return res, fmt.Errorf("description %s: %w", isin, ErrNoMatch)
}

func (r *Resolver) byBoard(ctx context.Context, isin string) (types.ResolvedSecurity, error) {
	if r.boards == nil {
		return types.ResolvedSecurity{}, ErrNoMatch
	}
	row, board, ok := r.boards.Lookup(ctx, isin)
	if !ok {
		return types.ResolvedSecurity{}, fmt.Errorf("boards %s: %w", isin, ErrNoMatch)
	}
	return types.ResolvedSecurity{
		ISIN:       isin,
		SecID:      row.First(secidKeys...),
		IssuerCode: row.First(issuerKeys...),
		Board:      board,
	}, nil
}
