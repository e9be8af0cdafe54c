package iss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/gocolly/colly/v2"

	"repo-pretrade/internal/api"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

// Client wraps the retrying HTTP client with ISS endpoint knowledge.
type Client struct {
	http         *api.Client
	userAgent    string
	boardTimeout time.Duration
	transport    http.RoundTripper
	limiter      *api.RateLimiter
	boardRetry   *api.RetryConfig
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithBoardTimeout(d time.Duration) Option {
	return func(c *Client) { c.boardTimeout = d }
}

// WithBoardTransport swaps the round tripper of the board crawler.
func WithBoardTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func WithBoardLimiter(rl *api.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// WithBoardRetry retries board snapshot loads on transient failures. Without
// it a snapshot is fetched once.
func WithBoardRetry(cfg *api.RetryConfig) Option {
	return func(c *Client) { c.boardRetry = cfg }
}

// NewClient expects httpClient to carry the ISS base URL.
func NewClient(httpClient *api.Client, opts ...Option) *Client {
	c := &Client{
		http:         httpClient,
		userAgent:    "repo-pretrade/1.0",
		boardTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func metaOff(extra url.Values) url.Values {
	q := url.Values{"iss.meta": {"off"}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

func (c *Client) document(ctx context.Context, path string, q url.Values) (Document, error) {
	resp, err := c.http.GET(ctx, path, q)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return DecodeDocument(resp.Body)
}

// SearchSecurities queries the general search endpoint.
func (c *Client) SearchSecurities(ctx context.Context, query string) (Table, error) {
	doc, err := c.document(ctx, "/iss/securities.json", metaOff(url.Values{
		"q":        {query},
		"iss.only": {"securities"},
	}))
	if err != nil {
		return Table{}, err
	}
	return doc.Block("securities"), nil
}

// Description returns the per-ISIN descriptive attributes. The endpoint
// normally answers with a name/value "description" block; older responses
// carry a "securities" table instead, whose first row is used.
func (c *Client) Description(ctx context.Context, isin string) (types.Attrs, error) {
	doc, err := c.document(ctx, "/iss/securities/"+url.PathEscape(isin)+".json", metaOff(nil))
	if err != nil {
		return nil, err
	}
	if desc := doc.Block("description"); !desc.Empty() {
		attrs := DescriptionAttrs(desc)
		if len(attrs) > 0 {
			return attrs, nil
		}
	}
	if row, err := doc.Block("securities").First(); err == nil {
		return row, nil
	}
	return nil, fmt.Errorf("description %s: %w", isin, ErrNotFound)
}

// DescriptionXML is the attribute-list XML transport of Description: every
// element carrying name/value attributes contributes one field.
func (c *Client) DescriptionXML(ctx context.Context, isin string) (types.Attrs, error) {
	resp, err := c.http.GET(ctx, "/iss/securities/"+url.PathEscape(isin)+".xml", metaOff(nil))
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("description xml %s: %w", isin, ErrNotFound)
		}
		return nil, err
	}
	return ParseAttributeXML(resp.String())
}

// ParseAttributeXML reads <row name="..." value="..."/> style documents.
func ParseAttributeXML(body string) (types.Attrs, error) {
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse description xml: %w", err)
	}
	attrs := types.Attrs{}
	for _, n := range xmlquery.Find(doc, "//*[@name]") {
		name := n.SelectAttr("name")
		if name == "" {
			continue
		}
		value := n.SelectAttr("value")
		if value == "" && attrs.First(name) != "" {
			continue
		}
		attrs.Set(name, value)
	}
	if len(attrs) == 0 {
		return nil, ErrNotFound
	}
	return attrs, nil
}

// BondSecurity returns the market-level row for a bond secid.
func (c *Client) BondSecurity(ctx context.Context, secid string) (types.Attrs, error) {
	doc, err := c.document(ctx, "/iss/engines/stock/markets/bonds/securities/"+url.PathEscape(secid)+".json",
		metaOff(url.Values{"iss.only": {"securities"}}))
	if err != nil {
		return nil, err
	}
	row, err := doc.Block("securities").First()
	if err != nil {
		return nil, fmt.Errorf("bond security %s: %w", secid, ErrNotFound)
	}
	return row, nil
}

// Bondization is the event schedule of one bond.
type Bondization struct {
	Coupons       Table
	Amortizations Table
	// Info is the first row of the issue-level "bondization" block, if any.
	Info types.Attrs
}

func (b *Bondization) Empty() bool {
	return b == nil || (b.Coupons.Empty() && b.Amortizations.Empty())
}

// Bondization fetches the coupon and amortization schedule keyed by secid
// or ISIN; the endpoint accepts both.
func (c *Client) Bondization(ctx context.Context, id string) (*Bondization, error) {
	doc, err := c.document(ctx, "/iss/statistics/engines/stock/markets/bonds/bondization/"+url.PathEscape(id)+".json",
		metaOff(url.Values{
			"iss.only": {"coupons,amortizations,bondization"},
			"limit":    {"unlimited"},
		}))
	if err != nil {
		return nil, err
	}
	b := &Bondization{
		Coupons:       doc.Block("coupons"),
		Amortizations: doc.Block("amortizations"),
	}
	if info, err := doc.Block("bondization").First(); err == nil {
		b.Info = info
	}
	if b.Empty() && b.Info == nil {
		return nil, fmt.Errorf("bondization %s: %w", id, ErrEmptyTable)
	}
	return b, nil
}

// BoardSecurities crawls one board's snapshot XML. Rows without an ISIN are
// skipped and, for duplicate ISINs, the first row wins.
func (c *Client) BoardSecurities(ctx context.Context, board string) (types.BoardSnapshot, error) {
	board = strings.ToLower(board)
	snap := types.BoardSnapshot{Board: board, Rows: map[string]types.Attrs{}}

	target := c.http.BaseURL() + "/iss/engines/stock/markets/bonds/boards/" + url.PathEscape(board) +
		"/securities.xml?marketprice_board=3&iss.meta=off"

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(64<<20),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(c.boardTimeout)
	if c.transport != nil {
		collector.WithTransport(c.transport)
	}

	collector.OnXML("//row", func(e *colly.XMLElement) {
		node, ok := e.DOM.(*xmlquery.Node)
		if !ok {
			return
		}
		attrs := make(types.Attrs, len(node.Attr))
		for _, a := range node.Attr {
			attrs.Set(a.Name.Local, strings.TrimSpace(a.Value))
		}
		isin := strings.ToUpper(attrs.First("ISIN"))
		if isin == "" {
			return
		}
		if _, dup := snap.Rows[isin]; dup {
			return
		}
		attrs["SECID"] = strings.ToUpper(attrs.First("SECID"))
		snap.Rows[isin] = attrs
	})

	var statusErr *api.StatusError
	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.StatusCode < 400 {
			return
		}
		var h http.Header
		if r.Headers != nil {
			h = *r.Headers
		}
		statusErr = api.NewStatusError(r.StatusCode, target, r.Body, h)
	})

	attempts := 1
	if c.boardRetry != nil && c.boardRetry.MaxAttempts > 1 {
		attempts = c.boardRetry.MaxAttempts
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return snap, err
		}
		statusErr = nil
		err = collector.Visit(target)
		if err == nil {
			return snap, nil
		}
		if statusErr != nil {
			err = statusErr
		}
		if ctx.Err() != nil || attempt >= attempts || !c.boardRetry.IsTransient(err) {
			break
		}
		wait := c.boardRetry.WaitFor(attempt, err)
		logger.Warn(ctx, "Board snapshot failed, retrying", "board", board, "attempt", attempt, "error", err, "waitTime", wait)
		if err := api.Sleep(ctx, wait); err != nil {
			return snap, fmt.Errorf("board %s snapshot abandoned: %w", board, err)
		}
	}
	return snap, fmt.Errorf("board %s snapshot: %w", board, err)
}
