package refcache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"repo-pretrade/internal/api"
)

// Issuer is one row of the issuer-name directory CSV.
type Issuer struct {
	Name      string `csv:"Issuer"`
	EmitterID string `csv:"EMITTER_ID"`
}

// Issuers maps issuer codes to display names. The directory is a CSV file
// fetched over HTTP or read from disk.
type Issuers struct {
	snap *Snapshot[map[string]string]
}

// NewIssuers returns nil when location is empty; a nil *Issuers resolves nothing.
func NewIssuers(client *api.Client, location string, ttl, negativeTTL time.Duration, now Clock) *Issuers {
	if strings.TrimSpace(location) == "" {
		return nil
	}
	return &Issuers{snap: NewSnapshot("issuers", ttl, negativeTTL, now,
		func(ctx context.Context) (map[string]string, error) {
			body, err := readLocation(ctx, client, location)
			if err != nil {
				return nil, err
			}
			return ParseIssuers(body)
		})}
}

func readLocation(ctx context.Context, client *api.Client, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		resp, err := client.GET(ctx, location, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch issuer directory: %w", err)
		}
		return resp.Body, nil
	}
	return os.ReadFile(location)
}

// ParseIssuers decodes the directory. Header cells are trimmed and a UTF-8
// BOM is tolerated; rows without a code are skipped.
func ParseIssuers(body []byte) (map[string]string, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if i := bytes.IndexByte(body, '\n'); i > 0 {
		cells := strings.Split(strings.TrimRight(string(body[:i]), "\r"), ",")
		for j := range cells {
			cells[j] = strings.TrimSpace(cells[j])
		}
		body = append([]byte(strings.Join(cells, ",")), body[i:]...)
	}

	var rows []*Issuer
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, fmt.Errorf("parse issuer directory: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		code := NormalizeCode(r.EmitterID)
		name := strings.TrimSpace(r.Name)
		if code == "" || name == "" {
			continue
		}
		if _, dup := out[code]; !dup {
			out[code] = name
		}
	}
	return out, nil
}

// NormalizeCode strips whitespace and a spreadsheet-style ".0" suffix.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	return strings.TrimSuffix(code, ".0")
}

func (i *Issuers) Warm(ctx context.Context) {
	if i == nil {
		return
	}
	_, _ = i.snap.Get(ctx)
}

// Name returns the issuer display name for code.
func (i *Issuers) Name(ctx context.Context, code string) (string, bool) {
	if i == nil || code == "" {
		return "", false
	}
	names, err := i.snap.Get(ctx)
	if err != nil {
		return "", false
	}
	name, ok := names[NormalizeCode(code)]
	return name, ok
}
