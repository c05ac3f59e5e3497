package dexscreener

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// MaxListingIDs is the number of identifiers kept from one listing page.
const MaxListingIDs = 30

const rowSelector = "a.ds-dex-table-row.ds-dex-table-row-new"

// ParseListing extracts pair identifiers from a listing page, in page order.
// The identifier is the last path segment of each row link.
func ParseListing(r io.Reader, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = MaxListingIDs
	}

	rows := doc.Find(rowSelector)
	ids := make([]string, 0, min(rows.Length(), limit))
	rows.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		id := lastSegment(href)
		if !validID(id) {
			log.Debug().Str("href", href).Msg("skipping row with invalid identifier")
			return true
		}
		ids = append(ids, id)
		return true
	})
	return ids, nil
}

func lastSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// validID accepts base58 strings only, which is what solana addresses are.
func validID(id string) bool {
	if id == "" {
		return false
	}
	b, err := base58.Decode(id)
	return err == nil && len(b) > 0
}
