// Package scrape fetches exam-board pages and extracts downloadable file
// links from their tables.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/iteehub/itee_hub/internal/archive"
	"github.com/iteehub/itee_hub/internal/logctx"
)

// QuestionLink is one entry of the past-exam question table.
type QuestionLink struct {
	PeriodLabel string
	URL         string
}

// ResultLink is one entry of the passers-information table.
type ResultLink struct {
	PeriodLabel string
	Country     string
	URL         string
}

// Client fetches pages over HTTP and parses them into documents.
type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: resty.New().SetTimeout(timeout)}
}

// FetchDocument GETs the page and parses its HTML.
func (c *Client) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get response from %q: %w", pageURL, err)
	}

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %q", res.StatusCode(), pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %q: %w", pageURL, err)
	}

	return doc, nil
}

// ExtractQuestionLinks extracts period labels and archive links from the
// past question table. Rows containing a td>span cell are section headers
// and are skipped. The result is de-duplicated and sorted.
func ExtractQuestionLinks(ctx context.Context, baseURL string, doc *goquery.Document) []QuestionLink {
	logger := logctx.LoggerFromContext(ctx)

	seen := make(map[QuestionLink]struct{})

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("td > span").Length() > 0 {
			return
		}

		periodCell := row.Find("td > div").First()
		anchor := row.Find("td > div > a[href]").First()

		if anchor.Length() == 0 || periodCell.Length() == 0 {
			logger.Info("archive link not found in row", "row", rowText(row))

			return
		}

		href, _ := anchor.Attr("href")

		link, err := resolveURL(baseURL, href)
		if err != nil {
			logger.Info("failed to resolve link", "href", href, "err", err)

			return
		}

		if !isValidFileURL(link) {
			logger.Info("invalid file url", "url", link)

			return
		}

		seen[QuestionLink{PeriodLabel: strings.TrimSpace(periodCell.Text()), URL: link}] = struct{}{}
	})

	links := make([]QuestionLink, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].PeriodLabel != links[j].PeriodLabel {
			return links[i].PeriodLabel < links[j].PeriodLabel
		}

		return links[i].URL < links[j].URL
	})

	return links
}

// ExtractResultLinks extracts period labels, countries and file links from
// the passers-information table, grouped by the year parsed from the period
// label. Country banner rows span the full table width and set the country
// for the rows that follow; cells 2-4 of a data row each may carry a file
// link.
func ExtractResultLinks(ctx context.Context, baseURL string, doc *goquery.Document) map[string][]ResultLink {
	logger := logctx.LoggerFromContext(ctx)

	links := make(map[string][]ResultLink)

	table := doc.Find("table").First()
	if table.Length() == 0 {
		logger.Error("no result table found")

		return links
	}

	country := ""

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("td > div").Length() == 0 {
			return
		}

		if banner := row.Find("td[colspan='4']").First(); banner.Length() > 0 {
			country = strings.TrimSpace(banner.Text())

			return
		}

		periodCell := row.Find("td:nth-of-type(1) > div[align='left']").First()
		if periodCell.Length() == 0 {
			logger.Error("failed to parse period label from row", "row", rowText(row))

			return
		}

		periodLabel := strings.TrimSpace(periodCell.Text())

		var rowLinks []ResultLink

		for i := 2; i <= 4; i++ {
			anchor := row.Find(fmt.Sprintf("td:nth-of-type(%d) > div > a[href]", i)).First()
			if anchor.Length() == 0 {
				continue
			}

			href, ok := anchor.Attr("href")
			if !ok || href == "" {
				continue
			}

			link, err := resolveURL(baseURL, href)
			if err != nil {
				logger.Info("failed to resolve link", "href", href, "err", err)

				continue
			}

			rowLinks = append(rowLinks, ResultLink{
				PeriodLabel: periodLabel,
				Country:     country,
				URL:         link,
			})
		}

		year := archive.ExtractYear(periodLabel)
		if year == "" {
			logger.Error("failed to parse year from period label", "period_label", periodLabel)

			return
		}

		links[year] = append(links[year], rowLinks...)
	})

	return links
}

// isValidFileURL reports whether the URL path carries a file extension.
func isValidFileURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return path.Ext(u.Path) != ""
}

func resolveURL(baseURL, href string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}

func rowText(row *goquery.Selection) string {
	return strings.Join(strings.Fields(row.Text()), " ")
}
