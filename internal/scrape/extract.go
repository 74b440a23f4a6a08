package scrape

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
)

// PageContent is the sanitized, length-capped content extracted from
// one page. It is ephemeral: only what flows into prompt modules and
// competitor insights survives the pipeline run.
type PageContent struct {
	URL              string   `json:"url"`
	Headline         string   `json:"headline"`
	Subheadline      string   `json:"subheadline"`
	PricingTableText string   `json:"pricingTableText"`
	FAQBlocks        []string `json:"faqBlocks"`
	RawText          string   `json:"rawText"`
}

// pricingRelevant matches currency, plan, and billing-period terms used
// to pick pricing tables out of arbitrary page tables.
var pricingRelevant = regexp.MustCompile(`(?i)([$€£]|\bUSD\b|/mo\b|per\s+month|monthly|annual(ly)?|billed|pricing|plan\b|tier\b|\bfree\b|\bpro\b|enterprise)`)

// faqHeading matches FAQ section headings.
var faqHeading = regexp.MustCompile(`(?i)\bfaqs?\b|frequently\s+asked`)

// Extract parses HTML and pulls the fields the prompt modules consume.
// Every field passes the prompt-injection sanitizer before being
// retained; anomalies are logged as counts only, never content.
func Extract(html, sourceURL string, logger *slog.Logger) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html for %s: %w", sourceURL, err)
	}

	doc.Find("script, style, noscript, iframe, svg, head").Remove()

	content := &PageContent{URL: sourceURL}
	anomalies := make(map[string]int)

	content.Headline = sanitizeField(doc.Find("h1").First().Text(), constants.MaxHeadlineLength, anomalies)
	content.Subheadline = sanitizeField(doc.Find("h2").First().Text(), constants.MaxSubheadlineLength, anomalies)
	content.PricingTableText = sanitizeField(extractPricingTables(doc), constants.MaxPricingLength, anomalies)

	for _, block := range extractFAQBlocks(doc) {
		if cleaned := sanitizeField(block, constants.MaxFAQLength, anomalies); cleaned != "" {
			content.FAQBlocks = append(content.FAQBlocks, cleaned)
		}
	}

	content.RawText = sanitizeField(doc.Find("body").Text(), constants.MaxBodyTextLength, anomalies)

	if len(anomalies) > 0 {
		total := 0
		for _, n := range anomalies {
			total += n
		}
		logger.Warn("prompt injection signatures removed from scraped content",
			"url", sourceURL,
			"lines_removed", total,
			"categories", anomalies,
		)
	}

	return content, nil
}

func sanitizeField(text string, maxLen int, anomalies map[string]int) string {
	result := Sanitize(text, maxLen)
	for category, n := range result.Categories {
		anomalies[category] += n
	}
	return result.Text
}

// extractPricingTables returns the text of tables that look pricing
// related, falling back to all tables when none match.
func extractPricingTables(doc *goquery.Document) string {
	var pricing, all []string

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		text := tableText(table)
		if text == "" {
			return
		}
		all = append(all, text)
		if pricingRelevant.MatchString(text) {
			pricing = append(pricing, text)
		}
	})

	if len(pricing) > 0 {
		return strings.Join(pricing, "\n")
	}
	return strings.Join(all, "\n")
}

func tableText(table *goquery.Selection) string {
	var rows []string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if text := normalizeWhitespace(cell.Text()); text != "" {
				cells = append(cells, text)
			}
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return strings.Join(rows, "\n")
}

// extractFAQBlocks finds FAQ containers by class or id. When a page
// only signals FAQs through a heading, a generic marker is returned so
// downstream modules know a FAQ section exists.
func extractFAQBlocks(doc *goquery.Document) []string {
	var blocks []string

	doc.Find(`[class*="faq" i], [id*="faq" i]`).Each(func(_ int, sel *goquery.Selection) {
		if text := sel.Text(); strings.TrimSpace(text) != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) > 0 {
		return blocks
	}

	found := false
	doc.Find("h2, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if faqHeading.MatchString(heading.Text()) {
			found = true
			return false
		}
		return true
	})
	if found {
		blocks = append(blocks, "FAQ section present")
	}

	return blocks
}
