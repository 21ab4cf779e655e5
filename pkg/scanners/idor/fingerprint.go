// pkg/scanners/idor/fingerprint.go
package idor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/twmb/murmur3"
)

// titleSniffLimit bounds how much of a body is searched for a <title> tag
const titleSniffLimit = 8192

// decodeBody returns the body length and, when the bytes are valid UTF-8,
// the text. Text length is counted in runes; undecodable bodies fall back to
// their byte count.
func decodeBody(body []byte) (int, *string) {
	if !utf8.Valid(body) {
		return len(body), nil
	}
	text := string(body)
	return utf8.RuneCountInString(text), &text
}

// hashBody is the murmur3 fingerprint of the raw body
func hashBody(body []byte) string {
	return fmt.Sprintf("%08x", murmur3.Sum32(body))
}

// extractTitle pulls the text of the first <title> element out of an HTML body
func extractTitle(body []byte) string {
	head := body
	if len(head) > titleSniffLimit {
		head = head[:titleSniffLimit]
	}
	if !bytes.Contains(bytes.ToLower(head), []byte("<title")) {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
