// Package upi builds UPI payment URIs and wallet deep links. Everything here
// is pure string work: the same inputs always produce the same output.
package upi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPayeeName = "Merchant"
	DefaultNote      = "Payment"
)

// App is a wallet that can open a UPI payment link.
type App struct {
	Name   string
	Prefix string
}

// Apps lists the supported wallets in display order.
var Apps = []App{
	{Name: "Any UPI App", Prefix: "upi://pay?"},
	{Name: "PhonePe", Prefix: "phonepe://pay?"},
	{Name: "Paytm", Prefix: "paytmmp://pay?"},
	{Name: "Google Pay", Prefix: "gpay://upi/pay?"},
	{Name: "MobiKwik", Prefix: "mobikwik://upi/pay?"},
}

// Params are the raw query parameters of a payment redirect.
type Params struct {
	PayeeVPA  string
	PayeeName string
	Amount    string
	Note      string
}

// ParamsFromQuery reads pa, pn, am and tn.
func ParamsFromQuery(q url.Values) Params {
	return Params{
		PayeeVPA:  q.Get("pa"),
		PayeeName: q.Get("pn"),
		Amount:    q.Get("am"),
		Note:      q.Get("tn"),
	}
}

// Link is one wallet-specific deep link.
type Link struct {
	App string
	URI string
}

// DeepLinks is the normalised result of a redirect request.
type DeepLinks struct {
	PayeeVPA    string
	PayeeName   string
	Amount      string
	Note        string
	QueryString string
	Links       []Link
}

// URIFor returns the link for the named app, or "".
func (d DeepLinks) URIFor(app string) string {
	for _, l := range d.Links {
		if l.App == app {
			return l.URI
		}
	}
	return ""
}

// BuildDeepLinks normalises p and renders one link per supported wallet,
// all sharing the same query string.
func BuildDeepLinks(p Params) DeepLinks {
	name := Sanitize(p.PayeeName)
	if name == "" {
		name = DefaultPayeeName
	}
	note := Sanitize(p.Note)
	if note == "" {
		note = DefaultNote
	}
	amount := NormalizeAmount(p.Amount)

	qs := "mode=02&ver=01" +
		"&pa=" + p.PayeeVPA +
		"&pn=" + EncodeComponent(name) +
		"&txntype=pay&qrmedium=02" +
		"&tn=" + EncodeComponent(note) +
		"&am=" + amount +
		"&orgid=000000&cu=INR"

	links := make([]Link, 0, len(Apps))
	for _, app := range Apps {
		links = append(links, Link{App: app.Name, URI: app.Prefix + qs})
	}

	return DeepLinks{
		PayeeVPA:    p.PayeeVPA,
		PayeeName:   name,
		Amount:      amount,
		Note:        note,
		QueryString: qs,
		Links:       links,
	}
}

// NormalizeAmount pads whole amounts to two decimals ("50" -> "50.00").
// Amounts that already contain a decimal point, and anything that does not
// parse as a number, are returned unchanged.
func NormalizeAmount(amount string) string {
	if strings.Contains(amount, ".") {
		return amount
	}
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return amount
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Sanitize keeps ASCII letters, digits and spaces.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// EncodeComponent percent-encodes s for use inside a query value. It leaves
// the same characters unescaped as a browser's encodeURIComponent, so
// A-Z a-z 0-9 and -_.!~*'() pass through and a space becomes %20.
func EncodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if componentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// PaymentURI is the compact upi://pay link encoded into reminder QR codes.
func PaymentURI(vpa, payeeName string, amount int64, note string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%d&tn=%s",
		vpa, EncodeComponent(payeeName), amount, EncodeComponent(note))
}

// QRImageURL asks the QR rendering endpoint for an image of data.
func QRImageURL(endpoint, size, data string) string {
	return fmt.Sprintf("%s?size=%s&data=%s", endpoint, size, EncodeComponent(data))
}

// RedirectURL points at the deep-link landing page served under baseURL.
func RedirectURL(baseURL, vpa, payeeName string, amount int64, note string) string {
	q := url.Values{}
	q.Set("pa", vpa)
	q.Set("pn", payeeName)
	q.Set("am", strconv.FormatInt(amount, 10))
	q.Set("tn", note)
	return strings.TrimRight(baseURL, "/") + "/api/finance/pay-redirect?" + q.Encode()
}
