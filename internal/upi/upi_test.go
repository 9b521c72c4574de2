package upi

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAmount(t *testing.T) {
	tests := map[string]struct {
		input string
		want  string
	}{
		"whole number":      {input: "50", want: "50.00"},
		"already decimal":   {input: "50.5", want: "50.5"},
		"two decimals":      {input: "667.00", want: "667.00"},
		"large whole":       {input: "1250", want: "1250.00"},
		"not a number":      {input: "abc", want: "abc"},
		"empty":             {input: "", want: ""},
		"malformed decimal": {input: "5.0.1", want: "5.0.1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAmount(tc.input))
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]struct {
		input string
		want  string
	}{
		"currency and bang": {input: "Yash₹Kumar!", want: "YashKumar"},
		"keeps spaces":      {input: "TurfWar: Sunday 5v5", want: "TurfWar Sunday 5v5"},
		"all stripped":      {input: "₹₹!!", want: ""},
		"plain":             {input: "Rahul", want: "Rahul"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.input))
		})
	}
}

func TestBuildDeepLinks(t *testing.T) {
	links := BuildDeepLinks(Params{
		PayeeVPA:  "yash@ibl",
		PayeeName: "Yash₹Kumar!",
		Amount:    "50",
		Note:      "TurfWar: Sunday Match",
	})

	wantQS := "mode=02&ver=01&pa=yash@ibl&pn=YashKumar&txntype=pay&qrmedium=02" +
		"&tn=TurfWar%20Sunday%20Match&am=50.00&orgid=000000&cu=INR"
	assert.Equal(t, wantQS, links.QueryString)
	assert.Equal(t, "YashKumar", links.PayeeName)
	assert.Equal(t, "50.00", links.Amount)

	require.Len(t, links.Links, 5)
	assert.Equal(t, "upi://pay?"+wantQS, links.URIFor("Any UPI App"))
	assert.Equal(t, "phonepe://pay?"+wantQS, links.URIFor("PhonePe"))
	assert.Equal(t, "paytmmp://pay?"+wantQS, links.URIFor("Paytm"))
	assert.Equal(t, "gpay://upi/pay?"+wantQS, links.URIFor("Google Pay"))
	assert.Equal(t, "mobikwik://upi/pay?"+wantQS, links.URIFor("MobiKwik"))
	assert.Equal(t, "", links.URIFor("Unknown"))
}

func TestBuildDeepLinksDefaults(t *testing.T) {
	links := BuildDeepLinks(Params{PayeeVPA: "a@b", Amount: "10.5"})

	assert.Equal(t, DefaultPayeeName, links.PayeeName)
	assert.Equal(t, DefaultNote, links.Note)
	assert.Contains(t, links.QueryString, "&pn=Merchant&")
	assert.Contains(t, links.QueryString, "&tn=Payment&am=10.5&")
}

func TestBuildDeepLinksIsReproducible(t *testing.T) {
	p := Params{PayeeVPA: "x@y", PayeeName: "Org", Amount: "99", Note: "Fees"}
	assert.Equal(t, BuildDeepLinks(p), BuildDeepLinks(p))
}

func TestParamsFromQuery(t *testing.T) {
	q, err := url.ParseQuery("pa=org%40ibl&pn=Org+Name&am=100&tn=Match")
	require.NoError(t, err)

	assert.Equal(t, Params{PayeeVPA: "org@ibl", PayeeName: "Org Name", Amount: "100", Note: "Match"}, ParamsFromQuery(q))
}

func TestPaymentURIAndQR(t *testing.T) {
	uri := PaymentURI("org@ibl", "Yash Kumar", 667, "TurfWar: Sunday")
	assert.Equal(t, "upi://pay?pa=org@ibl&pn=Yash%20Kumar&am=667&tn=TurfWar%3A%20Sunday", uri)

	qr := QRImageURL("https://api.qrserver.com/v1/create-qr-code/", "200x200", uri)
	assert.True(t, strings.HasPrefix(qr, "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=upi%3A%2F%2Fpay%3Fpa%3D"))

	parsed, err := url.Parse(qr)
	require.NoError(t, err)
	assert.Equal(t, uri, parsed.Query().Get("data"))
}

func TestRedirectURL(t *testing.T) {
	u := RedirectURL("https://turfwar.app/", "org@ibl", "Yash", 250, "TurfWar: Sunday")

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "turfwar.app", parsed.Host)
	assert.Equal(t, "/api/finance/pay-redirect", parsed.Path)
	assert.Equal(t, "org@ibl", parsed.Query().Get("pa"))
	assert.Equal(t, "Yash", parsed.Query().Get("pn"))
	assert.Equal(t, "250", parsed.Query().Get("am"))
	assert.Equal(t, "TurfWar: Sunday", parsed.Query().Get("tn"))
}

func TestEncodeComponent(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"space":      {in: "Yash Kumar", want: "Yash%20Kumar"},
		"apostrophe": {in: "Bob's Game", want: "Bob's%20Game"},
		"marks kept": {in: "Go! (5-a-side) *finals* ~x_y.z", want: "Go!%20(5-a-side)%20*finals*%20~x_y.z"},
		"reserved":   {in: "a&b=c?d/e:f#g+h", want: "a%26b%3Dc%3Fd%2Fe%3Af%23g%2Bh"},
		"percent":    {in: "100%", want: "100%25"},
		"multibyte":  {in: "₹50", want: "%E2%82%B950"},
		"empty":      {in: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeComponent(tc.in))
		})
	}
}

func TestPaymentURIKeepsApostrophes(t *testing.T) {
	uri := PaymentURI("bob@okaxis", "Bob's Turf", 300, "TurfWar: Bob's Game")
	assert.Equal(t, "upi://pay?pa=bob@okaxis&pn=Bob's%20Turf&am=300&tn=TurfWar%3A%20Bob's%20Game", uri)
}
