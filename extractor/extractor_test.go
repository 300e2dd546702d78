package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/dealscout/models"
)

// fakePage serves a fixture instead of driving a browser.
type fakePage struct {
	html   string
	url    string
	fail   func(target string) error
	panics bool

	ua        string
	navigated []string
	scrolled  int
	closed    bool
}

func (f *fakePage) SetUserAgent(ua string) error {
	f.ua = ua
	return nil
}

func (f *fakePage) Navigate(_ context.Context, target string) error {
	f.navigated = append(f.navigated, target)
	if f.fail != nil {
		return f.fail(target)
	}
	return nil
}

func (f *fakePage) Scroll(_ context.Context, dy int) error {
	f.scrolled += dy
	return nil
}

func (f *fakePage) HTML(context.Context) (string, error) {
	if f.panics {
		panic("renderer crashed")
	}
	return f.html, nil
}

func (f *fakePage) URL() string  { return f.url }
func (f *fakePage) Close() error { f.closed = true; return nil }

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(b)
}

// noSleep skips settle delays for the duration of the test.
func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { sleep = orig })
}

const placeholder = "http://localhost:3000/api/placeholder/60/60"

func assertValid(t *testing.T, recs []models.ProductRecord) {
	t.Helper()
	for i, r := range recs {
		if !r.Valid() {
			t.Errorf("record %d is not valid: %+v", i, r)
		}
	}
}

func TestAmazon_Extract(t *testing.T) {
	noSleep(t)
	page := &fakePage{html: fixture(t, "amazon.html"), url: "https://www.amazon.in/s?k=laptop"}

	recs := NewAmazon(Options{}).Extract(context.Background(), page, "laptop")

	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(recs), recs)
	}
	assertValid(t, recs)

	if page.ua != DefaultUserAgent {
		t.Errorf("user agent not set, got %q", page.ua)
	}
	if len(page.navigated) != 1 || page.navigated[0] != "https://www.amazon.in/s?k=laptop" {
		t.Errorf("unexpected navigation: %v", page.navigated)
	}

	first := recs[0]
	if first.Platform != "Amazon" || first.Name != "Acer Aspire Lite 15.6 inch Laptop" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Price != "₹32990" {
		t.Errorf("price: got %q", first.Price)
	}
	if first.Rating != 4.2 || first.Reviews != 1234 {
		t.Errorf("rating/reviews: got %v/%d", first.Rating, first.Reviews)
	}
	if first.URL != "https://www.amazon.in/Acer-Aspire-Lite/dp/B0AAA00001/ref=sr_1_1" {
		t.Errorf("url: got %q", first.URL)
	}

	// Relative href without a leading slash, data: image.
	if recs[1].URL != "https://www.amazon.in/dp/B0AAA00002" {
		t.Errorf("relative url: got %q", recs[1].URL)
	}
	if recs[1].Image != placeholder {
		t.Errorf("data: image should fall back to placeholder, got %q", recs[1].Image)
	}
	if recs[1].Price != "₹45499" {
		t.Errorf("offscreen price: got %q", recs[1].Price)
	}

	// No link at all: search URL for the query.
	if recs[2].URL != "https://www.amazon.in/s?k=laptop" {
		t.Errorf("missing link should fall back to search url, got %q", recs[2].URL)
	}
}

func TestMyntra_BrandAndTitleJoined(t *testing.T) {
	noSleep(t)
	page := &fakePage{html: fixture(t, "myntra.html"), url: "https://www.myntra.com/tshirt"}

	recs := NewMyntra(Options{}).Extract(context.Background(), page, "tshirt")

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}
	assertValid(t, recs)

	if recs[0].Name != "Roadster Men Black Pure Cotton T-shirt" {
		t.Errorf("name: got %q", recs[0].Name)
	}
	if recs[0].Price != "₹399" {
		t.Errorf("price: got %q", recs[0].Price)
	}
	if recs[0].URL != "https://www.myntra.com/tshirts/roadster/roadster-men-black-tshirt/1234567/buy" {
		t.Errorf("url: got %q", recs[0].URL)
	}
	if recs[0].Image != "https://assets.myntassets.com/h_720/roadster-black.jpg" {
		t.Errorf("protocol-relative image: got %q", recs[0].Image)
	}
	if recs[1].Name != "HRX by Hrithik Roshan" {
		t.Errorf("brand-only name: got %q", recs[1].Name)
	}
	if page.navigated[0] != "https://www.myntra.com/tshirt" {
		t.Errorf("search url: got %q", page.navigated[0])
	}
}

func TestMyntra_SyntheticValuesAreDeterministic(t *testing.T) {
	noSleep(t)
	ext := NewMyntra(Options{})
	html := fixture(t, "myntra.html")

	a := ext.Extract(context.Background(), &fakePage{html: html}, "tshirt")
	b := ext.Extract(context.Background(), &fakePage{html: html}, "tshirt")

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("unexpected lengths %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Rating != b[i].Rating || a[i].Reviews != b[i].Reviews {
			t.Errorf("record %d: synthetic values differ between runs", i)
		}
		if a[i].Rating < 4.0 || a[i].Rating > 4.9 {
			t.Errorf("record %d: rating %v outside 4.0..4.9", i, a[i].Rating)
		}
		if a[i].Reviews < 100 || a[i].Reviews >= 1100 {
			t.Errorf("record %d: reviews %d outside 100..1099", i, a[i].Reviews)
		}
	}
}

func TestAjio_Extract(t *testing.T) {
	noSleep(t)
	page := &fakePage{html: fixture(t, "ajio.html")}

	recs := NewAjio(Options{}).Extract(context.Background(), page, "jeans")

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	assertValid(t, recs)
	if recs[0].Name != "LEVIS Men 511 Slim Fit Jeans" || recs[0].Price != "₹2249" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[0].URL != "https://www.ajio.com/levis-men-511-slim-fit-jeans/p/460907215_blue" {
		t.Errorf("url: got %q", recs[0].URL)
	}
	if recs[1].Price != "₹899" {
		t.Errorf("price: got %q", recs[1].Price)
	}
	if page.navigated[0] != "https://www.ajio.com/search/?text=jeans" {
		t.Errorf("search url: got %q", page.navigated[0])
	}
}

func TestFlipkart_SkipsHelpCards(t *testing.T) {
	noSleep(t)
	page := &fakePage{html: fixture(t, "flipkart.html")}

	recs := NewFlipkart(Options{}).Extract(context.Background(), page, "iphone 15")

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}
	assertValid(t, recs)
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.Name), "need help") {
			t.Errorf("help card leaked into results: %+v", r)
		}
	}
	if recs[0].Rating != 4.6 || recs[0].Reviews != 241365 {
		t.Errorf("rating/reviews: got %v/%d", recs[0].Rating, recs[0].Reviews)
	}
	if recs[1].URL != "https://www.flipkart.com/samsung-galaxy-s23/p/itm1" {
		t.Errorf("url: got %q", recs[1].URL)
	}
	if page.navigated[0] != "https://www.flipkart.com/search?q=iphone+15" {
		t.Errorf("search url: got %q", page.navigated[0])
	}
}

func TestJioMart_FallbackURLAndRewrite(t *testing.T) {
	noSleep(t)
	page := &fakePage{
		html: fixture(t, "jiomart.html"),
		url:  "https://www.jiomart.com/catalogsearch/result?q=salt",
		fail: func(target string) error {
			if strings.Contains(target, "/search/") {
				return context.DeadlineExceeded
			}
			return nil
		},
	}

	recs := NewJioMart(Options{}).Extract(context.Background(), page, "salt")

	if len(page.navigated) != 2 || page.navigated[1] != "https://www.jiomart.com/catalogsearch/result?q=salt" {
		t.Fatalf("expected primary then fallback navigation, got %v", page.navigated)
	}
	if page.scrolled != 500 {
		t.Errorf("expected a 500px scroll, got %d", page.scrolled)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}
	assertValid(t, recs)

	if recs[0].URL != "https://www.jiomart.com/p/groceries/tata-salt-1-kg/490000363" {
		t.Errorf("product url: got %q", recs[0].URL)
	}
	if recs[0].Image != "https://www.jiomart.com/images/product/tata-salt.jpg" {
		t.Errorf("data-src image: got %q", recs[0].Image)
	}
	if recs[0].Price != "₹28" {
		t.Errorf("price: got %q", recs[0].Price)
	}
	if recs[1].URL != "https://www.jiomart.com/search/Aashirvaad%20Shudh%20Chakki%20Atta%205%20kg" {
		t.Errorf("non-product url should become a name search, got %q", recs[1].URL)
	}
	for i, r := range recs {
		if r.Reviews < 50 || r.Reviews >= 550 {
			t.Errorf("record %d: reviews %d outside 50..549", i, r.Reviews)
		}
	}
}

func TestJioMart_GenericCardFallback(t *testing.T) {
	noSleep(t)
	page := &fakePage{html: fixture(t, "jiomart_generic.html")}

	recs := NewJioMart(Options{}).Extract(context.Background(), page, "headphones")

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}
	assertValid(t, recs)
	if recs[0].Name != "boAt Rockerz 450 Bluetooth Headphones" || recs[0].Price != "₹1499" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[0].Image != "https://www.jiomart.com/images/boat.jpg" {
		t.Errorf("image: got %q", recs[0].Image)
	}
	if recs[1].Name != "JBL Tune 760NC Wireless Headphones" || recs[1].Price != "₹5999" {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}

func TestExtract_FailsClosed(t *testing.T) {
	noSleep(t)

	tests := []struct {
		name string
		page *fakePage
	}{
		{"navigation error", &fakePage{fail: func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") }}},
		{"navigation timeout", &fakePage{fail: func(string) error { return context.DeadlineExceeded }}},
		{"panic", &fakePage{panics: true}},
		{"no cards", &fakePage{html: "<html><body><p>No results</p></body></html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := NewAmazon(Options{}).Extract(context.Background(), tt.page, "laptop")
			if recs == nil {
				t.Fatal("expected an empty slice, got nil")
			}
			if len(recs) != 0 {
				t.Errorf("expected no records, got %d", len(recs))
			}
		})
	}
}

func TestExtract_CapsAtLimit(t *testing.T) {
	noSleep(t)
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 12; i++ {
		b.WriteString(`<div class="product-base"><a href="/p/1"><h3 class="product-brand">Brand</h3><div class="product-price">Rs. 100</div></a></div>`)
	}
	b.WriteString("</body></html>")

	recs := NewMyntra(Options{}).Extract(context.Background(), &fakePage{html: b.String()}, "shirt")
	if len(recs) != 5 {
		t.Errorf("expected cap of 5, got %d", len(recs))
	}
}

func TestExtract_OutOfRangeCountsAreSynthesized(t *testing.T) {
	noSleep(t)
	card := func(name, price, reviews string) string {
		return `<div data-component-type="s-search-result"><h2><a href="/dp/X"><span>` + name +
			`</span></a></h2><span class="a-price-whole">` + price +
			`</span><span class="a-size-base s-underline-text">` + reviews + `</span></div>`
	}
	html := "<html><body>" +
		card("Overflow", "999", "99999999999999999999") +
		card("Words", "499", "4 mins ago") +
		card("Huge Price", "99999999999999999999999", "12") +
		"</body></html>"

	recs := NewAmazon(Options{}).Extract(context.Background(), &fakePage{html: html}, "laptop")
	assertValid(t, recs)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}

	h := fingerprint(models.PlatformAmazon, "Overflow")
	if want := syntheticReviews(h, 100, 1000); recs[0].Reviews != want {
		t.Errorf("Overflow reviews = %d, want synthesized %d", recs[0].Reviews, want)
	}
	if recs[1].Reviews != 4 {
		t.Errorf("Words reviews = %d, want 4", recs[1].Reviews)
	}
}

func TestExtract_CustomPlaceholder(t *testing.T) {
	noSleep(t)
	opts := Options{PlaceholderImage: "https://deals.example.com/api/placeholder/60/60"}
	recs := NewMyntra(opts).Extract(context.Background(), &fakePage{html: fixture(t, "myntra.html")}, "tshirt")
	if len(recs) < 2 {
		t.Fatalf("expected records, got %d", len(recs))
	}
	if recs[1].Image != opts.PlaceholderImage {
		t.Errorf("placeholder: got %q", recs[1].Image)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{context.DeadlineExceeded, models.ErrCodeTimeout},
		{context.Canceled, models.ErrCodeTimeout},
		{errors.New("net::ERR_CONNECTION_RESET"), models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err, "nav"); got.Code != tt.code {
			t.Errorf("categorizeError(%v) = %s, want %s", tt.err, got.Code, tt.code)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := Default(Options{})

	for _, p := range models.AllPlatforms() {
		e, ok := r.Lookup(p)
		if !ok {
			t.Errorf("platform %s not registered", p)
			continue
		}
		if e.Platform() != p {
			t.Errorf("lookup %s returned extractor for %s", p, e.Platform())
		}
	}
	if _, ok := r.Lookup("ebay"); ok {
		t.Error("unknown platform should not resolve")
	}
	if got := r.Platforms(); len(got) != 5 || got[0] != models.PlatformAmazon {
		t.Errorf("unexpected registration order: %v", got)
	}
}

func TestRegistry_Samples(t *testing.T) {
	reg := Default(Options{})
	recs := reg.Samples("running shoes", []models.Platform{models.PlatformMyntra, "ebay", models.PlatformAmazon})

	if len(recs) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(recs))
	}
	assertValid(t, recs)
	if recs[0].Platform != "Myntra" || recs[1].Platform != "Amazon" {
		t.Errorf("samples out of order: %s, %s", recs[0].Platform, recs[1].Platform)
	}
	if recs[0].URL != "https://www.myntra.com/running%20shoes" {
		t.Errorf("myntra sample url: %q", recs[0].URL)
	}
	if recs[1].URL != "https://www.amazon.in/s?k=running+shoes" {
		t.Errorf("amazon sample url: %q", recs[1].URL)
	}
	if recs[0].Image != placeholder {
		t.Errorf("sample image: %q", recs[0].Image)
	}

	again := reg.Samples("running shoes", []models.Platform{models.PlatformMyntra})
	if again[0] != recs[0] {
		t.Error("samples should be deterministic")
	}
}
